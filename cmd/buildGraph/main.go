package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/i5heu/GoChunkRing/internal/resultstore"
)

// categoryTicks implements a categorical X-axis: 0,1,2,... => labels for x values.
type categoryTicks struct {
	positions []float64
	labels    []string
}

func (ct categoryTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for i, pos := range ct.positions {
		if pos >= min && pos <= max {
			ticks = append(ticks, plot.Tick{Value: pos, Label: ct.labels[i]})
		}
	}
	return ticks
}

// logTicks spaces ticks evenly in log10 between min and max.
func logTicks(format func(float64) string) plot.Ticker {
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		// About 9 inches at one label every 30px.
		const nTicks = 648.0 / 30.0
		if min <= 0 {
			min = 1e-9
		}
		start := math.Log10(min)
		step := (math.Log10(max) - start) / nTicks

		var ticks []plot.Tick
		for i := 0.0; i <= nTicks; i++ {
			y := math.Pow(10, start+i*step)
			ticks = append(ticks, plot.Tick{Value: y, Label: format(y)})
		}
		return ticks
	})
}

func main() {
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to JSON file containing test sessions")
	sqlitePath := flag.String("sqlite", "", "Read sessions from this SQLite database instead of the JSON file")
	outputPrefix := flag.String("out", "benchmark_graph", "Output graph image filename prefix")
	flag.Parse()

	sessions, err := loadSessions(*jsonFile, *sqlitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading sessions: %v\n", err)
		os.Exit(1)
	}

	for cpus, implMap := range groupByConcurrency(sessions) {
		p := newDarkPlot(
			fmt.Sprintf("Benchmark (5%%-avg-min / Median / 5%%-avg-max) vs. Concurrency for %d CPU(s)", cpus),
			"NumProducers + NumConsumers",
			"Time per Msg (ns) [log scale]",
		)
		p.Y.Tick.Marker = logTicks(formatNs)
		addSeries(p, implMap)

		filename := fmt.Sprintf("%s_%d.png", *outputPrefix, cpus)
		if err := p.Save(12*vg.Inch, 9*vg.Inch, filename); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving plot for %d CPU(s): %v\n", cpus, err)
			continue
		}
		fmt.Printf("Graph for %d CPU(s) saved to %s\n", cpus, filename)
	}

	if geometry := groupByChunkGeometry(sessions); len(geometry) > 0 {
		p := newDarkPlot("RingQueue throughput vs. cells per chunk", "Cells per chunk", "Throughput (msgs/sec)")
		p.Y.Tick.Marker = logTicks(formatRate)
		addSeries(p, geometry)

		filename := *outputPrefix + "_chunks.png"
		if err := p.Save(12*vg.Inch, 9*vg.Inch, filename); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving chunk geometry plot: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Chunk geometry graph saved to %s\n", filename)
	}
}

func loadSessions(jsonFile, sqlitePath string) ([]resultstore.FullReport, error) {
	if sqlitePath == "" {
		return resultstore.LoadJSON(jsonFile)
	}
	store, err := resultstore.Open(sqlitePath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Sessions(context.Background())
}

func newDarkPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Y.Scale = plot.LinearScale{}

	// Dark theme.
	p.BackgroundColor = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	p.Title.TextStyle.Color = white
	p.X.Label.TextStyle.Color = white
	p.Y.Label.TextStyle.Color = white
	p.X.Color = white
	p.Y.Color = white
	p.X.Tick.Label.Color = white
	p.Y.Tick.Label.Color = white
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.TextStyle.Color = white

	p.Add(plotter.NewGrid())
	return p
}

// categories maps every x value in s to a category index, sorted ascending.
func categories(s series) (mapping map[float64]float64, ticks categoryTicks) {
	set := make(map[float64]struct{})
	for _, data := range s {
		for x := range data {
			set[x] = struct{}{}
		}
	}
	var xs []float64
	for x := range set {
		xs = append(xs, x)
	}
	sort.Float64s(xs)

	mapping = make(map[float64]float64, len(xs))
	for i, x := range xs {
		mapping[x] = float64(i)
		ticks.positions = append(ticks.positions, float64(i))
		ticks.labels = append(ticks.labels, strconv.FormatFloat(x, 'f', -1, 64))
	}
	return mapping, ticks
}

// addSeries draws one line with error bars per name, offset slightly so
// series sharing an x value stay readable.
func addSeries(p *plot.Plot, s series) {
	mapping, ticks := categories(s)
	p.X.Tick.Marker = ticks

	var names []string
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	colors := plotutil.SoftColors
	shapes := []draw.GlyphDrawer{
		draw.CircleGlyph{},
		draw.SquareGlyph{},
		draw.TriangleGlyph{},
		draw.CrossGlyph{},
		draw.PlusGlyph{},
	}

	offsetRange := 0.4
	offsetStep := offsetRange / float64(len(names))
	startOffset := -offsetRange/2 + offsetStep/2

	for i, name := range names {
		stats := buildStats(s[name])
		if len(stats) == 0 {
			continue
		}
		for j := range stats {
			stats[j].concurrency = mapping[stats[j].orig] + startOffset + float64(i)*offsetStep
		}
		sp := statsPoints(stats)

		line, err := plotter.NewLine(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating line: %v\n", err)
			continue
		}
		line.Color = colors[i%len(colors)]

		points, err := plotter.NewScatter(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating scatter: %v\n", err)
			continue
		}
		points.GlyphStyle.Radius = vg.Points(5)
		points.Color = colors[i%len(colors)]
		points.Shape = shapes[i%len(shapes)]

		yErrBars, err := plotter.NewYErrorBars(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating error bars: %v\n", err)
			continue
		}
		yErrBars.Color = colors[i%len(colors)]

		p.Add(line, points, yErrBars)
		p.Legend.Add(name, line, points)
	}
}
