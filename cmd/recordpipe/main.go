// Command recordpipe streams fixed-size records from one producer to one
// consumer through a RingQueue and reports what arrived.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/i5heu/GoChunkRing/internal/testbench"
	"github.com/i5heu/GoChunkRing/pkg/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	d := config.QueueDefaultsFromEnv()

	fs := flag.NewFlagSet("recordpipe", flag.ContinueOnError)
	fs.SetOutput(out)
	cellSize := fs.Uint("cell", uint(d.CellSize), "Record size in bytes (env "+config.EnvCellSize+")")
	items := fs.Uint("items", uint(d.Items), "Minimum queue capacity in records (env "+config.EnvItems+")")
	chunkBytes := fs.Uint("chunk", uint(d.ChunkBytes), "Chunk size in bytes (env "+config.EnvChunkBytes+")")
	spares := fs.Int("spares", d.SpareChunks, "Drained chunks kept for reuse (env "+config.EnvSpareChunks+")")
	records := fs.Int("records", 100000, "Number of records to send")
	delay := fs.Duration("delay", 0, "Consumer delay per record")
	flush := fs.Bool("flush", true, "Publish the final record before shutdown")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d.CellSize = uint32(*cellSize)
	d.Items = uint32(*items)
	d.ChunkBytes = uint32(*chunkBytes)
	d.SpareChunks = *spares

	q, err := d.NewQueue()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "queue: cell=%dB cells/chunk=%d max=%d spares=%d\n",
		q.CellSize(), q.CellsPerChunk(), q.MaxCells(), d.SpareChunks)

	res, err := testbench.RunRecordPipeline(q, testbench.PipelineConfig{
		Records:       *records,
		ConsumerDelay: *delay,
		FlushLast:     *flush,
	})
	if err != nil {
		return err
	}

	st := q.Stats()
	fmt.Fprintf(out, "produced=%d consumed=%d high-water=%d/%d took=%v throughput=%.0f rec/s\n",
		res.Produced, res.Consumed, res.HighWater, q.MaxCells(), res.Elapsed.Round(time.Microsecond), res.Throughput())
	fmt.Fprintf(out, "chunks: allocated=%d reused=%d freed=%d\n", st.ChunkAllocs, st.SpareReuses, st.ChunkFrees)
	fmt.Fprintf(out, "digest: produced=%s consumed=%s\n",
		testbench.DigestHex(res.ProducedDigest), testbench.DigestHex(res.ConsumedDigest))
	if !res.Intact() {
		return fmt.Errorf("consumer stream does not match producer stream")
	}
	return nil
}
