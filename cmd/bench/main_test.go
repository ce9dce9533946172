package main

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/GoChunkRing/internal/resultstore"
	"github.com/i5heu/GoChunkRing/pkg/ringqueue"
)

// progressWatchdog monitors progress and fails the test if no progress is made for 15 seconds.
type progressWatchdog struct {
	t            *testing.T
	label        string
	lastProgress atomic.Int64
	done         chan struct{}
}

func newWatchdog(t *testing.T, label string) *progressWatchdog {
	wd := &progressWatchdog{
		t:     t,
		label: label,
		done:  make(chan struct{}),
	}
	wd.lastProgress.Store(time.Now().UnixNano())
	return wd
}

func (wd *progressWatchdog) Start() {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				elapsed := time.Since(time.Unix(0, wd.lastProgress.Load()))
				if elapsed > 15*time.Second {
					wd.t.Errorf("No progress in the last 15 seconds (%s test likely stuck).", wd.label)
					return
				}
			case <-wd.done:
				return
			}
		}
	}()
}

func (wd *progressWatchdog) Progress() {
	wd.lastProgress.Store(time.Now().UnixNano())
}

func (wd *progressWatchdog) Stop() {
	close(wd.done)
}

// getEnvInt reads an integer from an environment variable with a default value.
func getEnvInt(name string, defaultVal int) int {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}

// withAllQueues runs fn for every implementation that has all testedFeatures.
func withAllQueues(t *testing.T, testedFeatures []string, fn func(t *testing.T, impl Implementation)) {
	t.Helper()
	for _, impl := range getImplementations() {
		t.Run(impl.name, func(t *testing.T) {
			for _, feature := range testedFeatures {
				if !slices.Contains(impl.features, feature) {
					t.Skipf("Skipping: missing feature %q", feature)
				}
			}
			fn(t, impl)
		})
	}
}

// dequeueWait spins until an item arrives.
func dequeueWait(q benchQueue) *int {
	for {
		if v, ok := q.Dequeue(); ok {
			return v
		}
		time.Sleep(time.Microsecond)
	}
}

func TestBasicFIFO(t *testing.T) {
	withAllQueues(t, []string{"FIFO"}, func(t *testing.T, impl Implementation) {
		q := impl.newQueue(1024)
		wd := newWatchdog(t, "BasicFIFO")
		wd.Start()
		defer wd.Stop()

		const n = 1000
		for i := 0; i < n; i++ {
			item := i
			q.Enqueue(&item)
			wd.Progress()
		}
		for i := 0; i < n; i++ {
			v := dequeueWait(q)
			wd.Progress()
			if *v != i {
				t.Fatalf("Expected %d, got %d", i, *v)
			}
		}
	})
}

func TestEmptyQueue(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation) {
		q := impl.newQueue(1024)
		v, ok := q.Dequeue()
		assert.False(t, ok)
		assert.Nil(t, v)
		assert.Zero(t, q.UsedSlots())
		assert.Positive(t, q.FreeSlots())
	})
}

func TestNoLossUnderContention(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation) {
		q := impl.newQueue(1024)
		wd := newWatchdog(t, "NoLossUnderContention")
		wd.Start()
		defer wd.Stop()

		producers := getEnvInt("BENCH_TEST_PRODUCERS", 4)
		perProducer := getEnvInt("BENCH_TEST_ITEMS", 5000)
		total := producers * perProducer

		var wg sync.WaitGroup
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					v := p*perProducer + i
					q.Enqueue(&v)
					wd.Progress()
				}
			}()
		}

		seen := make([]atomic.Bool, total)
		var consumed atomic.Int64
		var cwg sync.WaitGroup
		for c := 0; c < 4; c++ {
			cwg.Add(1)
			go func() {
				defer cwg.Done()
				for consumed.Load() < int64(total) {
					v, ok := q.Dequeue()
					if !ok {
						time.Sleep(time.Microsecond)
						continue
					}
					if seen[*v].Swap(true) {
						t.Errorf("value %d delivered twice", *v)
					}
					consumed.Add(1)
					wd.Progress()
				}
			}()
		}
		wg.Wait()
		cwg.Wait()

		require.Equal(t, int64(total), consumed.Load())
		assert.Zero(t, q.UsedSlots())
	})
}

func TestPerProducerOrder(t *testing.T) {
	withAllQueues(t, []string{"MPMC", "FIFO"}, func(t *testing.T, impl Implementation) {
		q := impl.newQueue(1024)
		const producers, perProducer = 4, 3000

		var wg sync.WaitGroup
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					v := p*perProducer + i
					q.Enqueue(&v)
				}
			}()
		}

		last := make([]int, producers)
		for i := range last {
			last[i] = -1
		}
		for n := 0; n < producers*perProducer; n++ {
			v := *dequeueWait(q)
			p, seq := v/perProducer, v%perProducer
			if seq <= last[p] {
				t.Fatalf("producer %d: got %d after %d", p, seq, last[p])
			}
			last[p] = seq
		}
		wg.Wait()
	})
}

func TestFullQueueBlocking(t *testing.T) {
	withAllQueues(t, []string{"Blocking"}, func(t *testing.T, impl Implementation) {
		q := impl.newQueue(1024)

		for i := 0; q.FreeSlots() > 0; i++ {
			x := i
			q.Enqueue(&x)
		}
		used := q.UsedSlots()
		require.GreaterOrEqual(t, used, uint64(1024))

		done := make(chan struct{})
		go func() {
			defer close(done)
			val := 9999
			q.Enqueue(&val)
		}()

		select {
		case <-done:
			t.Fatal("Expected Enqueue to block, but goroutine completed immediately")
		case <-time.After(100 * time.Millisecond):
		}

		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, 0, *v)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Enqueue goroutine did not unblock after freeing a slot")
		}
		assert.Equal(t, used, q.UsedSlots())
	})
}

func TestCellsPerChunkReportsGeometry(t *testing.T) {
	for _, impl := range getImplementations() {
		cpc := impl.cellsPerChunk(1024)
		if impl.chunkBytes == 0 {
			assert.Zero(t, cpc, impl.name)
			continue
		}
		assert.Equal(t, max(impl.chunkBytes/8, 3), cpc, impl.name)
	}
}

func TestRingImplementationsHonourSpareDepth(t *testing.T) {
	for _, impl := range getImplementations() {
		if impl.chunkBytes == 0 {
			continue
		}
		tq, ok := impl.newQueue(1024).(*ringqueue.Typed[*int])
		require.True(t, ok, impl.name)

		for i := 0; i < 5000; i++ {
			v := i
			tq.Enqueue(&v)
			got, ok := tq.Dequeue()
			require.True(t, ok)
			require.Equal(t, i, *got)
		}
		st := tq.Queue().Stats()
		assert.LessOrEqual(t, st.Spares, impl.spareChunks, impl.name)
		tq.Close()
		tq.Queue().Destroy()
	}
}

func TestSelectCPUSettings(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 6, 8}, selectCPUSettings(0, 8))
	assert.Equal(t, []int{4}, selectCPUSettings(4, 8))
	assert.Equal(t, []int{8}, selectCPUSettings(64, 8))
}

func TestMarkdownTableReadsLastSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, resultstore.AppendJSON(path, []resultstore.FullReport{{
		SessionTime: "2026-10-14T00:00:00Z",
		Benchmarks: []resultstore.BenchmarkResult{
			{Implementation: "RingQueue 64KiB/1 spare", Throughput: 10, CellsPerChunk: 8192},
			{Implementation: "Golang Buffered Channel", Throughput: 20},
		},
	}}))
	assert.NotPanics(t, func() { outputMarkdownTable(path) })
}
