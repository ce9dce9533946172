package testbench

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/i5heu/GoChunkRing/internal/queue"
	"github.com/i5heu/GoChunkRing/pkg/ringqueue"
)

// PipelineConfig describes one collector to consumer run over a cell queue.
type PipelineConfig struct {
	// Records is how many fixed-size records the producer writes.
	Records int

	// ConsumerDelay is slept after each record to model a slow consumer.
	ConsumerDelay time.Duration

	// FlushLast publishes the final record explicitly. Without it the last
	// record stays invisible to the consumer and is discarded at shutdown.
	FlushLast bool

	// Fill writes record i into dst. Defaults to FillRecord.
	Fill func(i int, dst []byte)
}

// PipelineResult reports what crossed the queue.
type PipelineResult struct {
	Produced int
	Consumed int

	// HighWater is the largest live-cell count the producer saw on a reservation.
	HighWater uint32

	ProducedDigest [32]byte
	ConsumedDigest [32]byte
	Elapsed        time.Duration
}

// Intact reports whether the consumer saw exactly the records the producer
// made visible, in order.
func (r PipelineResult) Intact() bool {
	return r.ProducedDigest == r.ConsumedDigest
}

// Throughput is consumed records per second.
func (r PipelineResult) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Consumed) / r.Elapsed.Seconds()
}

// FillRecord writes the record index followed by a byte pattern derived from it.
func FillRecord(i int, dst []byte) {
	n := 0
	if len(dst) >= 8 {
		binary.LittleEndian.PutUint64(dst, uint64(i))
		n = 8
	}
	for j := n; j < len(dst); j++ {
		dst[j] = byte(i + j)
	}
}

// RunRecordPipeline runs one producer and one consumer over q, then shuts the
// queue down in the safe order: Stop, join both goroutines, Destroy.
func RunRecordPipeline(q queue.CellQueue, cfg PipelineConfig) (PipelineResult, error) {
	if cfg.Records <= 0 {
		return PipelineResult{}, fmt.Errorf("testbench: record count must be positive, got %d", cfg.Records)
	}
	fill := cfg.Fill
	if fill == nil {
		fill = FillRecord
	}
	visible := cfg.Records
	if !cfg.FlushLast {
		visible--
	}

	var (
		res       PipelineResult
		wg        sync.WaitGroup
		prodErr   error
		consErr   error
		prodHash  = sha3.New256()
		consHash  = sha3.New256()
		consumed  = make(chan struct{})
		prodAbort = make(chan struct{})
	)

	start := time.Now()
	wg.Add(2)
	go func() {
		defer wg.Done()
		record := make([]byte, q.CellSize())
		for i := 0; i < cfg.Records; i++ {
			h, err := q.ReserveWrite()
			if err != nil {
				prodErr = err
				close(prodAbort)
				return
			}
			fill(i, record)
			copy(h.Bytes(), record)
			if i < visible {
				prodHash.Write(record)
			}
			res.HighWater = max(res.HighWater, h.Live())
			res.Produced++
		}
		if cfg.FlushLast {
			q.Publish()
		}
	}()

	go func() {
		defer wg.Done()
		defer close(consumed)
		for res.Consumed < visible {
			h, err := q.TakeRead()
			if err != nil {
				consErr = err
				return
			}
			consHash.Write(h.Bytes())
			res.Consumed++
			if cfg.ConsumerDelay > 0 {
				time.Sleep(cfg.ConsumerDelay)
			}
		}
	}()

	select {
	case <-consumed:
	case <-prodAbort:
	}
	q.Stop()
	wg.Wait()
	q.Destroy()
	res.Elapsed = time.Since(start)

	sum(prodHash, res.ProducedDigest[:])
	sum(consHash, res.ConsumedDigest[:])

	switch {
	case prodErr != nil && !errors.Is(prodErr, ringqueue.ErrStopped):
		return res, fmt.Errorf("testbench: producer: %w", prodErr)
	case consErr != nil && !errors.Is(consErr, ringqueue.ErrStopped):
		return res, fmt.Errorf("testbench: consumer: %w", consErr)
	}
	return res, nil
}

func sum(h hash.Hash, dst []byte) {
	copy(dst, h.Sum(nil))
}

// DigestHex is a short printable form of a digest.
func DigestHex(d [32]byte) string {
	return fmt.Sprintf("%x", d[:8])
}
