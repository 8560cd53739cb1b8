// Bench measures tabstego encode and decode throughput on a synthetic
// table and, optionally, how many random row deletions the encoded table
// survives.
//
// Usage:
//
//	go run ./cmd/bench -rows 100000 -payload 64 -workers 4
//	go run ./cmd/bench -rows 20000 -payload 16 -parity 0 -trials 5 -step 50
//
// Flags:
//
//	-rows      Number of table rows (default: 100,000)
//	-payload   Payload size in bytes (default: 64)
//	-bpr       Bits per row: 1, 2 or 4 (default: 2)
//	-block     Fountain block size in bytes (default: 20)
//	-parity    Reed-Solomon parity bytes per packet (default: 10)
//	-fountain  Fountain code: lt or raptorq (default: lt)
//	-workers   Goroutines for classification and scanning (default: 1)
//	-trials    Deletion-tolerance trials, 0 to skip (default: 0)
//	-step      Rows deleted per tolerance round (default: 100)
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/tamirms/tabstego"
)

// getMaxRSS returns the maximum resident set size in bytes.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// heapSampler tracks the peak live heap at 10ms intervals. runtime/metrics
// avoids the stop-the-world pause of ReadMemStats.
type heapSampler struct {
	peak atomic.Uint64
	done chan struct{}
}

func startHeapSampler() *heapSampler {
	s := &heapSampler{done: make(chan struct{})}
	go func() {
		samples := []metrics.Sample{{Name: "/memory/classes/heap/objects:bytes"}}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				v := samples[0].Value.Uint64()
				for {
					old := s.peak.Load()
					if v <= old || s.peak.CompareAndSwap(old, v) {
						break
					}
				}
			}
		}
	}()
	return s
}

func (s *heapSampler) stop() uint64 {
	close(s.done)
	return s.peak.Load()
}

func syntheticTable(rng *rand.Rand, n int) *tabstego.MemTable {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{
			strconv.Itoa(i),
			strconv.FormatUint(rng.Uint64(), 36),
			strconv.FormatFloat(rng.NormFloat64()*100, 'f', 3, 64),
		}
	}
	t, err := tabstego.NewMemTable([]string{"id", "key", "value"}, rows)
	if err != nil {
		panic(err) // rows are built rectangular
	}
	return t
}

func main() {
	rowsFlag := flag.Int("rows", 100_000, "number of table rows")
	payloadFlag := flag.Int("payload", 64, "payload size in bytes")
	bprFlag := flag.Int("bpr", 2, "bits per row: 1, 2 or 4")
	blockFlag := flag.Int("block", 20, "fountain block size in bytes")
	parityFlag := flag.Int("parity", 10, "reed-solomon parity bytes per packet")
	fountainFlag := flag.String("fountain", "lt", "fountain code: lt or raptorq")
	workersFlag := flag.Int("workers", 1, "goroutines for classification and scanning")
	trialsFlag := flag.Int("trials", 0, "deletion-tolerance trials (0 to skip)")
	stepFlag := flag.Int("step", 100, "rows deleted per tolerance round")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (decode phase only)")
	flag.Parse()

	rng := rand.New(rand.NewPCG(1, 2))
	fmt.Println("Generating table...")
	table := syntheticTable(rng, *rowsFlag)
	payload := make([]byte, *payloadFlag)
	for i := range payload {
		payload[i] = byte(rng.Uint32())
	}

	opts := []tabstego.Option{
		tabstego.WithBitPerRow(*bprFlag),
		tabstego.WithBlockSize(*blockFlag),
		tabstego.WithParitySize(*parityFlag),
		tabstego.WithFountain(*fountainFlag),
		tabstego.WithWorkers(*workersFlag),
		tabstego.WithSeed(12345),
	}
	ctx := context.Background()

	runtime.GC()
	baselineRSS := getMaxRSS()
	sampler := startHeapSampler()

	fmt.Println("Encoding...")
	encStart := time.Now()
	encoded, stats, err := tabstego.EncodeWithStats(ctx, table, payload, opts...)
	encDuration := time.Since(encStart)
	if err != nil {
		fmt.Printf("Encode failed: %v\n", err)
		return
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	fmt.Println("Decoding...")
	decStart := time.Now()
	rec, err := tabstego.Decode(ctx, encoded, opts...)
	decDuration := time.Since(decStart)
	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	peakHeap := sampler.stop()
	if err != nil {
		fmt.Printf("Decode failed: %v\n", err)
		return
	}
	peakRSS := getMaxRSS() - baselineRSS

	rowsPerSec := func(d time.Duration) string {
		return fmt.Sprintf("%.2f M/sec", float64(*rowsFlag)/d.Seconds()/1_000_000)
	}
	out := tablewriter.NewWriter(os.Stdout)
	out.SetHeader([]string{"Metric", "Value"})
	out.SetAlignment(tablewriter.ALIGN_LEFT)
	out.AppendBulk([][]string{
		{"Rows", strconv.Itoa(stats.Rows)},
		{"Rows per packet", strconv.Itoa(stats.RowsPerPacket)},
		{"Packets embedded", strconv.Itoa(stats.Packets)},
		{"Source blocks", strconv.Itoa(stats.SourceBlocks)},
		{"Encode time", encDuration.Round(time.Millisecond).String()},
		{"Encode throughput", rowsPerSec(encDuration)},
		{"Decoded", strconv.FormatBool(rec.Success)},
		{"Decode time", decDuration.Round(time.Millisecond).String()},
		{"Decode throughput", rowsPerSec(decDuration)},
		{"Probes until decoded", strconv.Itoa(rec.Stats.Probes)},
		{"Valid packets used", strconv.Itoa(rec.ValidPackets)},
		{"Peak heap", fmt.Sprintf("%.1f MB", float64(peakHeap)/1_000_000)},
		{"Peak RSS growth", fmt.Sprintf("%.1f MB", float64(peakRSS)/1_000_000)},
	})

	if *trialsFlag > 0 {
		fmt.Println("Measuring deletion tolerance...")
		tolStart := time.Now()
		r, err := tabstego.MeasureDeletionTolerance(ctx, encoded, payload, *trialsFlag, *stepFlag, 7, opts...)
		if err != nil {
			fmt.Printf("Tolerance failed: %v\n", err)
			return
		}
		out.AppendBulk([][]string{
			{"Tolerated deletions (median)", strconv.Itoa(r.Median)},
			{"Tolerated deletions (min/max)", fmt.Sprintf("%d / %d", r.Min, r.Max)},
			{"Tolerance time", time.Since(tolStart).Round(time.Millisecond).String()},
		})
	}

	fmt.Println()
	out.Render()
}
