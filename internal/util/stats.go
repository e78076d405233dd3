package util

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide datagram counter.
var Stats = &stats{}

type stats struct {
	DatagramsSent atomic.Int64 // datagrams written to the socket
	DatagramsRecv atomic.Int64 // datagrams read from the socket
	BytesSent     atomic.Int64 // bytes written, headers included
	BytesRecv     atomic.Int64 // bytes read, headers included
	Corrupted     atomic.Int64 // data packets dropped on checksum mismatch
}

func (s *stats) AddSent(n int) {
	s.DatagramsSent.Add(1)
	s.BytesSent.Add(int64(n))
}

func (s *stats) AddRecv(n int) {
	s.DatagramsRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

func (s *stats) AddCorrupted() { s.Corrupted.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs traffic statistics
// every interval while there is traffic. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		secs := interval.Seconds()
		var prevSent, prevRecv, prevCorrupted int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				corrupted := Stats.Corrupted.Load()

				outS := float64(sent-prevSent) / secs
				inS := float64(recv-prevRecv) / secs
				dropped := corrupted - prevCorrupted

				if inS > 10 || outS > 10 || dropped > 0 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, dropped))
				}

				prevSent = sent
				prevRecv = recv
				prevCorrupted = corrupted

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS float64, dropped int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Corrupted: %d",
		formatBytes(inS),
		formatBytes(outS),
		dropped,
	)
}

// ──────────────────────────────────────────────────────────────────────────────
// Per-transfer runs
// ──────────────────────────────────────────────────────────────────────────────

// Run is the measurement of one completed transfer.
type Run struct {
	Bytes    int
	Duration time.Duration
}

// Bandwidth returns the throughput of the run in MiB/s.
func (r Run) Bandwidth() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Bytes) / r.Duration.Seconds() / (1024 * 1024)
}

// RunStats collects the runs of one session. It is safe for concurrent use.
type RunStats struct {
	mu   sync.Mutex
	runs []Run
}

// Add records a completed transfer.
func (s *RunStats) Add(bytes int, d time.Duration) {
	s.mu.Lock()
	s.runs = append(s.runs, Run{Bytes: bytes, Duration: d})
	s.mu.Unlock()
}

// Runs returns a copy of the recorded runs.
func (s *RunStats) Runs() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Run(nil), s.runs...)
}

// Averages returns the mean duration and mean bandwidth (MiB/s) over all
// runs, or zeros when nothing was recorded.
func (s *RunStats) Averages() (time.Duration, float64) {
	runs := s.Runs()
	if len(runs) == 0 {
		return 0, 0
	}

	var total time.Duration
	var bw float64
	for _, r := range runs {
		total += r.Duration
		bw += r.Bandwidth()
	}
	return total / time.Duration(len(runs)), bw / float64(len(runs))
}

// Table returns the runs and their averages as pterm table rows.
func (s *RunStats) Table() pterm.TableData {
	data := pterm.TableData{{"Run", "Bytes", "Time", "Speed"}}
	for i, r := range s.Runs() {
		data = append(data, []string{
			fmt.Sprintf("%d", i+1),
			formatBytes(float64(r.Bytes)),
			fmt.Sprintf("%.2f ms", float64(r.Duration.Microseconds())/1000),
			fmt.Sprintf("%.2f MiB/s", r.Bandwidth()),
		})
	}

	avgTime, avgBW := s.Averages()
	data = append(data, []string{
		"avg",
		"",
		fmt.Sprintf("%.2f ms", float64(avgTime.Microseconds())/1000),
		fmt.Sprintf("%.2f MiB/s", avgBW),
	})
	return data
}

// Render prints the run table to stdout.
func (s *RunStats) Render() error {
	return pterm.DefaultTable.WithHasHeader().WithData(s.Table()).Render()
}
