// Package metrics exposes Prometheus counters/gauges mirroring the
// structured event trail emitted by the receiver and sender, for
// machine consumption alongside the human-readable log lines.
package metrics

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FragmentsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fecbridge_fragments_received_total",
		Help: "Total fragments accepted by the datagram receiver, regardless of outcome.",
	})
	FragmentsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fecbridge_fragments_dropped_total",
		Help: "Fragments dropped by the reassembly table, labeled by the transporterr.Kind that caused it.",
	}, []string{"kind"})
	BlocksDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fecbridge_blocks_decoded_total",
		Help: "Total blocks successfully recovered by the block decoder.",
	})
	MessagesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fecbridge_messages_opened_total",
		Help: "Total distinct message_ids first observed by the reassembly table.",
	})
	MessagesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fecbridge_messages_completed_total",
		Help: "Total messages fully reassembled and dispatched to the sinks.",
	})
	MessagesStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fecbridge_messages_stale_evicted_total",
		Help: "Total in-flight message entries dropped by the age-based eviction policy.",
	})
	OpenMessages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fecbridge_open_messages",
		Help: "Current number of in-flight (not yet completed) message entries.",
	})
	CompletedSetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fecbridge_completed_set_size",
		Help: "Current number of message_ids held in the bounded completion set.",
	})
	SenderDatagramsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fecbridge_sender_datagrams_sent_total",
		Help: "Total datagrams written by the emitter across all sent messages.",
	})
	SelectorEfficiency = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fecbridge_selector_efficiency",
		Help: "payload_len / (num_blocks * N * fragment_size) for the most recently selected code parameters.",
	})
)

// StartHTTP serves Prometheus metrics at /metrics on addr. The caller
// is responsible for shutting the returned server down (e.g. via
// srv.Shutdown on exit).
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}

// Shutdown is a thin wrapper so callers don't need to import context
// just to stop the metrics server cleanly.
func Shutdown(srv *http.Server) error {
	return srv.Shutdown(context.Background())
}

// Local atomic mirrors of the counters above, cheap to read for a
// periodic CSV snapshot without going through the Prometheus registry.
var (
	localBlocksDecoded     uint64
	localMessagesOpened    uint64
	localMessagesCompleted uint64
	localMessagesStale     uint64
	localDatagramsSent     uint64
)

// Snapshot is a cheap point-in-time copy of the local counters.
type Snapshot struct {
	BlocksDecoded     uint64
	MessagesOpened    uint64
	MessagesCompleted uint64
	MessagesStale     uint64
	DatagramsSent     uint64
}

// Snap reads the local counters. Call sites that also touch the
// Prometheus counters directly (BlocksDecoded.Inc(), etc.) should pair
// each with the matching IncXxx/AddXxx helper below to keep the two in
// sync.
func Snap() Snapshot {
	return Snapshot{
		BlocksDecoded:     atomic.LoadUint64(&localBlocksDecoded),
		MessagesOpened:    atomic.LoadUint64(&localMessagesOpened),
		MessagesCompleted: atomic.LoadUint64(&localMessagesCompleted),
		MessagesStale:     atomic.LoadUint64(&localMessagesStale),
		DatagramsSent:     atomic.LoadUint64(&localDatagramsSent),
	}
}

func IncBlocksDecoded() {
	BlocksDecoded.Inc()
	atomic.AddUint64(&localBlocksDecoded, 1)
}

func IncMessagesOpened() {
	MessagesOpened.Inc()
	atomic.AddUint64(&localMessagesOpened, 1)
}

func IncMessagesCompleted() {
	MessagesCompleted.Inc()
	atomic.AddUint64(&localMessagesCompleted, 1)
}

func IncMessagesStale() {
	MessagesStale.Inc()
	atomic.AddUint64(&localMessagesStale, 1)
}

func AddDatagramsSent(n int) {
	SenderDatagramsSent.Add(float64(n))
	atomic.AddUint64(&localDatagramsSent, uint64(n))
}

// SetOpenMessages reports the current in-flight message entry count.
func SetOpenMessages(n int) { OpenMessages.Set(float64(n)) }

// SetCompletedSetSize reports the current completion-set occupancy.
func SetCompletedSetSize(n int) { CompletedSetSize.Set(float64(n)) }

// SampleGauges runs sample once per interval until ctx is done, for
// gauges (like OpenMessages/CompletedSetSize) that reflect a table's
// live state rather than a monotonic counter and so cannot be updated
// from the event trail alone.
func SampleGauges(ctx context.Context, interval time.Duration, sample func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}

// CSVLogger periodically appends a Snapshot row to a CSV file named by
// applying time.Now().Format to the base name of path (so a pattern
// like "./snmp-20060102.log" rotates daily), one row per interval
// seconds. It runs until ctx is done. The header row is written only
// when the target file is empty.
func CSVLogger(ctx context.Context, path string, interval int) {
	if path == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeCSVRow(path)
		}
	}
}

func writeCSVRow(path string) {
	logdir, logfile := filepath.Split(path)
	f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		_ = w.Write([]string{"unix", "blocks_decoded", "messages_opened", "messages_completed", "messages_stale", "datagrams_sent"})
	}

	snap := Snap()
	_ = w.Write([]string{
		fmt.Sprint(time.Now().Unix()),
		fmt.Sprint(snap.BlocksDecoded),
		fmt.Sprint(snap.MessagesOpened),
		fmt.Sprint(snap.MessagesCompleted),
		fmt.Sprint(snap.MessagesStale),
		fmt.Sprint(snap.DatagramsSent),
	})
}
