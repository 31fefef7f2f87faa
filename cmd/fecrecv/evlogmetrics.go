package main

import (
	"github.com/xtaci/fecbridge/internal/evlog"
	"github.com/xtaci/fecbridge/internal/metrics"
)

// countingLogger wraps an *evlog.Logger and mirrors every event into
// the Prometheus counters/gauges in internal/metrics, so the structured
// log trail and the scrapeable metrics stay in lockstep without the
// transport package needing to import metrics directly.
type countingLogger struct {
	*evlog.Logger
}

func (l *countingLogger) Received(messageID uint32) {
	l.Logger.Received(messageID)
	metrics.FragmentsReceived.Inc()
}

func (l *countingLogger) Dropped(messageID uint32, blockIdx uint32, kind string, err error) {
	l.Logger.Dropped(messageID, blockIdx, kind, err)
	metrics.FragmentsDropped.WithLabelValues(kind).Inc()
}

func (l *countingLogger) BlockDecoded(messageID uint32, blockIdx uint32) {
	l.Logger.BlockDecoded(messageID, blockIdx)
	metrics.IncBlocksDecoded()
}

func (l *countingLogger) MessageOpened(messageID uint32, k, n, numBlocks int) {
	l.Logger.MessageOpened(messageID, k, n, numBlocks)
	metrics.IncMessagesOpened()
}

func (l *countingLogger) MessageCompleted(messageID uint32, imageLen, metadataLen int) {
	l.Logger.MessageCompleted(messageID, imageLen, metadataLen)
	metrics.IncMessagesCompleted()
}
