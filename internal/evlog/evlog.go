// Package evlog implements transport.EventLogger with
// github.com/charmbracelet/log: message_id, block_idx, and drop kind
// become first-class key/value fields rather than a hand-formatted
// log.Println string.
package evlog

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger adapts a *log.Logger to transport.EventLogger.
type Logger struct {
	l *log.Logger
}

// New constructs a Logger writing to os.Stderr at the given level
// ("debug", "info", "warn", "error"; unrecognized values fall back to
// info).
func New(level string) *Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          "fecbridge",
	})
	l.SetLevel(parseLevel(level))
	return &Logger{l: l}
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Received logs the arrival of one datagram at debug level, without its
// outcome (the other events report that); this is the highest-frequency
// event the logger sees,
// so it is the one most worth filtering out above debug level.
func (lg *Logger) Received(messageID uint32) {
	lg.l.Debug("fragment received", "message_id", messageID)
}

// Dropped logs a rejected fragment at warn level with its transporterr
// kind and, when present, the underlying cause.
func (lg *Logger) Dropped(messageID uint32, blockIdx uint32, kind string, err error) {
	if err != nil {
		lg.l.Warn("fragment dropped", "message_id", messageID, "block_idx", blockIdx, "kind", kind, "cause", err)
		return
	}
	lg.l.Warn("fragment dropped", "message_id", messageID, "block_idx", blockIdx, "kind", kind)
}

// BlockDecoded logs a successful per-block recovery at debug level;
// this fires once per block per message, which is too frequent for
// info on a busy link.
func (lg *Logger) BlockDecoded(messageID uint32, blockIdx uint32) {
	lg.l.Debug("block decoded", "message_id", messageID, "block_idx", blockIdx)
}

// MessageOpened logs the first fragment seen for a new message_id,
// recording the parameters it locked in.
func (lg *Logger) MessageOpened(messageID uint32, k, n, numBlocks int) {
	lg.l.Info("message opened", "message_id", messageID, "k", k, "n", n, "num_blocks", numBlocks)
}

// MessageCompleted logs a fully assembled message with its image and
// metadata lengths. The receiver logs it before handing the bytes to
// the sinks, so it does not report whether the sinks accepted them.
func (lg *Logger) MessageCompleted(messageID uint32, imageLen, metadataLen int) {
	lg.l.Info("message completed", "message_id", messageID, "image_len", imageLen, "metadata_len", metadataLen)
}

// MessageStale logs an age-based eviction of an in-flight entry.
func (lg *Logger) MessageStale(messageID uint32) {
	lg.l.Warn("message evicted as stale", "message_id", messageID)
}
