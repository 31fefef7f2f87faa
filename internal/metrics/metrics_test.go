package metrics

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestIncHelpersUpdateLocalMirror(t *testing.T) {
	before := Snap()

	IncBlocksDecoded()
	IncMessagesOpened()
	IncMessagesCompleted()
	IncMessagesStale()
	AddDatagramsSent(3)

	after := Snap()
	require.Equal(t, before.BlocksDecoded+1, after.BlocksDecoded)
	require.Equal(t, before.MessagesOpened+1, after.MessagesOpened)
	require.Equal(t, before.MessagesCompleted+1, after.MessagesCompleted)
	require.Equal(t, before.MessagesStale+1, after.MessagesStale)
	require.Equal(t, before.DatagramsSent+3, after.DatagramsSent)
}

func TestWriteCSVRowCreatesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snmp.log")

	writeCSVRow(path)
	writeCSVRow(path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "one header row plus two snapshot rows")
	require.Equal(t, []string{"unix", "blocks_decoded", "messages_opened", "messages_completed", "messages_stale", "datagrams_sent"}, rows[0])
}

func TestCSVLoggerStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "period.log")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		CSVLogger(ctx, path, 1)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("CSVLogger did not return after context cancellation")
	}
}

func TestSetOpenMessagesAndCompletedSetSize(t *testing.T) {
	SetOpenMessages(3)
	require.Equal(t, float64(3), testutil.ToFloat64(OpenMessages))

	SetCompletedSetSize(7)
	require.Equal(t, float64(7), testutil.ToFloat64(CompletedSetSize))
}

func TestSampleGaugesRunsUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int64

	done := make(chan struct{})
	go func() {
		SampleGauges(ctx, 5*time.Millisecond, func() {
			atomic.AddInt64(&calls, 1)
		})
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SampleGauges did not return after context cancellation")
	}
	require.Greater(t, atomic.LoadInt64(&calls), int64(0))
}

func TestSampleGaugesNoopOnNonPositiveInterval(t *testing.T) {
	SampleGauges(context.Background(), 0, func() {
		t.Fatal("sample must not be called when interval <= 0")
	})
}

func TestCSVLoggerNoopOnEmptyPathOrInterval(t *testing.T) {
	CSVLogger(context.Background(), "", 60)
	CSVLogger(context.Background(), "/tmp/should-not-be-created.log", 0)
	_, err := os.Stat("/tmp/should-not-be-created.log")
	require.True(t, os.IsNotExist(err))
}
