package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// captureSink is an in-memory PacketSink that records every datagram
// written to it, for tests that do not need a real socket.
type captureSink struct {
	datagrams [][]byte
}

func (c *captureSink) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	c.datagrams = append(c.datagrams, cp)
	return len(p), nil
}

func TestEmitterSendProducesExpectedDatagramCount(t *testing.T) {
	e := NewEmitter(EmitterConfig{FragmentSize: 16, MinK: 2, MaxN: 8, TargetRedundancy: 0.5})
	sink := &captureSink{}

	params, err := e.Send(sink, 42, []byte{1, 2, 3}, []byte("{}"))
	require.NoError(t, err)
	require.Equal(t, params.NumBlocks*params.N, len(sink.datagrams))

	for _, dgram := range sink.datagrams {
		require.Len(t, dgram, 20+16)
	}
}

func TestEmitterRoundTripsThroughTable(t *testing.T) {
	e := NewEmitter(EmitterConfig{FragmentSize: 32, MinK: 4, MaxN: 16, TargetRedundancy: 0.5})
	sink := &captureSink{}

	image := []byte("not-really-a-jpeg-but-bytes-are-bytes")
	metadata := []byte(`{"lat":1,"lon":2}`)

	_, err := e.Send(sink, 7, image, metadata)
	require.NoError(t, err)

	table := NewTable(Config{FragmentSize: 32})
	var gotImage, gotMetadata []byte
	for _, dgram := range sink.datagrams {
		res := table.Ingest(dgram)
		if res.Outcome == OutcomeMessageCompleted {
			gotImage = res.Image
			gotMetadata = res.Metadata
		}
	}
	require.Equal(t, image, gotImage)
	require.Equal(t, string(metadata), string(gotMetadata))
}

func TestEmitterPacesBetweenDatagrams(t *testing.T) {
	var sleeps []time.Duration
	e := NewEmitter(EmitterConfig{
		FragmentSize:     8,
		MinK:             2,
		MaxN:             4,
		TargetRedundancy: 0.5,
		InterPacketDelay: time.Millisecond,
		DrainDelay:       5 * time.Millisecond,
		Sleep:            func(d time.Duration) { sleeps = append(sleeps, d) },
	})
	sink := &captureSink{}

	_, err := e.Send(sink, 1, []byte{1}, nil)
	require.NoError(t, err)

	require.NotEmpty(t, sleeps)
	require.Equal(t, 5*time.Millisecond, sleeps[len(sleeps)-1])
	for _, d := range sleeps[:len(sleeps)-1] {
		require.Equal(t, time.Millisecond, d)
	}
}
