package protocol

import (
	"errors"
	"io"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func childOutput(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func TestExchangePingPong(t *testing.T) {
	in := childOutput(
		Banner,
		BeginMarker("0"),
		"schedule: a",
		"rows: [1, 0]",
		EndMarker("0"),
		BeginMarker("1"),
		"schedule: b",
		EndMarker("1"),
		StopMarker,
	)
	var out strings.Builder
	var got []Frame
	err := Exchange(in, &out, 0, func(f Frame) (string, error) {
		got = append(got, f)
		return "reply-" + f.ID, nil
	}, zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, Frame{ID: "0", Body: "schedule: a\nrows: [1, 0]"}, got[0])
	assert.Equal(t, Frame{ID: "1", Body: "schedule: b"}, got[1])
	assert.Equal(t, "reply-0\nreply-1\n", out.String())
}

func TestExchangeIgnoresChatter(t *testing.T) {
	in := childOutput(
		"build info: debug",
		Banner,
		"benchmark warmup done",
		BeginMarker("42"),
		"body",
		EndMarker("42"),
		"timing: 1.5",
		StopMarker,
	)
	var out strings.Builder
	calls := 0
	err := Exchange(in, &out, 0, func(f Frame) (string, error) {
		calls++
		assert.Equal(t, "42", f.ID)
		return "ok", nil
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExchangeStopsAtMarker(t *testing.T) {
	in := childOutput(
		Banner,
		StopMarker,
		BeginMarker("9"),
		"never seen",
		EndMarker("9"),
	)
	var out strings.Builder
	calls := 0
	err := Exchange(in, &out, 0, func(Frame) (string, error) {
		calls++
		return "", nil
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, calls, "frames after the stop marker must not be processed")
	assert.Empty(t, out.String())
}

func TestExchangeDesync(t *testing.T) {
	cases := map[string][]string{
		"end without begin": {Banner, EndMarker("0"), StopMarker},
		"begin inside frame": {
			Banner, BeginMarker("0"), BeginMarker("1"), EndMarker("0"), StopMarker,
		},
		"stop inside frame": {Banner, BeginMarker("0"), StopMarker},
		"eof before stop":   {Banner, BeginMarker("0"), "body", EndMarker("0")},
		"eof before banner": {"chatter only"},
	}
	for name, lines := range cases {
		t.Run(name, func(t *testing.T) {
			var out strings.Builder
			err := Exchange(childOutput(lines...), &out, 0, func(Frame) (string, error) {
				return "ok", nil
			}, zerolog.Nop())
			assert.ErrorIs(t, err, ErrProtocolDesync)
		})
	}
}

func TestExchangeMultiLineReply(t *testing.T) {
	in := childOutput(Banner, BeginMarker("0"), "body", EndMarker("0"), StopMarker)
	var out strings.Builder
	err := Exchange(in, &out, 0, func(Frame) (string, error) {
		return "one\ntwo", nil
	}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrProtocolDesync)
	assert.Empty(t, out.String())
}

func TestExchangeTransformerError(t *testing.T) {
	in := childOutput(Banner, BeginMarker("0"), "body", EndMarker("0"), StopMarker)
	var out strings.Builder
	boom := errors.New("boom")
	err := Exchange(in, &out, 0, func(Frame) (string, error) {
		return "", boom
	}, zerolog.Nop())
	assert.ErrorIs(t, err, boom)
}

func TestExchangeTimeout(t *testing.T) {
	blocked, pw := io.Pipe()
	defer pw.Close()
	var out strings.Builder
	start := time.Now()
	err := Exchange(blocked, &out, 20*time.Millisecond, nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrProtocolTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// trackingReader counts Read calls and hands out one byte at a time so the
// reader's position maps exactly to consumed lines.
type trackingReader struct {
	r     io.Reader
	mu    sync.Mutex
	reads int
}

func (c *trackingReader) Read(p []byte) (int, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	if len(p) > 1 {
		p = p[:1]
	}
	return c.r.Read(p)
}

func (c *trackingReader) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func TestExchangeStopsReadingAtMarker(t *testing.T) {
	before := runtime.NumGoroutine()
	in := &trackingReader{r: childOutput(
		Banner,
		BeginMarker("0"),
		"body",
		EndMarker("0"),
		StopMarker,
		"trailing line that must never be read",
	)}
	var out strings.Builder
	err := Exchange(in, &out, 0, func(Frame) (string, error) {
		return "ok", nil
	}, zerolog.Nop())
	require.NoError(t, err)

	at := in.count()
	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before },
		2*time.Second, 10*time.Millisecond, "line pump goroutine still running")
	assert.Equal(t, at, in.count(), "stream read past the stop marker")
}

func TestMarkers(t *testing.T) {
	assert.Equal(t, "### sched[7] begin ###", BeginMarker("7"))
	assert.Equal(t, "### sched[7] end ###", EndMarker("7"))
	m := beginRe.FindStringSubmatch(BeginMarker("abc-1"))
	require.NotNil(t, m)
	assert.Equal(t, "abc-1", m[1])
}
