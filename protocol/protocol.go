// Package protocol drives a long-lived schedule-transforming child process
// over a framed line protocol. The child prints a startup banner, then
// alternates between emitting a schedule frame and reading back one
// transformed schedule line, until it prints the terminal marker.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Banner is the fixed startup line the child prints once. Nothing the child
// writes is trusted until the banner is seen.
const Banner = "WARNING: This app should only be invoked by the python wrapper!"

// StopMarker terminates the exchange; nothing is read past it.
const StopMarker = "### STOP ###"

var (
	beginRe = regexp.MustCompile(`^### sched\[(.+)\] begin ###$`)
	endRe   = regexp.MustCompile(`^### sched\[(.+)\] end ###$`)
)

var (
	// ErrProtocolTimeout is returned when the child produces no expected
	// line within the read bound.
	ErrProtocolTimeout = errors.New("protocol timeout")

	// ErrProtocolDesync is returned when the child's output breaks the
	// framing, or the stream ends before the terminal marker.
	ErrProtocolDesync = errors.New("protocol desync")
)

// Frame is one captured schedule block. The ID is opaque and must be echoed
// unchanged; Body is the text between the markers.
type Frame struct {
	ID   string
	Body string
}

// Transformer maps one captured frame to its single-line reply.
type Transformer func(f Frame) (string, error)

// BeginMarker renders the opening marker for an id.
func BeginMarker(id string) string { return fmt.Sprintf("### sched[%s] begin ###", id) }

// EndMarker renders the closing marker for an id.
func EndMarker(id string) string { return fmt.Sprintf("### sched[%s] end ###", id) }

// Exchange runs the banner wait and the frame/reply loop over raw streams.
// A zero timeout waits indefinitely on each read. Strict ping-pong: one
// reply is written per captured frame, nothing else.
func Exchange(r io.Reader, w io.Writer, timeout time.Duration, fn Transformer, log zerolog.Logger) error {
	lines := newLinePump(r)
	defer lines.stop()

	if err := waitBanner(lines, timeout); err != nil {
		return err
	}
	log.Debug().Msg("banner consumed")

	for {
		line, err := nextLine(lines, timeout)
		if err != nil {
			return err
		}
		if line == StopMarker {
			log.Debug().Msg("stop marker")
			return nil
		}
		m := beginRe.FindStringSubmatch(line)
		if m == nil {
			if endRe.MatchString(line) {
				return fmt.Errorf("%w: end marker without begin", ErrProtocolDesync)
			}
			// Child chatter between frames is ignored.
			continue
		}
		frame, err := readFrame(lines, timeout, m[1])
		if err != nil {
			return err
		}
		log.Debug().Str("id", frame.ID).Int("bytes", len(frame.Body)).Msg("frame captured")

		reply, err := fn(frame)
		if err != nil {
			return err
		}
		if strings.ContainsRune(reply, '\n') {
			return fmt.Errorf("%w: reply for sched[%s] is not a single line", ErrProtocolDesync, frame.ID)
		}
		if _, err := io.WriteString(w, reply+"\n"); err != nil {
			return fmt.Errorf("write reply: %w", err)
		}
	}
}

func readFrame(lines *linePump, timeout time.Duration, id string) (Frame, error) {
	end := EndMarker(id)
	var body []string
	for {
		line, err := nextLine(lines, timeout)
		if err != nil {
			return Frame{}, err
		}
		if line == end {
			return Frame{ID: id, Body: strings.Join(body, "\n")}, nil
		}
		if endRe.MatchString(line) || beginRe.MatchString(line) || line == StopMarker {
			return Frame{}, fmt.Errorf("%w: marker %q inside sched[%s] frame", ErrProtocolDesync, line, id)
		}
		body = append(body, line)
	}
}

func waitBanner(lines *linePump, timeout time.Duration) error {
	for {
		line, err := nextLine(lines, timeout)
		if err != nil {
			return fmt.Errorf("waiting for banner: %w", err)
		}
		if line == Banner {
			return nil
		}
	}
}

// linePump reads the stream strictly on demand: one Scan per request, so no
// read is ever issued after the terminal marker is consumed. The reply
// channel is buffered so a result arriving after a timeout parks there
// instead of wedging the goroutine.
type linePump struct {
	req   chan struct{}
	lines chan pumpLine
}

type pumpLine struct {
	text string
	ok   bool
}

func newLinePump(r io.Reader) *linePump {
	p := &linePump{req: make(chan struct{}), lines: make(chan pumpLine, 1)}
	go func() {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for range p.req {
			if !sc.Scan() {
				p.lines <- pumpLine{}
				return
			}
			p.lines <- pumpLine{text: sc.Text(), ok: true}
		}
	}()
	return p
}

// stop ends the request stream; the goroutine exits once its current read,
// if any, returns.
func (p *linePump) stop() { close(p.req) }

func nextLine(lines *linePump, timeout time.Duration) (string, error) {
	lines.req <- struct{}{}
	if timeout <= 0 {
		return unpack(<-lines.lines)
	}
	select {
	case l := <-lines.lines:
		return unpack(l)
	case <-time.After(timeout):
		return "", ErrProtocolTimeout
	}
}

func unpack(l pumpLine) (string, error) {
	if !l.ok {
		return "", fmt.Errorf("%w: stream ended", ErrProtocolDesync)
	}
	return l.text, nil
}
