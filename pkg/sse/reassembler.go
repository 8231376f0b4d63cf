// Package sse reassembles OpenAI-style "data:" frames from a chunked
// text/event-stream body into the text deltas they carry.
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/geniusai/genius/pkg/llm"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"

	// maxPending bounds a re-buffered fragment waiting for its continuation.
	maxPending = 64 * 1024
)

// Reassembler is an incremental SSE frame decoder. Feed it bytes as they are
// read; it returns the text deltas of every frame completed so far. Chunk
// boundaries may fall anywhere, including inside a multi-byte rune.
//
// A Reassembler is not safe for concurrent use.
type Reassembler struct {
	buf     []byte
	pending []byte
	done    bool

	text      strings.Builder
	malformed int
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends chunk to the buffer and returns the deltas of every complete
// line. Once the terminator has been seen, Feed ignores further input.
func (r *Reassembler) Feed(chunk []byte) []string {
	if r.done {
		return nil
	}
	r.buf = append(r.buf, chunk...)

	var deltas []string
	for !r.done {
		idx := bytes.IndexByte(r.buf, '\n')
		if idx < 0 {
			break
		}
		line := r.buf[:idx]
		r.buf = r.buf[idx+1:]

		if delta, ok := r.line(line); ok {
			deltas = append(deltas, delta)
		}
	}

	if r.done {
		r.buf = nil
	}
	return deltas
}

// Flush processes a trailing line that was never newline-terminated. Call it
// once the body reaches EOF.
func (r *Reassembler) Flush() []string {
	if r.done || len(r.buf) == 0 {
		r.dropPending()
		return nil
	}
	line := r.buf
	r.buf = nil

	var deltas []string
	if delta, ok := r.line(line); ok {
		deltas = append(deltas, delta)
	}
	r.dropPending()
	return deltas
}

// Done reports whether the [DONE] terminator has been seen.
func (r *Reassembler) Done() bool { return r.done }

// Text returns the concatenation of every delta emitted so far.
func (r *Reassembler) Text() string { return r.text.String() }

// Malformed returns the number of frames dropped because they could not be
// parsed.
func (r *Reassembler) Malformed() int { return r.malformed }

func (r *Reassembler) line(line []byte) (string, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))

	if r.pending != nil {
		// A blank line ends the event, so the held fragment can never complete.
		if len(bytes.TrimSpace(line)) == 0 {
			r.dropPending()
			return "", false
		}
		if isField(line) {
			return "", false
		}
		rest := bytes.TrimPrefix(line, []byte(dataPrefix))
		if string(bytes.TrimSpace(rest)) == doneMarker {
			r.dropPending()
			r.done = true
			return "", false
		}
		payload := append(r.pending, rest...)
		r.pending = nil
		return r.payload(payload)
	}

	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return "", false
	}
	return r.payload(line[len(dataPrefix):])
}

func (r *Reassembler) payload(payload []byte) (string, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return "", false
	}
	if string(trimmed) == doneMarker {
		r.done = true
		return "", false
	}

	var chunk llm.StreamChunk
	if err := json.Unmarshal(trimmed, &chunk); err != nil {
		if truncated(err) && len(trimmed) < maxPending {
			r.pending = append([]byte(nil), trimmed...)
			return "", false
		}
		r.malformed++
		return "", false
	}

	content := chunk.Text()
	if content == "" {
		return "", false
	}
	r.text.WriteString(content)
	return content, true
}

func (r *Reassembler) dropPending() {
	if r.pending != nil {
		r.pending = nil
		r.malformed++
	}
}

// isField reports whether line is an SSE comment or a non-data field. Such
// lines never continue a held fragment.
func isField(line []byte) bool {
	if bytes.HasPrefix(line, []byte(":")) {
		return true
	}
	for _, name := range []string{"event:", "id:", "retry:"} {
		if bytes.HasPrefix(line, []byte(name)) {
			return true
		}
	}
	return false
}

// truncated reports whether err means the JSON value simply ended early.
func truncated(err error) bool {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Error() == "unexpected end of JSON input"
	}
	return false
}
