package sse

import (
	"context"
	"errors"
	"io"
)

const readChunkSize = 4 * 1024

// Result summarises a fully read stream.
type Result struct {
	// Text is the concatenation of every delta, in order.
	Text string

	// Done is true when the [DONE] terminator was received.
	Done bool

	// Malformed counts frames that were dropped.
	Malformed int
}

// Read drives body through a Reassembler until the terminator, EOF, or an
// error. onDelta, when non-nil, is called for every delta as it arrives.
// A cancelled ctx is reported as ctx.Err() even if the read error differs;
// the caller is expected to close body to unblock a pending read.
func Read(ctx context.Context, body io.Reader, onDelta func(delta string)) (Result, error) {
	r := NewReassembler()
	emit := func(deltas []string) {
		if onDelta == nil {
			return
		}
		for _, d := range deltas {
			onDelta(d)
		}
	}

	buf := make([]byte, readChunkSize)
	for !r.Done() {
		if err := ctx.Err(); err != nil {
			return r.result(), err
		}

		n, err := body.Read(buf)
		if n > 0 {
			emit(r.Feed(buf[:n]))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				emit(r.Flush())
				return r.result(), nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.result(), ctxErr
			}
			return r.result(), err
		}
	}
	return r.result(), nil
}

func (r *Reassembler) result() Result {
	return Result{Text: r.Text(), Done: r.Done(), Malformed: r.Malformed()}
}
