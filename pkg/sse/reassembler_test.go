package sse_test

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"slices"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/geniusai/genius/pkg/llm"
	"github.com/geniusai/genius/pkg/sse"
)

func frame(content string) string {
	return string(llm.EncodeFrame(content))
}

// feedSplit feeds body to a fresh Reassembler, cutting it at the given offsets.
func feedSplit(body string, cuts []int) (*sse.Reassembler, []string) {
	r := sse.NewReassembler()
	var deltas []string
	prev := 0
	for _, c := range cuts {
		deltas = append(deltas, r.Feed([]byte(body[prev:c]))...)
		prev = c
	}
	deltas = append(deltas, r.Feed([]byte(body[prev:]))...)
	deltas = append(deltas, r.Flush()...)
	return r, deltas
}

var _ = Describe("Reassembler", func() {
	Context("with a well-formed stream", func() {
		It("reassembles the example frames into Bonjour", func() {
			body := `data: {"choices":[{"delta":{"content":"Bon"}}]}` + "\n" +
				`data: {"choices":[{"delta":{"content":"jour"}}]}` + "\n" +
				"data: [DONE]\n"

			r, deltas := feedSplit(body, nil)

			Expect(deltas).To(Equal([]string{"Bon", "jour"}))
			Expect(r.Text()).To(Equal("Bonjour"))
			Expect(r.Done()).To(BeTrue())
			Expect(r.Malformed()).To(BeZero())
		})

		It("yields empty text for a terminator-only stream", func() {
			r, deltas := feedSplit(llm.DoneFrame, nil)

			Expect(deltas).To(BeEmpty())
			Expect(r.Text()).To(BeEmpty())
			Expect(r.Done()).To(BeTrue())
		})

		It("skips comments, event lines and blank lines", func() {
			body := ": keep-alive\n" +
				"event: message\n" +
				"\n" +
				frame("ok") +
				llm.DoneFrame

			r, _ := feedSplit(body, nil)

			Expect(r.Text()).To(Equal("ok"))
			Expect(r.Malformed()).To(BeZero())
		})

		It("accepts CRLF line endings", func() {
			body := `data: {"choices":[{"delta":{"content":"a"}}]}` + "\r\n\r\n" +
				`data: {"choices":[{"delta":{"content":"b"}}]}` + "\r\n\r\n" +
				"data: [DONE]\r\n\r\n"

			r, _ := feedSplit(body, nil)

			Expect(r.Text()).To(Equal("ab"))
			Expect(r.Done()).To(BeTrue())
		})

		It("ignores frames without content", func() {
			body := `data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n" +
				`data: {"choices":[]}` + "\n" +
				frame("x") + llm.DoneFrame

			_, deltas := feedSplit(body, nil)

			Expect(deltas).To(Equal([]string{"x"}))
		})

		It("ignores everything after the terminator", func() {
			body := frame("before") + llm.DoneFrame + frame("after")

			r, deltas := feedSplit(body, nil)

			Expect(deltas).To(Equal([]string{"before"}))
			Expect(r.Feed([]byte(frame("later")))).To(BeEmpty())
			Expect(r.Text()).To(Equal("before"))
		})

		It("processes a final line without a trailing newline on Flush", func() {
			r := sse.NewReassembler()
			Expect(r.Feed([]byte(`data: {"choices":[{"delta":{"content":"tail"}}]}`))).To(BeEmpty())
			Expect(r.Flush()).To(Equal([]string{"tail"}))
			Expect(r.Done()).To(BeFalse())
		})
	})

	Context("when chunk boundaries split frames", func() {
		contents := []string{"Le ", "cœur ", "a ", "quatre ", "cavités ", "— ", "😀", ""}
		var body string
		var want string

		BeforeEach(func() {
			var b strings.Builder
			want = ""
			for _, c := range contents {
				b.WriteString(frame(c))
				want += c
			}
			b.WriteString(llm.DoneFrame)
			body = b.String()
		})

		It("reassembles the same text for every single split point", func() {
			for i := 0; i <= len(body); i++ {
				r, _ := feedSplit(body, []int{i})
				Expect(r.Text()).To(Equal(want), "split at byte %d", i)
				Expect(r.Done()).To(BeTrue())
				Expect(r.Malformed()).To(BeZero())
			}
		})

		It("reassembles the same text for random multi-way splits", func() {
			rng := rand.New(rand.NewPCG(7, 42))
			for round := 0; round < 200; round++ {
				n := rng.IntN(12) + 1
				cuts := make([]int, 0, n)
				for j := 0; j < n; j++ {
					cuts = append(cuts, rng.IntN(len(body)+1))
				}
				slices.Sort(cuts)

				r, _ := feedSplit(body, cuts)
				Expect(r.Text()).To(Equal(want), "cuts %v", cuts)
			}
		})

		It("reassembles when fed one byte at a time", func() {
			r := sse.NewReassembler()
			for i := 0; i < len(body); i++ {
				r.Feed([]byte{body[i]})
			}
			Expect(r.Text()).To(Equal(want))
		})
	})

	Context("with malformed frames", func() {
		It("re-buffers a truncated frame and joins it with its continuation", func() {
			body := `data: {"choices":[{"delta":` + "\n" +
				`{"content":"joined"}}]}` + "\n" +
				frame("!") + llm.DoneFrame

			r, deltas := feedSplit(body, nil)

			Expect(deltas).To(Equal([]string{"joined", "!"}))
			Expect(r.Malformed()).To(BeZero())
		})

		It("stops on the terminator that follows a truncated frame", func() {
			body := frame("Bon") + `data: {"choices":[` + "\n" + llm.DoneFrame + frame("ignored")

			r, deltas := feedSplit(body, nil)

			Expect(deltas).To(Equal([]string{"Bon"}))
			Expect(r.Done()).To(BeTrue())
			Expect(r.Malformed()).To(Equal(1))
			Expect(r.Text()).To(Equal("Bon"))
		})

		It("skips event and comment lines between a fragment and its continuation", func() {
			body := `data: {"choices":[{"delta":` + "\n" +
				"event: ping\n" +
				": keepalive\n" +
				`data: {"content":"joined"}}]}` + "\n" +
				llm.DoneFrame

			r, deltas := feedSplit(body, nil)

			Expect(deltas).To(Equal([]string{"joined"}))
			Expect(r.Malformed()).To(BeZero())
			Expect(r.Done()).To(BeTrue())
		})

		It("drops a truncated frame when the event ends", func() {
			body := `data: {"choices":[{"delta":` + "\n\n" +
				frame("next") + llm.DoneFrame

			r, deltas := feedSplit(body, nil)

			Expect(deltas).To(Equal([]string{"next"}))
			Expect(r.Malformed()).To(Equal(1))
		})

		It("drops invalid JSON without stalling later frames", func() {
			body := "data: {not json}\n" + frame("still here") + llm.DoneFrame

			r, deltas := feedSplit(body, nil)

			Expect(deltas).To(Equal([]string{"still here"}))
			Expect(r.Malformed()).To(Equal(1))
			Expect(r.Done()).To(BeTrue())
		})

		It("counts a fragment left at EOF as malformed", func() {
			r := sse.NewReassembler()
			r.Feed([]byte(`data: {"choices":[` + "\n"))
			Expect(r.Flush()).To(BeEmpty())
			Expect(r.Malformed()).To(Equal(1))
		})
	})
})

var _ = Describe("Read", func() {
	It("reads a stream delivered one byte per read", func() {
		body := frame("Bon") + frame("jour") + llm.DoneFrame
		var got []string

		res, err := sse.Read(context.Background(), iotest.OneByteReader(strings.NewReader(body)), func(d string) {
			got = append(got, d)
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Text).To(Equal("Bonjour"))
		Expect(res.Done).To(BeTrue())
		Expect(got).To(Equal([]string{"Bon", "jour"}))
	})

	It("returns the partial text when the stream ends without a terminator", func() {
		res, err := sse.Read(context.Background(), strings.NewReader(frame("partial")), nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Text).To(Equal("partial"))
		Expect(res.Done).To(BeFalse())
	})

	It("stops reading once the terminator arrives", func() {
		body := io.MultiReader(strings.NewReader(frame("a")+llm.DoneFrame), iotest.ErrReader(errors.New("must not be read")))

		res, err := sse.Read(context.Background(), body, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Text).To(Equal("a"))
	})

	It("surfaces read errors with the text received so far", func() {
		boom := errors.New("connection reset")
		body := io.MultiReader(strings.NewReader(frame("half")), iotest.ErrReader(boom))

		res, err := sse.Read(context.Background(), body, nil)

		Expect(err).To(MatchError(boom))
		Expect(res.Text).To(Equal("half"))
	})

	It("reports cancellation as the context error", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := sse.Read(ctx, strings.NewReader(frame("x")), nil)

		Expect(err).To(MatchError(context.Canceled))
	})
})
