package chatcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/geniusai/genius/pkg/llm"
	"github.com/geniusai/genius/pkg/storage/sqlite"
)

var _ = Describe("Chat Command", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		requests chan llm.ChatRequest
		status   atomic.Int32
	)

	BeforeEach(func() {
		ctx = context.Background()
		status.Store(http.StatusOK)
		requests = make(chan llm.ChatRequest, 8)
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req llm.ChatRequest
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &req)
			requests <- req

			if code := int(status.Load()); code != http.StatusOK {
				w.WriteHeader(code)
				_, _ = w.Write([]byte(`{"error":"Limite de requêtes atteinte, réessayez dans un moment.","code":"rate_limited"}`))
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write(llm.EncodeFrame("Bon"))
			_, _ = w.Write(llm.EncodeFrame("jour"))
			_, _ = w.Write([]byte(llm.DoneFrame))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	run := func(stdin string, args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewChatCmd()
		cmd.SetArgs(append([]string{"--endpoint", server.URL + "/chat"}, args...))
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	It("asks a one-shot question and streams the answer", func() {
		out, err := run("", "--memory", "Quelle", "dose", "?")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Bonjour\n"))

		req := <-requests
		Expect(req.Mode).To(Equal(llm.ModeMedicine))
		Expect(req.EnableCrossValidation).To(BeTrue())
		Expect(req.Messages).To(HaveLen(1))
		Expect(req.Messages[0].Content).To(Equal("Quelle dose ?"))
	})

	It("prints router errors inline without failing", func() {
		status.Store(http.StatusTooManyRequests)

		out, err := run("", "--memory", "Question")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("⚠️ Limite de requêtes atteinte, réessayez dans un moment."))
	})

	It("attaches images as data URIs", func() {
		png := []byte("\x89PNG\r\n\x1a\n0000")
		path := filepath.Join(GinkgoT().TempDir(), "qcm.png")
		Expect(os.WriteFile(path, png, 0o600)).To(Succeed())

		_, err := run("", "--memory", "--image", path, "Réponds au QCM")
		Expect(err).NotTo(HaveOccurred())

		req := <-requests
		Expect(req.Messages[0].ImageBase64).To(HavePrefix("data:image/png;base64,"))
		Expect(req.Messages[0].Images).To(HaveLen(1))
	})

	It("renders markdown once the answer is complete", func() {
		out, err := run("", "--memory", "--render", "Question")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Bonjour"))
	})

	It("runs a session from stdin and stores every conversation", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "genius.db")

		_, err := run("Première question\n/mode informatique\nDeuxième question\n/mode astrologie\n/quit\nignored\n", "--sqlite", dbPath)
		Expect(err).NotTo(HaveOccurred())

		first := <-requests
		Expect(first.Mode).To(Equal(llm.ModeMedicine))
		second := <-requests
		Expect(second.Mode).To(Equal(llm.ModeInformatique))
		Expect(second.EnableCrossValidation).To(BeFalse())
		Expect(second.Messages).To(HaveLen(1))
		Consistently(requests).ShouldNot(Receive())

		driver, err := sqlite.NewDriver(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		convs, err := driver.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(convs).To(HaveLen(2))
		for _, conv := range convs {
			Expect(conv.Messages).To(HaveLen(2))
			Expect(conv.Messages[1].Content).To(Equal("Bonjour"))
		}
	})

	It("continues an existing conversation", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "genius.db")

		_, err := run("", "--sqlite", dbPath, "Première")
		Expect(err).NotTo(HaveOccurred())
		<-requests

		driver, err := sqlite.NewDriver(dbPath)
		Expect(err).NotTo(HaveOccurred())
		convs, err := driver.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(convs).To(HaveLen(1))
		driver.Close()

		_, err = run("", "--sqlite", dbPath, "--conversation", convs[0].ID, "Suite")
		Expect(err).NotTo(HaveOccurred())

		req := <-requests
		Expect(req.Messages).To(HaveLen(3))
		Expect(req.Messages[1].Content).To(Equal("Bonjour"))
	})

	It("rejects an unknown mode", func() {
		_, err := run("", "--memory", "--mode", "astrologie", "Question")
		Expect(err).To(HaveOccurred())
	})
})
