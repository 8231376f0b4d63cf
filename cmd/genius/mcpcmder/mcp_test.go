package mcpcmder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/geniusai/genius/client"
	"github.com/geniusai/genius/pkg/llm"
	"github.com/geniusai/genius/pkg/storage/inmemory"
)

var _ = Describe("MCP Server", func() {
	var (
		ctx      context.Context
		router   *httptest.Server
		requests chan llm.ChatRequest
		status   atomic.Int32
		session  *mcp.ClientSession
	)

	BeforeEach(func() {
		ctx = context.Background()
		status.Store(http.StatusOK)
		requests = make(chan llm.ChatRequest, 8)
		router = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req llm.ChatRequest
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &req)
			requests <- req

			if code := int(status.Load()); code != http.StatusOK {
				w.WriteHeader(code)
				_, _ = w.Write([]byte(`{"error":"Erreur du service AI","code":"upstream_error"}`))
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write(llm.EncodeFrame("1 g "))
			_, _ = w.Write(llm.EncodeFrame("toutes les 6 h"))
			_, _ = w.Write([]byte(llm.DoneFrame))
		}))
		DeferCleanup(router.Close)

		cl := client.New(router.URL+"/chat", inmemory.NewDriver(), zap.NewNop())
		server := NewServer(cl, zap.NewNop(), "test")

		serverTransport, clientTransport := mcp.NewInMemoryTransports()
		ss, err := server.Connect(ctx, serverTransport, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(ss.Close)

		session, err = mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil).
			Connect(ctx, clientTransport, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(session.Close)
	})

	call := func(name string, args map[string]any) *mcp.CallToolResult {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
		Expect(err).NotTo(HaveOccurred())
		return res
	}

	text := func(res *mcp.CallToolResult) string {
		Expect(res.Content).NotTo(BeEmpty())
		tc, ok := res.Content[0].(*mcp.TextContent)
		Expect(ok).To(BeTrue())
		return tc.Text
	}

	decode := func(res *mcp.CallToolResult, into any) {
		raw, err := json.Marshal(res.StructuredContent)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(raw, into)).To(Succeed())
	}

	It("lists both tools", func() {
		res, err := session.ListTools(ctx, nil)
		Expect(err).NotTo(HaveOccurred())

		var names []string
		for _, tool := range res.Tools {
			names = append(names, tool.Name)
		}
		Expect(names).To(ConsistOf("ask", "list_conversations"))
	})

	It("answers a question in a new medicine conversation", func() {
		res := call("ask", map[string]any{"question": "Dose de paracétamol ?"})
		Expect(res.IsError).To(BeFalse())
		Expect(text(res)).To(Equal("1 g toutes les 6 h"))

		var out askOutput
		decode(res, &out)
		Expect(out.Mode).To(Equal("medicine"))
		Expect(out.ConversationID).NotTo(BeEmpty())

		req := <-requests
		Expect(req.Mode).To(Equal(llm.ModeMedicine))
		Expect(req.EnableCrossValidation).To(BeTrue())
		Expect(req.SystemOverride).To(Equal(client.ShortAnswerOverride))
	})

	It("continues an existing conversation", func() {
		var first askOutput
		decode(call("ask", map[string]any{"question": "Dose ?", "mode": "informatique"}), &first)
		<-requests

		call("ask", map[string]any{"question": "Et chez l'enfant ?", "conversation_id": first.ConversationID})
		req := <-requests
		Expect(req.Mode).To(Equal(llm.ModeInformatique))
		Expect(req.Messages).To(HaveLen(3))
		Expect(req.Messages[2].Content).To(Equal("Et chez l'enfant ?"))
	})

	It("reports failed turns as tool errors", func() {
		status.Store(http.StatusInternalServerError)

		res := call("ask", map[string]any{"question": "Dose ?"})
		Expect(res.IsError).To(BeTrue())
		Expect(text(res)).To(ContainSubstring("UPSTREAM_GENERIC"))
	})

	It("rejects an unknown mode", func() {
		res := call("ask", map[string]any{"question": "Dose ?", "mode": "cuisine"})
		Expect(res.IsError).To(BeTrue())
		Expect(text(res)).To(ContainSubstring("unknown mode"))
	})

	It("lists stored conversations with a limit", func() {
		call("ask", map[string]any{"question": "Première"})
		call("ask", map[string]any{"question": "Seconde"})

		var all listOutput
		decode(call("list_conversations", map[string]any{}), &all)
		Expect(all.Conversations).To(HaveLen(2))
		Expect(all.Conversations[0].Messages).To(Equal(2))

		var limited listOutput
		decode(call("list_conversations", map[string]any{"limit": 1}), &limited)
		Expect(limited.Conversations).To(HaveLen(1))
	})
})
