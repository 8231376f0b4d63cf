package convcmder

import (
	"bytes"
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/geniusai/genius/pkg/llm"
	"github.com/geniusai/genius/pkg/storage/sqlite"
)

var _ = Describe("Conversations Command", func() {
	var (
		ctx     context.Context
		tmpDir  string
		dbPath  string
		baseNow time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "genius.db")
		baseNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	})

	makeConversation := func(id, question, answer string, updated time.Time) *llm.Conversation {
		conv := &llm.Conversation{
			ID:   id,
			Mode: llm.ModeMedicine,
			Messages: []llm.Message{
				{Role: llm.RoleUser, Content: question},
				{Role: llm.RoleAssistant, Content: answer},
			},
			CreatedAt: updated.Add(-time.Minute),
			UpdatedAt: updated,
		}
		conv.RefreshTitle()
		return conv
	}

	seed := func(path string, convs ...*llm.Conversation) {
		driver, err := sqlite.NewDriver(path)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()
		for _, conv := range convs {
			Expect(driver.Create(ctx, conv)).To(Succeed())
		}
	}

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewConversationsCmd()
		cmd.SetArgs(append(args, "--sqlite", dbPath))
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	It("lists conversations newest first", func() {
		seed(dbPath,
			makeConversation("old", "Ancienne question", "a", baseNow),
			makeConversation("new", "Nouvelle question", "b", baseNow.Add(time.Hour)),
		)

		out, err := run("list")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("TITLE"))
		Expect(out).To(MatchRegexp(`(?s)new.*Nouvelle question.*old.*Ancienne question`))
	})

	It("truncates long titles in the list", func() {
		seed(dbPath, makeConversation("long", "Quelle est la posologie du paracétamol chez l'adulte ?", "1 g", baseNow))

		out, err := run("list")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Quelle est la posologie du para…"))
		Expect(out).NotTo(ContainSubstring("chez"))
	})

	It("reports an empty database", func() {
		out, err := run("list")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No conversations."))
	})

	It("shows a transcript", func() {
		conv := makeConversation("c1", "Dose de paracétamol ?", "1 g toutes les 6 h", baseNow)
		conv.Messages = append(conv.Messages, llm.Message{Role: llm.RoleAssistant, Content: "⚠️ Erreur réseau", Error: true})
		seed(dbPath, conv)

		out, err := run("show", "c1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Dose de paracétamol ?"))
		Expect(out).To(ContainSubstring("1 g toutes les 6 h"))
		Expect(out).To(ContainSubstring("⚠️ Erreur réseau"))
	})

	It("deletes a conversation", func() {
		seed(dbPath, makeConversation("c1", "q", "a", baseNow))

		_, err := run("delete", "c1")
		Expect(err).NotTo(HaveOccurred())

		_, err = run("show", "c1")
		Expect(err).To(HaveOccurred())
		_, err = run("delete", "c1")
		Expect(err).To(HaveOccurred())
	})

	It("merges source databases into the target", func() {
		srcPath := filepath.Join(tmpDir, "source.db")
		seed(srcPath,
			makeConversation("shared-newer", "q", "from source", baseNow.Add(time.Hour)),
			makeConversation("shared-older", "q", "from source", baseNow.Add(-time.Hour)),
			makeConversation("only-source", "q", "a", baseNow),
		)
		seed(dbPath,
			makeConversation("shared-newer", "q", "from target", baseNow),
			makeConversation("shared-older", "q", "from target", baseNow),
			makeConversation("only-target", "q", "a", baseNow),
		)

		out, err := run("merge", srcPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("1 new, 1 updated, 1 already current"))

		driver, err := sqlite.NewDriver(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		convs, err := driver.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(convs).To(HaveLen(4))

		newer, err := driver.Get(ctx, "shared-newer")
		Expect(err).NotTo(HaveOccurred())
		Expect(newer.Messages[1].Content).To(Equal("from source"))

		older, err := driver.Get(ctx, "shared-older")
		Expect(err).NotTo(HaveOccurred())
		Expect(older.Messages[1].Content).To(Equal("from target"))
	})

	It("is idempotent", func() {
		srcPath := filepath.Join(tmpDir, "source.db")
		seed(srcPath, makeConversation("c1", "q", "a", baseNow))

		_, err := run("merge", srcPath)
		Expect(err).NotTo(HaveOccurred())
		out, err := run("merge", srcPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("0 new, 0 updated, 1 already current"))
	})
})
