package llm_test

import (
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/geniusai/genius/pkg/llm"
)

var _ = Describe("Message", func() {
	Describe("WireContent", func() {
		It("returns the content untouched without OCR", func() {
			m := llm.Message{Role: llm.RoleUser, Content: "Bonjour"}
			Expect(m.WireContent()).To(Equal("Bonjour"))
		})

		It("appends one numbered block per OCR result", func() {
			m := llm.Message{
				Role:    llm.RoleUser,
				Content: "Réponds au QCM",
				OCRResults: []llm.OCRResult{
					{Text: "Q1 texte", Confidence: 91.6},
					{Text: "Q2 texte", Confidence: 40.2},
				},
			}
			Expect(m.WireContent()).To(Equal(
				"Réponds au QCM\n\n--- Question 1 (OCR 92%) ---\nQ1 texte\n\n--- Question 2 (OCR 40%) ---\nQ2 texte"))
		})

		It("uses only the OCR text when content is empty", func() {
			m := llm.Message{Role: llm.RoleUser, OCRResults: []llm.OCRResult{{Text: "Q1", Confidence: 80}}}
			Expect(m.WireContent()).To(Equal("--- Question 1 (OCR 80%) ---\nQ1"))
		})
	})

	Describe("ToWire", func() {
		It("mirrors the first image and drops transcript-only fields", func() {
			m := llm.Message{
				Role:       llm.RoleUser,
				Content:    "Regarde",
				Images:     []string{"data:image/png;base64,AAA", "data:image/png;base64,BBB"},
				OCRResults: []llm.OCRResult{{Text: "Q1", Confidence: 99}},
				Error:      true,
			}

			wire := m.ToWire()
			Expect(wire.ImageBase64).To(Equal("data:image/png;base64,AAA"))
			Expect(wire.Images).To(HaveLen(2))
			Expect(wire.OCRResults).To(BeNil())
			Expect(wire.Error).To(BeFalse())
			Expect(wire.Content).To(HavePrefix("Regarde\n\n--- Question 1"))
		})
	})

	Describe("ImageList", func() {
		It("falls back to the legacy field", func() {
			Expect(llm.Message{ImageBase64: "data:x"}.ImageList()).To(Equal([]string{"data:x"}))
			Expect(llm.Message{}.ImageList()).To(BeNil())
		})
	})
})

var _ = Describe("Conversation", func() {
	It("titles from the first user message, capped at 40 runes", func() {
		conv := &llm.Conversation{Messages: []llm.Message{
			{Role: llm.RoleUser, Content: strings.Repeat("é", 50)},
			{Role: llm.RoleAssistant, Content: "ok"},
		}}
		conv.RefreshTitle()
		Expect(conv.Title).To(Equal(strings.Repeat("é", 40)))
	})

	It("titles image-only turns as Image", func() {
		Expect(llm.TitleFrom("")).To(Equal("Image"))
	})

	It("clones deeply", func() {
		conv := &llm.Conversation{ID: "c1", Messages: []llm.Message{{Role: llm.RoleUser, Images: []string{"a"}}}}
		cp := conv.Clone()
		cp.Messages[0].Images[0] = "b"
		cp.Messages = append(cp.Messages, llm.Message{Role: llm.RoleAssistant})

		Expect(conv.Messages).To(HaveLen(1))
		Expect(conv.Messages[0].Images[0]).To(Equal("a"))
	})
})

var _ = Describe("Stream frames", func() {
	It("encodes a delta as one data frame", func() {
		frame := string(llm.EncodeFrame("Bon\"jour"))
		Expect(frame).To(HavePrefix("data: "))
		Expect(frame).To(HaveSuffix("\n\n"))

		var chunk llm.StreamChunk
		Expect(json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(frame, "data: "), "\n\n")), &chunk)).To(Succeed())
		Expect(chunk.Text()).To(Equal("Bon\"jour"))
	})

	It("reads an empty chunk as no text", func() {
		Expect(llm.StreamChunk{}.Text()).To(BeEmpty())
	})
})

var _ = Describe("Mode", func() {
	It("accepts only the two assistant modes", func() {
		Expect(llm.ModeMedicine.Valid()).To(BeTrue())
		Expect(llm.ModeInformatique.Valid()).To(BeTrue())
		Expect(llm.Mode("cuisine").Valid()).To(BeFalse())
	})
})
