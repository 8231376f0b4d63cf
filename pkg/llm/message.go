package llm

import (
	"fmt"
	"math"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// OCRResult is text extracted from an attached image by an external OCR engine.
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Message represents a single message in a conversation.
type Message struct {
	Role        string      `json:"role"`                  // "user", "assistant"
	Content     string      `json:"content"`               // The message content
	Images      []string    `json:"images,omitempty"`      // Optional data-URI images
	ImageBase64 string      `json:"imageBase64,omitempty"` // Legacy single image, mirrors Images[0]
	OCRResults  []OCRResult `json:"ocrResults,omitempty"`  // OCR output for Images, kept out of Content

	// Error marks a synthetic turn that reports a failure. Never sent upstream.
	Error bool `json:"error,omitempty"`
}

// ImageList returns the images attached to m, falling back to the legacy
// ImageBase64 field.
func (m Message) ImageList() []string {
	if len(m.Images) > 0 {
		return m.Images
	}
	if m.ImageBase64 != "" {
		return []string{m.ImageBase64}
	}
	return nil
}

// WireContent is the content sent to the model: the user's text followed by
// one block per OCR result.
func (m Message) WireContent() string {
	if len(m.OCRResults) == 0 {
		return m.Content
	}

	blocks := make([]string, 0, len(m.OCRResults))
	for i, r := range m.OCRResults {
		blocks = append(blocks, fmt.Sprintf("--- Question %d (OCR %d%%) ---\n%s", i+1, int(math.Round(r.Confidence)), r.Text))
	}
	ocrText := strings.Join(blocks, "\n\n")

	if m.Content == "" {
		return ocrText
	}
	return m.Content + "\n\n" + ocrText
}

// ToWire strips transcript-only fields and folds OCR text into the content.
func (m Message) ToWire() Message {
	out := Message{
		Role:    m.Role,
		Content: m.WireContent(),
		Images:  m.Images,
	}
	if len(m.Images) > 0 {
		out.ImageBase64 = m.Images[0]
	}
	return out
}
