package llm

import "time"

const titleMaxRunes = 40

// Conversation is an ordered transcript with its session settings.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Mode      Mode      `json:"mode"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshTitle derives the title from the first user message.
func (c *Conversation) RefreshTitle() {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			c.Title = TitleFrom(m.Content)
			return
		}
	}
}

// TitleFrom returns the first 40 runes of content, or "Image" for image-only turns.
func TitleFrom(content string) string {
	r := []rune(content)
	if len(r) > titleMaxRunes {
		r = r[:titleMaxRunes]
	}
	if len(r) == 0 {
		return "Image"
	}
	return string(r)
}

// Clone returns a deep copy of c.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		m.Images = append([]string(nil), m.Images...)
		m.OCRResults = append([]OCRResult(nil), m.OCRResults...)
		cp.Messages[i] = m
	}
	return &cp
}
