package llm

// Mode selects the domain-specific system prompt.
type Mode string

const (
	ModeMedicine     Mode = "medicine"
	ModeInformatique Mode = "informatique"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeMedicine || m == ModeInformatique
}

// ChatRequest is the body accepted by the chat endpoint.
type ChatRequest struct {
	Messages              []Message `json:"messages"`
	Mode                  Mode      `json:"mode"`
	EnableCrossValidation bool      `json:"enableCrossValidation,omitempty"`
	SystemOverride        string    `json:"systemOverride,omitempty"`
}
