package llm

import (
	"encoding/json"
)

// DoneFrame terminates an SSE chat stream.
const DoneFrame = "data: [DONE]\n\n"

// StreamChunk represents a single OpenAI-style chunk in a streaming response.
type StreamChunk struct {
	Choices []StreamChoice `json:"choices"`
}

type StreamChoice struct {
	Delta Delta `json:"delta"`
}

type Delta struct {
	Content string `json:"content"`
}

// Text returns the delta content of the first choice.
func (c StreamChunk) Text() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// EncodeFrame renders content as a single "data:" frame.
func EncodeFrame(content string) []byte {
	data, err := json.Marshal(StreamChunk{Choices: []StreamChoice{{Delta: Delta{Content: content}}}})
	if err != nil {
		panic("failed to marshal stream chunk: " + err.Error())
	}

	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame
}
