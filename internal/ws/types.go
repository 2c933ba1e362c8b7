package ws

import "context"

// Message is the generic server-to-client frame shape.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type incomingMessage struct {
	Type           string    `json:"type"`
	Text           string    `json:"text,omitempty"`
	Audio          []float64 `json:"audio,omitempty"`
	Mode           string    `json:"mode,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Profile        string    `json:"profile,omitempty"`
}

// Transcriber converts a mono 16-bit WAV clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Synthesizer renders a sentence as 16-bit mono PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (pcm []byte, sampleRate int, err error)
}
