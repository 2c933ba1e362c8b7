// Package codec serializes transport frames. Payloads are opaque JSON;
// the envelope carries only a type discriminator that the application
// layer interprets.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyFrame indicates an inbound frame with no bytes.
var ErrEmptyFrame = errors.New("codec: empty frame")

type envelope struct {
	Type string `json:"type"`
}

// Encode marshals a payload for the wire.
func Encode(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("codec: encode frame: %w", err)
	}
	return data, nil
}

// Decode validates an inbound frame and returns its payload without
// interpreting it.
func Decode(data []byte) (json.RawMessage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	if !json.Valid(data) {
		return nil, errors.New("codec: frame is not valid json")
	}
	return json.RawMessage(data), nil
}

// MessageType reads the envelope type field of a frame. An empty type is
// not an error; schema enforcement belongs to the application layer.
func MessageType(data []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("codec: decode envelope: %w", err)
	}
	return env.Type, nil
}
