// Package stt defines the interface for streaming Speech-to-Text adapters.
package stt

import (
	"context"
	"errors"

	"acta-transcript-engine/internal/models"
)

// ErrUnknownProvider is returned by a Factory for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown STT provider")

// Result is one recognition result from the provider.
type Result struct {
	Text       string
	IsFinal    bool
	Confidence float64 // 0 when the provider does not report one
	Speaker    string  // diarization label, empty when diarization is off
}

// Callback receives results from the STT provider, in order.
type Callback interface {
	// OnTranscript is called for every interim or final result.
	OnTranscript(r Result)

	// OnEndOfUtterance is called when the provider detects a speaker pause.
	OnEndOfUtterance()

	// OnError is called when the stream fails. No further callbacks follow.
	OnError(err error)
}

// Adapter is a streaming STT provider session (Google, mock, ...).
type Adapter interface {
	// Start opens the stream; results are delivered to cb.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes to the provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close half-closes the stream and releases resources.
	Close() error
}

// Factory creates an adapter configured for one session.
type Factory func(ctx context.Context, cfg models.SessionConfig) (Adapter, error)
