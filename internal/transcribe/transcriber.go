// Package transcribe provides live speech-to-text. The engine owns its own
// capture graph on the selected input device, converts buffers to provider
// PCM, and streams them to a transcription provider.
package transcribe

import (
	"errors"
	"fmt"
)

// Sentinel errors for transcription operations.
var (
	ErrAlreadyRunning  = errors.New("transcription already running")
	ErrNotRunning      = errors.New("transcription not running")
	ErrNoAPIKey        = errors.New("transcription API key not configured")
	ErrUnknownProvider = errors.New("unknown transcription provider")
)

// Result is one hypothesis from the provider. Partial results supersede
// each other; final results are appended to the transcript.
type Result struct {
	Text  string
	Final bool
}

// Transcriber is the provider boundary. ProcessAudio never blocks on the
// network: implementations buffer internally and ship on their own cadence.
// The Results channel is closed when the provider connection ends.
type Transcriber interface {
	ProcessAudio(pcm []byte) error
	Results() <-chan Result
	FullTranscript() string
	Close() error
}

// Factory creates a provider connection for one session. The engine calls
// it on every Start so each session gets a fresh stream.
type Factory func() (Transcriber, error)

// NewFactory returns a Factory for the named provider.
func NewFactory(provider, apiKey string, sampleRate int) (Factory, error) {
	switch provider {
	case "", "assemblyai":
		if apiKey == "" {
			return nil, ErrNoAPIKey
		}
		return func() (Transcriber, error) {
			return NewAssemblyAI(apiKey, sampleRate)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}
