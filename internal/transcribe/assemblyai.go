package transcribe

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	assemblyAIURL = "wss://streaming.assemblyai.com/v3/ws"

	// The provider accepts chunks between 50ms and 1000ms of audio. At
	// 16 kHz 16-bit mono that is 1600 to 32000 bytes; the sender stays a
	// little under the ceiling.
	minChunkBytes = 1600
	maxChunkBytes = 30400

	sendInterval = 50 * time.Millisecond
)

// AssemblyAI streams PCM to the AssemblyAI realtime endpoint over a
// websocket and emits turn results.
type AssemblyAI struct {
	conn    *websocket.Conn
	results chan Result

	mu       sync.Mutex
	fullText strings.Builder

	bufMu  sync.Mutex
	buffer []byte

	stopSending chan struct{}
	wg          sync.WaitGroup
}

// assemblyAIMessage covers every message shape the endpoint sends or accepts.
type assemblyAIMessage struct {
	Type               string  `json:"type"`
	ID                 string  `json:"id,omitempty"`
	Transcript         string  `json:"transcript,omitempty"`
	TurnIsFormatted    bool    `json:"turn_is_formatted,omitempty"`
	AudioDurationSec   float64 `json:"audio_duration_seconds,omitempty"`
	SessionDurationSec float64 `json:"session_duration_seconds,omitempty"`
}

// NewAssemblyAI dials the realtime endpoint and starts the reader and the
// buffered sender.
func NewAssemblyAI(apiKey string, sampleRate int) (*AssemblyAI, error) {
	url := fmt.Sprintf("%s?sample_rate=%d&format_turns=true", assemblyAIURL, sampleRate)

	header := http.Header{}
	header.Add("Authorization", apiKey)

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connect to assemblyai: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("connect to assemblyai: %w", err)
	}

	a := &AssemblyAI{
		conn:        conn,
		results:     make(chan Result, 100),
		buffer:      make([]byte, 0, maxChunkBytes),
		stopSending: make(chan struct{}),
	}

	go a.readLoop()

	a.wg.Add(1)
	go a.sendLoop()

	return a, nil
}

// ProcessAudio appends PCM to the send buffer. It never touches the network.
func (a *AssemblyAI) ProcessAudio(pcm []byte) error {
	a.bufMu.Lock()
	a.buffer = append(a.buffer, pcm...)
	a.bufMu.Unlock()
	return nil
}

// sendLoop ships buffered audio on a fixed cadence so chunks stay within the
// provider's duration limits regardless of the capture buffer size.
func (a *AssemblyAI) sendLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(sendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush(false)
		case <-a.stopSending:
			a.flush(true)
			return
		}
	}
}

// flush sends whole chunks from the buffer. With force set the remainder is
// sent even below the minimum chunk size, for end-of-session drainage.
func (a *AssemblyAI) flush(force bool) {
	a.bufMu.Lock()
	defer a.bufMu.Unlock()

	for len(a.buffer) >= minChunkBytes {
		n := len(a.buffer)
		if n > maxChunkBytes {
			n = maxChunkBytes
		}
		if err := a.conn.WriteMessage(websocket.BinaryMessage, a.buffer[:n]); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("assemblyai audio send failed", "error", err)
			}
			a.buffer = a.buffer[:0]
			return
		}
		a.buffer = a.buffer[n:]
	}

	if force && len(a.buffer) > 0 {
		_ = a.conn.WriteMessage(websocket.BinaryMessage, a.buffer)
		a.buffer = a.buffer[:0]
	}
}

func (a *AssemblyAI) readLoop() {
	defer close(a.results)

	for {
		_, message, err := a.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("assemblyai connection closed", "error", err)
			}
			return
		}

		var msg assemblyAIMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Warn("assemblyai message parse failed", "error", err)
			continue
		}

		switch msg.Type {
		case "Begin":
			slog.Info("assemblyai session started", "session_id", msg.ID)

		case "Turn":
			if msg.Transcript == "" {
				continue
			}
			if msg.TurnIsFormatted {
				a.mu.Lock()
				if a.fullText.Len() > 0 {
					a.fullText.WriteString(" ")
				}
				a.fullText.WriteString(msg.Transcript)
				a.mu.Unlock()
			}
			a.results <- Result{Text: msg.Transcript, Final: msg.TurnIsFormatted}

		case "Termination":
			slog.Info("assemblyai session terminated",
				"audio_seconds", msg.AudioDurationSec,
				"session_seconds", msg.SessionDurationSec)
		}
	}
}

// Results returns the provider result stream.
func (a *AssemblyAI) Results() <-chan Result {
	return a.results
}

// FullTranscript returns every formatted turn received so far.
func (a *AssemblyAI) FullTranscript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fullText.String()
}

// Close drains the send buffer, asks the provider to terminate the session,
// and closes the websocket.
func (a *AssemblyAI) Close() error {
	close(a.stopSending)
	a.wg.Wait()

	if msg, err := json.Marshal(assemblyAIMessage{Type: "Terminate"}); err == nil {
		_ = a.conn.WriteMessage(websocket.TextMessage, msg)
		// Let the provider flush its final turn before the socket drops.
		time.Sleep(500 * time.Millisecond)
	}

	return a.conn.Close()
}
