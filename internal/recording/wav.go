package recording

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeQueueDepth bounds the PCM handoff between the capture thread and the
// file writer. At 50ms chunks this is well over a minute of backlog; if the
// disk is that far behind, dropping is the right call.
const writeQueueDepth = 2048

// Recorder writes 16-bit mono PCM to a WAV file. WritePCM is called from
// the capture path, so it only copies the chunk onto a buffered channel; a
// writer goroutine owns the encoder and the file.
type Recorder struct {
	path string
	file *os.File
	enc  *wav.Encoder

	ch      chan []byte
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// NewRecorder creates the WAV file and starts the writer. sampleRate is the
// rate of the PCM that will be written.
func NewRecorder(path string, sampleRate int) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		path: path,
		file: file,
		enc:  wav.NewEncoder(file, sampleRate, 16, 1, 1),
		ch:   make(chan []byte, writeQueueDepth),
		done: make(chan struct{}),
	}
	go r.writeLoop(sampleRate)
	return r, nil
}

// Path returns the file being written.
func (r *Recorder) Path() string {
	return r.path
}

// WritePCM queues one chunk of little-endian 16-bit mono PCM. The chunk is
// copied, so callers may reuse the slice. A full queue drops the chunk
// rather than blocking the capture thread.
func (r *Recorder) WritePCM(pcm []byte) error {
	if r.closed.Load() {
		return ErrRecorderClosed
	}
	if len(pcm) == 0 {
		return nil
	}

	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)

	select {
	case r.ch <- chunk:
	default:
		r.dropped.Add(1)
	}
	return nil
}

// Close drains the queue, finalizes the WAV header, and closes the file.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.ch)
		<-r.done

		if err := r.enc.Close(); err != nil {
			r.closeErr = err
			_ = r.file.Close()
			return
		}
		r.closeErr = r.file.Close()

		if n := r.dropped.Load(); n > 0 {
			slog.Warn("recorder dropped chunks", "path", r.path, "chunks", n)
		}
	})
	return r.closeErr
}

func (r *Recorder) writeLoop(sampleRate int) {
	defer close(r.done)

	format := &goaudio.Format{NumChannels: 1, SampleRate: sampleRate}
	for chunk := range r.ch {
		buf := &goaudio.IntBuffer{
			Format:         format,
			Data:           make([]int, len(chunk)/2),
			SourceBitDepth: 16,
		}
		for i := range buf.Data {
			buf.Data[i] = int(int16(uint16(chunk[i*2]) | uint16(chunk[i*2+1])<<8))
		}
		if err := r.enc.Write(buf); err != nil {
			slog.Error("wav write failed", "path", r.path, "error", err)
			return
		}
	}
}
