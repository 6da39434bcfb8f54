package recording

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/acousland/MacEaves/internal/types"
)

func waitForClosed(t *testing.T, r *Recorder) {
	t.Helper()
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRecorderWritesValidWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meeting-2026-01-05-10-30-test.wav")
	r, err := NewRecorder(path, types.TranscribeSampleRate)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	// 100 samples of a fixed value.
	pcm := make([]byte, 200)
	for i := 0; i < 100; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(1000)))
	}
	if err := r.WritePCM(pcm); err != nil {
		t.Fatalf("WritePCM: %v", err)
	}
	waitForClosed(t, r)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := buf.Format.SampleRate; got != types.TranscribeSampleRate {
		t.Errorf("sample rate = %d, want %d", got, types.TranscribeSampleRate)
	}
	if got := buf.Format.NumChannels; got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if len(buf.Data) != 100 {
		t.Fatalf("samples = %d, want 100", len(buf.Data))
	}
	if buf.Data[0] != 1000 || buf.Data[99] != 1000 {
		t.Errorf("samples = [%d ... %d], want 1000", buf.Data[0], buf.Data[99])
	}
}

func TestRecorderWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	r, err := NewRecorder(path, types.TranscribeSampleRate)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	waitForClosed(t, r)

	if err := r.WritePCM([]byte{0, 0}); err != ErrRecorderClosed {
		t.Errorf("WritePCM after close = %v, want ErrRecorderClosed", err)
	}
	// Close is idempotent.
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestManagerSessionRecorderLifecycle(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 0, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Stop()

	rec, err := m.NewSessionRecorder("0f9a3c21-1234-5678-9abc-def012345678")
	if err != nil {
		t.Fatalf("NewSessionRecorder: %v", err)
	}

	name := filepath.Base(rec.Path())
	if !strings.HasPrefix(name, "meeting-") || !strings.HasSuffix(name, "-0f9a3c21.wav") {
		t.Errorf("recording name = %q", name)
	}
	if !m.isCurrentFile(rec.Path()) {
		t.Error("active recording not tracked as current")
	}

	if err := rec.WritePCM([]byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("WritePCM: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m.isCurrentFile(rec.Path()) {
		t.Error("finished recording still tracked as current")
	}
	if _, err := os.Stat(rec.Path()); err != nil {
		t.Errorf("recording file missing: %v", err)
	}
}

func TestManagerCleanupRemovesExpired(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 7, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Stop()

	old := time.Now().AddDate(0, 0, -10).Format("2006-01-02")
	fresh := time.Now().Format("2006-01-02")

	oldFile := filepath.Join(dir, "meeting-"+old+"-10-00-aaaa.wav")
	freshFile := filepath.Join(dir, "meeting-"+fresh+"-10-00-bbbb.wav")
	unrelated := filepath.Join(dir, "notes-"+old+".txt")
	for _, p := range []string{oldFile, freshFile, unrelated} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	m.runCleanup()

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("expired recording not removed")
	}
	if _, err := os.Stat(freshFile); err != nil {
		t.Error("fresh recording removed")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("unrelated file removed")
	}
}
