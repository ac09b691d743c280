package synthesis

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"
)

// wavHeader is the parsed fixed-size portion of a RIFF/WAVE file.
type wavHeader struct {
	chunkSize     uint32
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	byteRate      uint32
	blockAlign    uint16
	bitsPerSample uint16
	dataSize      uint32
}

func parseWAV(t *testing.T, data []byte) (wavHeader, []byte) {
	t.Helper()
	if len(data) < 44 {
		t.Fatalf("wav too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("not a RIFF/WAVE file: % x", data[:12])
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		t.Fatalf("unexpected chunk layout: % x", data[:44])
	}

	var h wavHeader
	le := binary.LittleEndian
	h.chunkSize = le.Uint32(data[4:8])
	h.audioFormat = le.Uint16(data[20:22])
	h.channels = le.Uint16(data[22:24])
	h.sampleRate = le.Uint32(data[24:28])
	h.byteRate = le.Uint32(data[28:32])
	h.blockAlign = le.Uint16(data[32:34])
	h.bitsPerSample = le.Uint16(data[34:36])
	h.dataSize = le.Uint32(data[40:44])
	return h, data[44:]
}

func TestEncodeWAV(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	wav := encodeWAV(pcm, 24000, 1)

	h, body := parseWAV(t, wav)

	if h.audioFormat != 1 {
		t.Errorf("audio format = %d, want 1 (PCM)", h.audioFormat)
	}
	if h.channels != 1 {
		t.Errorf("channels = %d, want 1", h.channels)
	}
	if h.sampleRate != 24000 {
		t.Errorf("sample rate = %d, want 24000", h.sampleRate)
	}
	if h.bitsPerSample != 16 {
		t.Errorf("bits per sample = %d, want 16", h.bitsPerSample)
	}
	if want := uint32(24000 * 2); h.byteRate != want {
		t.Errorf("byte rate = %d, want %d", h.byteRate, want)
	}
	if h.blockAlign != 2 {
		t.Errorf("block align = %d, want 2", h.blockAlign)
	}
	if h.chunkSize != uint32(36+len(pcm)) {
		t.Errorf("chunk size = %d, want %d", h.chunkSize, 36+len(pcm))
	}
	if h.dataSize != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", h.dataSize, len(pcm))
	}
	if !bytes.Equal(body, pcm) {
		t.Errorf("data chunk = % x, want % x", body, pcm)
	}
}

func TestEncodeWAVStereo(t *testing.T) {
	wav := encodeWAV(make([]byte, 16), 44100, 2)
	h, _ := parseWAV(t, wav)

	if h.channels != 2 {
		t.Errorf("channels = %d, want 2", h.channels)
	}
	if h.blockAlign != 4 {
		t.Errorf("block align = %d, want 4", h.blockAlign)
	}
	if want := uint32(44100 * 4); h.byteRate != want {
		t.Errorf("byte rate = %d, want %d", h.byteRate, want)
	}
}

func TestNewValidatesFormat(t *testing.T) {
	for _, format := range []string{"pcm", "mp3"} {
		if _, err := New(WithAPIKey("k"), WithResponseFormat(format)); err != nil {
			t.Errorf("New(%q): %v", format, err)
		}
	}
	if _, err := New(WithAPIKey("k"), WithResponseFormat("opus")); err == nil {
		t.Error("New should reject unsupported formats")
	}
}

func TestSynthesizePCM(t *testing.T) {
	pcm := []byte{0x10, 0x20, 0x30, 0x40}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/pcm")
		_, _ = w.Write(pcm)
	}))
	defer ts.Close()

	p, err := New(
		WithAPIKey("test-key"),
		WithBaseURL(ts.URL+"/v1"),
		WithResponseFormat("pcm"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio, err := p.Synthesize(context.Background(), "Are you hiring?")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if audio.Format != "wav" {
		t.Errorf("Format = %q, want wav", audio.Format)
	}

	h, body := parseWAV(t, audio.Data)
	if h.sampleRate != pcmSampleRate {
		t.Errorf("sample rate = %d, want %d", h.sampleRate, pcmSampleRate)
	}
	if h.channels != 1 {
		t.Errorf("channels = %d, want 1", h.channels)
	}
	if !bytes.Equal(body, pcm) {
		t.Errorf("data chunk = % x, want % x", body, pcm)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	p, err := New(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), ""); err == nil {
		t.Error("Synthesize should reject empty text")
	}
}

func TestSynthesizeEmptyResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/pcm")
	}))
	defer ts.Close()

	p, err := New(WithAPIKey("test-key"), WithBaseURL(ts.URL+"/v1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "hello"); err == nil {
		t.Error("Synthesize should reject an empty audio response")
	}
}

func TestSynthesizeServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	p, err := New(WithAPIKey("test-key"), WithBaseURL(ts.URL+"/v1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "hello"); err == nil {
		t.Error("Synthesize should surface API errors")
	}
}
