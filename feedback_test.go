package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frames(p []byte) []int16 {
	out := make([]int16, 0, len(p)/audioFrameBytes)
	for i := 0; i+audioFrameBytes <= len(p); i += audioFrameBytes {
		l := int16(binary.LittleEndian.Uint16(p[i:]))
		r := int16(binary.LittleEndian.Uint16(p[i+2:]))
		if l != r {
			panic("channels differ")
		}
		out = append(out, l)
	}
	return out
}

func TestFeedbackStreamSilentUntilPlayed(t *testing.T) {
	s := newFeedbackStream([]float32{0.5, -0.5}, []float32{-1})
	buf := make([]byte, 4*audioFrameBytes+3)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4*audioFrameBytes, n)
	assert.Equal(t, []int16{0, 0, 0, 0}, frames(buf[:n]))

	s.Play(true)
	n, _ = s.Read(buf)
	assert.Equal(t, []int16{16383, -16383, 0, 0}, frames(buf[:n]))

	s.Play(false)
	n, _ = s.Read(buf)
	assert.Equal(t, []int16{-pcm16MaxValue, 0, 0, 0}, frames(buf[:n]))
}

func TestFeedbackStreamShortBuffer(t *testing.T) {
	s := newFeedbackStream(nil, nil)
	n, err := s.Read(make([]byte, 3))
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestSynthTone(t *testing.T) {
	tone := synthTone(1000, 100, 100*time.Millisecond, 10*time.Millisecond, 0.5)
	require.Len(t, tone, 100)
	assert.Zero(t, tone[0])
	assert.InDelta(t, 0, tone[99], 1e-6)
	for _, v := range tone {
		assert.LessOrEqual(t, v, float32(0.5))
		assert.GreaterOrEqual(t, v, float32(-0.5))
	}
}

// wavFile encodes 16-bit stereo PCM frames as a WAV file.
func wavFile(t *testing.T, rate int, frames [][2]int16) []byte {
	t.Helper()
	var b bytes.Buffer
	size := uint32(len(frames) * audioFrameBytes)
	b.WriteString("RIFF")
	require.NoError(t, binary.Write(&b, binary.LittleEndian, 36+size))
	b.WriteString("WAVEfmt ")
	require.NoError(t, binary.Write(&b, binary.LittleEndian, struct {
		Size             uint32
		Format, Channels uint16
		Rate, ByteRate   uint32
		Align, Bits      uint16
	}{16, 1, 2, uint32(rate), uint32(rate * audioFrameBytes), audioFrameBytes, 16}))
	b.WriteString("data")
	require.NoError(t, binary.Write(&b, binary.LittleEndian, size))
	require.NoError(t, binary.Write(&b, binary.LittleEndian, frames))
	return b.Bytes()
}

func TestDecodeClipMixesToMono(t *testing.T) {
	raw := wavFile(t, audioSampleRate, [][2]int16{{16384, 16384}, {-32768, 0}, {100, -100}})
	clip, err := decodeClip(audioSampleRate, bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, clip, 3)
	assert.InDelta(t, 0.5, clip[0], 1e-3)
	assert.InDelta(t, -0.5, clip[1], 1e-3)
	assert.InDelta(t, 0, clip[2], 1e-3)
}

func TestLoadClipErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := loadClip(audioSampleRate, filepath.Join(dir, "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(empty, wavFile(t, audioSampleRate, nil), 0o644))
	_, err = loadClip(audioSampleRate, empty)
	assert.Error(t, err)
}
