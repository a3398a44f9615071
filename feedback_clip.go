package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

var errEmptyClip = errors.New("clip has no samples")

// loadClip reads a feedback clip from a WAV file.
func loadClip(sampleRate int, path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	clip, err := decodeClip(sampleRate, f)
	if err != nil {
		return nil, fmt.Errorf("feedback clip %q: %w", path, err)
	}
	return clip, nil
}

// decodeClip resamples a WAV stream to sampleRate and mixes each stereo
// frame down to one sample in [-1, 1).
func decodeClip(sampleRate int, r io.Reader) ([]float32, error) {
	stream, err := wav.DecodeWithSampleRate(sampleRate, r)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(stream)
	var clip []float32
	var frame [2]int16
	for {
		err := binary.Read(br, binary.LittleEndian, &frame)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		clip = append(clip, float32(int32(frame[0])+int32(frame[1]))/(2*pcm16MaxValue+2))
	}
	if len(clip) == 0 {
		return nil, errEmptyClip
	}
	return clip, nil
}

// synthTone returns a sine burst with linear on and off ramps.
func synthTone(sampleRate int, hz float64, d, ramp time.Duration, amp float64) []float32 {
	n := int(d.Seconds() * float64(sampleRate))
	r := int(ramp.Seconds() * float64(sampleRate))
	out := make([]float32, n)
	for i := range out {
		env := 1.0
		if r > 0 {
			env = math.Min(1, math.Min(float64(i)/float64(r), float64(n-1-i)/float64(r)))
		}
		out[i] = float32(amp * env * math.Sin(2*math.Pi*hz*float64(i)/float64(sampleRate)))
	}
	return out
}
