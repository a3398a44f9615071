package main

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"go.uber.org/zap"
)

// feedbackStream is an endless stereo PCM16 stream: silence, interrupted by
// the clip queued with Play.
type feedbackStream struct {
	mu        sync.Mutex
	correct   []float32
	incorrect []float32
	pending   []float32
}

func newFeedbackStream(correct, incorrect []float32) *feedbackStream {
	return &feedbackStream{correct: correct, incorrect: incorrect}
}

// Play replaces whatever is still sounding with the clip for correct.
func (s *feedbackStream) Play(correct bool) {
	clip := s.incorrect
	if correct {
		clip = s.correct
	}
	s.mu.Lock()
	s.pending = clip
	s.mu.Unlock()
}

func (s *feedbackStream) Read(p []byte) (int, error) {
	// whole stereo frames only
	frameBytes := len(p) - len(p)%audioFrameBytes
	if frameBytes == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < frameBytes; i += audioFrameBytes {
		var v float32
		if len(s.pending) > 0 {
			v = s.pending[0]
			s.pending = s.pending[1:]
		}
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		sample := int16(v * pcm16MaxValue)
		p[i] = byte(sample)
		p[i+1] = byte(sample >> 8)
		p[i+2] = p[i]
		p[i+3] = p[i+1]
	}
	return frameBytes, nil
}

func (s *feedbackStream) Close() error {
	return nil
}

// newFeedback opens the audio device and returns the function trials call
// after a scored response. Clips come from the WAV flags when given and
// fall back to synthesized tones.
func newFeedback(log *zap.Logger) (func(correct bool), *audio.Player, error) {
	correct := synthTone(audioSampleRate, correctToneHz, toneDuration, toneRamp, toneAmplitude)
	incorrect := synthTone(audioSampleRate, incorrectToneHz, toneDuration, toneRamp, toneAmplitude)
	if *feedbackCorrectFlag != "" {
		clip, err := loadClip(audioSampleRate, *feedbackCorrectFlag)
		if err != nil {
			return nil, nil, err
		}
		correct = clip
	}
	if *feedbackIncorrectFlag != "" {
		clip, err := loadClip(audioSampleRate, *feedbackIncorrectFlag)
		if err != nil {
			return nil, nil, err
		}
		incorrect = clip
	}
	stream := newFeedbackStream(correct, incorrect)
	ctx := audio.NewContext(audioSampleRate)
	player, err := ctx.NewPlayer(stream)
	if err != nil {
		return nil, nil, err
	}
	player.SetBufferSize(audioPlayerBufferLatency)
	player.Play()
	log.Debug("feedback audio ready",
		zap.Int("correct_samples", len(correct)),
		zap.Int("incorrect_samples", len(incorrect)))
	return stream.Play, player, nil
}
