package main

import "time"

// Rendering and audio constants for the experiment window and the feedback
// sounds played after responses in training runs.
const (
	windowTitle              = "Orientation discrimination"
	defaultTPS               = 60
	textScale                = 2
	calibrationStroke        = 2
	audioSampleRate          = 48000
	audioPlayerBufferLatency = 40 * time.Millisecond
	audioFrameBytes          = 4
	pcm16MaxValue            = 32767
	toneDuration             = 150 * time.Millisecond
	toneRamp                 = 10 * time.Millisecond
	toneAmplitude            = 0.4
	correctToneHz            = 880
	incorrectToneHz          = 220
)
