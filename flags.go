package main

import "flag"

// Command-line flags identifying the run and selecting optional runtime
// behavior.
var (
	subFlag  = flag.String("sub", "01", "subject nr (e.g. 01)")
	sesFlag  = flag.Int("ses", 1, "session nr")
	runFlag  = flag.Int("run", 1, "run nr")
	taskFlag = flag.String("task", "train", "type of run (train, test)")

	// settingsFlag names a YAML file decoded on top of the built-in defaults.
	settingsFlag = flag.String("settings", "", "settings file overlaid on the defaults")

	designDirFlag = flag.String("design-dir", "run_designs", "directory holding sub-XX/ design tables")
	dataDirFlag   = flag.String("data-dir", "data", "directory for stimulus position files")
	outDirFlag    = flag.String("out-dir", "logs", "directory for events, settings snapshot and summary")

	eyetrackerFlag = flag.Bool("eyetracker", false, "record tracker messages for every phase onset")
	fullscreenFlag = flag.Bool("fullscreen", false, "run fullscreen, overriding window.fullscreen")

	// debugFlag enables the trial overlay and development logging.
	debugFlag = flag.Bool("debug", false, "show trial/phase overlay and log at debug level")

	cpuProfileFlag = flag.String("cpuprofile", "", "write a CPU profile to this file")
	seedFlag       = flag.Int64("seed", 0, "seed for the response sign draws (0 uses the clock)")

	openCLFlag = flag.Bool("opencl", false, "render the grating texture with OpenCL (needs -tags opencl)")

	feedbackCorrectFlag   = flag.String("feedback-correct-wav", "", "WAV played after correct responses instead of the high tone")
	feedbackIncorrectFlag = flag.String("feedback-incorrect-wav", "", "WAV played after incorrect responses instead of the low tone")
)
