package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"expori/internal/session"
)

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

func main() {
	flag.Parse()
	log, err := newLogger(*debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		os.Exit(1)
	}
	code := 0
	if err := run(log); err != nil {
		if errors.Is(err, session.ErrAborted) {
			log.Warn("run aborted by quit key")
			code = 2
		} else {
			log.Error("run failed", zap.Error(err))
			code = 1
		}
	}
	_ = log.Sync()
	os.Exit(code)
}

func run(log *zap.Logger) error {
	if *cpuProfileFlag != "" {
		prof, err := startCPUProfile(*cpuProfileFlag, log)
		if err != nil {
			return err
		}
		defer prof.Stop()
	}

	g, err := newGame(log)
	if err != nil {
		return err
	}
	s := g.ses.Settings()
	ebiten.SetWindowSize(s.Window.Size[0], s.Window.Size[1])
	ebiten.SetWindowTitle(windowTitle)
	ebiten.SetFullscreen(*fullscreenFlag || s.Window.Fullscreen)
	ebiten.SetCursorMode(ebiten.CursorModeHidden)
	ebiten.SetTPS(defaultTPS)

	runErr := ebiten.RunGame(g)
	if _, err := g.Close(); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}
