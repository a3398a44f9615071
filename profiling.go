package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/pprof"

	"go.uber.org/zap"
)

// cpuProfile is a running pprof CPU profile.
type cpuProfile struct {
	log *zap.Logger
	f   *os.File
}

func startCPUProfile(path string, log *zap.Logger) (*cpuProfile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cpu profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		return nil, errors.Join(fmt.Errorf("cpu profile: %w", err), f.Close())
	}
	log.Info("CPU profile enabled", zap.String("path", path))
	return &cpuProfile{log: log, f: f}, nil
}

// Stop flushes the profile to disk. Only the first call does anything.
func (p *cpuProfile) Stop() {
	if p.f == nil {
		return
	}
	pprof.StopCPUProfile()
	path := p.f.Name()
	if err := p.f.Close(); err != nil {
		p.log.Warn("CPU profile not saved", zap.String("path", path), zap.Error(err))
	} else {
		p.log.Info("CPU profile written", zap.String("path", path))
	}
	p.f = nil
}
