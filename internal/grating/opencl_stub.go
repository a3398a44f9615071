//go:build !opencl

package grating

import "errors"

type OpenCL struct{}

func newOpenCL() (*OpenCL, error) {
	return nil, errors.New("OpenCL support is not enabled; rebuild with -tags opencl")
}

func (g *OpenCL) Generate(Params) ([]byte, error) {
	return nil, errors.New("OpenCL generator unavailable")
}

func (g *OpenCL) Name() string { return "" }
func (g *OpenCL) Close()       {}
