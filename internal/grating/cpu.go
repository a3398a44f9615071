package grating

import (
	"runtime"
	"sync"
)

// CPU splits the texture rows into contiguous bands, one per worker.
type CPU struct {
	workers int
}

func NewCPU(workers int) *CPU {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &CPU{workers: workers}
}

func (c *CPU) Name() string { return "cpu" }
func (c *CPU) Close()       {}

func (c *CPU) Generate(p Params) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	out := make([]byte, p.Res*p.Res*4)

	// the grating only varies along x
	lum := make([]float64, p.Res)
	for x := range lum {
		lum[x] = Luminance(x, p)
	}

	workers := min(c.workers, p.Res)
	rowsPer := (p.Res + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * rowsPer
		end := min(start+rowsPer, p.Res)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				base := y * p.Res * 4
				for x := 0; x < p.Res; x++ {
					putPixel(out, base+x*4, lum[x], Mask(x, y, p))
				}
			}
		}(start, end)
	}
	wg.Wait()
	return out, nil
}
