//go:build opencl

package grating

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

const gratingKernelSource = `__kernel void grating(
    const int res,
    const float cycles,
    const float contrast,
    const float fringe,
    __global float* out)
{
    int idx = get_global_id(0);
    if (idx >= res * res) {
        return;
    }
    int x = idx % res;
    int y = idx / res;
    float half_res = res * 0.5f;
    float u = (x + 0.5f) / res;
    float lum = 0.5f + 0.5f * contrast * sin(2.0f * M_PI_F * cycles * u);
    float dx = (x + 0.5f - half_res) / half_res;
    float dy = (y + 0.5f - half_res) / half_res;
    float r = sqrt(dx * dx + dy * dy);
    float inner = 1.0f - fringe;
    float mask;
    if (r >= 1.0f) {
        mask = 0.0f;
    } else if (r <= inner) {
        mask = 1.0f;
    } else {
        mask = 0.5f * (1.0f + cos(M_PI_F * (r - inner) / fringe));
    }
    out[2 * idx] = lum;
    out[2 * idx + 1] = mask;
}`

// OpenCL evaluates the texture on a GPU, or a CPU device when no GPU is
// present.
type OpenCL struct {
	context    *cl.Context
	queue      *cl.CommandQueue
	program    *cl.Program
	kernel     *cl.Kernel
	deviceName string
}

func pickDevice() (*cl.Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available")
	}
	for _, typ := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU} {
		for _, p := range platforms {
			devices, derr := p.GetDevices(typ)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				return devices[0], nil
			}
		}
	}
	return nil, errors.New("no suitable OpenCL devices found")
}

func newOpenCL() (*OpenCL, error) {
	device, err := pickDevice()
	if err != nil {
		return nil, err
	}
	context, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	g := &OpenCL{context: context, deviceName: device.Name()}
	if g.queue, err = context.CreateCommandQueue(device, 0); err != nil {
		g.Close()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	if g.program, err = context.CreateProgramWithSource([]string{gratingKernelSource}); err != nil {
		g.Close()
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := g.program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		g.Close()
		if buildErr, ok := err.(cl.BuildError); ok {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}
	if g.kernel, err = g.program.CreateKernel("grating"); err != nil {
		g.Close()
		return nil, fmt.Errorf("creating OpenCL kernel: %w", err)
	}
	return g, nil
}

func (g *OpenCL) Name() string { return "opencl " + g.deviceName }

func (g *OpenCL) Generate(p Params) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	size := p.Res * p.Res
	buf, err := g.context.CreateEmptyBuffer(cl.MemWriteOnly, 2*size*int(unsafe.Sizeof(float32(0))))
	if err != nil {
		return nil, fmt.Errorf("allocating texture buffer: %w", err)
	}
	defer buf.Release()
	if err := g.kernel.SetArgs(
		int32(p.Res),
		float32(p.Cycles),
		float32(p.Contrast),
		float32(p.FringeWidth),
		buf,
	); err != nil {
		return nil, fmt.Errorf("setting kernel arguments: %w", err)
	}
	if _, err := g.queue.EnqueueNDRangeKernel(g.kernel, nil, []int{size}, nil, nil); err != nil {
		return nil, fmt.Errorf("enqueueing kernel: %w", err)
	}
	host := make([]float32, 2*size)
	if _, err := g.queue.EnqueueReadBufferFloat32(buf, true, 0, host, nil); err != nil {
		return nil, fmt.Errorf("reading texture buffer: %w", err)
	}
	out := make([]byte, size*4)
	for i := 0; i < size; i++ {
		putPixel(out, i*4, float64(host[2*i]), float64(host[2*i+1]))
	}
	return out, nil
}

func (g *OpenCL) Close() {
	if g.kernel != nil {
		g.kernel.Release()
		g.kernel = nil
	}
	if g.program != nil {
		g.program.Release()
		g.program = nil
	}
	if g.queue != nil {
		g.queue.Release()
		g.queue = nil
	}
	if g.context != nil {
		g.context.Release()
		g.context = nil
	}
}
