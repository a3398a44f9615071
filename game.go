package main

import (
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"go.uber.org/zap"
	"golang.org/x/image/font/basicfont"

	"expori/internal/eyetracker"
	"expori/internal/grating"
	"expori/internal/runlog"
	"expori/internal/session"
	"expori/internal/settings"
)

// Game drives a session from the ebiten loop: one Update is one frame of
// the experiment clock.
type Game struct {
	log *zap.Logger
	ses *session.Session

	start   time.Time
	started bool
	keyBuf  []ebiten.Key
	nameBuf []string

	width, height int
	ppu           float64
	background    color.RGBA
	surround      color.RGBA
	colors        map[string]color.RGBA

	texRes        int
	texPixels     []byte
	gratingImg    *ebiten.Image
	generatorName string

	face   text.Face
	player *audio.Player
}

// newGame builds the session and renders the grating texture.
func newGame(log *zap.Logger) (*Game, error) {
	g := &Game{log: log, colors: map[string]color.RGBA{}}

	deps := session.Deps{
		Log:     log,
		Tracker: eyetracker.New(*eyetrackerFlag, log),
		Trigger: func(code int) { log.Info("ttl trigger", zap.Int("code", code)) },
	}
	if *taskFlag == "train" {
		play, player, err := newFeedback(log)
		if err != nil {
			log.Warn("feedback audio unavailable", zap.Error(err))
		} else {
			deps.Feedback = play
			g.player = player
		}
	}
	ses, err := session.New(session.Config{
		Sub:          *subFlag,
		Ses:          *sesFlag,
		Run:          *runFlag,
		Task:         *taskFlag,
		SettingsPath: *settingsFlag,
		DesignDir:    *designDirFlag,
		DataDir:      *dataDirFlag,
		OutDir:       *outDirFlag,
		Seed:         *seedFlag,
	}, deps)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	g.ses = ses

	s := ses.Settings()
	g.width, g.height = s.Window.Size[0], s.Window.Size[1]
	g.ppu = s.Window.PixelsPerUnit
	if g.background, err = settings.ParseColor(s.Window.Background); err != nil {
		return nil, err
	}
	if g.surround, err = settings.ParseColor(s.Experiment.FixationSurroundColor); err != nil {
		return nil, err
	}
	if err := g.renderTexture(s); err != nil {
		return nil, err
	}
	g.face = text.NewGoXFace(basicfont.Face7x13)
	return g, nil
}

func (g *Game) renderTexture(s *settings.Settings) error {
	gp, err := s.Grating(*taskFlag)
	if err != nil {
		return err
	}
	gen, err := grating.New(*openCLFlag, 0)
	if err != nil {
		g.log.Warn("OpenCL unavailable, rendering grating on the CPU", zap.Error(err))
	}
	defer gen.Close()
	params := grating.Params{
		Res:         s.Window.TexRes,
		Cycles:      gp.SF * gp.Size,
		Contrast:    gp.Contrast,
		FringeWidth: gp.FringeWidth,
	}
	start := time.Now()
	px, err := gen.Generate(params)
	if err != nil {
		return fmt.Errorf("rendering grating: %w", err)
	}
	g.texRes, g.texPixels, g.generatorName = params.Res, px, gen.Name()
	g.log.Info("grating rendered",
		zap.String("generator", g.generatorName),
		zap.Int("res", params.Res),
		zap.Float64("cycles", params.Cycles),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Update feeds the keys pressed since the last tick to the session and
// steps it. The run ends with ebiten.Termination.
func (g *Game) Update() error {
	if !g.started {
		g.start = time.Now()
		g.started = true
	}
	now := time.Since(g.start)
	for _, key := range g.pressedKeys() {
		g.ses.HandleKey(key, now)
	}
	if err := g.ses.Step(now); err != nil {
		return err
	}
	if g.ses.Done() {
		return ebiten.Termination
	}
	return nil
}

// Close finishes the session outputs and releases audio.
func (g *Game) Close() (runlog.Summary, error) {
	if g.player != nil {
		_ = g.player.Close()
	}
	return g.ses.Close()
}

func (g *Game) colorFor(name string) color.RGBA {
	if c, ok := g.colors[name]; ok {
		return c
	}
	c, err := settings.ParseColor(name)
	if err != nil {
		g.log.Warn("unparsable color, using white", zap.String("color", name))
		c = color.RGBA{255, 255, 255, 255}
	}
	g.colors[name] = c
	return c
}
