// Package runlog writes the outputs of a run: the events table, a snapshot
// of the settings and a short summary.
package runlog

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"expori/internal/design"
	"expori/internal/position"
	"expori/internal/trial"
)

// Fixed leading columns of the events table.
var baseColumns = []string{"trial_nr", "trial_type", "phase", "event_type", "onset"}

// OutputString names a run: sub-XX_ses-Y_task-T_run-RR.
func OutputString(sub string, ses int, task string, run int) string {
	return fmt.Sprintf("sub-%s_ses-%d_task-%s_run-%02d", position.PadSubject(sub), ses, task, run)
}

// Log appends one row per phase onset of every completed trial. Rows are
// flushed as they are written so an aborted run keeps what it finished.
type Log struct {
	dir    string
	prefix string
	params []string

	f *os.File
	w *csv.Writer

	summary Summary
	rts     []float64
}

// Create opens <dir>/<prefix>_events.tsv. params are the parameter columns
// written after the fixed ones, in order.
func Create(dir, prefix string, params []string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %q: %w", dir, err)
	}
	path := filepath.Join(dir, prefix+"_events.tsv")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %q: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'
	l := &Log{dir: dir, prefix: prefix, params: params, f: f, w: w}
	header := append(append([]string(nil), baseColumns...), params...)
	if err := l.writeRow(header); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the events file path.
func (l *Log) Path() string { return l.f.Name() }

// Write appends rec. Onsets are written in seconds relative to start, the
// moment the scanner trigger arrived.
func (l *Log) Write(rec trial.Record, start time.Duration) error {
	for _, ev := range rec.Phases {
		row := []string{
			strconv.Itoa(rec.Number),
			rec.Kind.String(),
			strconv.Itoa(ev.Phase),
			ev.Name,
			formatFloat((ev.Onset - start).Seconds()),
		}
		for _, p := range l.params {
			row = append(row, format(rec.Params[p]))
		}
		if err := l.writeRow(row); err != nil {
			return err
		}
	}
	l.tally(rec)
	return nil
}

func (l *Log) writeRow(row []string) error {
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("writing events: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("writing events: %w", err)
	}
	return nil
}

// WriteSettings stores the settings snapshot as <prefix>_expsettings.yml.
func (l *Log) WriteSettings(v any) error {
	return l.writeYAML("_expsettings.yml", v)
}

// Close writes the summary and closes the events file.
func (l *Log) Close() (Summary, error) {
	s := l.Summary()
	err := l.writeYAML("_summary.yml", s)
	if cerr := l.f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing %q: %w", l.f.Name(), cerr)
	}
	return s, err
}

func (l *Log) writeYAML(suffix string, v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", suffix, err)
	}
	path := filepath.Join(l.dir, l.prefix+suffix)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}

func format(v any) string {
	switch x := v.(type) {
	case nil:
		return design.Missing
	case float64:
		return formatFloat(x)
	case string:
		if x == "" {
			return design.Missing
		}
		return x
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return design.Missing
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Summary is the performance overview of a run.
type Summary struct {
	Trials    int     `yaml:"trials"`
	Responses int     `yaml:"responses"`
	Correct   int     `yaml:"correct"`
	Accuracy  float64 `yaml:"accuracy"`
	MeanRT    float64 `yaml:"mean_rt"`
	StdRT     float64 `yaml:"std_rt"`

	// LastTrialStaircase is the value the last orientation trial was shown.
	// FinalStaircase is the staircase state after its last update, set by
	// SetFinalStaircase.
	LastTrialStaircase float64 `yaml:"last_trial_staircase_value"`
	FinalStaircase     float64 `yaml:"final_staircase_value"`
}

// SetFinalStaircase records the staircase value a further trial would get.
func (l *Log) SetFinalStaircase(v float64) { l.summary.FinalStaircase = v }

func (l *Log) tally(rec trial.Record) {
	if rec.Kind != trial.Orientation {
		return
	}
	l.summary.Trials++
	if v, ok := rec.Params[trial.ParamStaircase].(float64); ok {
		l.summary.LastTrialStaircase = v
	}
	c, ok := rec.Params[trial.ParamCorrect].(int)
	if !ok {
		return
	}
	l.summary.Responses++
	l.summary.Correct += c
	if rt, ok := rec.Params[trial.ParamResponseTime].(float64); ok {
		l.rts = append(l.rts, rt)
	}
}

// Summary returns the figures over the trials written so far.
func (l *Log) Summary() Summary {
	s := l.summary
	if s.Responses > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Responses)
	}
	switch len(l.rts) {
	case 0:
	case 1:
		s.MeanRT = l.rts[0]
	default:
		s.MeanRT, s.StdRT = stat.MeanStdDev(l.rts, nil)
	}
	return s
}
