package runlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"expori/internal/trial"
)

func readTSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = '\t'
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func orientationRecord(n int, correct any, rt any, value float64) trial.Record {
	return trial.Record{
		Number: n,
		Kind:   trial.Orientation,
		Params: map[string]any{
			trial.ParamStaircase:    value,
			trial.ParamCorrect:      correct,
			trial.ParamResponseTime: rt,
			trial.ParamResponseKey:  nil,
			"color":                 "red",
		},
		Phases: []trial.PhaseEvent{
			{Phase: 0, Name: "fix", Onset: 10 * time.Second},
			{Phase: 1, Name: "warning", Onset: 11 * time.Second},
		},
	}
}

func TestOutputString(t *testing.T) {
	assert.Equal(t, "sub-01_ses-1_task-train_run-02", OutputString("1", 1, "train", 2))
	assert.Equal(t, "sub-ab_ses-3_task-test_run-10", OutputString("ab", 3, "test", 10))
	assert.Equal(t, "sub-001_ses-1_task-train_run-01", OutputString("001", 1, "train", 1))
}

func TestWriteRowsPerPhase(t *testing.T) {
	dir := t.TempDir()
	l, err := Create(dir, "run", []string{"color", trial.ParamResponseKey, trial.ParamCorrect})
	require.NoError(t, err)

	require.NoError(t, l.Write(orientationRecord(4, 1, 0.5, 2.0), 8*time.Second))

	rows := readTSV(t, l.Path())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"trial_nr", "trial_type", "phase", "event_type", "onset", "color", "response_key", "response_correct"}, rows[0])
	assert.Equal(t, []string{"4", "orientation", "0", "fix", "2", "red", "NA", "1"}, rows[1])
	assert.Equal(t, "3", rows[2][4])

	_, err = l.Close()
	require.NoError(t, err)
}

func TestRowsSurviveWithoutClose(t *testing.T) {
	dir := t.TempDir()
	l, err := Create(dir, "run", nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.f.Close() })

	require.NoError(t, l.Write(orientationRecord(1, nil, nil, 4), 0))
	assert.Len(t, readTSV(t, filepath.Join(dir, "run_events.tsv")), 3)
}

func TestSummary(t *testing.T) {
	dir := t.TempDir()
	l, err := Create(dir, "run", nil)
	require.NoError(t, err)

	require.NoError(t, l.Write(orientationRecord(1, 1, 0.4, 4), 0))
	require.NoError(t, l.Write(orientationRecord(2, 0, 0.6, 3.5), 0))
	require.NoError(t, l.Write(orientationRecord(3, nil, nil, 3.5), 0))
	require.NoError(t, l.Write(trial.Record{Number: 4, Kind: trial.Outro}, 0))

	l.SetFinalStaircase(3)
	s, err := l.Close()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Trials)
	assert.Equal(t, 2, s.Responses)
	assert.Equal(t, 1, s.Correct)
	assert.InDelta(t, 0.5, s.Accuracy, 1e-9)
	assert.InDelta(t, 0.5, s.MeanRT, 1e-9)
	assert.Equal(t, 3.5, s.LastTrialStaircase)
	assert.Equal(t, 3.0, s.FinalStaircase)

	b, err := os.ReadFile(filepath.Join(dir, "run_summary.yml"))
	require.NoError(t, err)
	var got Summary
	require.NoError(t, yaml.Unmarshal(b, &got))
	assert.Equal(t, s, got)
}

func TestWriteSettings(t *testing.T) {
	dir := t.TempDir()
	l, err := Create(dir, "run", nil)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.WriteSettings(map[string]any{"window": map[string]any{"tex_res": 512}}))
	b, err := os.ReadFile(filepath.Join(dir, "run_expsettings.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "tex_res: 512")
}
