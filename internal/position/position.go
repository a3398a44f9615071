// Package position stores where the grating is drawn for a subject/session
// and provides the interactive calibrator that adjusts it.
package position

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Info describes the grating aperture in display units, origin at screen center.
type Info struct {
	XOffset               float64 `yaml:"x_offset"`
	YOffset               float64 `yaml:"y_offset"`
	Width                 float64 `yaml:"width"`
	Height                float64 `yaml:"height"`
	RepositioningRequired bool    `yaml:"repositioning_required"`
}

// FileName returns the position file path for a subject/session pair.
func FileName(dir, sub string, ses int) string {
	return filepath.Join(dir, fmt.Sprintf("sub-%s_ses-%02d.yml", PadSubject(sub), ses))
}

// PadSubject left-pads subject ids with zeros to at least two characters.
// Every output and input file name uses it.
func PadSubject(sub string) string {
	for len(sub) < 2 {
		sub = "0" + sub
	}
	return sub
}

// Exists reports whether a position file has been written for this pair.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load reads a position file.
func Load(path string) (Info, error) {
	var info Info
	raw, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if err := yaml.Unmarshal(raw, &info); err != nil {
		return info, fmt.Errorf("decoding %q: %w", path, err)
	}
	return info, nil
}

// Save writes info to path, creating the parent directory.
func Save(path string, info Info) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("creating %q: %w", filepath.Dir(path), err)
	}
	raw, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding position info: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}
