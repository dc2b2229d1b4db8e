package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/carbocation/pfx"

	"github.com/danceqc/posemisc"
	"github.com/danceqc/posemisc/render"
	"github.com/danceqc/posemisc/score"
	"github.com/danceqc/posemisc/strategy"
	"github.com/danceqc/posemisc/temporal"
)

// ErrConfiguration marks fatal tuning mistakes caught before any frame is
// touched: weight sums, band ordering, out-of-range thresholds.
var ErrConfiguration = errors.New("invalid pipeline configuration")

// Config collects every stage's tuning in one JSON document so a run is fully
// described by a single file.
type Config struct {
	ConfigPath string `json:"-"`

	Score    score.Config    `json:"score"`
	Strategy strategy.Config `json:"strategy"`
	Merge    temporal.Config `json:"merge"`
	Style    render.Style    `json:"render"`

	// Workers bounds the candidate evaluations running at once per frame.
	// 1 means serial; the selected result is identical either way.
	Workers int `json:"workers"`

	// LowPassCutoff, when nonzero, runs a low-pass smoothing pass over the
	// merged tracks with this cutoff ratio (0 < wc < pi).
	LowPassCutoff float64 `json:"low_pass_cutoff"`
}

// DefaultConfig returns the production tuning for every stage.
func DefaultConfig() Config {
	return Config{
		Score:    score.DefaultConfig(),
		Strategy: strategy.DefaultConfig(),
		Merge:    temporal.DefaultConfig(),
		Style:    render.DefaultStyle(),
		Workers:  4,
	}
}

// ParseConfigFromPath reads a JSON config file. Fields absent from the file
// keep their production defaults, so a config that only overrides one knob
// stays valid.
func ParseConfigFromPath(path string) (Config, error) {
	out := DefaultConfig()
	out.ConfigPath = path

	f, err := os.Open(posemisc.ExpandHome(path))
	if err != nil {
		return out, pfx.Err(err)
	}
	defer f.Close()

	err = json.NewDecoder(f).Decode(&out)
	if err != nil {
		if e, ok := err.(*json.SyntaxError); ok {
			log.Printf("syntax error at byte offset %d", e.Offset)
			return out, pfx.Err(err)
		}

		return out, pfx.Err(err)
	}

	out.ConfigPath = path

	return out, out.Validate()
}

// Validate checks every stage's tuning and wraps the first violation in
// ErrConfiguration.
func (c Config) Validate() error {
	if _, err := score.New(c.Score); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if c.Strategy.BaseConfidence <= 0 || c.Strategy.BaseConfidence > 1 {
		return fmt.Errorf("%w: strategy base_confidence must be in (0,1], got %f", ErrConfiguration, c.Strategy.BaseConfidence)
	}

	if z := c.Strategy.ZoomFactor; z != 0 && z <= 1 {
		return fmt.Errorf("%w: strategy zoom_factor must exceed 1 when set, got %f", ErrConfiguration, z)
	}

	if err := c.Merge.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if _, err := render.New(c.Style); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrConfiguration, c.Workers)
	}

	if c.LowPassCutoff < 0 {
		return fmt.Errorf("%w: low_pass_cutoff must not be negative, got %f", ErrConfiguration, c.LowPassCutoff)
	}

	return nil
}

// WriteConfig writes the config as indented JSON, the same shape
// ParseConfigFromPath reads.
func (c Config) WriteConfig(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	return pfx.Err(f.Close())
}
