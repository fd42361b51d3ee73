// config.go - Command configuration, validation and logger setup

package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// SynthConfig is shared by every command
type SynthConfig struct {
	BankPath      string
	BankDir       string
	SampleRate    int
	Channels      int
	Voices        int
	BlockSize     int
	Bank          int
	Program       int
	Channel       int
	Interpolation string
	Backend       string
	LogLevel      string
	LogJSON       bool
}

func defaultSynthConfig() SynthConfig {
	return SynthConfig{
		SampleRate:    SF2_DEFAULT_SAMPLE_RATE,
		Channels:      SF2_DEFAULT_CHANNELS,
		Voices:        SF2_DEFAULT_VOICES,
		BlockSize:     SF2_DEFAULT_BLOCK,
		Interpolation: "nearest",
		Backend:       AUDIO_BACKEND_OTO,
		LogLevel:      "info",
	}
}

// Validate checks ranges and expands ~ in paths
func (c *SynthConfig) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return errors.Errorf("sample rate %d out of range 8000-192000", c.SampleRate)
	}
	if c.Channels < 1 || c.Channels > 2 {
		return errors.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.Voices < 1 || c.Voices > 256 {
		return errors.Errorf("voices must be 1-256, got %d", c.Voices)
	}
	if c.BlockSize < 16 || c.BlockSize > 8192 {
		return errors.Errorf("block size must be 16-8192, got %d", c.BlockSize)
	}
	if c.Bank < 0 || c.Bank > 16383 {
		return errors.Errorf("bank must be 0-16383, got %d", c.Bank)
	}
	if c.Program < 0 || c.Program > 127 {
		return errors.Errorf("program must be 0-127, got %d", c.Program)
	}
	if c.Channel < 0 || c.Channel > 15 {
		return errors.Errorf("channel must be 0-15, got %d", c.Channel)
	}
	if _, err := parseInterpolation(c.Interpolation); err != nil {
		return err
	}
	var err error
	if c.BankPath, err = expandPath(c.BankPath); err != nil {
		return err
	}
	if c.BankDir, err = expandPath(c.BankDir); err != nil {
		return err
	}
	return nil
}

// InterpolationMode returns the Part read mode
func (c *SynthConfig) InterpolationMode() int {
	mode, _ := parseInterpolation(c.Interpolation)
	return mode
}

// Offline returns the render parameters for this configuration
func (c *SynthConfig) Offline() OfflineConfig {
	return OfflineConfig{
		SampleRate:    c.SampleRate,
		Channels:      c.Channels,
		Voices:        c.Voices,
		BlockSize:     c.BlockSize,
		Interpolation: c.InterpolationMode(),
		Program:       c.Program,
	}
}

func parseInterpolation(s string) (int, error) {
	switch strings.ToLower(s) {
	case "", "nearest":
		return SF2_INTERP_NEAREST, nil
	case "linear":
		return SF2_INTERP_LINEAR, nil
	}
	return 0, errors.Errorf("unknown interpolation %q (nearest, linear)", s)
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	out, err := homedir.Expand(p)
	if err != nil {
		return "", errors.Wrapf(err, "expanding %s", p)
	}
	return out, nil
}

// newLogger builds the process logger
func newLogger(w io.Writer, level string, json bool) (*slog.Logger, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Errorf("unknown log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lv}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
