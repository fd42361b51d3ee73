//go:build !linux || !alsa || headless

package main

import "github.com/pkg/errors"

func newALSAOutput(sampleRate, channels int) (AudioOutput, error) {
	return nil, errors.Errorf("ALSA backend not compiled in (build with -tags alsa on linux)")
}
