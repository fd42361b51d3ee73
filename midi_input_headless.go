//go:build headless

// midi_input_headless.go - MIDI input stubs for headless builds

package main

import (
	"errors"
	"log/slog"
)

func init() {
	compiledFeatures = append(compiledFeatures, "midi:headless")
}

var errNoMidiDevices = errors.New("MIDI input not available in headless builds")

type MidiInput struct{}

func ListMidiInputs() ([]string, error) {
	return nil, errNoMidiDevices
}

func OpenMidiInput(match string, sink EventSink, logger *slog.Logger) (*MidiInput, error) {
	return nil, errNoMidiDevices
}

func (m *MidiInput) Name() string { return "" }

func (m *MidiInput) Close() {}
