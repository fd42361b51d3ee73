//go:build !headless

// midi_input.go - Live MIDI input through rtmidi

package main

import (
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func init() {
	compiledFeatures = append(compiledFeatures, "midi:rtmidi")
}

// MidiInput forwards messages from a hardware port into the engine queue
type MidiInput struct {
	drv    *rtmididrv.Driver
	inPort drivers.In
	stop   func()
	sink   EventSink
	logger *slog.Logger
}

// ListMidiInputs returns the names of the available input ports
func ListMidiInputs() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, err
	}
	defer drv.Close()
	ins, err := drv.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

// OpenMidiInput opens the first port whose name contains match (any port
// when match is empty) and starts listening
func OpenMidiInput(match string, sink EventSink, logger *slog.Logger) (*MidiInput, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, err
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, err
	}
	var found drivers.In
	for _, in := range ins {
		if match == "" || strings.Contains(strings.ToLower(in.String()), strings.ToLower(match)) {
			found = in
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, errors.Errorf("MIDI input %q not found", match)
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, err
	}

	m := &MidiInput{drv: drv, inPort: found, sink: sink, logger: logger}
	stop, err := midi.ListenTo(found, m.onMessage, midi.HandleError(func(listenErr error) {
		logger.Warn("MIDI listener error", slog.String("device", found.String()), slog.Any("err", listenErr))
	}))
	if err != nil {
		_ = found.Close()
		drv.Close()
		return nil, err
	}
	m.stop = stop
	logger.Info("MIDI input connected", slog.String("device", found.String()))
	return m, nil
}

func (m *MidiInput) onMessage(msg midi.Message, timestampms int32) {
	ev, ok := MidiEventFromMessage(msg, 0)
	if !ok {
		return
	}
	if !m.sink.Send(ev) {
		m.logger.Debug("event queue full, dropping", slog.String("msg", msg.String()))
	}
}

// Name returns the connected port name
func (m *MidiInput) Name() string {
	return m.inPort.String()
}

// Close stops listening and releases the port
func (m *MidiInput) Close() {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	if m.inPort != nil {
		_ = m.inPort.Close()
		m.inPort = nil
	}
	if m.drv != nil {
		m.drv.Close()
		m.drv = nil
	}
}
