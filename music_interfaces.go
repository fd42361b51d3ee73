// music_interfaces.go - Common interfaces between the engine, its hosts and loaders

package main

// AudioRenderable adds frames [start, end) into per-channel buffers.
// Implementations accumulate and never clear out.
type AudioRenderable interface {
	Render(start, end int, out [][]float32)
}

// MidiReceivable accepts scheduler events
type MidiReceivable interface {
	OnEvent(ev MidiEvent)
}

// BankInstaller takes decoded banks from a loader. Install may be called
// from any goroutine; the bank becomes audible at the next block boundary.
type BankInstaller interface {
	Install(bank *SF2Bank)
	Bank() *SF2Bank
}

// EventSink accepts events from input hosts (keyboard, MIDI port). Send
// never blocks and reports false when the event was dropped.
type EventSink interface {
	Send(ev MidiEvent) bool
}

var (
	_ BankInstaller = (*SF2Engine)(nil)
	_ EventSink     = (*SF2Engine)(nil)
)
