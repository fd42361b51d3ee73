// terminal_piano.go - Computer keyboard piano shared by the terminal hosts

package main

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/term"
)

// Keyboard layout: the home row plays white keys, the row above plays black
// keys, starting at C of the current octave.
var pianoKeys = map[byte]int{
	'a': 0, 'w': 1, 's': 2, 'e': 3, 'd': 4, 'f': 5, 't': 6,
	'g': 7, 'y': 8, 'h': 9, 'u': 10, 'j': 11, 'k': 12, 'o': 13, 'l': 14,
}

const (
	PIANO_HOLD        = 600 * time.Millisecond // terminals send no key-up; notes release after this
	PIANO_VELOCITY    = 100
	PIANO_BASE_OCTAVE = 4
)

// TerminalHost reads raw stdin and plays the engine like a piano.
// Only instantiated in main.go for interactive use. Tests drive handleKey.
type TerminalHost struct {
	engine       *SF2Engine
	channel      uint8
	octave       int
	program      int
	held         map[uint8]time.Time
	quit         chan struct{}
	stopCh       chan struct{}
	done         chan struct{}
	stopped      sync.Once
	quitOnce     sync.Once
	fd           int
	nonblockSet  bool
	oldTermState *term.State
}

// NewTerminalHost creates a host adapter that sends key presses to engine
func NewTerminalHost(engine *SF2Engine, channel uint8, program int) *TerminalHost {
	return &TerminalHost{
		engine:  engine,
		channel: channel,
		octave:  PIANO_BASE_OCTAVE,
		program: program,
		held:    make(map[uint8]time.Time),
		quit:    make(chan struct{}),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Quit is closed when the user presses q or Ctrl-C
func (h *TerminalHost) Quit() <-chan struct{} { return h.quit }

func (h *TerminalHost) handleKey(b byte) {
	switch b {
	case 'q', 0x03:
		h.requestQuit()
		return
	case 'z':
		h.octave = max(h.octave-1, 0)
	case 'x':
		h.octave = min(h.octave+1, 9)
	case '-':
		h.setProgram(h.program - 1)
	case '=', '+':
		h.setProgram(h.program + 1)
	case ' ':
		h.engine.Send(MidiEvent{Type: MIDI_CONTROL_CHANGE, Channel: h.channel, Data1: SF2_CC_ALL_NOTES_OFF})
		clear(h.held)
	default:
		offset, ok := pianoKeys[b]
		if !ok {
			return
		}
		key := h.octave*12 + 12 + offset
		if key > 127 {
			return
		}
		note := uint8(key)
		h.engine.Send(MidiEvent{Type: MIDI_NOTE_ON, Channel: h.channel, Data1: note, Data2: PIANO_VELOCITY})
		h.held[note] = time.Now()
		return
	}
	h.printStatus()
}

func (h *TerminalHost) setProgram(p int) {
	h.program = (p + SF2_PROGRAM_COUNT) % SF2_PROGRAM_COUNT
	h.engine.Send(MidiEvent{Type: MIDI_PROGRAM_CHANGE, Channel: h.channel, Data1: uint8(h.program)})
}

func (h *TerminalHost) releaseExpired(now time.Time) {
	for note, at := range h.held {
		if now.Sub(at) >= PIANO_HOLD {
			h.engine.Send(MidiEvent{Type: MIDI_NOTE_OFF, Channel: h.channel, Data1: note})
			delete(h.held, note)
		}
	}
}

func (h *TerminalHost) printStatus() {
	name := "-"
	if bank := h.engine.Bank(); bank != nil {
		if d, err := bank.Descriptor(h.program); err == nil && d != nil {
			name = d.PresetName
		}
	}
	// Raw mode needs an explicit carriage return
	fmt.Printf("\r\x1b[Koctave %d  program %3d  %s  [z/x octave, -/= program, space silence, q quit]", h.octave, h.program, name)
}

func (h *TerminalHost) requestQuit() {
	h.quitOnce.Do(func() {
		close(h.quit)
	})
}

