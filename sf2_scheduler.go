// sf2_scheduler.go - Voice allocation, MIDI dispatch and block rendering

package main

import (
	"gitlab.com/gomidi/midi/v2"
)

// MidiEventType identifies a scheduler event
type MidiEventType int

const (
	MIDI_NOTE_ON MidiEventType = iota
	MIDI_NOTE_OFF
	MIDI_PROGRAM_CHANGE
	MIDI_CONTROL_CHANGE
)

// MidiEvent is a channel message with a frame offset into the block being
// rendered. Data1 is the key, program or controller; Data2 the velocity or
// controller value.
type MidiEvent struct {
	Type    MidiEventType
	Channel uint8
	Data1   uint8
	Data2   uint8
	Offset  int
}

// MidiEventFromMessage converts a decoded MIDI message. Note-on with
// velocity 0 becomes note-off. ok is false for messages the scheduler
// does not handle.
func MidiEventFromMessage(msg midi.Message, offset int) (ev MidiEvent, ok bool) {
	var ch, a, b uint8
	switch {
	case msg.GetNoteStart(&ch, &a, &b):
		return MidiEvent{Type: MIDI_NOTE_ON, Channel: ch, Data1: a, Data2: b, Offset: offset}, true
	case msg.GetNoteEnd(&ch, &a):
		return MidiEvent{Type: MIDI_NOTE_OFF, Channel: ch, Data1: a, Offset: offset}, true
	case msg.GetProgramChange(&ch, &a):
		return MidiEvent{Type: MIDI_PROGRAM_CHANGE, Channel: ch, Data1: a, Offset: offset}, true
	case msg.GetControlChange(&ch, &a, &b):
		return MidiEvent{Type: MIDI_CONTROL_CHANGE, Channel: ch, Data1: a, Data2: b, Offset: offset}, true
	}
	return MidiEvent{}, false
}

// Message converts the event back to a MIDI message
func (ev MidiEvent) Message() midi.Message {
	switch ev.Type {
	case MIDI_NOTE_ON:
		return midi.NoteOn(ev.Channel, ev.Data1, ev.Data2)
	case MIDI_NOTE_OFF:
		return midi.NoteOff(ev.Channel, ev.Data1)
	case MIDI_PROGRAM_CHANGE:
		return midi.ProgramChange(ev.Channel, ev.Data1)
	default:
		return midi.ControlChange(ev.Channel, ev.Data1, ev.Data2)
	}
}

// SF2Scheduler owns a fixed voice pool. All methods run on the render
// thread; nothing here locks or allocates after construction.
type SF2Scheduler struct {
	bank       *SF2Bank
	voices     []*Voice
	channels   int
	outputRate float64
	interp     int

	programs    [SF2_MIDI_CHANNELS]uint8
	descriptors [SF2_MIDI_CHANNELS]*PlaybackDescriptor

	clock  uint64 // frames rendered
	serial uint64
	steals uint64
}

var (
	_ AudioRenderable = (*SF2Scheduler)(nil)
	_ MidiReceivable  = (*SF2Scheduler)(nil)
)

// NewSF2Scheduler builds a pool of voices, each with one part per output
// channel. bank may be nil; every note is then silent until SetBank.
func NewSF2Scheduler(bank *SF2Bank, channels int, outputRate float64, voices int) *SF2Scheduler {
	s := &SF2Scheduler{
		channels:   max(channels, 1),
		outputRate: outputRate,
		voices:     make([]*Voice, max(voices, 1)),
	}
	for i := range s.voices {
		s.voices[i] = NewVoice(s.channels)
	}
	s.SetBank(bank)
	return s
}

// SetBank installs a bank at a block boundary. Sounding voices are cut and
// every channel keeps its program number against the new bank.
func (s *SF2Scheduler) SetBank(bank *SF2Bank) {
	s.bank = bank
	for _, v := range s.voices {
		v.Reset()
		v.SetDescriptor(nil)
	}
	for ch := range s.descriptors {
		s.descriptors[ch] = nil
		if bank != nil {
			if d, err := bank.Descriptor(int(s.programs[ch])); err == nil {
				s.descriptors[ch] = d
			}
		}
	}
	for _, v := range s.voices {
		v.SetDescriptor(s.descriptors[0])
	}
}

func (s *SF2Scheduler) Bank() *SF2Bank { return s.bank }

// SetInterpolation selects the read mode for all voices
func (s *SF2Scheduler) SetInterpolation(mode int) {
	s.interp = mode
	for _, v := range s.voices {
		v.SetInterpolation(mode)
	}
}

func (s *SF2Scheduler) Voices() []*Voice { return s.voices }

func (s *SF2Scheduler) OutputRate() float64 { return s.outputRate }

func (s *SF2Scheduler) Channels() int { return s.channels }

// Clock returns the number of frames rendered so far
func (s *SF2Scheduler) Clock() uint64 { return s.clock }

// Steals returns how many voices have been reclaimed
func (s *SF2Scheduler) Steals() uint64 { return s.steals }

// Program returns the current program on a MIDI channel
func (s *SF2Scheduler) Program(channel uint8) uint8 {
	return s.programs[channel&0x0F]
}

// ActiveVoices counts sounding voices
func (s *SF2Scheduler) ActiveVoices() int {
	n := 0
	for _, v := range s.voices {
		if v.State() == VOICE_ACTIVE {
			n++
		}
	}
	return n
}

// NoteOn retriggers any voice already playing this channel and note, then
// starts the note on an idle voice or steals the oldest one
func (s *SF2Scheduler) NoteOn(channel, note, velocity uint8) {
	channel &= 0x0F
	if velocity == 0 {
		s.NoteOff(channel, note)
		return
	}
	for _, v := range s.voices {
		if v.Matches(channel, note) {
			v.NoteOff()
		}
	}

	v := s.allocate()
	v.SetDescriptor(s.descriptors[channel])
	s.serial++
	v.NoteOn(channel, note, velocity, s.clock, s.serial, s.outputRate)
}

func (s *SF2Scheduler) allocate() *Voice {
	var oldest *Voice
	for _, v := range s.voices {
		if v.State() != VOICE_ACTIVE {
			return v
		}
		if oldest == nil || v.Timestamp < oldest.Timestamp ||
			(v.Timestamp == oldest.Timestamp && v.Serial < oldest.Serial) {
			oldest = v
		}
	}
	oldest.Steal()
	s.steals++
	return oldest
}

// NoteOff ends every voice playing this channel and note
func (s *SF2Scheduler) NoteOff(channel, note uint8) {
	channel &= 0x0F
	for _, v := range s.voices {
		if v.Matches(channel, note) {
			v.NoteOff()
		}
	}
}

// ProgramChange selects a program for a channel. Idle voices pick up the
// new descriptor; sounding voices keep theirs until they end. A program
// that fails to resolve leaves the channel unchanged.
func (s *SF2Scheduler) ProgramChange(channel, program uint8) error {
	channel &= 0x0F
	program &= 0x7F
	if s.bank == nil {
		s.programs[channel] = program
		return ErrSF2NoPresets
	}
	d, err := s.bank.Descriptor(int(program))
	if err != nil {
		return err
	}
	s.programs[channel] = program
	s.descriptors[channel] = d
	for _, v := range s.voices {
		if v.State() == VOICE_IDLE {
			v.SetDescriptor(d)
		}
	}
	return nil
}

// ControlChange handles the channel mode messages that end notes
func (s *SF2Scheduler) ControlChange(channel, controller, value uint8) {
	switch controller {
	case SF2_CC_ALL_SOUND_OFF, SF2_CC_ALL_NOTES_OFF:
		s.channelOff(channel & 0x0F)
	}
}

func (s *SF2Scheduler) channelOff(channel uint8) {
	for _, v := range s.voices {
		if v.State() == VOICE_ACTIVE && v.Channel == channel {
			v.Reset()
		}
	}
}

// AllNotesOff silences every voice
func (s *SF2Scheduler) AllNotesOff() {
	for _, v := range s.voices {
		v.Reset()
	}
}

// OnEvent dispatches one event immediately
func (s *SF2Scheduler) OnEvent(ev MidiEvent) {
	switch ev.Type {
	case MIDI_NOTE_ON:
		s.NoteOn(ev.Channel, ev.Data1, ev.Data2)
	case MIDI_NOTE_OFF:
		s.NoteOff(ev.Channel, ev.Data1)
	case MIDI_PROGRAM_CHANGE:
		_ = s.ProgramChange(ev.Channel, ev.Data1)
	case MIDI_CONTROL_CHANGE:
		s.ControlChange(ev.Channel, ev.Data1, ev.Data2)
	}
}

// HandleMessage dispatches a raw MIDI message
func (s *SF2Scheduler) HandleMessage(msg midi.Message) {
	if ev, ok := MidiEventFromMessage(msg, 0); ok {
		s.OnEvent(ev)
	}
}

// Render adds every active voice into out for frames [start, end)
func (s *SF2Scheduler) Render(start, end int, out [][]float32) {
	if end <= start {
		return
	}
	for _, v := range s.voices {
		v.Process(start, end, out)
	}
	s.clock += uint64(end - start)
}

// ProcessBlock renders [start, end) applying each event at its frame
// offset. Events are expected in offset order; late ones apply at the
// current position.
func (s *SF2Scheduler) ProcessBlock(events []MidiEvent, start, end int, out [][]float32) {
	pos := start
	for _, ev := range events {
		at := min(max(ev.Offset, pos), end)
		if at > pos {
			s.Render(pos, at, out)
			pos = at
		}
		s.OnEvent(ev)
	}
	if pos < end {
		s.Render(pos, end, out)
	}
}
