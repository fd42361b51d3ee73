// render_offline.go - Offline rendering of scores (SMF, Lua, JSON) to WAV

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	lua "github.com/yuin/gopher-lua"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Score event types
const (
	SCORE_NOTE    = "note" // on + off after Duration
	SCORE_ON      = "on"
	SCORE_OFF     = "off"
	SCORE_PROGRAM = "program"
	SCORE_CC      = "cc"

	SCORE_DEFAULT_TAIL = 1.0 // seconds rendered after the last event
)

// ScoreEvent is one timed instruction. Time and Duration are in seconds.
type ScoreEvent struct {
	Time       float64 `json:"time"`
	Type       string  `json:"type"`
	Channel    int     `json:"channel,omitempty"`
	Key        int     `json:"key,omitempty"`
	Velocity   int     `json:"velocity,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Program    int     `json:"program,omitempty"`
	Controller int     `json:"controller,omitempty"`
	Value      int     `json:"value,omitempty"`
}

// Score is a list of events plus the silence to render after them
type Score struct {
	Tail   *float64     `json:"tail,omitempty"`
	Events []ScoreEvent `json:"events"`
}

const scoreSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["events"],
  "properties": {
    "tail": {"type": "number", "minimum": 0, "maximum": 60},
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["time", "type"],
        "properties": {
          "time": {"type": "number", "minimum": 0},
          "type": {"enum": ["note", "on", "off", "program", "cc"]},
          "channel": {"type": "integer", "minimum": 0, "maximum": 15},
          "key": {"type": "integer", "minimum": 0, "maximum": 127},
          "velocity": {"type": "integer", "minimum": 0, "maximum": 127},
          "duration": {"type": "number", "minimum": 0},
          "program": {"type": "integer", "minimum": 0, "maximum": 127},
          "controller": {"type": "integer", "minimum": 0, "maximum": 127},
          "value": {"type": "integer", "minimum": 0, "maximum": 127}
        }
      }
    }
  }
}`

var compiledScoreSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(scoreSchema))
	if err != nil {
		return nil, errors.Wrap(err, "compiling score schema")
	}
	return schema, nil
})

// TailSeconds returns the configured tail or the default
func (s *Score) TailSeconds() float64 {
	if s.Tail != nil {
		return *s.Tail
	}
	return SCORE_DEFAULT_TAIL
}

// TimedEvent is a scheduler event at an absolute frame
type TimedEvent struct {
	Frame int64
	Event MidiEvent
}

// Timeline converts the score to frame-stamped events in time order.
// Events at the same frame keep score order, with note-ons expanded to an
// on/off pair.
func (s *Score) Timeline(sampleRate int) []TimedEvent {
	sr := float64(sampleRate)
	out := make([]TimedEvent, 0, len(s.Events)*2)
	frame := func(sec float64) int64 { return int64(sec*sr + 0.5) }
	for _, e := range s.Events {
		ch := uint8(e.Channel & 0x0F)
		at := frame(e.Time)
		switch e.Type {
		case SCORE_NOTE:
			vel := e.Velocity
			if vel == 0 {
				vel = 100
			}
			out = append(out,
				TimedEvent{Frame: at, Event: MidiEvent{Type: MIDI_NOTE_ON, Channel: ch, Data1: uint8(e.Key), Data2: uint8(vel)}},
				TimedEvent{Frame: frame(e.Time + e.Duration), Event: MidiEvent{Type: MIDI_NOTE_OFF, Channel: ch, Data1: uint8(e.Key)}})
		case SCORE_ON:
			out = append(out, TimedEvent{Frame: at, Event: MidiEvent{Type: MIDI_NOTE_ON, Channel: ch, Data1: uint8(e.Key), Data2: uint8(e.Velocity)}})
		case SCORE_OFF:
			out = append(out, TimedEvent{Frame: at, Event: MidiEvent{Type: MIDI_NOTE_OFF, Channel: ch, Data1: uint8(e.Key)}})
		case SCORE_PROGRAM:
			out = append(out, TimedEvent{Frame: at, Event: MidiEvent{Type: MIDI_PROGRAM_CHANGE, Channel: ch, Data1: uint8(e.Program)}})
		case SCORE_CC:
			out = append(out, TimedEvent{Frame: at, Event: MidiEvent{Type: MIDI_CONTROL_CHANGE, Channel: ch, Data1: uint8(e.Controller), Data2: uint8(e.Value)}})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frame < out[j].Frame })
	return out
}

// ParseScoreJSON validates data against the score schema and decodes it
func ParseScoreJSON(data []byte) (*Score, error) {
	schema, err := compiledScoreSchema()
	if err != nil {
		return nil, err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errors.Wrap(err, "reading score")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.Errorf("invalid score: %s", strings.Join(msgs, "; "))
	}
	var s Score
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "decoding score")
	}
	return &s, nil
}

// LoadScoreSMF reads a Standard MIDI File. Tempo changes are applied by
// the reader, so event times are absolute.
func LoadScoreSMF(r io.Reader) (*Score, error) {
	s := &Score{}
	tr := smf.ReadTracksFrom(r).Do(func(ev smf.TrackEvent) {
		me, ok := MidiEventFromMessage(midi.Message(ev.Message), 0)
		if !ok {
			return
		}
		se := ScoreEvent{Time: float64(ev.AbsMicroSeconds) / 1e6, Channel: int(me.Channel)}
		switch me.Type {
		case MIDI_NOTE_ON:
			se.Type, se.Key, se.Velocity = SCORE_ON, int(me.Data1), int(me.Data2)
		case MIDI_NOTE_OFF:
			se.Type, se.Key = SCORE_OFF, int(me.Data1)
		case MIDI_PROGRAM_CHANGE:
			se.Type, se.Program = SCORE_PROGRAM, int(me.Data1)
		case MIDI_CONTROL_CHANGE:
			se.Type, se.Controller, se.Value = SCORE_CC, int(me.Data1), int(me.Data2)
		}
		s.Events = append(s.Events, se)
	})
	if err := tr.Error(); err != nil {
		return nil, errors.Wrap(err, "reading MIDI file")
	}
	return s, nil
}

// LoadScoreLua runs a score script. The script calls:
//
//	note(time, key, velocity, duration [, channel])
//	on(time, key, velocity [, channel])
//	off(time, key [, channel])
//	program(time, program [, channel])
//	cc(time, controller, value [, channel])
//	tail(seconds)
func LoadScoreLua(ctx context.Context, src string) (*Score, error) {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	s := &Score{}
	add := func(e ScoreEvent) { s.Events = append(s.Events, e) }
	L.SetGlobal("note", L.NewFunction(func(L *lua.LState) int {
		add(ScoreEvent{Type: SCORE_NOTE, Time: float64(L.CheckNumber(1)), Key: L.CheckInt(2),
			Velocity: L.CheckInt(3), Duration: float64(L.CheckNumber(4)), Channel: L.OptInt(5, 0)})
		return 0
	}))
	L.SetGlobal("on", L.NewFunction(func(L *lua.LState) int {
		add(ScoreEvent{Type: SCORE_ON, Time: float64(L.CheckNumber(1)), Key: L.CheckInt(2),
			Velocity: L.CheckInt(3), Channel: L.OptInt(4, 0)})
		return 0
	}))
	L.SetGlobal("off", L.NewFunction(func(L *lua.LState) int {
		add(ScoreEvent{Type: SCORE_OFF, Time: float64(L.CheckNumber(1)), Key: L.CheckInt(2), Channel: L.OptInt(3, 0)})
		return 0
	}))
	L.SetGlobal("program", L.NewFunction(func(L *lua.LState) int {
		add(ScoreEvent{Type: SCORE_PROGRAM, Time: float64(L.CheckNumber(1)), Program: L.CheckInt(2), Channel: L.OptInt(3, 0)})
		return 0
	}))
	L.SetGlobal("cc", L.NewFunction(func(L *lua.LState) int {
		add(ScoreEvent{Type: SCORE_CC, Time: float64(L.CheckNumber(1)), Controller: L.CheckInt(2),
			Value: L.CheckInt(3), Channel: L.OptInt(4, 0)})
		return 0
	}))
	L.SetGlobal("tail", L.NewFunction(func(L *lua.LState) int {
		t := float64(L.CheckNumber(1))
		s.Tail = &t
		return 0
	}))

	if err := L.DoString(src); err != nil {
		return nil, errors.Wrap(err, "running score script")
	}
	return s, nil
}

// LoadScoreFile picks a score reader by file extension
func LoadScoreFile(ctx context.Context, path string) (*Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading score %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi", ".smf":
		return LoadScoreSMF(bytes.NewReader(data))
	case ".lua":
		return LoadScoreLua(ctx, string(data))
	case ".json":
		return ParseScoreJSON(data)
	}
	return nil, errors.Errorf("unsupported score type %q", filepath.Ext(path))
}

// OfflineConfig sets the render parameters
type OfflineConfig struct {
	SampleRate    int
	Channels      int
	Voices        int
	BlockSize     int
	Interpolation int
	Program       int // initial program on every channel
}

// RenderResult holds interleaved float frames
type RenderResult struct {
	SampleRate int
	Channels   int
	Frames     int
	Data       []float32
	Peak       float32
}

// RenderScore renders a score with the engine in fixed-size blocks, each
// event landing at its exact frame
func RenderScore(ctx context.Context, bank *SF2Bank, score *Score, cfg OfflineConfig) (*RenderResult, error) {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = SF2_DEFAULT_BLOCK
	}
	engine := NewSF2Engine(cfg.SampleRate, cfg.Channels, cfg.Voices, cfg.BlockSize)
	engine.Install(bank)
	engine.Scheduler().SetInterpolation(cfg.Interpolation)

	timeline := score.Timeline(cfg.SampleRate)
	var last int64
	if len(timeline) > 0 {
		last = timeline[len(timeline)-1].Frame
	}
	total := int(last + int64(score.TailSeconds()*float64(cfg.SampleRate)))

	nch := engine.Channels()
	res := &RenderResult{SampleRate: cfg.SampleRate, Channels: nch, Frames: total, Data: make([]float32, total*nch)}
	block := make([][]float32, nch)
	for i := range block {
		block[i] = make([]float32, cfg.BlockSize)
	}

	// Initial program goes through the block path so it lands after install
	pending := make([]MidiEvent, 0, 64)
	for ch := 0; ch < SF2_MIDI_CHANNELS; ch++ {
		pending = append(pending, MidiEvent{Type: MIDI_PROGRAM_CHANGE, Channel: uint8(ch), Data1: uint8(cfg.Program)})
	}

	next := 0
	for pos := 0; pos < total; pos += cfg.BlockSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := min(cfg.BlockSize, total-pos)
		for next < len(timeline) && timeline[next].Frame < int64(pos+n) {
			ev := timeline[next].Event
			ev.Offset = int(timeline[next].Frame - int64(pos))
			pending = append(pending, ev)
			next++
		}
		for _, ch := range block {
			clear(ch[:n])
		}
		engine.ProcessBlock(pending, block, n)
		pending = pending[:0]

		for i := 0; i < n; i++ {
			for c := 0; c < nch; c++ {
				v := block[c][i]
				res.Data[(pos+i)*nch+c] = v
				if v < 0 {
					v = -v
				}
				res.Peak = max(res.Peak, v)
			}
		}
	}
	return res, nil
}

// WriteWAV encodes the result as 16-bit PCM, clamping to full scale
func WriteWAV(w io.WriteSeeker, res *RenderResult) error {
	enc := wav.NewEncoder(w, res.SampleRate, 16, res.Channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: res.Channels,
			SampleRate:  res.SampleRate,
		},
		Data:           make([]int, len(res.Data)),
		SourceBitDepth: 16,
	}
	for i, v := range res.Data {
		v = min(max(v, -1), 1)
		buf.Data[i] = int(v * 32767)
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "encoding WAV")
	}
	return errors.Wrap(enc.Close(), "finishing WAV")
}

// WriteWAVFile renders res to path
func WriteWAVFile(path string, res *RenderResult) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()
	return WriteWAV(f, res)
}
