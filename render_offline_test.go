// render_offline_test.go - Tests for score readers, timeline building and WAV rendering

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestParseScoreJSON_Valid(t *testing.T) {
	data := []byte(`{
		"tail": 0.5,
		"events": [
			{"time": 0, "type": "program", "program": 1},
			{"time": 0.25, "type": "note", "key": 64, "velocity": 90, "duration": 0.5, "channel": 2},
			{"time": 1, "type": "cc", "controller": 123}
		]
	}`)
	s, err := ParseScoreJSON(data)
	if err != nil {
		t.Fatalf("ParseScoreJSON failed: %v", err)
	}
	if len(s.Events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(s.Events))
	}
	if s.TailSeconds() != 0.5 {
		t.Errorf("Expected tail 0.5, got %g", s.TailSeconds())
	}
	n := s.Events[1]
	if n.Type != SCORE_NOTE || n.Key != 64 || n.Velocity != 90 || n.Channel != 2 || n.Duration != 0.5 {
		t.Errorf("Unexpected note event %+v", n)
	}

	s, err = ParseScoreJSON([]byte(`{"events": []}`))
	if err != nil {
		t.Fatalf("ParseScoreJSON failed on empty score: %v", err)
	}
	if s.TailSeconds() != SCORE_DEFAULT_TAIL {
		t.Errorf("Expected default tail, got %g", s.TailSeconds())
	}
}

func TestParseScoreJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"events": [`},
		{"missing events", `{"tail": 1}`},
		{"unknown type", `{"events": [{"time": 0, "type": "bend"}]}`},
		{"key out of range", `{"events": [{"time": 0, "type": "on", "key": 128}]}`},
		{"negative time", `{"events": [{"time": -1, "type": "off"}]}`},
		{"channel out of range", `{"events": [{"time": 0, "type": "on", "channel": 16}]}`},
		{"tail too long", `{"tail": 600, "events": []}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseScoreJSON([]byte(tc.data)); err == nil {
				t.Errorf("Expected an error for %s", tc.data)
			}
		})
	}
}

func TestScore_Timeline(t *testing.T) {
	s := &Score{Events: []ScoreEvent{
		{Time: 1, Type: SCORE_OFF, Key: 60},
		{Time: 0, Type: SCORE_NOTE, Key: 62, Duration: 0.5},
		{Time: 1, Type: SCORE_ON, Key: 64, Velocity: 80, Channel: 17},
		{Time: 0, Type: SCORE_PROGRAM, Program: 3},
	}}
	tl := s.Timeline(1000)

	want := []struct {
		frame int64
		typ   MidiEventType
		data1 uint8
	}{
		{0, MIDI_NOTE_ON, 62},
		{0, MIDI_PROGRAM_CHANGE, 3},
		{500, MIDI_NOTE_OFF, 62},
		{1000, MIDI_NOTE_OFF, 60},
		{1000, MIDI_NOTE_ON, 64},
	}
	if len(tl) != len(want) {
		t.Fatalf("Expected %d timed events, got %d", len(want), len(tl))
	}
	for i, w := range want {
		got := tl[i]
		if got.Frame != w.frame || got.Event.Type != w.typ || got.Event.Data1 != w.data1 {
			t.Errorf("event %d: expected frame %d type %#x data %d, got %+v", i, w.frame, w.typ, w.data1, got)
		}
	}
	if tl[0].Event.Data2 != 100 {
		t.Errorf("Expected default note velocity 100, got %d", tl[0].Event.Data2)
	}
	if tl[4].Event.Channel != 1 {
		t.Errorf("Expected channel masked to 4 bits, got %d", tl[4].Event.Channel)
	}
}

func TestLoadScoreLua(t *testing.T) {
	src := `
		program(0, 1)
		for i = 0, 3 do
			note(i * 0.25, 60 + i, 100, 0.2)
		end
		on(1, 72, 90, 3)
		off(1.5, 72, 3)
		cc(2, 123, 0)
		tail(0.25)
	`
	s, err := LoadScoreLua(context.Background(), src)
	if err != nil {
		t.Fatalf("LoadScoreLua failed: %v", err)
	}
	if len(s.Events) != 8 {
		t.Fatalf("Expected 8 events, got %d", len(s.Events))
	}
	if s.TailSeconds() != 0.25 {
		t.Errorf("Expected tail 0.25, got %g", s.TailSeconds())
	}
	if e := s.Events[4]; e.Type != SCORE_NOTE || e.Key != 63 || e.Time != 0.75 {
		t.Errorf("Unexpected fourth note %+v", e)
	}
	if e := s.Events[5]; e.Type != SCORE_ON || e.Channel != 3 || e.Velocity != 90 {
		t.Errorf("Unexpected on event %+v", e)
	}

	if _, err := LoadScoreLua(context.Background(), "note(0, 60"); err == nil {
		t.Error("Expected a syntax error")
	}
	if _, err := LoadScoreLua(context.Background(), `note("soon", 60, 100, 1)`); err == nil {
		t.Error("Expected an argument error")
	}
}

func TestLoadScoreSMF(t *testing.T) {
	var tr smf.Track
	tr.Add(0, midi.ProgramChange(0, 1))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(960, midi.NoteOff(0, 60))
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(960)
	if err := s.Add(tr); err != nil {
		t.Fatalf("Add track failed: %v", err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	score, err := LoadScoreSMF(&buf)
	if err != nil {
		t.Fatalf("LoadScoreSMF failed: %v", err)
	}
	if len(score.Events) != 3 {
		t.Fatalf("Expected 3 channel events, got %+v", score.Events)
	}
	if e := score.Events[0]; e.Type != SCORE_PROGRAM || e.Program != 1 {
		t.Errorf("Expected program change first, got %+v", e)
	}
	if e := score.Events[1]; e.Type != SCORE_ON || e.Key != 60 || e.Velocity != 100 {
		t.Errorf("Expected note on, got %+v", e)
	}
	// One quarter note at the default 120 BPM
	if e := score.Events[2]; e.Type != SCORE_OFF || !approxEqual(e.Time, 0.5, 1e-3) {
		t.Errorf("Expected note off at 0.5s, got %+v", e)
	}
}

func TestLoadScoreFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "score.json")
	if err := os.WriteFile(jsonPath, []byte(`{"events": [{"time": 0, "type": "note", "key": 60, "duration": 1}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	luaPath := filepath.Join(dir, "score.lua")
	if err := os.WriteFile(luaPath, []byte(`note(0, 60, 100, 1)`), 0o644); err != nil {
		t.Fatal(err)
	}
	txtPath := filepath.Join(dir, "score.txt")
	if err := os.WriteFile(txtPath, []byte(`60`), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{jsonPath, luaPath} {
		s, err := LoadScoreFile(context.Background(), p)
		if err != nil {
			t.Fatalf("LoadScoreFile(%s) failed: %v", filepath.Base(p), err)
		}
		if len(s.Events) != 1 || s.Events[0].Key != 60 {
			t.Errorf("%s: unexpected events %+v", filepath.Base(p), s.Events)
		}
	}
	if _, err := LoadScoreFile(context.Background(), txtPath); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("Expected unsupported score type, got %v", err)
	}
	if _, err := LoadScoreFile(context.Background(), filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestRenderScore(t *testing.T) {
	bank := mustBank(t, newPianoBuilder())
	tail := 0.1
	score := &Score{Tail: &tail, Events: []ScoreEvent{
		{Time: 0, Type: SCORE_NOTE, Key: 60, Velocity: 127, Duration: 0.1},
	}}
	cfg := OfflineConfig{SampleRate: 44100, Channels: 2, Voices: 4, BlockSize: 64}

	res, err := RenderScore(context.Background(), bank, score, cfg)
	if err != nil {
		t.Fatalf("RenderScore failed: %v", err)
	}
	if res.Frames != 8820 {
		t.Errorf("Expected 4410 frames plus a 4410 frame tail, got %d", res.Frames)
	}
	if len(res.Data) != res.Frames*2 {
		t.Errorf("Expected interleaved stereo data, got %d samples", len(res.Data))
	}
	if res.Peak == 0 || res.Peak > SF2_VOICE_HEADROOM {
		t.Errorf("Expected peak within (0, %g], got %g", SF2_VOICE_HEADROOM, res.Peak)
	}
	for i := 4410 * 2; i < len(res.Data); i++ {
		if res.Data[i] != 0 {
			t.Fatalf("Expected silence after the note off, sample %d = %g", i, res.Data[i])
		}
	}
}

func TestRenderScore_Cancelled(t *testing.T) {
	bank := mustBank(t, newPianoBuilder())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RenderScore(ctx, bank, &Score{}, OfflineConfig{SampleRate: 44100, Channels: 1, Voices: 1})
	if err == nil {
		t.Error("Expected a cancelled render to fail")
	}
}

func TestWriteWAV(t *testing.T) {
	res := &RenderResult{
		SampleRate: 22050,
		Channels:   2,
		Frames:     2,
		Data:       []float32{0.5, -2, 0, 1},
	}
	path := filepath.Join(t.TempDir(), "out.wav")
	if err := WriteWAVFile(path, res); err != nil {
		t.Fatalf("WriteWAVFile failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("Expected a valid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		t.Fatalf("FwdToPCM failed: %v", err)
	}
	format := dec.Format()
	if format.SampleRate != 22050 || format.NumChannels != 2 || dec.SampleBitDepth() != 16 {
		t.Fatalf("Unexpected format %d Hz %d ch %d bit", format.SampleRate, format.NumChannels, dec.SampleBitDepth())
	}
	buf := &audio.IntBuffer{Format: format, Data: make([]int, 4), SourceBitDepth: 16}
	if _, err := dec.PCMBuffer(buf); err != nil {
		t.Fatalf("PCMBuffer failed: %v", err)
	}
	want := []int{16383, -32767, 0, 32767}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], buf.Data[i])
		}
	}
}
