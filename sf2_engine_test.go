// sf2_engine_test.go - Tests for bank hand-off, the live event queue and interleaved reads

package main

import (
	"sync"
	"testing"
)

func TestEngine_SilentWithoutBank(t *testing.T) {
	e := NewSF2Engine(44100, 2, 4, 64)
	e.Send(MidiEvent{Type: MIDI_NOTE_ON, Channel: 0, Data1: 60, Data2: 100})

	out := newBlock(2, 64)
	e.RenderBlock(out, 64)
	if blockPeak(out) != 0 {
		t.Error("Expected silence with no bank installed")
	}
	if e.Bank() != nil {
		t.Error("Expected no installed bank")
	}
}

func TestEngine_InstallAtBlockBoundary(t *testing.T) {
	e := NewSF2Engine(44100, 2, 4, 64)
	bank := mustBank(t, newPianoBuilder())
	bank.Warm()

	e.Install(bank)
	if e.Bank() != nil {
		t.Error("Expected bank to stay pending until the next block")
	}

	e.Send(MidiEvent{Type: MIDI_NOTE_ON, Channel: 0, Data1: 60, Data2: 127})
	out := newBlock(2, 64)
	e.RenderBlock(out, 64)
	if e.Bank() != bank {
		t.Fatal("Expected bank installed at the block boundary")
	}
	if blockPeak(out) == 0 {
		t.Error("Expected the queued note to sound against the new bank")
	}

	// A second install cuts the sounding voice
	other := mustBank(t, newPianoBuilder())
	e.Install(other)
	out = newBlock(2, 64)
	e.RenderBlock(out, 64)
	if e.Scheduler().ActiveVoices() != 0 {
		t.Error("Expected bank switch to cut voices")
	}
	if e.Bank() != other {
		t.Error("Expected the newer bank installed")
	}
}

func TestEngine_LatestInstallWins(t *testing.T) {
	e := NewSF2Engine(44100, 1, 2, 32)
	a := mustBank(t, newPianoBuilder())
	b := mustBank(t, twoPresetBuilder())
	e.Install(a)
	e.Install(b)
	e.RenderBlock(newBlock(1, 32), 32)
	if e.Bank() != b {
		t.Error("Expected the later Install to replace the pending bank")
	}
}

func TestEngine_SendDropsWhenFull(t *testing.T) {
	e := NewSF2Engine(44100, 2, 4, 64)
	for i := 0; i < SF2_EVENT_QUEUE; i++ {
		if !e.Send(MidiEvent{Type: MIDI_NOTE_OFF, Data1: uint8(i & 0x7F)}) {
			t.Fatalf("Expected event %d to be queued", i)
		}
	}
	if e.Send(MidiEvent{Type: MIDI_NOTE_OFF}) {
		t.Error("Expected Send to fail on a full queue")
	}
	if e.Dropped() != 1 {
		t.Errorf("Expected 1 dropped event, got %d", e.Dropped())
	}

	e.RenderBlock(newBlock(2, 64), 64)
	if !e.Send(MidiEvent{Type: MIDI_NOTE_OFF}) {
		t.Error("Expected the queue to drain at the block boundary")
	}
}

func TestEngine_ConcurrentSend(t *testing.T) {
	e := NewSF2Engine(44100, 2, 8, 64)
	e.Install(mustBank(t, newPianoBuilder()))

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(ch uint8) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e.Send(MidiEvent{Type: MIDI_NOTE_ON, Channel: ch, Data1: uint8(40 + i%40), Data2: 100})
				e.Send(MidiEvent{Type: MIDI_NOTE_OFF, Channel: ch, Data1: uint8(40 + i%40)})
			}
		}(uint8(g))
	}
	out := newBlock(2, 64)
	for i := 0; i < 50; i++ {
		e.RenderBlock(out, 64)
	}
	wg.Wait()
}

func TestEngine_ProcessBlock(t *testing.T) {
	e := NewSF2Engine(44100, 2, 4, 128)
	e.Install(mustBank(t, newPianoBuilder()))

	out := newBlock(2, 128)
	e.ProcessBlock([]MidiEvent{{Type: MIDI_NOTE_ON, Data1: 60, Data2: 127, Offset: 100}}, out, 128)
	for i := 0; i < 100; i++ {
		if out[0][i] != 0 {
			t.Fatalf("Expected silence before offset 100, frame %d = %g", i, out[0][i])
		}
	}
	if e.Scheduler().ActiveVoices() != 1 {
		t.Error("Expected one voice after the block")
	}
}

func TestEngine_ReadInterleaved(t *testing.T) {
	e := NewSF2Engine(44100, 2, 4, 64)
	e.Install(mustBank(t, newPianoBuilder()))
	e.Send(MidiEvent{Type: MIDI_NOTE_ON, Data1: 60, Data2: 127})

	// Not a multiple of the block size
	dst := make([]float32, 2*100)
	e.ReadInterleaved(dst)
	var peak float32
	for i := 0; i < len(dst); i += 2 {
		if dst[i] != dst[i+1] {
			t.Fatalf("Expected identical left and right at frame %d", i/2)
		}
		peak = max(peak, dst[i], -dst[i])
	}
	if peak == 0 {
		t.Error("Expected sound in interleaved output")
	}
	if got := e.Scheduler().Clock(); got != 128 {
		t.Errorf("Expected two 64-frame blocks rendered, clock %d", got)
	}

	// The rest of the second block is served before rendering a third
	e.ReadInterleaved(make([]float32, 2*28))
	if got := e.Scheduler().Clock(); got != 128 {
		t.Errorf("Expected no new block yet, clock %d", got)
	}
	e.ReadInterleaved(make([]float32, 2))
	if got := e.Scheduler().Clock(); got != 192 {
		t.Errorf("Expected a third block, clock %d", got)
	}
}
