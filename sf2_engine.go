// sf2_engine.go - Real-time wrapper around the scheduler: bank hand-off,
// live event queue and interleaved output for audio backends

package main

import (
	"sync/atomic"
)

// SF2Engine is driven by a single render thread. Other goroutines talk to
// it only through Install and Send.
type SF2Engine struct {
	sched      *SF2Scheduler
	sampleRate int
	blockSize  int

	pending   atomic.Pointer[SF2Bank] // next bank, picked up at a block boundary
	installed atomic.Pointer[SF2Bank] // bank the render thread is using
	events    chan MidiEvent
	dropped   atomic.Uint64

	block    [][]float32 // planar block buffer
	blockPos int         // frames of block already handed out
}

// NewSF2Engine creates an engine with no bank loaded; it renders silence
// until Install is called
func NewSF2Engine(sampleRate, channels, voices, blockSize int) *SF2Engine {
	if blockSize <= 0 {
		blockSize = SF2_DEFAULT_BLOCK
	}
	e := &SF2Engine{
		sched:      NewSF2Scheduler(nil, channels, float64(sampleRate), voices),
		sampleRate: sampleRate,
		blockSize:  blockSize,
		events:     make(chan MidiEvent, SF2_EVENT_QUEUE),
		block:      make([][]float32, max(channels, 1)),
	}
	for i := range e.block {
		e.block[i] = make([]float32, blockSize)
	}
	e.blockPos = blockSize
	return e
}

func (e *SF2Engine) Scheduler() *SF2Scheduler { return e.sched }

func (e *SF2Engine) SampleRate() int { return e.sampleRate }

func (e *SF2Engine) Channels() int { return len(e.block) }

func (e *SF2Engine) BlockSize() int { return e.blockSize }

// Install queues a bank for the render thread. A newer Install before the
// next block boundary replaces the older one.
func (e *SF2Engine) Install(bank *SF2Bank) {
	e.pending.Store(bank)
}

// Bank returns the bank currently in use by the render thread
func (e *SF2Engine) Bank() *SF2Bank {
	return e.installed.Load()
}

// Send queues a live event without blocking. Events arriving while the
// queue is full are dropped and counted.
func (e *SF2Engine) Send(ev MidiEvent) bool {
	select {
	case e.events <- ev:
		return true
	default:
		e.dropped.Add(1)
		return false
	}
}

// Dropped returns the number of events lost to a full queue
func (e *SF2Engine) Dropped() uint64 { return e.dropped.Load() }

// beginBlock runs at every block boundary on the render thread
func (e *SF2Engine) beginBlock() {
	if bank := e.pending.Swap(nil); bank != nil {
		e.sched.SetBank(bank)
		e.installed.Store(bank)
	}
	for {
		select {
		case ev := <-e.events:
			e.sched.OnEvent(ev)
		default:
			return
		}
	}
}

// RenderBlock installs any pending bank, applies queued events and adds
// frames [0, frames) into out
func (e *SF2Engine) RenderBlock(out [][]float32, frames int) {
	e.beginBlock()
	e.sched.Render(0, frames, out)
}

// ProcessBlock is RenderBlock with sample-accurate events
func (e *SF2Engine) ProcessBlock(events []MidiEvent, out [][]float32, frames int) {
	e.beginBlock()
	e.sched.ProcessBlock(events, 0, frames, out)
}

// ReadInterleaved fills dst with interleaved frames, rendering fixed-size
// blocks as needed. len(dst) should be a multiple of the channel count.
func (e *SF2Engine) ReadInterleaved(dst []float32) {
	nch := len(e.block)
	for i := 0; i+nch <= len(dst); i += nch {
		if e.blockPos >= e.blockSize {
			for _, ch := range e.block {
				clear(ch)
			}
			e.RenderBlock(e.block, e.blockSize)
			e.blockPos = 0
		}
		for c := 0; c < nch; c++ {
			dst[i+c] = e.block[c][e.blockPos]
		}
		e.blockPos++
	}
}
