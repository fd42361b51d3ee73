// sf2_bank.go - A decoded sample bank plus its per-program descriptor cache

package main

import (
	"sync"
	"sync/atomic"
)

// SF2Bank pairs a hydra with the descriptors resolved from it. A bank is
// built and warmed off the render thread; once published it is read-only.
type SF2Bank struct {
	Name  string
	Hydra *SF2Hydra
	Bank  int // MIDI bank used for program lookups

	programs [SF2_PROGRAM_COUNT]*PlaybackDescriptor
	errs     [SF2_PROGRAM_COUNT]error
	resolved [SF2_PROGRAM_COUNT]bool
	warmed   atomic.Bool

	mu sync.Mutex // guards lazy resolution before Warm
}

// NewSF2Bank wraps a decoded hydra. Descriptors resolve lazily until Warm.
func NewSF2Bank(name string, hydra *SF2Hydra, bank int) *SF2Bank {
	return &SF2Bank{Name: name, Hydra: hydra, Bank: bank}
}

// Warm resolves every program so later lookups never allocate. Returns the
// number of programs that resolved.
func (b *SF2Bank) Warm() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok := 0
	for p := 0; p < SF2_PROGRAM_COUNT; p++ {
		b.resolveLocked(p)
		if b.programs[p] != nil {
			ok++
		}
	}
	b.warmed.Store(true)
	return ok
}

// Descriptor returns the cached descriptor for a program
func (b *SF2Bank) Descriptor(program int) (*PlaybackDescriptor, error) {
	if b == nil {
		return nil, ErrSF2NoPresets
	}
	program &= SF2_PROGRAM_COUNT - 1
	if b.warmed.Load() {
		return b.programs[program], b.errs[program]
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolveLocked(program)
	return b.programs[program], b.errs[program]
}

func (b *SF2Bank) resolveLocked(program int) {
	if b.resolved[program] {
		return
	}
	b.programs[program], b.errs[program] = b.Hydra.ResolvePreset(b.Bank, program)
	b.resolved[program] = true
}
