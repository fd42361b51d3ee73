// sf2_resolver.go - Preset to sample resolution (preset -> instrument -> sample)

package main

import (
	"fmt"

	"github.com/pkg/errors"
)

// Resolution errors. A preset that does not exist is not an error: the
// resolver falls back to the first preset in the bank.
var (
	ErrSF2NoPresets        = errors.New("SF2: bank has no presets")
	ErrSF2NoInstrument     = errors.New("SF2: preset has no instrument zone")
	ErrSF2NoSample         = errors.New("SF2: instrument has no sample zone")
	ErrSF2SampleOutOfRange = errors.New("SF2: sample slice out of range")
)

// SF2Range is an inclusive key or velocity range
type SF2Range struct {
	Low  uint8
	High uint8
}

var sf2FullRange = SF2Range{Low: 0, High: 127}

func (r SF2Range) Contains(v uint8) bool { return v >= r.Low && v <= r.High }

func (r SF2Range) intersect(o SF2Range) (SF2Range, bool) {
	out := SF2Range{Low: max(r.Low, o.Low), High: min(r.High, o.High)}
	return out, out.Low <= out.High
}

func rangeFromAmount(amount uint16) SF2Range {
	return SF2Range{Low: uint8(amount & 0xFF), High: uint8(amount >> 8)}
}

// SampleRegion is everything a Part needs to play one sample: a view into
// the bank's PCM plus pitch and loop parameters relative to that view.
type SampleRegion struct {
	Data           []int16
	SampleIndex    int
	SampleName     string
	InstrumentName string

	RootKey    int
	SampleRate float64
	LoopStart  int // slice-relative, 0 <= LoopStart <= LoopEnd <= len(Data)
	LoopEnd    int
	Looping    bool

	KeyRange        SF2Range
	VelRange        SF2Range
	CoarseTune      int // semitones
	FineTune        int // cents
	PitchCorrection int // cents
	Attenuation     float64 // centibels
}

// RootFrequency returns the frequency at which the sample plays unshifted
func (r *SampleRegion) RootFrequency() float64 {
	key := float64(r.RootKey) - float64(r.CoarseTune) - float64(r.FineTune+r.PitchCorrection)/100
	return KeyToFrequency(key)
}

// PlaybackDescriptor is the resolved form of one (bank, program)
type PlaybackDescriptor struct {
	Bank        int
	Program     int
	PresetIndex int
	PresetName  string
	Fallback    bool // requested program was missing; preset 0 was used
	Regions     []SampleRegion
}

// Primary returns the first resolved region
func (d *PlaybackDescriptor) Primary() *SampleRegion {
	if d == nil || len(d.Regions) == 0 {
		return nil
	}
	return &d.Regions[0]
}

// Region returns the first region covering key and velocity, or the primary
// region when none does
func (d *PlaybackDescriptor) Region(key, velocity uint8) *SampleRegion {
	if d == nil {
		return nil
	}
	for i := range d.Regions {
		r := &d.Regions[i]
		if r.KeyRange.Contains(key) && r.VelRange.Contains(velocity) {
			return r
		}
	}
	return d.Primary()
}

// Zone model

type sf2ZoneKind int

const (
	SF2_ZONE_GLOBAL sf2ZoneKind = iota
	SF2_ZONE_LOCAL
)

// sf2GenSet holds the generators present in one zone
type sf2GenSet struct {
	present [SF2_GEN_COUNT]bool
	amount  [SF2_GEN_COUNT]uint16
}

func (g *sf2GenSet) set(oper, amount uint16) {
	if int(oper) >= SF2_GEN_COUNT {
		return
	}
	g.present[oper] = true
	g.amount[oper] = amount
}

func (g *sf2GenSet) get(oper uint16) (uint16, bool) {
	if int(oper) >= SF2_GEN_COUNT || !g.present[oper] {
		return 0, false
	}
	return g.amount[oper], true
}

func (g *sf2GenSet) signed(oper uint16) int {
	v, _ := g.get(oper)
	return int(int16(v))
}

func (g *sf2GenSet) rangeOr(oper uint16, def SF2Range) SF2Range {
	if v, ok := g.get(oper); ok {
		return rangeFromAmount(v)
	}
	return def
}

// under returns local with every generator it lacks taken from g
func (g *sf2GenSet) under(local sf2GenSet) sf2GenSet {
	out := local
	for i := range g.present {
		if g.present[i] && !out.present[i] {
			out.present[i] = true
			out.amount[i] = g.amount[i]
		}
	}
	return out
}

type sf2Zone struct {
	Kind   sf2ZoneKind
	Gens   sf2GenSet
	Target int // instrument (preset level) or sample (instrument level)
}

// zoneRange returns the child index range [start, end) owned by records[i],
// taken from records[i] and records[i+1]. ok is false when i has no
// successor. end is clamped to childLen and start to end.
func zoneRange[T any](records []T, index func(T) uint16, i, childLen int) (start, end int, ok bool) {
	if i < 0 || i+1 >= len(records) {
		return 0, 0, false
	}
	start = int(index(records[i]))
	end = int(index(records[i+1]))
	end = min(end, childLen)
	start = min(start, end)
	return start, end, true
}

func presetBagIndex(p SF2PresetHeader) uint16   { return p.BagIndex }
func instBagIndex(p SF2InstrumentHeader) uint16 { return p.BagIndex }
func bagGenIndex(b SF2Bag) uint16               { return b.GenIndex }

// collectZones reads the bags [bagStart, bagEnd) into zones. The first zone
// without the terminal generator is global; later zones without it are
// ignored. Generators after the terminal one are ignored.
func collectZones(bags []SF2Bag, gens []SF2Generator, bagStart, bagEnd int, terminal uint16) []sf2Zone {
	var zones []sf2Zone
	for b := bagStart; b < bagEnd; b++ {
		gs, ge, ok := zoneRange(bags, bagGenIndex, b, len(gens))
		if !ok {
			break
		}
		z := sf2Zone{Kind: SF2_ZONE_LOCAL}
		for g := gs; g < ge; g++ {
			z.Gens.set(gens[g].Oper, gens[g].Amount)
			if gens[g].Oper == terminal {
				break
			}
		}
		if v, ok := z.Gens.get(terminal); ok {
			z.Target = int(v)
		} else if b == bagStart {
			z.Kind = SF2_ZONE_GLOBAL
		} else {
			continue
		}
		zones = append(zones, z)
	}
	return zones
}

// mergeZones applies the global zone, if any, under every local zone and
// returns only the locals
func mergeZones(zones []sf2Zone) []sf2Zone {
	var global *sf2GenSet
	locals := make([]sf2Zone, 0, len(zones))
	for i := range zones {
		if zones[i].Kind == SF2_ZONE_GLOBAL {
			global = &zones[i].Gens
			continue
		}
		locals = append(locals, zones[i])
	}
	if global != nil {
		for i := range locals {
			locals[i].Gens = global.under(locals[i].Gens)
		}
	}
	return locals
}

// FindPreset returns the index of the first preset matching bank and
// program, or 0 with fallback set when there is none
func (h *SF2Hydra) FindPreset(bank, program int) (index int, fallback bool) {
	for i := 0; i < h.PresetCount(); i++ {
		p := h.PresetHeaders[i]
		if int(p.Preset) == program && int(p.Bank) == bank {
			return i, false
		}
	}
	return 0, true
}

// ResolvePreset resolves (bank, program) to a playback descriptor
func (h *SF2Hydra) ResolvePreset(bank, program int) (*PlaybackDescriptor, error) {
	if h.PresetCount() == 0 {
		return nil, ErrSF2NoPresets
	}
	idx, fallback := h.FindPreset(bank, program)
	ph := h.PresetHeaders[idx]

	desc := &PlaybackDescriptor{
		Bank:        bank,
		Program:     program,
		PresetIndex: idx,
		PresetName:  ph.Name,
		Fallback:    fallback,
	}

	bagStart, bagEnd, _ := zoneRange(h.PresetHeaders, presetBagIndex, idx, len(h.PresetBags))
	pzones := mergeZones(collectZones(h.PresetBags, h.PresetGens, bagStart, bagEnd, SF2_GEN_INSTRUMENT))
	if len(pzones) == 0 {
		return nil, errors.Wrapf(ErrSF2NoInstrument, "preset %d %q", idx, ph.Name)
	}

	var firstErr error
	for _, pz := range pzones {
		regions, err := h.resolveInstrument(pz)
		if err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "preset %d %q", idx, ph.Name)
			}
			continue
		}
		desc.Regions = append(desc.Regions, regions...)
	}
	if len(desc.Regions) == 0 {
		if firstErr == nil {
			firstErr = errors.Wrapf(ErrSF2NoSample, "preset %d %q", idx, ph.Name)
		}
		return nil, firstErr
	}
	return desc, nil
}

func (h *SF2Hydra) resolveInstrument(pz sf2Zone) ([]SampleRegion, error) {
	inst := pz.Target
	if inst >= h.InstrumentCount() {
		return nil, errors.Wrapf(ErrSF2NoInstrument, "instrument index %d beyond %d instruments", inst, h.InstrumentCount())
	}
	ih := h.Instruments[inst]
	bagStart, bagEnd, _ := zoneRange(h.Instruments, instBagIndex, inst, len(h.InstrumentBags))
	izones := mergeZones(collectZones(h.InstrumentBags, h.InstrumentGens, bagStart, bagEnd, SF2_GEN_SAMPLE_ID))
	if len(izones) == 0 {
		return nil, errors.Wrapf(ErrSF2NoSample, "instrument %d %q", inst, ih.Name)
	}

	presetKeys := pz.Gens.rangeOr(SF2_GEN_KEY_RANGE, sf2FullRange)
	presetVels := pz.Gens.rangeOr(SF2_GEN_VEL_RANGE, sf2FullRange)

	var regions []SampleRegion
	var firstErr error
	for _, iz := range izones {
		keys, kok := iz.Gens.rangeOr(SF2_GEN_KEY_RANGE, sf2FullRange).intersect(presetKeys)
		vels, vok := iz.Gens.rangeOr(SF2_GEN_VEL_RANGE, sf2FullRange).intersect(presetVels)
		if !kok || !vok {
			continue
		}
		r, err := h.buildRegion(iz, &pz.Gens)
		if err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "instrument %d %q", inst, ih.Name)
			}
			continue
		}
		r.InstrumentName = ih.Name
		r.KeyRange = keys
		r.VelRange = vels
		regions = append(regions, r)
	}
	if len(regions) == 0 {
		if firstErr == nil {
			firstErr = errors.Wrapf(ErrSF2NoSample, "instrument %d %q has no zone in range", inst, ih.Name)
		}
		return nil, firstErr
	}
	return regions, nil
}

// buildRegion slices the PCM for one instrument zone. Instrument generators
// are absolute; preset tuning and attenuation add to them.
func (h *SF2Hydra) buildRegion(iz sf2Zone, pg *sf2GenSet) (SampleRegion, error) {
	sid := iz.Target
	if sid >= len(h.SampleHeaders) {
		return SampleRegion{}, errors.Wrapf(ErrSF2SampleOutOfRange, "sample index %d beyond %d headers", sid, len(h.SampleHeaders))
	}
	sh := h.SampleHeaders[sid]
	g := &iz.Gens

	start := int64(sh.Start) + int64(g.signed(SF2_GEN_START_ADDRS_OFFSET)) + 32768*int64(g.signed(SF2_GEN_START_ADDRS_COARSE_OFFSET))
	end := int64(sh.End) + int64(g.signed(SF2_GEN_END_ADDRS_OFFSET)) + 32768*int64(g.signed(SF2_GEN_END_ADDRS_COARSE_OFFSET))
	loopStart := int64(sh.LoopStart) + int64(g.signed(SF2_GEN_STARTLOOP_ADDRS_OFFSET)) + 32768*int64(g.signed(SF2_GEN_STARTLOOP_ADDRS_COARSE_OFFSET))
	loopEnd := int64(sh.LoopEnd) + int64(g.signed(SF2_GEN_ENDLOOP_ADDRS_OFFSET)) + 32768*int64(g.signed(SF2_GEN_ENDLOOP_ADDRS_COARSE_OFFSET))

	if start < 0 || end > int64(len(h.SampleData)) || start >= end {
		return SampleRegion{}, errors.Wrapf(ErrSF2SampleOutOfRange, "sample %d %q [%d,%d) in %d frames", sid, sh.Name, start, end, len(h.SampleData))
	}
	data := h.SampleData[start:end:end]
	n := int64(len(data))
	ls := min(max(loopStart-start, 0), n)
	le := min(max(loopEnd-start, ls), n)

	root := int(sh.OriginalPitch)
	if root > 127 {
		root = 60 // 255 marks an unpitched sample
	}
	if v, ok := g.get(SF2_GEN_OVERRIDING_ROOT_KEY); ok {
		if k := int(int16(v)); k >= 0 && k <= 127 {
			root = k
		}
	}

	looping := true
	if mode, ok := g.get(SF2_GEN_SAMPLE_MODES); ok {
		m := mode & 3
		looping = m == SF2_LOOP_CONTINUOUS || m == SF2_LOOP_RELEASE
	}

	rate := float64(sh.SampleRate)
	if rate <= 0 {
		rate = SF2_DEFAULT_SAMPLE_RATE
	}

	atten := float64(g.signed(SF2_GEN_INITIAL_ATTENUATION) + pg.signed(SF2_GEN_INITIAL_ATTENUATION))

	return SampleRegion{
		Data:            data,
		SampleIndex:     sid,
		SampleName:      sh.Name,
		RootKey:         root,
		SampleRate:      rate,
		LoopStart:       int(ls),
		LoopEnd:         int(le),
		Looping:         looping && le > ls,
		CoarseTune:      g.signed(SF2_GEN_COARSE_TUNE) + pg.signed(SF2_GEN_COARSE_TUNE),
		FineTune:        g.signed(SF2_GEN_FINE_TUNE) + pg.signed(SF2_GEN_FINE_TUNE),
		PitchCorrection: int(sh.PitchCorrection),
		Attenuation:     min(max(atten, 0), 1440),
	}, nil
}

// String summarises the descriptor for logs and the inspector
func (d *PlaybackDescriptor) String() string {
	p := d.Primary()
	if p == nil {
		return fmt.Sprintf("bank %d program %d: empty", d.Bank, d.Program)
	}
	return fmt.Sprintf("bank %d program %d -> preset %d %q (%d regions, root %d, %.0f Hz)",
		d.Bank, d.Program, d.PresetIndex, d.PresetName, len(d.Regions), p.RootKey, p.SampleRate)
}
