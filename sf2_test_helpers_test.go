// sf2_test_helpers_test.go - Synthetic SoundFont builder shared by the SF2 tests

package main

import (
	"encoding/binary"
	"math"
	"testing"
)

// testSample is one sample written into smpl. Loop points are relative to
// the start of data; the builder makes them absolute.
type testSample struct {
	name      string
	data      []int16
	loopStart uint32
	loopEnd   uint32
	rate      uint32
	root      uint8
	corr      int8
	kind      uint16
}

// testZone is the generator list of one bag
type testZone []SF2Generator

type testInstrument struct {
	name  string
	zones []testZone
}

type testPreset struct {
	name    string
	program uint16
	bank    uint16
	zones   []testZone
}

// sf2Builder assembles a complete RIFF sfbk container
type sf2Builder struct {
	name        string
	samples     []testSample
	instruments []testInstrument
	presets     []testPreset

	omitPdta  bool
	omitChunk string // pdta sub-chunk left out
	noEOS     bool   // leave out the terminal shdr record
}

func gen(oper uint16, amount int) SF2Generator {
	return SF2Generator{Oper: oper, Amount: uint16(int16(amount))}
}

func genRange(oper uint16, lo, hi uint8) SF2Generator {
	return SF2Generator{Oper: oper, Amount: uint16(lo) | uint16(hi)<<8}
}

type leWriter struct{ buf []byte }

func (w *leWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *leWriter) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *leWriter) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *leWriter) name(s string) {
	var field [SF2_NAME_SIZE]byte
	copy(field[:], s)
	w.buf = append(w.buf, field[:]...)
}

func riffChunk(tag string, body []byte) []byte {
	out := append([]byte(tag), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(body)))
	out = append(out, body...)
	if len(body)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func riffList(kind string, chunks ...[]byte) []byte {
	body := []byte(kind)
	for _, c := range chunks {
		body = append(body, c...)
	}
	return riffChunk(SF2_TAG_LIST, body)
}

// bytes encodes the bank. Each sample is followed by 46 zero frames.
func (b *sf2Builder) bytes() []byte {
	info := riffList(SF2_LIST_INFO,
		riffChunk("ifil", []byte{2, 0, 4, 0}),
		riffChunk("isng", []byte("EMU8000\x00")),
		riffChunk("INAM", append([]byte(b.name), 0)),
	)

	var pcm leWriter
	shdr := &leWriter{}
	for _, s := range b.samples {
		start := uint32(len(pcm.buf) / 2)
		for _, v := range s.data {
			pcm.u16(uint16(v))
		}
		end := uint32(len(pcm.buf) / 2)
		for i := 0; i < 46; i++ {
			pcm.u16(0)
		}
		shdr.name(s.name)
		shdr.u32(start)
		shdr.u32(end)
		shdr.u32(start + s.loopStart)
		shdr.u32(start + s.loopEnd)
		shdr.u32(s.rate)
		shdr.u8(s.root)
		shdr.u8(uint8(s.corr))
		shdr.u16(0)
		kind := s.kind
		if kind == 0 {
			kind = 1 // mono
		}
		shdr.u16(kind)
	}
	if !b.noEOS {
		shdr.name(SF2_EOS_NAME)
		shdr.buf = append(shdr.buf, make([]byte, SF2_SHDR_SIZE-SF2_NAME_SIZE)...)
	}
	sdta := riffList(SF2_LIST_SDTA, riffChunk(SF2_TAG_SMPL, pcm.buf))

	phdr, pbag, pgen, pmod := &leWriter{}, &leWriter{}, &leWriter{}, &leWriter{}
	for _, p := range b.presets {
		phdr.name(p.name)
		phdr.u16(p.program)
		phdr.u16(p.bank)
		phdr.u16(uint16(len(pbag.buf) / SF2_BAG_SIZE))
		phdr.u32(0)
		phdr.u32(0)
		phdr.u32(0)
		writeZones(pbag, pgen, p.zones)
	}
	phdr.name("EOP")
	phdr.u16(0)
	phdr.u16(0)
	phdr.u16(uint16(len(pbag.buf) / SF2_BAG_SIZE))
	phdr.u32(0)
	phdr.u32(0)
	phdr.u32(0)
	terminalBag(pbag, pgen)
	pmod.buf = make([]byte, SF2_MOD_SIZE)

	inst, ibag, igen, imod := &leWriter{}, &leWriter{}, &leWriter{}, &leWriter{}
	for _, in := range b.instruments {
		inst.name(in.name)
		inst.u16(uint16(len(ibag.buf) / SF2_BAG_SIZE))
		writeZones(ibag, igen, in.zones)
	}
	inst.name("EOI")
	inst.u16(uint16(len(ibag.buf) / SF2_BAG_SIZE))
	terminalBag(ibag, igen)
	imod.buf = make([]byte, SF2_MOD_SIZE)

	sub := []struct {
		tag  string
		data []byte
	}{
		{SF2_TAG_PHDR, phdr.buf}, {SF2_TAG_PBAG, pbag.buf}, {SF2_TAG_PMOD, pmod.buf}, {SF2_TAG_PGEN, pgen.buf},
		{SF2_TAG_INST, inst.buf}, {SF2_TAG_IBAG, ibag.buf}, {SF2_TAG_IMOD, imod.buf}, {SF2_TAG_IGEN, igen.buf},
		{SF2_TAG_SHDR, shdr.buf},
	}
	var chunks [][]byte
	for _, s := range sub {
		if s.tag == b.omitChunk {
			continue
		}
		chunks = append(chunks, riffChunk(s.tag, s.data))
	}

	body := []byte(SF2_FORM)
	body = append(body, info...)
	body = append(body, sdta...)
	if !b.omitPdta {
		body = append(body, riffList(SF2_LIST_PDTA, chunks...)...)
	}
	return riffChunk(SF2_TAG_RIFF, body)
}

func writeZones(bag, gens *leWriter, zones []testZone) {
	for _, z := range zones {
		bag.u16(uint16(len(gens.buf) / SF2_GEN_SIZE))
		bag.u16(0)
		for _, g := range z {
			gens.u16(g.Oper)
			gens.u16(g.Amount)
		}
	}
}

func terminalBag(bag, gens *leWriter) {
	bag.u16(uint16(len(gens.buf) / SF2_GEN_SIZE))
	bag.u16(0)
	gens.u16(0)
	gens.u16(0)
}

// sineSample returns n frames of a full-cycle sine at amplitude amp
func sineSample(n int, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * math.Sin(2*math.Pi*float64(i)/float64(n)))
	}
	return out
}

// constSample returns n frames of the same value
func constSample(n int, v int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// newPianoBuilder is the reference bank: program 0 bank 0 "Piano" using
// instrument "Piano" with one zone on a 4000 frame sine, root 60, loop
// [1000, 2000), 44100 Hz.
func newPianoBuilder() *sf2Builder {
	return &sf2Builder{
		name: "Test Bank",
		samples: []testSample{
			{name: "Sine C4", data: sineSample(4000, 16000), loopStart: 1000, loopEnd: 2000, rate: 44100, root: 60},
		},
		instruments: []testInstrument{
			{name: "Piano", zones: []testZone{
				{gen(SF2_GEN_SAMPLE_MODES, SF2_LOOP_CONTINUOUS), gen(SF2_GEN_SAMPLE_ID, 0)},
			}},
		},
		presets: []testPreset{
			{name: "Piano", program: 0, bank: 0, zones: []testZone{{gen(SF2_GEN_INSTRUMENT, 0)}}},
		},
	}
}

func mustParse(t testing.TB, data []byte) *SF2Hydra {
	t.Helper()
	h, err := ParseSF2(data)
	if err != nil {
		t.Fatalf("ParseSF2 failed: %v", err)
	}
	return h
}

func mustBank(t testing.TB, b *sf2Builder) *SF2Bank {
	t.Helper()
	return NewSF2Bank(b.name, mustParse(t, b.bytes()), 0)
}

func newBlock(channels, frames int) [][]float32 {
	out := make([][]float32, channels)
	for i := range out {
		out[i] = make([]float32, frames)
	}
	return out
}

func blockPeak(out [][]float32) float32 {
	var peak float32
	for _, ch := range out {
		for _, v := range ch {
			peak = max(peak, float32(math.Abs(float64(v))))
		}
	}
	return peak
}

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
