// sf2_inspect.go - Bank listings, generator analysis and the program lookup table

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/pkg/errors"
	"golang.design/x/clipboard"
)

// LookupPreset mirrors one phdr record
type LookupPreset struct {
	Name     string `json:"name"`
	Preset   int    `json:"preset"`
	Bank     int    `json:"bank"`
	BagIndex int    `json:"bagIndex"`
}

type LookupInstrument struct {
	Name     string `json:"name"`
	BagIndex int    `json:"bagIndex"`
}

type LookupSample struct {
	Name            string `json:"name"`
	SampleRate      uint32 `json:"sampleRate"`
	OriginalPitch   uint8  `json:"originalPitch"`
	PitchCorrection int8   `json:"pitchCorrection"`
	Start           uint32 `json:"start"`
	End             uint32 `json:"end"`
	LoopStart       uint32 `json:"loopStart"`
	LoopEnd         uint32 `json:"loopEnd"`
}

type LookupProgram struct {
	Name        string `json:"name"`
	Bank        int    `json:"bank"`
	PresetIndex int    `json:"presetIndex"`
}

type LookupCurrent struct {
	Number      int    `json:"number"`
	PresetName  string `json:"presetName"`
	Bank        int    `json:"bank"`
	PresetIndex int    `json:"presetIndex"`
	Instrument  string `json:"instrument,omitempty"`
	Sample      string `json:"sample,omitempty"`
	RootKey     int    `json:"rootKey"`
	Fallback    bool   `json:"fallback,omitempty"`
}

// LookupTable is a JSON-ready index of a bank for front ends
type LookupTable struct {
	Name           string                   `json:"name,omitempty"`
	Presets        map[int]LookupPreset     `json:"presets"`
	Instruments    map[int]LookupInstrument `json:"instruments"`
	Samples        map[int]LookupSample     `json:"samples"`
	Programs       map[int]LookupProgram    `json:"programs"`
	CurrentProgram *LookupCurrent           `json:"currentProgram"`
}

// BuildLookupTable indexes every named record of the bank and resolves
// the current program
func BuildLookupTable(bank *SF2Bank, current int) *LookupTable {
	h := bank.Hydra
	t := &LookupTable{
		Name:        h.Info.Name,
		Presets:     make(map[int]LookupPreset),
		Instruments: make(map[int]LookupInstrument),
		Samples:     make(map[int]LookupSample),
		Programs:    make(map[int]LookupProgram),
	}
	for i := 0; i < h.PresetCount(); i++ {
		p := h.PresetHeaders[i]
		if p.Name == "" {
			continue
		}
		t.Presets[i] = LookupPreset{Name: p.Name, Preset: int(p.Preset), Bank: int(p.Bank), BagIndex: int(p.BagIndex)}
		if int(p.Bank) == bank.Bank && p.Preset < SF2_PROGRAM_COUNT {
			if _, dup := t.Programs[int(p.Preset)]; !dup {
				t.Programs[int(p.Preset)] = LookupProgram{Name: p.Name, Bank: int(p.Bank), PresetIndex: i}
			}
		}
	}
	for i := 0; i < h.InstrumentCount(); i++ {
		inst := h.Instruments[i]
		if inst.Name != "" {
			t.Instruments[i] = LookupInstrument{Name: inst.Name, BagIndex: int(inst.BagIndex)}
		}
	}
	for i, s := range h.SampleHeaders {
		if s.Name == "" {
			continue
		}
		t.Samples[i] = LookupSample{
			Name: s.Name, SampleRate: s.SampleRate, OriginalPitch: s.OriginalPitch,
			PitchCorrection: s.PitchCorrection, Start: s.Start, End: s.End,
			LoopStart: s.LoopStart, LoopEnd: s.LoopEnd,
		}
	}
	if d, err := bank.Descriptor(current); err == nil && d != nil {
		cur := &LookupCurrent{
			Number:      current,
			PresetName:  d.PresetName,
			Bank:        d.Bank,
			PresetIndex: d.PresetIndex,
			Fallback:    d.Fallback,
		}
		if r := d.Primary(); r != nil {
			cur.Instrument = r.InstrumentName
			cur.Sample = r.SampleName
			cur.RootKey = r.RootKey
		}
		t.CurrentProgram = cur
	}
	return t
}

// JSON returns the indented table
func (t *LookupTable) JSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

var (
	clipboardOnce sync.Once
	clipboardErr  error
)

// CopyToClipboard places text on the system clipboard
func CopyToClipboard(data []byte) error {
	clipboardOnce.Do(func() {
		clipboardErr = clipboard.Init()
	})
	if clipboardErr != nil {
		return errors.Wrap(clipboardErr, "clipboard unavailable")
	}
	clipboard.Write(clipboard.FmtText, data)
	return nil
}

// SF2ZoneReport describes one zone with interpreted generators
type SF2ZoneReport struct {
	Level  string // "preset" or "instrument"
	Owner  int    // preset or instrument index
	Global bool
	Target int // instrument or sample index, -1 for global zones
	Gens   []SF2GeneratorValue
}

// AnalyzePreset reports every zone of a preset and of the instruments it uses
func AnalyzePreset(h *SF2Hydra, idx int) ([]SF2ZoneReport, error) {
	if idx < 0 || idx >= h.PresetCount() {
		return nil, errors.Errorf("preset index %d out of range (0-%d)", idx, h.PresetCount()-1)
	}
	var out []SF2ZoneReport
	bagStart, bagEnd, _ := zoneRange(h.PresetHeaders, presetBagIndex, idx, len(h.PresetBags))
	pzones := collectZones(h.PresetBags, h.PresetGens, bagStart, bagEnd, SF2_GEN_INSTRUMENT)
	seen := make(map[int]bool)
	for _, z := range pzones {
		out = append(out, zoneReport("preset", idx, z))
		if z.Kind == SF2_ZONE_LOCAL && z.Target < h.InstrumentCount() && !seen[z.Target] {
			seen[z.Target] = true
			ib, ie, _ := zoneRange(h.Instruments, instBagIndex, z.Target, len(h.InstrumentBags))
			for _, iz := range collectZones(h.InstrumentBags, h.InstrumentGens, ib, ie, SF2_GEN_SAMPLE_ID) {
				out = append(out, zoneReport("instrument", z.Target, iz))
			}
		}
	}
	return out, nil
}

func zoneReport(level string, owner int, z sf2Zone) SF2ZoneReport {
	r := SF2ZoneReport{Level: level, Owner: owner, Global: z.Kind == SF2_ZONE_GLOBAL, Target: z.Target}
	if r.Global {
		r.Target = -1
	}
	for op := uint16(0); op < SF2_GEN_COUNT; op++ {
		if amount, ok := z.Gens.get(op); ok {
			r.Gens = append(r.Gens, InterpretGenerator(op, amount))
		}
	}
	return r
}

// SF2GeneratorCount is how often an operator appears in the bank
type SF2GeneratorCount struct {
	Oper       uint16
	Name       string
	Preset     int
	Instrument int
}

// GeneratorUsage counts generator operators across pgen and igen, most
// used first
func GeneratorUsage(h *SF2Hydra) []SF2GeneratorCount {
	counts := make(map[uint16]*SF2GeneratorCount)
	get := func(op uint16) *SF2GeneratorCount {
		c, ok := counts[op]
		if !ok {
			c = &SF2GeneratorCount{Oper: op, Name: SF2GeneratorName(op)}
			counts[op] = c
		}
		return c
	}
	for _, g := range h.PresetGens {
		get(g.Oper).Preset++
	}
	for _, g := range h.InstrumentGens {
		get(g.Oper).Instrument++
	}
	out := make([]SF2GeneratorCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Preset+out[i].Instrument, out[j].Preset+out[j].Instrument
		if ti != tj {
			return ti > tj
		}
		return out[i].Oper < out[j].Oper
	})
	return out
}

// PrintBankSummary writes INFO and table sizes
func PrintBankSummary(w io.Writer, h *SF2Hydra) {
	fmt.Fprintf(w, "Name:        %s\n", h.Info.Name)
	fmt.Fprintf(w, "Version:     %d.%02d\n", h.Info.VersionMajor, h.Info.VersionMinor)
	if h.Info.Engine != "" {
		fmt.Fprintf(w, "Engine:      %s\n", h.Info.Engine)
	}
	if h.Info.Copyright != "" {
		fmt.Fprintf(w, "Copyright:   %s\n", h.Info.Copyright)
	}
	fmt.Fprintf(w, "Presets:     %d\n", h.PresetCount())
	fmt.Fprintf(w, "Instruments: %d\n", h.InstrumentCount())
	fmt.Fprintf(w, "Samples:     %d\n", len(h.SampleHeaders))
	fmt.Fprintf(w, "PCM frames:  %d\n", len(h.SampleData))
}

// PrintPresets lists presets sorted by bank and program
func PrintPresets(w io.Writer, h *SF2Hydra) {
	idx := make([]int, h.PresetCount())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		pa, pb := h.PresetHeaders[idx[a]], h.PresetHeaders[idx[b]]
		if pa.Bank != pb.Bank {
			return pa.Bank < pb.Bank
		}
		return pa.Preset < pb.Preset
	})
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tBANK\tPROGRAM\tNAME")
	for _, i := range idx {
		p := h.PresetHeaders[i]
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", i, p.Bank, p.Preset, p.Name)
	}
	tw.Flush()
}

// PrintInstruments lists instruments with their zone counts
func PrintInstruments(w io.Writer, h *SF2Hydra) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tZONES\tNAME")
	for i := 0; i < h.InstrumentCount(); i++ {
		bs, be, _ := zoneRange(h.Instruments, instBagIndex, i, len(h.InstrumentBags))
		fmt.Fprintf(tw, "%d\t%d\t%s\n", i, be-bs, h.Instruments[i].Name)
	}
	tw.Flush()
}

// PrintSamples lists sample headers
func PrintSamples(w io.Writer, h *SF2Hydra) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tRATE\tROOT\tCORR\tFRAMES\tLOOP\tTYPE\tNAME")
	for i, s := range h.SampleHeaders {
		frames := int64(s.End) - int64(s.Start)
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d-%d\t%#04x\t%s\n",
			i, s.SampleRate, s.OriginalPitch, s.PitchCorrection, frames,
			int64(s.LoopStart)-int64(s.Start), int64(s.LoopEnd)-int64(s.Start), s.SampleType, s.Name)
	}
	tw.Flush()
}

// PrintZones writes an AnalyzePreset report
func PrintZones(w io.Writer, zones []SF2ZoneReport) {
	for _, z := range zones {
		kind := fmt.Sprintf("-> %d", z.Target)
		if z.Global {
			kind = "global"
		}
		fmt.Fprintf(w, "%s %d zone %s\n", z.Level, z.Owner, kind)
		for _, g := range z.Gens {
			fmt.Fprintf(w, "    %s\n", g)
		}
	}
}
