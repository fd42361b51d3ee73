// sf2_inspect_test.go - Tests for bank listings and the lookup table

package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestBuildLookupTable(t *testing.T) {
	bank := mustBank(t, twoPresetBuilder())
	table := BuildLookupTable(bank, 1)

	if table.Name != "Test Bank" {
		t.Errorf("Expected bank name, got %q", table.Name)
	}
	if len(table.Presets) != 2 || len(table.Instruments) != 2 || len(table.Samples) != 2 {
		t.Errorf("Expected 2 presets/instruments/samples, got %d/%d/%d",
			len(table.Presets), len(table.Instruments), len(table.Samples))
	}
	if p := table.Programs[1]; p.Name != "Organ" || p.PresetIndex != 1 {
		t.Errorf("Expected program 1 Organ at index 1, got %+v", p)
	}
	if s := table.Samples[0]; s.Name != "Sine C4" || s.OriginalPitch != 60 || s.LoopEnd-s.LoopStart != 1000 {
		t.Errorf("Unexpected sample entry %+v", s)
	}

	cur := table.CurrentProgram
	if cur == nil {
		t.Fatal("Expected a current program")
	}
	if cur.Number != 1 || cur.PresetName != "Organ" || cur.Sample != "Square" || cur.Fallback {
		t.Errorf("Unexpected current program %+v", cur)
	}
}

func TestBuildLookupTable_Fallback(t *testing.T) {
	table := BuildLookupTable(mustBank(t, newPianoBuilder()), 5)
	cur := table.CurrentProgram
	if cur == nil || !cur.Fallback || cur.PresetName != "Piano" || cur.RootKey != 60 {
		t.Errorf("Expected program 5 to fall back to Piano, got %+v", cur)
	}
	if _, ok := table.Programs[5]; ok {
		t.Error("Expected only real programs in the program map")
	}
}

func TestLookupTable_JSON(t *testing.T) {
	data, err := BuildLookupTable(mustBank(t, newPianoBuilder()), 0).JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	var decoded struct {
		Presets        map[string]LookupPreset `json:"presets"`
		CurrentProgram *LookupCurrent          `json:"currentProgram"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if decoded.Presets["0"].Name != "Piano" {
		t.Errorf("Expected preset 0 keyed as \"0\", got %+v", decoded.Presets)
	}
	if decoded.CurrentProgram == nil || decoded.CurrentProgram.Instrument != "Piano" {
		t.Errorf("Unexpected current program %+v", decoded.CurrentProgram)
	}
}

func globalZoneBuilder() *sf2Builder {
	b := newPianoBuilder()
	b.instruments[0].zones = []testZone{
		{gen(SF2_GEN_FINE_TUNE, -5)},
		{genRange(SF2_GEN_KEY_RANGE, 0, 100), gen(SF2_GEN_SAMPLE_ID, 0)},
	}
	b.presets[0].zones = []testZone{
		{gen(SF2_GEN_COARSE_TUNE, 2)},
		{gen(SF2_GEN_INSTRUMENT, 0)},
	}
	return b
}

func TestAnalyzePreset(t *testing.T) {
	h := mustParse(t, globalZoneBuilder().bytes())
	zones, err := AnalyzePreset(h, 0)
	if err != nil {
		t.Fatalf("AnalyzePreset failed: %v", err)
	}
	if len(zones) != 4 {
		t.Fatalf("Expected 4 zones, got %d", len(zones))
	}

	want := []struct {
		level  string
		global bool
		target int
	}{
		{"preset", true, -1},
		{"preset", false, 0},
		{"instrument", true, -1},
		{"instrument", false, 0},
	}
	for i, w := range want {
		z := zones[i]
		if z.Level != w.level || z.Global != w.global || z.Target != w.target {
			t.Errorf("zone %d: expected %s global=%v target %d, got %+v", i, w.level, w.global, w.target, z)
		}
	}
	if g := zones[0].Gens; len(g) != 1 || g[0].Oper != SF2_GEN_COARSE_TUNE || g[0].Value != 2 {
		t.Errorf("Expected preset global coarse tune 2, got %v", g)
	}
	if g := zones[3].Gens; len(g) != 2 || !g[0].IsRange() || g[0].High != 100 {
		t.Errorf("Expected key range then sample id, got %v", g)
	}

	if _, err := AnalyzePreset(h, 1); err == nil {
		t.Error("Expected an error for an out of range preset")
	}
}

func TestGeneratorUsage(t *testing.T) {
	usage := GeneratorUsage(mustParse(t, twoPresetBuilder().bytes()))
	byOper := make(map[uint16]SF2GeneratorCount)
	for _, c := range usage {
		byOper[c.Oper] = c
	}
	if c := byOper[SF2_GEN_INSTRUMENT]; c.Preset != 2 || c.Instrument != 0 || c.Name != "instrument" {
		t.Errorf("Expected instrument used twice at preset level, got %+v", c)
	}
	if c := byOper[SF2_GEN_SAMPLE_ID]; c.Instrument != 2 || c.Preset != 0 {
		t.Errorf("Expected sampleID used twice at instrument level, got %+v", c)
	}
	if c := byOper[SF2_GEN_SAMPLE_MODES]; c.Instrument != 1 {
		t.Errorf("Expected sampleModes used once, got %+v", c)
	}
	for i := 1; i < len(usage); i++ {
		prev, cur := usage[i-1], usage[i]
		if prev.Preset+prev.Instrument < cur.Preset+cur.Instrument {
			t.Fatalf("Expected usage sorted by count, %v before %v", prev, cur)
		}
	}
}

func TestPrintListings(t *testing.T) {
	h := mustParse(t, twoPresetBuilder().bytes())

	var buf bytes.Buffer
	PrintBankSummary(&buf, h)
	for _, want := range []string{"Test Bank", "2.04", "EMU8000", "Presets:     2", "Samples:     2"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Expected summary to contain %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	PrintPresets(&buf, h)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "INDEX") {
		t.Fatalf("Expected header plus 2 presets:\n%s", buf.String())
	}
	if !strings.Contains(lines[1], "Piano") || !strings.Contains(lines[2], "Organ") {
		t.Errorf("Expected presets sorted by program:\n%s", buf.String())
	}

	buf.Reset()
	PrintInstruments(&buf, h)
	if !strings.Contains(buf.String(), "Organ") {
		t.Errorf("Expected instrument listing:\n%s", buf.String())
	}

	buf.Reset()
	PrintSamples(&buf, h)
	if !strings.Contains(buf.String(), "1000-2000") || !strings.Contains(buf.String(), "Square") {
		t.Errorf("Expected sample listing with relative loops:\n%s", buf.String())
	}

	zones, err := AnalyzePreset(mustParse(t, globalZoneBuilder().bytes()), 0)
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	PrintZones(&buf, zones)
	out := buf.String()
	if !strings.Contains(out, "preset 0 zone global") || !strings.Contains(out, "instrument 0 zone -> 0") {
		t.Errorf("Unexpected zone report:\n%s", out)
	}
	if !strings.Contains(out, "keyRange=0-100") {
		t.Errorf("Expected key range in zone report:\n%s", out)
	}
}
