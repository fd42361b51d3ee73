// sf2_hydra_test.go - Tests for SF2 container decoding

package main

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseSF2_ReferenceBank(t *testing.T) {
	h := mustParse(t, newPianoBuilder().bytes())

	if h.Info.Name != "Test Bank" {
		t.Errorf("Expected name 'Test Bank', got %q", h.Info.Name)
	}
	if h.Info.VersionMajor != 2 || h.Info.VersionMinor != 4 {
		t.Errorf("Expected version 2.04, got %d.%02d", h.Info.VersionMajor, h.Info.VersionMinor)
	}
	if h.Info.Engine != "EMU8000" {
		t.Errorf("Expected engine EMU8000, got %q", h.Info.Engine)
	}
	if h.PresetCount() != 1 {
		t.Errorf("Expected 1 preset, got %d", h.PresetCount())
	}
	if len(h.PresetHeaders) != 2 {
		t.Errorf("Expected preset table to keep its terminal record, got %d records", len(h.PresetHeaders))
	}
	if h.InstrumentCount() != 1 {
		t.Errorf("Expected 1 instrument, got %d", h.InstrumentCount())
	}
	if len(h.SampleHeaders) != 1 {
		t.Fatalf("Expected 1 sample header after dropping EOS, got %d", len(h.SampleHeaders))
	}
	s := h.SampleHeaders[0]
	if s.Name != "Sine C4" || s.Start != 0 || s.End != 4000 {
		t.Errorf("Unexpected sample header %+v", s)
	}
	if s.LoopStart != 1000 || s.LoopEnd != 2000 {
		t.Errorf("Expected loop 1000-2000, got %d-%d", s.LoopStart, s.LoopEnd)
	}
	if len(h.SampleData) != 4046 {
		t.Errorf("Expected 4046 PCM frames, got %d", len(h.SampleData))
	}
	if len(h.PresetMods) != 1 || len(h.InstrumentMods) != 1 {
		t.Errorf("Expected one terminal modulator per level, got %d/%d", len(h.PresetMods), len(h.InstrumentMods))
	}
}

// insertTopChunk splices a top-level chunk into a container at offset and
// fixes the outer RIFF size
func insertTopChunk(data []byte, offset int, chunk []byte) []byte {
	out := append([]byte(nil), data[:offset]...)
	out = append(out, chunk...)
	out = append(out, data[offset:]...)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(out)-8))
	return out
}

func TestParseSF2_ChunksReadOneByOne(t *testing.T) {
	data := newPianoBuilder().bytes()
	infoEnd := 12 + 8 + int(binary.LittleEndian.Uint32(data[16:20]))

	tests := []struct {
		name string
		data []byte
	}{
		{"odd chunk between INFO and sdta", insertTopChunk(data, infoEnd, riffChunk("JUNK", []byte{1, 2, 3}))},
		{"even chunk before INFO", insertTopChunk(data, 12, riffChunk("JUNK", []byte{1, 2, 3, 4}))},
		// Last chunk is odd and the file ends without its pad byte
		{"missing final pad", insertTopChunk(data, len(data), append([]byte("JUNK\x03\x00\x00\x00"), 1, 2, 3))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, err := ParseSF2(tc.data)
			if err != nil {
				t.Fatalf("ParseSF2 failed: %v", err)
			}
			if h.Info.Name != "Test Bank" {
				t.Errorf("Expected INFO decoded, got name %q", h.Info.Name)
			}
			if len(h.SampleData) != 4046 {
				t.Errorf("Expected sdta decoded with 4046 frames, got %d", len(h.SampleData))
			}
			if h.PresetCount() != 1 || len(h.SampleHeaders) != 1 {
				t.Errorf("Expected pdta decoded, got %d presets %d samples", h.PresetCount(), len(h.SampleHeaders))
			}
		})
	}
}

func TestParseSF2_Deterministic(t *testing.T) {
	data := newPianoBuilder().bytes()
	a := mustParse(t, data)
	b := mustParse(t, data)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("Expected two decodes of the same bytes to be equal")
	}
}

func TestParseSF2_EOSOnlyDroppedAtEnd(t *testing.T) {
	b := newPianoBuilder()
	b.samples = append([]testSample{{name: "EOS", data: constSample(10, 1), rate: 22050, root: 60}}, b.samples...)
	h := mustParse(t, b.bytes())

	if len(h.SampleHeaders) != 2 {
		t.Fatalf("Expected 2 sample headers, got %d", len(h.SampleHeaders))
	}
	if h.SampleHeaders[0].Name != "EOS" {
		t.Errorf("Expected leading EOS-named sample to be kept, got %q", h.SampleHeaders[0].Name)
	}
}

func TestParseSF2_ROMTerminalDropped(t *testing.T) {
	b := newPianoBuilder()
	b.noEOS = true
	b.samples = append(b.samples, testSample{name: "ROM", data: constSample(4, 0), rate: 44100, kind: SF2_SAMPLE_ROM})
	h := mustParse(t, b.bytes())
	if len(h.SampleHeaders) != 1 {
		t.Errorf("Expected trailing ROM record to be dropped, got %d headers", len(h.SampleHeaders))
	}
}

func TestParseSF2_ShortTrailingRecord(t *testing.T) {
	// phdr with 38*2 + 5 bytes decodes two records and ignores the rest
	data := make([]byte, SF2_PHDR_SIZE*2+5)
	copy(data, "Piano")
	headers, err := decodePresetHeaders(data)
	if err != nil {
		t.Fatalf("decodePresetHeaders failed: %v", err)
	}
	if len(headers) != 2 {
		t.Errorf("Expected 2 records, got %d", len(headers))
	}
}

func TestParseSF2_Errors(t *testing.T) {
	valid := newPianoBuilder().bytes()

	badForm := append([]byte(nil), valid...)
	copy(badForm[8:], "WAVE")

	truncated := valid[:len(valid)-100]

	noPdta := newPianoBuilder()
	noPdta.omitPdta = true

	noShdr := newPianoBuilder()
	noShdr.omitChunk = SF2_TAG_SHDR

	badBag := newPianoBuilder()
	badBag.presets[0].zones = []testZone{{gen(SF2_GEN_INSTRUMENT, 0)}}
	badBagData := badBag.bytes()
	// Point the terminal preset header's bag index far past the pbag table
	idx := strings.Index(string(badBagData), "EOP")
	binary.LittleEndian.PutUint16(badBagData[idx+24:], 500)

	tests := []struct {
		name  string
		data  []byte
		chunk string
	}{
		{"too short", []byte("RIFF"), SF2_TAG_RIFF},
		{"not RIFF", append([]byte("JUNK"), valid[4:]...), SF2_TAG_RIFF},
		{"wrong form", badForm, SF2_TAG_RIFF},
		{"truncated body", truncated, SF2_TAG_RIFF},
		{"missing pdta", noPdta.bytes(), SF2_LIST_PDTA},
		{"missing shdr", noShdr.bytes(), SF2_TAG_SHDR},
		{"bag index out of range", badBagData, SF2_TAG_PHDR},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSF2(tc.data)
			if err == nil {
				t.Fatal("Expected an error")
			}
			var fe *SF2FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected SF2FormatError, got %T: %v", err, err)
			}
			if tc.name == "truncated body" {
				// The outer RIFF size overruns, so the last list reports it
				if fe.Chunk != SF2_TAG_LIST && fe.Chunk != SF2_TAG_RIFF {
					t.Errorf("Expected LIST or RIFF, got %q", fe.Chunk)
				}
				return
			}
			if fe.Chunk != tc.chunk {
				t.Errorf("Expected error naming %q, got %q (%v)", tc.chunk, fe.Chunk, err)
			}
			if !strings.HasPrefix(err.Error(), "SF2: ") {
				t.Errorf("Expected SF2 prefix, got %q", err.Error())
			}
		})
	}
}

func TestLoadSF2File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "piano.sf2")
	if err := os.WriteFile(path, newPianoBuilder().bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	h, err := LoadSF2File(path)
	if err != nil {
		t.Fatalf("LoadSF2File failed: %v", err)
	}
	if h.PresetCount() != 1 {
		t.Errorf("Expected 1 preset, got %d", h.PresetCount())
	}

	if _, err := LoadSF2File(filepath.Join(dir, "missing.sf2")); err == nil {
		t.Error("Expected an error for a missing file")
	} else if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected wrapped ErrNotExist, got %v", err)
	}
}
