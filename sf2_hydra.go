// sf2_hydra.go - SoundFont 2 (RIFF sfbk) container decoder
// Reference: SoundFont Technical Specification 2.04, sections 4-7

package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/riff"
	"github.com/pkg/errors"
)

// SF2 data structures

// SF2PresetHeader is one phdr record
type SF2PresetHeader struct {
	Name       string
	Preset     uint16 // MIDI program
	Bank       uint16
	BagIndex   uint16 // first pbag owned by this preset
	Library    uint32
	Genre      uint32
	Morphology uint32
}

// SF2Bag is one pbag/ibag record
type SF2Bag struct {
	GenIndex uint16
	ModIndex uint16
}

// SF2Generator is one pgen/igen record. Amount is kept raw; its
// interpretation depends on Oper (see InterpretGenerator).
type SF2Generator struct {
	Oper   uint16
	Amount uint16
}

// SF2Modulator is one pmod/imod record. Modulators are decoded but not
// applied during playback.
type SF2Modulator struct {
	SrcOper    uint16
	DestOper   uint16
	Amount     int16
	AmtSrcOper uint16
	TransOper  uint16
}

// SF2InstrumentHeader is one inst record
type SF2InstrumentHeader struct {
	Name     string
	BagIndex uint16
}

// SF2SampleHeader is one shdr record. Offsets are in sample frames from
// the start of the smpl chunk.
type SF2SampleHeader struct {
	Name            string
	Start           uint32
	End             uint32
	LoopStart       uint32
	LoopEnd         uint32
	SampleRate      uint32
	OriginalPitch   uint8
	PitchCorrection int8 // cents
	SampleLink      uint16
	SampleType      uint16
}

// SF2Info holds the INFO list fields
type SF2Info struct {
	VersionMajor uint16
	VersionMinor uint16
	Name         string // INAM
	Engine       string // isng
	Copyright    string // ICOP
	Comment      string // ICMT
	Software     string // ISFT
	Engineer     string // IENG
	Date         string // ICRD
	Product      string // IPRD
}

// SF2Hydra is the decoded, immutable content of one container. Header and
// bag tables keep their terminal record so record i owns the index range
// [record[i].start, record[i+1].start).
type SF2Hydra struct {
	Info SF2Info

	PresetHeaders  []SF2PresetHeader
	PresetBags     []SF2Bag
	PresetGens     []SF2Generator
	PresetMods     []SF2Modulator
	Instruments    []SF2InstrumentHeader
	InstrumentBags []SF2Bag
	InstrumentGens []SF2Generator
	InstrumentMods []SF2Modulator
	SampleHeaders  []SF2SampleHeader

	SampleData []int16
}

// SF2FormatError reports a malformed container, naming the offending chunk
type SF2FormatError struct {
	Chunk  string
	Reason string
	Err    error
}

func (e *SF2FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("SF2: %s: %s: %v", e.Chunk, e.Reason, e.Err)
	}
	return fmt.Sprintf("SF2: %s: %s", e.Chunk, e.Reason)
}

func (e *SF2FormatError) Unwrap() error { return e.Err }

// PresetCount returns the number of real presets (terminal excluded)
func (h *SF2Hydra) PresetCount() int {
	if len(h.PresetHeaders) == 0 {
		return 0
	}
	return len(h.PresetHeaders) - 1
}

// InstrumentCount returns the number of real instruments (terminal excluded)
func (h *SF2Hydra) InstrumentCount() int {
	if len(h.Instruments) == 0 {
		return 0
	}
	return len(h.Instruments) - 1
}

// LoadSF2File reads and decodes a container from disk
func LoadSF2File(path string) (*SF2Hydra, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sample bank %s", path)
	}
	h, err := ParseSF2(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding sample bank %s", path)
	}
	return h, nil
}

// ParseSF2 decodes a complete SF2 container. Decoding is deterministic: the
// same bytes always produce an equal hydra.
func ParseSF2(data []byte) (*SF2Hydra, error) {
	if len(data) < 12 {
		return nil, &SF2FormatError{Chunk: SF2_TAG_RIFF, Reason: "data too short for RIFF header"}
	}
	if string(data[:4]) != SF2_TAG_RIFF {
		return nil, &SF2FormatError{Chunk: SF2_TAG_RIFF, Reason: fmt.Sprintf("signature %q is not RIFF", data[:4])}
	}

	src := bytes.NewReader(data)
	p := riff.New(src)
	if err := p.ParseHeaders(); err != nil {
		return nil, &SF2FormatError{Chunk: SF2_TAG_RIFF, Reason: "missing RIFF header", Err: err}
	}
	if string(p.Format[:]) != SF2_FORM {
		return nil, &SF2FormatError{Chunk: SF2_TAG_RIFF, Reason: fmt.Sprintf("form type %q is not %q", string(p.Format[:]), SF2_FORM)}
	}

	h := &SF2Hydra{}
	var pdta []SF2Chunk
	sawPdta := false

	for {
		ch, err := p.NextChunk()
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, &SF2FormatError{Chunk: SF2_TAG_RIFF, Reason: "reading chunk header", Err: errors.WithStack(err)}
		}
		tag := string(ch.ID[:])
		// ch.R is the whole file reader, so exactly ch.Size bytes are taken
		if ch.Size > src.Len() {
			return nil, &SF2FormatError{Chunk: tag, Reason: fmt.Sprintf("truncated: %d of %d bytes", src.Len(), ch.Size)}
		}
		body := make([]byte, ch.Size)
		if _, err := io.ReadFull(ch.R, body); err != nil {
			return nil, &SF2FormatError{Chunk: tag, Reason: "reading chunk body", Err: errors.WithStack(err)}
		}
		// Odd chunks are followed by a pad byte, which may be missing at the end of the file
		if ch.Size%2 == 1 && src.Len() > 0 {
			if _, err := src.ReadByte(); err != nil {
				return nil, &SF2FormatError{Chunk: tag, Reason: "reading pad byte", Err: errors.WithStack(err)}
			}
		}
		if tag != SF2_TAG_LIST {
			continue
		}
		if len(body) < 4 {
			return nil, &SF2FormatError{Chunk: SF2_TAG_LIST, Reason: "missing list type"}
		}

		listType := string(body[:4])
		sub, err := readChunks(body[4:])
		if err != nil {
			return nil, err
		}
		switch listType {
		case SF2_LIST_INFO:
			h.Info = decodeInfo(sub)
		case SF2_LIST_SDTA:
			for _, c := range sub {
				if c.Tag == SF2_TAG_SMPL {
					h.SampleData = decodePCM16(c.Data)
				}
			}
		case SF2_LIST_PDTA:
			pdta = sub
			sawPdta = true
		}
	}

	if !sawPdta {
		return nil, &SF2FormatError{Chunk: SF2_LIST_PDTA, Reason: "missing pdta list"}
	}
	if err := h.decodePdta(pdta); err != nil {
		return nil, err
	}
	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func decodeInfo(chunks []SF2Chunk) SF2Info {
	var info SF2Info
	for _, c := range chunks {
		switch c.Tag {
		case "ifil":
			r := NewSF2Reader(c.Data)
			info.VersionMajor = r.U16()
			info.VersionMinor = r.U16()
		case "INAM":
			info.Name = parsePaddedString(c.Data)
		case "isng":
			info.Engine = parsePaddedString(c.Data)
		case "ICOP":
			info.Copyright = parsePaddedString(c.Data)
		case "ICMT":
			info.Comment = parsePaddedString(c.Data)
		case "ISFT":
			info.Software = parsePaddedString(c.Data)
		case "IENG":
			info.Engineer = parsePaddedString(c.Data)
		case "ICRD":
			info.Date = parsePaddedString(c.Data)
		case "IPRD":
			info.Product = parsePaddedString(c.Data)
		}
	}
	return info
}

// decodePCM16 converts little-endian 16-bit PCM, dropping an odd trailing byte
func decodePCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// recordCount returns the number of whole records in a chunk body
func recordCount(data []byte, width int) int {
	return len(data) / width
}

func (h *SF2Hydra) decodePdta(chunks []SF2Chunk) error {
	byTag := make(map[string][]byte, len(chunks))
	for _, c := range chunks {
		if _, dup := byTag[c.Tag]; !dup {
			byTag[c.Tag] = c.Data
		}
	}
	for _, tag := range []string{
		SF2_TAG_PHDR, SF2_TAG_PBAG, SF2_TAG_PMOD, SF2_TAG_PGEN,
		SF2_TAG_INST, SF2_TAG_IBAG, SF2_TAG_IMOD, SF2_TAG_IGEN, SF2_TAG_SHDR,
	} {
		if _, ok := byTag[tag]; !ok {
			return &SF2FormatError{Chunk: tag, Reason: "missing required pdta sub-chunk"}
		}
	}

	var err error
	if h.PresetHeaders, err = decodePresetHeaders(byTag[SF2_TAG_PHDR]); err != nil {
		return err
	}
	if h.PresetBags, err = decodeBags(SF2_TAG_PBAG, byTag[SF2_TAG_PBAG]); err != nil {
		return err
	}
	if h.PresetMods, err = decodeModulators(SF2_TAG_PMOD, byTag[SF2_TAG_PMOD]); err != nil {
		return err
	}
	if h.PresetGens, err = decodeGenerators(SF2_TAG_PGEN, byTag[SF2_TAG_PGEN]); err != nil {
		return err
	}
	if h.Instruments, err = decodeInstruments(byTag[SF2_TAG_INST]); err != nil {
		return err
	}
	if h.InstrumentBags, err = decodeBags(SF2_TAG_IBAG, byTag[SF2_TAG_IBAG]); err != nil {
		return err
	}
	if h.InstrumentMods, err = decodeModulators(SF2_TAG_IMOD, byTag[SF2_TAG_IMOD]); err != nil {
		return err
	}
	if h.InstrumentGens, err = decodeGenerators(SF2_TAG_IGEN, byTag[SF2_TAG_IGEN]); err != nil {
		return err
	}
	if h.SampleHeaders, err = decodeSampleHeaders(byTag[SF2_TAG_SHDR]); err != nil {
		return err
	}
	return nil
}

func decodePresetHeaders(data []byte) ([]SF2PresetHeader, error) {
	n := recordCount(data, SF2_PHDR_SIZE)
	out := make([]SF2PresetHeader, n)
	r := NewSF2Reader(data)
	for i := range out {
		out[i] = SF2PresetHeader{
			Name:       r.FixedString(SF2_NAME_SIZE),
			Preset:     r.U16(),
			Bank:       r.U16(),
			BagIndex:   r.U16(),
			Library:    r.U32(),
			Genre:      r.U32(),
			Morphology: r.U32(),
		}
	}
	if r.Err() != nil {
		return nil, &SF2FormatError{Chunk: SF2_TAG_PHDR, Reason: "record overrun", Err: r.Err()}
	}
	return out, nil
}

func decodeBags(tag string, data []byte) ([]SF2Bag, error) {
	n := recordCount(data, SF2_BAG_SIZE)
	out := make([]SF2Bag, n)
	r := NewSF2Reader(data)
	for i := range out {
		out[i] = SF2Bag{GenIndex: r.U16(), ModIndex: r.U16()}
	}
	if r.Err() != nil {
		return nil, &SF2FormatError{Chunk: tag, Reason: "record overrun", Err: r.Err()}
	}
	return out, nil
}

func decodeModulators(tag string, data []byte) ([]SF2Modulator, error) {
	n := recordCount(data, SF2_MOD_SIZE)
	out := make([]SF2Modulator, n)
	r := NewSF2Reader(data)
	for i := range out {
		out[i] = SF2Modulator{
			SrcOper:    r.U16(),
			DestOper:   r.U16(),
			Amount:     r.I16(),
			AmtSrcOper: r.U16(),
			TransOper:  r.U16(),
		}
	}
	if r.Err() != nil {
		return nil, &SF2FormatError{Chunk: tag, Reason: "record overrun", Err: r.Err()}
	}
	return out, nil
}

func decodeGenerators(tag string, data []byte) ([]SF2Generator, error) {
	n := recordCount(data, SF2_GEN_SIZE)
	out := make([]SF2Generator, n)
	r := NewSF2Reader(data)
	for i := range out {
		out[i] = SF2Generator{Oper: r.U16(), Amount: r.U16()}
	}
	if r.Err() != nil {
		return nil, &SF2FormatError{Chunk: tag, Reason: "record overrun", Err: r.Err()}
	}
	return out, nil
}

func decodeInstruments(data []byte) ([]SF2InstrumentHeader, error) {
	n := recordCount(data, SF2_INST_SIZE)
	out := make([]SF2InstrumentHeader, n)
	r := NewSF2Reader(data)
	for i := range out {
		out[i] = SF2InstrumentHeader{
			Name:     r.FixedString(SF2_NAME_SIZE),
			BagIndex: r.U16(),
		}
	}
	if r.Err() != nil {
		return nil, &SF2FormatError{Chunk: SF2_TAG_INST, Reason: "record overrun", Err: r.Err()}
	}
	return out, nil
}

func decodeSampleHeaders(data []byte) ([]SF2SampleHeader, error) {
	n := recordCount(data, SF2_SHDR_SIZE)
	out := make([]SF2SampleHeader, 0, n)
	r := NewSF2Reader(data)
	for i := 0; i < n; i++ {
		out = append(out, SF2SampleHeader{
			Name:            r.FixedString(SF2_NAME_SIZE),
			Start:           r.U32(),
			End:             r.U32(),
			LoopStart:       r.U32(),
			LoopEnd:         r.U32(),
			SampleRate:      r.U32(),
			OriginalPitch:   r.U8(),
			PitchCorrection: r.I8(),
			SampleLink:      r.U16(),
			SampleType:      r.U16(),
		})
	}
	if r.Err() != nil {
		return nil, &SF2FormatError{Chunk: SF2_TAG_SHDR, Reason: "record overrun", Err: r.Err()}
	}
	// Only the trailing terminal is dropped so sampleID generators keep
	// indexing the table as written.
	if len(out) > 0 {
		last := out[len(out)-1]
		if last.Name == SF2_EOS_NAME || last.SampleType == SF2_SAMPLE_ROM {
			out = out[:len(out)-1]
		}
	}
	return out, nil
}

// validate checks that every bag, generator and modulator index stays
// inside the table it refers to
func (h *SF2Hydra) validate() error {
	for i, p := range h.PresetHeaders {
		if int(p.BagIndex) > len(h.PresetBags) {
			return &SF2FormatError{Chunk: SF2_TAG_PHDR, Reason: fmt.Sprintf("preset %d bag index %d beyond %d bags", i, p.BagIndex, len(h.PresetBags))}
		}
	}
	for i, b := range h.PresetBags {
		if int(b.GenIndex) > len(h.PresetGens) {
			return &SF2FormatError{Chunk: SF2_TAG_PBAG, Reason: fmt.Sprintf("bag %d generator index %d beyond %d generators", i, b.GenIndex, len(h.PresetGens))}
		}
		if int(b.ModIndex) > len(h.PresetMods) {
			return &SF2FormatError{Chunk: SF2_TAG_PBAG, Reason: fmt.Sprintf("bag %d modulator index %d beyond %d modulators", i, b.ModIndex, len(h.PresetMods))}
		}
	}
	for i, inst := range h.Instruments {
		if int(inst.BagIndex) > len(h.InstrumentBags) {
			return &SF2FormatError{Chunk: SF2_TAG_INST, Reason: fmt.Sprintf("instrument %d bag index %d beyond %d bags", i, inst.BagIndex, len(h.InstrumentBags))}
		}
	}
	for i, b := range h.InstrumentBags {
		if int(b.GenIndex) > len(h.InstrumentGens) {
			return &SF2FormatError{Chunk: SF2_TAG_IBAG, Reason: fmt.Sprintf("bag %d generator index %d beyond %d generators", i, b.GenIndex, len(h.InstrumentGens))}
		}
		if int(b.ModIndex) > len(h.InstrumentMods) {
			return &SF2FormatError{Chunk: SF2_TAG_IBAG, Reason: fmt.Sprintf("bag %d modulator index %d beyond %d modulators", i, b.ModIndex, len(h.InstrumentMods))}
		}
	}
	return nil
}
