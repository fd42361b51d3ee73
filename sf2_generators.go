// sf2_generators.go - Generator operator names and unit conversion
// Used by the inspector; the render path reads raw amounts through the resolver.

package main

import (
	"fmt"
	"math"
)

type sf2GenKind int

const (
	sf2GenSigned sf2GenKind = iota
	sf2GenUnsigned
	sf2GenRange
	sf2GenTimecents
	sf2GenCentibels
	sf2GenAbsCents
	sf2GenPercent
	sf2GenCoarseOffset
)

type sf2GenInfo struct {
	name string
	kind sf2GenKind
	unit string
}

var sf2GenTable = [SF2_GEN_COUNT]sf2GenInfo{
	{"startAddrsOffset", sf2GenSigned, "samples"},
	{"endAddrsOffset", sf2GenSigned, "samples"},
	{"startloopAddrsOffset", sf2GenSigned, "samples"},
	{"endloopAddrsOffset", sf2GenSigned, "samples"},
	{"startAddrsCoarseOffset", sf2GenCoarseOffset, "samples"},
	{"modLfoToPitch", sf2GenSigned, "cents"},
	{"vibLfoToPitch", sf2GenSigned, "cents"},
	{"modEnvToPitch", sf2GenSigned, "cents"},
	{"initialFilterFc", sf2GenAbsCents, "Hz"},
	{"initialFilterQ", sf2GenCentibels, "dB"},
	{"modLfoToFilterFc", sf2GenSigned, "cents"},
	{"modEnvToFilterFc", sf2GenSigned, "cents"},
	{"endAddrsCoarseOffset", sf2GenCoarseOffset, "samples"},
	{"modLfoToVolume", sf2GenCentibels, "dB"},
	{"unused1", sf2GenUnsigned, ""},
	{"chorusEffectsSend", sf2GenPercent, "%"},
	{"reverbEffectsSend", sf2GenPercent, "%"},
	{"pan", sf2GenPercent, "%"},
	{"unused2", sf2GenUnsigned, ""},
	{"unused3", sf2GenUnsigned, ""},
	{"unused4", sf2GenUnsigned, ""},
	{"delayModLFO", sf2GenTimecents, "ms"},
	{"freqModLFO", sf2GenAbsCents, "Hz"},
	{"delayVibLFO", sf2GenTimecents, "ms"},
	{"freqVibLFO", sf2GenAbsCents, "Hz"},
	{"delayModEnv", sf2GenTimecents, "ms"},
	{"attackModEnv", sf2GenTimecents, "ms"},
	{"holdModEnv", sf2GenTimecents, "ms"},
	{"decayModEnv", sf2GenTimecents, "ms"},
	{"sustainModEnv", sf2GenPercent, "%"},
	{"releaseModEnv", sf2GenTimecents, "ms"},
	{"keynumToModEnvHold", sf2GenSigned, "tcent/key"},
	{"keynumToModEnvDecay", sf2GenSigned, "tcent/key"},
	{"delayVolEnv", sf2GenTimecents, "ms"},
	{"attackVolEnv", sf2GenTimecents, "ms"},
	{"holdVolEnv", sf2GenTimecents, "ms"},
	{"decayVolEnv", sf2GenTimecents, "ms"},
	{"sustainVolEnv", sf2GenCentibels, "dB"},
	{"releaseVolEnv", sf2GenTimecents, "ms"},
	{"keynumToVolEnvHold", sf2GenSigned, "tcent/key"},
	{"keynumToVolEnvDecay", sf2GenSigned, "tcent/key"},
	{"instrument", sf2GenUnsigned, "index"},
	{"reserved1", sf2GenUnsigned, ""},
	{"keyRange", sf2GenRange, "keys"},
	{"velRange", sf2GenRange, "velocity"},
	{"startloopAddrsCoarseOffset", sf2GenCoarseOffset, "samples"},
	{"keynum", sf2GenSigned, "key"},
	{"velocity", sf2GenSigned, "velocity"},
	{"initialAttenuation", sf2GenCentibels, "dB"},
	{"reserved2", sf2GenUnsigned, ""},
	{"endloopAddrsCoarseOffset", sf2GenCoarseOffset, "samples"},
	{"coarseTune", sf2GenSigned, "semitones"},
	{"fineTune", sf2GenSigned, "cents"},
	{"sampleID", sf2GenUnsigned, "index"},
	{"sampleModes", sf2GenUnsigned, "flags"},
	{"reserved3", sf2GenUnsigned, ""},
	{"scaleTuning", sf2GenSigned, "cents/key"},
	{"exclusiveClass", sf2GenUnsigned, "class"},
	{"overridingRootKey", sf2GenSigned, "key"},
	{"unused5", sf2GenUnsigned, ""},
	{"endOper", sf2GenUnsigned, ""},
}

// SF2GeneratorValue is a generator amount converted to engineering units
type SF2GeneratorValue struct {
	Oper  uint16
	Name  string
	Raw   uint16
	Value float64
	Unit  string
	Low   uint8 // range generators only
	High  uint8
}

// IsRange reports whether the value is a lo/hi byte pair
func (v SF2GeneratorValue) IsRange() bool {
	return v.Oper == SF2_GEN_KEY_RANGE || v.Oper == SF2_GEN_VEL_RANGE
}

func (v SF2GeneratorValue) String() string {
	if v.IsRange() {
		return fmt.Sprintf("%s=%d-%d", v.Name, v.Low, v.High)
	}
	if v.Unit == "" {
		return fmt.Sprintf("%s=%d", v.Name, v.Raw)
	}
	return fmt.Sprintf("%s=%.4g %s", v.Name, v.Value, v.Unit)
}

// SF2GeneratorName returns the operator name, or "gen<N>" outside the table
func SF2GeneratorName(oper uint16) string {
	if int(oper) < len(sf2GenTable) {
		return sf2GenTable[oper].name
	}
	return fmt.Sprintf("gen%d", oper)
}

// InterpretGenerator converts a raw generator amount to its unit
func InterpretGenerator(oper, amount uint16) SF2GeneratorValue {
	v := SF2GeneratorValue{Oper: oper, Name: SF2GeneratorName(oper), Raw: amount}
	if int(oper) >= len(sf2GenTable) {
		v.Value = float64(amount)
		return v
	}
	info := sf2GenTable[oper]
	v.Unit = info.unit
	signed := float64(int16(amount))

	switch info.kind {
	case sf2GenSigned:
		v.Value = signed
	case sf2GenUnsigned:
		v.Value = float64(amount)
	case sf2GenRange:
		v.Low = uint8(amount & 0xFF)
		v.High = uint8(amount >> 8)
		v.Value = float64(v.High) - float64(v.Low)
	case sf2GenTimecents:
		v.Value = TimecentsToMs(int16(amount))
	case sf2GenCentibels:
		v.Value = signed / 10
	case sf2GenAbsCents:
		v.Value = AbsCentsToHz(int16(amount))
	case sf2GenPercent:
		v.Value = signed / 10
	case sf2GenCoarseOffset:
		v.Value = signed * 32768
	}
	return v
}

// TimecentsToMs converts timecents to milliseconds. -32768 is "instant".
func TimecentsToMs(tc int16) float64 {
	if tc == math.MinInt16 {
		return 0
	}
	return 1000 * math.Pow(2, float64(tc)/1200)
}

// AbsCentsToHz converts absolute cents to a frequency
func AbsCentsToHz(c int16) float64 {
	return SF2_ABS_CENTS_HZ * math.Pow(2, float64(c)/1200)
}

// CentibelsToGain converts an attenuation in centibels to linear amplitude
func CentibelsToGain(cb float64) float64 {
	if cb <= 0 {
		return 1
	}
	return math.Pow(10, -cb/200)
}

// KeyToFrequency returns the equal-tempered frequency of a MIDI key
func KeyToFrequency(key float64) float64 {
	return SF2_A4_HZ * math.Pow(2, (key-SF2_A4_KEY)/12)
}
