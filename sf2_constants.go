// sf2_constants.go - SoundFont 2 container, generator and engine constants

package main

// RIFF chunk tags
const (
	SF2_TAG_RIFF = "RIFF"
	SF2_TAG_LIST = "LIST"
	SF2_FORM     = "sfbk"

	SF2_LIST_INFO = "INFO"
	SF2_LIST_SDTA = "sdta"
	SF2_LIST_PDTA = "pdta"

	SF2_TAG_SMPL = "smpl"
	SF2_TAG_PHDR = "phdr"
	SF2_TAG_PBAG = "pbag"
	SF2_TAG_PMOD = "pmod"
	SF2_TAG_PGEN = "pgen"
	SF2_TAG_INST = "inst"
	SF2_TAG_IBAG = "ibag"
	SF2_TAG_IMOD = "imod"
	SF2_TAG_IGEN = "igen"
	SF2_TAG_SHDR = "shdr"
)

// pdta record widths in bytes
const (
	SF2_PHDR_SIZE = 38
	SF2_BAG_SIZE  = 4
	SF2_MOD_SIZE  = 10
	SF2_GEN_SIZE  = 4
	SF2_INST_SIZE = 22
	SF2_SHDR_SIZE = 46

	SF2_CHUNK_HEADER_SIZE = 8
	SF2_NAME_SIZE         = 20
)

// Sample types (shdr sfSampleType)
const (
	SF2_SAMPLE_MONO   = 0x0001
	SF2_SAMPLE_RIGHT  = 0x0002
	SF2_SAMPLE_LEFT   = 0x0004
	SF2_SAMPLE_LINKED = 0x0008
	SF2_SAMPLE_ROM    = 0x8000 // also used by writers to tag the terminal record

	SF2_EOS_NAME = "EOS"
)

// Generator operators used by the resolver
const (
	SF2_GEN_START_ADDRS_OFFSET            = 0
	SF2_GEN_END_ADDRS_OFFSET              = 1
	SF2_GEN_STARTLOOP_ADDRS_OFFSET        = 2
	SF2_GEN_ENDLOOP_ADDRS_OFFSET          = 3
	SF2_GEN_START_ADDRS_COARSE_OFFSET     = 4
	SF2_GEN_END_ADDRS_COARSE_OFFSET       = 12
	SF2_GEN_PAN                           = 17
	SF2_GEN_INSTRUMENT                    = 41
	SF2_GEN_KEY_RANGE                     = 43
	SF2_GEN_VEL_RANGE                     = 44
	SF2_GEN_STARTLOOP_ADDRS_COARSE_OFFSET = 45
	SF2_GEN_KEYNUM                        = 46
	SF2_GEN_VELOCITY                      = 47
	SF2_GEN_INITIAL_ATTENUATION           = 48
	SF2_GEN_ENDLOOP_ADDRS_COARSE_OFFSET   = 50
	SF2_GEN_COARSE_TUNE                   = 51
	SF2_GEN_FINE_TUNE                     = 52
	SF2_GEN_SAMPLE_ID                     = 53
	SF2_GEN_SAMPLE_MODES                  = 54
	SF2_GEN_SCALE_TUNING                  = 56
	SF2_GEN_EXCLUSIVE_CLASS               = 57
	SF2_GEN_OVERRIDING_ROOT_KEY           = 58
	SF2_GEN_END_OPER                      = 60

	SF2_GEN_COUNT = 61
)

// sampleModes values
const (
	SF2_LOOP_NONE       = 0
	SF2_LOOP_CONTINUOUS = 1
	SF2_LOOP_UNUSED     = 2 // treated as no loop
	SF2_LOOP_RELEASE    = 3 // loops while the key is held; no release stage here, so continuous
)

// Engine defaults
const (
	SF2_DEFAULT_SAMPLE_RATE = 44100
	SF2_DEFAULT_VOICES      = 16
	SF2_DEFAULT_BLOCK       = 128
	SF2_DEFAULT_CHANNELS    = 2
	SF2_MIDI_CHANNELS       = 16
	SF2_PROGRAM_COUNT       = 128

	SF2_VOICE_HEADROOM = 0.3 // per-voice gain headroom before summing
	SF2_PCM_SCALE      = 1.0 / 32768.0
	SF2_A4_KEY         = 69
	SF2_A4_HZ          = 440.0
	SF2_ABS_CENTS_HZ   = 8.176 // frequency of absolute cent 0

	SF2_EVENT_QUEUE = 1024 // live event channel depth
)

// Part interpolation modes
const (
	SF2_INTERP_NEAREST = iota
	SF2_INTERP_LINEAR
)

// MIDI controller numbers handled by the scheduler
const (
	SF2_CC_ALL_SOUND_OFF = 120
	SF2_CC_ALL_NOTES_OFF = 123
)
