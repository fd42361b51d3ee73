// sf2_voice.go - Sample playback parts and polyphonic voices

package main

import "math"

// Part plays one sample region into one output channel. Only position and
// gain change after Start; the region is shared read-only with the bank.
type Part struct {
	region   *SampleRegion
	active   bool
	position float64
	rate     float64
	gain     float32
	interp   int
}

// SetRegion binds the region for the next Start. nil leaves the part inert.
func (p *Part) SetRegion(r *SampleRegion) {
	p.region = r
}

// SetInterpolation selects SF2_INTERP_NEAREST or SF2_INTERP_LINEAR
func (p *Part) SetInterpolation(mode int) {
	p.interp = mode
}

// Start begins playback at frequency Hz with the given linear gain
func (p *Part) Start(gain, frequency, outputRate float64) {
	p.position = 0
	r := p.region
	if r == nil || len(r.Data) == 0 || outputRate <= 0 || frequency <= 0 {
		p.active = false
		return
	}
	p.rate = (frequency / r.RootFrequency()) * (r.SampleRate / outputRate)
	p.gain = float32(gain * SF2_VOICE_HEADROOM * CentibelsToGain(r.Attenuation))
	p.active = true
}

// Stop silences the part immediately
func (p *Part) Stop() {
	p.active = false
}

func (p *Part) Active() bool { return p.active }

// Rate returns the per-frame read increment
func (p *Part) Rate() float64 { return p.rate }

// Gain returns the applied linear gain
func (p *Part) Gain() float32 { return p.gain }

// Position returns the fractional read position
func (p *Part) Position() float64 { return p.position }

// Process adds frames [start, end) into out and reports whether the part
// is still sounding. Looping parts wrap into [LoopStart, LoopEnd) keeping
// the fractional overshoot; others stop at the end of the sample.
func (p *Part) Process(start, end int, out []float32) bool {
	if !p.active {
		return false
	}
	r := p.region
	data := r.Data
	loopStart := float64(r.LoopStart)
	loopEnd := float64(r.LoopEnd)
	end = min(end, len(out))

	for i := start; i < end; i++ {
		if r.Looping && p.position >= loopEnd {
			p.position = loopStart + math.Mod(p.position-loopStart, loopEnd-loopStart)
		}
		idx := int(p.position)
		if idx >= len(data) {
			p.active = false
			break
		}
		s := float32(data[idx])
		if p.interp == SF2_INTERP_LINEAR {
			next := idx + 1
			if r.Looping && next >= r.LoopEnd {
				next = r.LoopStart
			}
			if next < len(data) {
				frac := float32(p.position - float64(idx))
				s += (float32(data[next]) - s) * frac
			}
		}
		out[i] += s * SF2_PCM_SCALE * p.gain
		p.position += p.rate
	}
	return p.active
}

// VoiceState tracks a voice through allocation
type VoiceState int

const (
	VOICE_IDLE VoiceState = iota
	VOICE_ACTIVE
	VOICE_STOLEN // reclaimed for a new note, not yet restarted
)

func (s VoiceState) String() string {
	switch s {
	case VOICE_IDLE:
		return "idle"
	case VOICE_ACTIVE:
		return "active"
	case VOICE_STOLEN:
		return "stolen"
	}
	return "unknown"
}

// Voice is one polyphony slot: one Part per output channel playing the
// same region
type Voice struct {
	Channel   uint8
	Note      uint8
	Velocity  uint8
	Timestamp uint64 // engine frame clock at note-on
	Serial    uint64 // allocation order, breaks timestamp ties

	state      VoiceState
	descriptor *PlaybackDescriptor
	parts      []Part
}

// NewVoice creates an idle voice with one part per output channel
func NewVoice(channels int) *Voice {
	return &Voice{parts: make([]Part, max(channels, 1))}
}

func (v *Voice) State() VoiceState { return v.state }

func (v *Voice) Descriptor() *PlaybackDescriptor { return v.descriptor }

// Part returns the part for an output channel
func (v *Voice) Part(ch int) *Part { return &v.parts[ch] }

// SetDescriptor retargets the voice for its next note
func (v *Voice) SetDescriptor(d *PlaybackDescriptor) {
	v.descriptor = d
}

func (v *Voice) SetInterpolation(mode int) {
	for i := range v.parts {
		v.parts[i].SetInterpolation(mode)
	}
}

// NoteOn starts the voice. With no playable region every part stays inert
// and the voice remains idle.
func (v *Voice) NoteOn(channel, note, velocity uint8, timestamp, serial uint64, outputRate float64) {
	v.Channel = channel
	v.Note = note
	v.Velocity = velocity
	v.Timestamp = timestamp
	v.Serial = serial

	region := v.descriptor.Region(note, velocity)
	gain := float64(velocity) / 127
	freq := KeyToFrequency(float64(note))
	sounding := false
	for i := range v.parts {
		v.parts[i].SetRegion(region)
		v.parts[i].Start(gain, freq, outputRate)
		sounding = sounding || v.parts[i].Active()
	}
	if sounding {
		v.state = VOICE_ACTIVE
	} else {
		v.state = VOICE_IDLE
	}
}

// NoteOff ends the note. There is no release stage, so this is a reset.
func (v *Voice) NoteOff() {
	v.Reset()
}

// Steal marks the voice as reclaimed and silences it
func (v *Voice) Steal() {
	for i := range v.parts {
		v.parts[i].Stop()
	}
	v.state = VOICE_STOLEN
}

// Matches reports whether the voice is sounding this channel and note
func (v *Voice) Matches(channel, note uint8) bool {
	return v.state == VOICE_ACTIVE && v.Channel == channel && v.Note == note
}

// Reset returns the voice to idle
func (v *Voice) Reset() {
	for i := range v.parts {
		v.parts[i].Stop()
	}
	v.state = VOICE_IDLE
}

// Process renders [start, end) into the per-channel buffers. The voice
// goes idle once every part has finished.
func (v *Voice) Process(start, end int, out [][]float32) bool {
	if v.state != VOICE_ACTIVE {
		return false
	}
	sounding := false
	for i := range v.parts {
		if i >= len(out) {
			break
		}
		if v.parts[i].Process(start, end, out[i]) {
			sounding = true
		}
	}
	if !sounding {
		v.state = VOICE_IDLE
	}
	return sounding
}
