// audio_output.go - Audio backend selection

package main

import "github.com/pkg/errors"

// Audio backends
const (
	AUDIO_BACKEND_OTO    = "oto"
	AUDIO_BACKEND_EBITEN = "ebiten"
	AUDIO_BACKEND_ALSA   = "alsa"
)

// AudioOutput is a realtime device pulling frames from an engine
type AudioOutput interface {
	SetupPlayer(engine *SF2Engine)
	Start()
	Stop()
	Close()
	IsStarted() bool
}

// NewAudioOutput opens the named backend and attaches engine to it
func NewAudioOutput(backend string, sampleRate int, engine *SF2Engine) (AudioOutput, error) {
	var out AudioOutput
	switch backend {
	case "", AUDIO_BACKEND_OTO:
		p, err := NewOtoPlayer(sampleRate, engine.Channels())
		if err != nil {
			return nil, err
		}
		out = p
	case AUDIO_BACKEND_EBITEN:
		p, err := NewEbitenPlayer(sampleRate)
		if err != nil {
			return nil, err
		}
		out = p
	case AUDIO_BACKEND_ALSA:
		p, err := newALSAOutput(sampleRate, engine.Channels())
		if err != nil {
			return nil, err
		}
		out = p
	default:
		return nil, errors.Errorf("unknown audio backend %q", backend)
	}
	out.SetupPlayer(engine)
	return out, nil
}
