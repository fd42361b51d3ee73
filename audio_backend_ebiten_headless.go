//go:build headless

// audio_backend_ebiten_headless.go - Ebiten player stand-in for headless builds

package main

// EbitenPlayer without an audio device
type EbitenPlayer struct {
	OtoPlayer
}

func NewEbitenPlayer(sampleRate int) (*EbitenPlayer, error) {
	return &EbitenPlayer{OtoPlayer{channels: 2}}, nil
}
