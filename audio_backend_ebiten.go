//go:build !headless

// audio_backend_ebiten.go - Ebiten audio output for the sample bank engine

package main

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// EbitenPlayer streams engine output through ebiten's audio context. The
// context only accepts stereo float32, so mono engines are duplicated to
// both sides.
type EbitenPlayer struct {
	ctx     *audio.Context
	player  *audio.Player
	stream  *ebitenStream
	started bool
	mutex   sync.Mutex
}

type ebitenStream struct {
	engine atomic.Pointer[SF2Engine]
	frame  []float32 // engine-layout scratch
	buf    []float32 // stereo output scratch
}

func NewEbitenPlayer(sampleRate int) (*EbitenPlayer, error) {
	ctx := audio.CurrentContext()
	if ctx == nil {
		ctx = audio.NewContext(sampleRate)
	}
	stream := &ebitenStream{}
	player, err := ctx.NewPlayerF32(stream)
	if err != nil {
		return nil, err
	}
	player.SetBufferSize(20 * time.Millisecond)
	return &EbitenPlayer{ctx: ctx, player: player, stream: stream}, nil
}

func (s *ebitenStream) Read(p []byte) (int, error) {
	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	engine := s.engine.Load()
	if engine == nil {
		clear(p[:frames*8])
		return frames * 8, nil
	}
	nch := engine.Channels()
	if len(s.frame) < frames*nch {
		s.frame = make([]float32, frames*nch)
	}
	if len(s.buf) < frames*2 {
		s.buf = make([]float32, frames*2)
	}
	src := s.frame[:frames*nch]
	engine.ReadInterleaved(src)
	out := s.buf[:frames*2]
	for i := 0; i < frames; i++ {
		out[i*2] = src[i*nch]
		out[i*2+1] = src[i*nch+min(1, nch-1)]
	}
	copy(p, unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), frames*8))
	return frames * 8, nil
}

func (ep *EbitenPlayer) SetupPlayer(engine *SF2Engine) {
	ep.mutex.Lock()
	defer ep.mutex.Unlock()

	ep.stream.engine.Store(engine)
}

func (ep *EbitenPlayer) Start() {
	ep.mutex.Lock()
	defer ep.mutex.Unlock()

	if !ep.started && ep.player != nil {
		ep.player.Play()
		ep.started = true
	}
}

func (ep *EbitenPlayer) Stop() {
	ep.mutex.Lock()
	defer ep.mutex.Unlock()

	if ep.started && ep.player != nil {
		ep.player.Pause()
		ep.started = false
	}
}

func (ep *EbitenPlayer) Close() {
	ep.Stop()
	ep.mutex.Lock()
	defer ep.mutex.Unlock()

	if ep.player != nil {
		_ = ep.player.Close()
		ep.player = nil
	}
}

func (ep *EbitenPlayer) IsStarted() bool {
	ep.mutex.Lock()
	defer ep.mutex.Unlock()
	return ep.started
}
