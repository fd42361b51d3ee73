//go:build headless

// audio_backend_headless.go - Device-less audio output for headless builds

package main

func init() {
	compiledFeatures = append(compiledFeatures, "audio:headless")
}

// OtoPlayer without an audio device. Read still pulls from the engine so
// headless runs exercise the same render path.
type OtoPlayer struct {
	started  bool
	channels int
	engine   *SF2Engine
	buf      []float32
}

func NewOtoPlayer(sampleRate, channels int) (*OtoPlayer, error) {
	return &OtoPlayer{channels: channels}, nil
}

func (op *OtoPlayer) SetupPlayer(engine *SF2Engine) {
	op.engine = engine
}

func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	if op.engine != nil {
		if need := len(p) / 4; len(op.buf) < need {
			op.buf = make([]float32, need)
		}
		op.engine.ReadInterleaved(op.buf[:len(p)/4])
	}
	return len(p), nil
}

func (op *OtoPlayer) Start() {
	op.started = true
}

func (op *OtoPlayer) Stop() {
	op.started = false
}

func (op *OtoPlayer) Close() {
	op.started = false
}

func (op *OtoPlayer) IsStarted() bool {
	return op.started
}
