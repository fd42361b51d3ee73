//go:build linux && alsa && !headless

// audio_backend_alsa.go - ALSA audio output, a push-model writer thread

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

/*
#cgo LDFLAGS: -lasound
#include <alsa/asoundlib.h>
#include <stdlib.h>

static snd_pcm_t* openPCM(const char* device, int* err) {
    snd_pcm_t* handle;
    *err = snd_pcm_open(&handle, device, SND_PCM_STREAM_PLAYBACK, 0);
    return handle;
}

static int setupPCM(snd_pcm_t* handle, unsigned int rate, unsigned int channels) {
    snd_pcm_hw_params_t* params;
    int err;

    snd_pcm_hw_params_alloca(&params);
    err = snd_pcm_hw_params_any(handle, params);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_access(handle, params, SND_PCM_ACCESS_RW_INTERLEAVED);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_format(handle, params, SND_PCM_FORMAT_FLOAT);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_channels(handle, params, channels);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_rate(handle, params, rate, 0);
    if (err < 0) return err;

    err = snd_pcm_hw_params(handle, params);
    if (err < 0) return err;

    return snd_pcm_prepare(handle);
}

static int writePCM(snd_pcm_t* handle, float* buffer, int frames) {
    return snd_pcm_writei(handle, buffer, frames);
}

static void closePCM(snd_pcm_t* handle) {
    if (handle != NULL) {
        snd_pcm_drain(handle);
        snd_pcm_close(handle);
    }
}
*/
import "C"
import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
)

func init() {
	compiledFeatures = append(compiledFeatures, "audio:alsa")
}

// ALSAPlayer owns a writer goroutine that renders one engine block at a
// time and blocks in snd_pcm_writei, so the device paces the engine.
type ALSAPlayer struct {
	handle   *C.snd_pcm_t
	channels int
	started  bool
	mutex    sync.Mutex
	engine   *SF2Engine
	samples  []float32
	stop     chan struct{}
	done     chan struct{}
}

func NewALSAPlayer(sampleRate, channels int) (*ALSAPlayer, error) {
	var err C.int
	dev := C.CString("default")
	defer C.free(unsafe.Pointer(dev))
	handle := C.openPCM(dev, &err)
	if err < 0 {
		return nil, errors.Errorf("failed to open PCM device: %s", C.GoString(C.snd_strerror(err)))
	}

	if err = C.setupPCM(handle, C.uint(sampleRate), C.uint(channels)); err < 0 {
		C.closePCM(handle)
		return nil, errors.Errorf("failed to setup PCM: %s", C.GoString(C.snd_strerror(err)))
	}

	return &ALSAPlayer{
		handle:   handle,
		channels: channels,
	}, nil
}

func (ap *ALSAPlayer) SetupPlayer(engine *SF2Engine) {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()
	ap.engine = engine
	ap.samples = make([]float32, engine.BlockSize()*ap.channels)
}

func (ap *ALSAPlayer) IsStarted() bool {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()
	return ap.started
}

func (ap *ALSAPlayer) write(samples []float32) error {
	frames := C.int(len(samples) / ap.channels)
	n := C.writePCM(ap.handle, (*C.float)(unsafe.Pointer(&samples[0])), frames)
	if n < 0 {
		if n == -C.EPIPE {
			C.snd_pcm_prepare(ap.handle)
			n = C.writePCM(ap.handle, (*C.float)(unsafe.Pointer(&samples[0])), frames)
		}
		if n < 0 {
			return errors.Errorf("write failed: %s", C.GoString(C.snd_strerror(C.int(n))))
		}
	}
	return nil
}

func (ap *ALSAPlayer) Start() {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()

	if ap.started || ap.engine == nil || ap.handle == nil {
		return
	}
	ap.started = true
	ap.stop = make(chan struct{})
	ap.done = make(chan struct{})
	go func(engine *SF2Engine, buf []float32, stop, done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			engine.ReadInterleaved(buf)
			if err := ap.write(buf); err != nil {
				return
			}
		}
	}(ap.engine, ap.samples, ap.stop, ap.done)
}

func (ap *ALSAPlayer) Stop() {
	ap.mutex.Lock()
	if !ap.started {
		ap.mutex.Unlock()
		return
	}
	ap.started = false
	close(ap.stop)
	done := ap.done
	ap.mutex.Unlock()
	<-done
}

func (ap *ALSAPlayer) Close() {
	ap.Stop()
	ap.mutex.Lock()
	defer ap.mutex.Unlock()

	if ap.handle != nil {
		C.closePCM(ap.handle)
		ap.handle = nil
	}
}

func newALSAOutput(sampleRate, channels int) (AudioOutput, error) {
	return NewALSAPlayer(sampleRate, channels)
}
