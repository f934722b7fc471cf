//go:build !headless

// audio_backend_alsa.go - ALSA audio output implementation

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

/*
#cgo LDFLAGS: -lasound
#cgo CFLAGS: -Ofast -march=native -mtune=native -flto
#include <alsa/asoundlib.h>
#include <stdlib.h>

static snd_pcm_t* openPCM(const char* device, int* err) {
    snd_pcm_t* handle;
    *err = snd_pcm_open(&handle, device, SND_PCM_STREAM_PLAYBACK, 0);
    return handle;
}

static int setupPCM(snd_pcm_t* handle, unsigned int rate) {
    snd_pcm_hw_params_t* params;
    int err;

    snd_pcm_hw_params_alloca(&params);
    err = snd_pcm_hw_params_any(handle, params);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_access(handle, params, SND_PCM_ACCESS_RW_INTERLEAVED);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_format(handle, params, SND_PCM_FORMAT_S16_LE);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_channels(handle, params, 2);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_rate(handle, params, rate, 0);
    if (err < 0) return err;

    err = snd_pcm_hw_params(handle, params);
    if (err < 0) return err;

    return snd_pcm_prepare(handle);
}

static int writePCM(snd_pcm_t* handle, short* buffer, int frames) {
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
	"fmt"
	"sync"
	"unsafe"
)

const alsaPullFrames = 1024

// ALSAPlayer pulls audio from a Mixer on a dedicated goroutine and
// pushes it to ALSA, mirroring the push-vs-pull split the teacher's
// oto backend handles via the Reader interface: ALSA has no equivalent
// pull callback, so the pump loop plays that role here instead.
type ALSAPlayer struct {
	handle *C.snd_pcm_t

	mixer   *Mixer
	hostHz  int
	emuTime EmuTime

	samples []int16

	started bool
	playing bool
	mutex   sync.Mutex

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewALSAPlayer(sampleRate int) (*ALSAPlayer, error) {
	var err C.int
	handle := C.openPCM(C.CString("default"), &err)
	if err < 0 {
		return nil, fmt.Errorf("failed to open PCM device: %s", C.GoString(C.snd_strerror(err)))
	}

	if err = C.setupPCM(handle, C.uint(sampleRate)); err < 0 {
		C.closePCM(handle)
		return nil, fmt.Errorf("failed to setup PCM: %s", C.GoString(C.snd_strerror(err)))
	}

	return &ALSAPlayer{
		handle:  handle,
		hostHz:  sampleRate,
		samples: make([]int16, alsaPullFrames*2),
	}, nil
}

func (ap *ALSAPlayer) SetupPlayer(m *Mixer, bootTime EmuTime) {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()
	ap.mixer = m
	ap.emuTime = bootTime
}

func (ap *ALSAPlayer) IsStarted() bool {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()
	return ap.started
}

func (ap *ALSAPlayer) pump() {
	defer close(ap.doneCh)
	for {
		select {
		case <-ap.stopCh:
			return
		default:
		}
		ap.mutex.Lock()
		m := ap.mixer
		if m == nil {
			ap.mutex.Unlock()
			return
		}
		ap.emuTime = ap.emuTime.Add(SamplesToEmuDuration(alsaPullFrames, ap.hostHz))
		m.AudioCallback(ap.samples, alsaPullFrames, ap.emuTime)
		ap.mutex.Unlock()

		frames := C.writePCM(ap.handle, (*C.short)(unsafe.Pointer(&ap.samples[0])), C.int(alsaPullFrames))
		if frames < 0 {
			if frames == -C.EPIPE {
				C.snd_pcm_prepare(ap.handle)
			}
		}
	}
}

func (ap *ALSAPlayer) Start() {
	ap.mutex.Lock()
	if ap.started {
		ap.mutex.Unlock()
		return
	}
	ap.started = true
	ap.playing = true
	ap.stopCh = make(chan struct{})
	ap.doneCh = make(chan struct{})
	ap.mutex.Unlock()

	go ap.pump()
}

func (ap *ALSAPlayer) Stop() {
	ap.mutex.Lock()
	if !ap.started {
		ap.mutex.Unlock()
		return
	}
	ap.playing = false
	ap.started = false
	stopCh := ap.stopCh
	doneCh := ap.doneCh
	ap.mutex.Unlock()

	close(stopCh)
	<-doneCh
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
