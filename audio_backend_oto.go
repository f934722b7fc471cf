//go:build !headless

// audio_backend_oto.go - oto/v3 audio output implementation

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// OtoPlayer drives a Mixer through oto/v3's pull-based Reader interface.
// Each Read call is one audio_callback span (spec §4.1): the player
// tracks its own EmuTime cursor and advances it by exactly the number
// of host-rate samples oto asked for.
type OtoPlayer struct {
	ctx    *oto.Context
	player *oto.Player

	mixer   atomic.Pointer[Mixer] // atomic for lock-free Read()
	hostHz  int
	emuTime EmuTime

	sampleBuf []int16
	started   bool
	mutex     sync.Mutex // setup/control operations only
}

func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   4,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &OtoPlayer{
		ctx:     ctx,
		hostHz:  sampleRate,
		started: false,
	}, nil
}

// SetupPlayer wires a Mixer to the output stream. bootTime is the
// machine-boot EmuTime the first callback's span starts from.
func (op *OtoPlayer) SetupPlayer(m *Mixer, bootTime EmuTime) {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	op.emuTime = bootTime
	op.mixer.Store(m)
	op.player = op.ctx.NewPlayer(op)
	op.sampleBuf = make([]int16, 4096)
}

func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	m := op.mixer.Load()
	if m == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	frames := len(p) / 4 // 2 channels * 2 bytes/sample
	if frames == 0 {
		return 0, nil
	}
	numSamples := frames * 2

	if len(op.sampleBuf) < numSamples {
		op.sampleBuf = make([]int16, numSamples)
	}
	samples := op.sampleBuf[:numSamples]

	op.emuTime = op.emuTime.Add(SamplesToEmuDuration(frames, op.hostHz))
	m.AudioCallback(samples, frames, op.emuTime)

	byteLen := numSamples * 2
	copy(p, (*[1 << 30]byte)(unsafe.Pointer(&samples[0]))[:byteLen])
	for i := byteLen; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (op *OtoPlayer) Start() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
}

func (op *OtoPlayer) Stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.started && op.player != nil {
		op.player.Close()
		op.started = false
	}
}

func (op *OtoPlayer) Close() {
	op.Stop()
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.player != nil {
		op.player.Close()
		op.player = nil
	}
}

func (op *OtoPlayer) IsStarted() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.started
}
