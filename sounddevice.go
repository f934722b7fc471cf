// sounddevice.go - the SoundDevice capability contract every chip implements

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

import "fmt"

// ChannelMode tells the mixer how to fold a registered channel's mono
// output into the stereo accumulator. Grounded on original_source's
// Mixer.hh enum (MONO, MONO_LEFT, MONO_RIGHT, STEREO), generalized from
// four fixed device buckets to a per-device property (spec §4.1).
type ChannelMode int

const (
	ModeMono ChannelMode = iota
	ModeMonoLeft
	ModeMonoRight
	ModeStereoPair
)

// MaxChipChannels bounds a single chip's channel count (spec §3: "1..18",
// OPL3's 18 operator slots arranged as up to 18 two-op channels being the
// widest case).
const MaxChipChannels = 18

// SoundDevice is the capability set every emulated chip provides (spec
// §4.2). Dynamic dispatch is expressed as a Go interface rather than the
// teacher's/original's virtual method table, per spec §9's "Dynamic
// dispatch" note.
type SoundDevice interface {
	// Name identifies the device for diagnostics and save-state tags.
	Name() string

	// ChannelCount returns C, the number of output channel buffers
	// GenerateChannels expects (1..MaxChipChannels).
	ChannelCount() int

	// ChannelMode returns how the mixer folds channel c (0-based) into
	// the stereo accumulator.
	ChannelMode(c int) ChannelMode

	// SetSampleRate is called exactly once at registration. The chip
	// precomputes rate-dependent resampling tables here; f_chip (the
	// chip's own natural rate) was fixed at construction and never
	// changes (spec §3 invariant).
	SetSampleRate(hostHz int)

	// GenerateChannels appends n samples to each of bufs[0:ChannelCount()].
	// Must not read register state mutated by a write whose emu_time
	// falls inside this span — callers (the mixer, via WriteRegister's
	// own UpdateStream call) guarantee the span never straddles a write.
	GenerateChannels(bufs [][]float32, n int)

	// AmplificationFactor scales raw chip output into the mixer's
	// normalized range before the final 16-bit clip.
	AmplificationFactor() float32

	// IsMuted reports internalMute || userMute (spec §4.2).
	IsMuted() bool

	// SetUserMute sets the UI-facing mute flag.
	SetUserMute(muted bool)

	// Reset restores hardware-reset state as of emuTime.
	Reset(emuTime EmuTime)

	// PeekRegister reads a register with no side effects (introspection,
	// save-state capture).
	PeekRegister(reg int) uint8
}

// RegisteredSoundDevice additionally supports register writes/reads
// time-stamped against the shared emulated clock (spec §4.2). Not every
// internal test double needs this (some mixer tests drive raw
// SoundDevice stubs), so it's a separate, narrower interface chips
// compose into.
type RegisteredSoundDevice interface {
	SoundDevice
	WriteRegister(reg int, val uint8, emuTime EmuTime)
	ReadRegister(reg int, emuTime EmuTime) uint8
}

// MixerUpdater is the narrow back-reference a chip uses to flush the
// mixer's pending samples before an audible register write takes effect
// (spec §9 "Cyclic references": the chip holds a back-reference to the
// mixer, the mixer holds the chip via a non-owning slot). *Mixer
// satisfies this directly.
type MixerUpdater interface {
	UpdateStream(time EmuTime)
}

// mixerAware is implemented by chip cores that accept the back-reference
// automatically wired up by Mixer.RegisterSound.
type mixerAware interface {
	setMixer(m MixerUpdater)
}

// AYPeriphery is the callback interface the AY-3-8910's I/O ports A/B
// consume (spec §6). Grounded on original_source's AY8910Interface.
type AYPeriphery interface {
	ReadPortA(emuTime EmuTime) uint8
	ReadPortB(emuTime EmuTime) uint8
	WritePortA(value uint8, emuTime EmuTime)
	WritePortB(value uint8, emuTime EmuTime)
}

// IRQSink receives level-triggered IRQ state changes from OPL3's timers
// and Y8950's timers/ADPCM status (spec §6).
type IRQSink interface {
	SetIRQ(asserted bool)
}

// NullIRQSink discards IRQ requests; used when a chip is driven standalone
// with nothing wired to its interrupt line.
type NullIRQSink struct{}

func (NullIRQSink) SetIRQ(bool) {}

// ADPCMMemory is Y8950's sample RAM/ROM bus (spec §6). Out-of-range
// accesses return 0 rather than erroring (spec §7).
type ADPCMMemory interface {
	ReadMem(addr uint32) uint8
	WriteMem(addr uint32, value uint8)
}

// flatADPCMMemory is the simplest ADPCMMemory: a single flat byte slice,
// reads past the end returning 0 per spec §7.
type flatADPCMMemory struct {
	data []byte
}

func newFlatADPCMMemory(size int) *flatADPCMMemory {
	return &flatADPCMMemory{data: make([]byte, size)}
}

func (m *flatADPCMMemory) ReadMem(addr uint32) uint8 {
	if int(addr) >= len(m.data) {
		return 0
	}
	return m.data[addr]
}

func (m *flatADPCMMemory) WriteMem(addr uint32, value uint8) {
	if int(addr) >= len(m.data) {
		return
	}
	m.data[addr] = value
}

// ErrTooManyChannels is returned by Mixer.RegisterSound when a device
// requests more channels than MaxChipChannels (spec §4.1 failure
// semantics: "Fails if channel_count > per-mixer max").
var ErrTooManyChannels = fmt.Errorf("msxaudio: channel count exceeds mixer maximum of %d", MaxChipChannels)
