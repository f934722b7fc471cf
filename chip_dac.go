// chip_dac.go - 8-bit unsigned DAC (Konami SCC-less synthesizer cartridges)

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

import "sync"

// dacCenter is the unsigned 8-bit DAC's idle code (spec §4.9).
const dacCenter = 0x80

// DACSound is an 8-bit unsigned DAC: every write latches a value that
// holds until the next write (step-and-hold). Grounded on
// original_source's DACSound.hh member layout (volTable, DACValue); the
// chip keeps only the last-written value, so the write's own timestamp
// matters only through the mixer flush WriteRegister performs first, and
// GenerateChannels repeats the held value for every host sample.
type DACSound struct {
	mu sync.Mutex

	volTable [256]int16
	value    uint8

	userMute bool

	mixer MixerUpdater
}

func (d *DACSound) setMixer(m MixerUpdater) { d.mixer = m }

// NewDACSound constructs a DAC whose volTable linearly scales the 8-bit
// unsigned input around dacCenter up to maxVolume, mirroring
// DACSound::setInternalVolume's intent (the .cc implementation was not
// recovered, so the table is built directly from the documented unsigned
// 8-bit-centered-at-0x80 contract).
func NewDACSound(maxVolume int16) (*DACSound, error) {
	d := &DACSound{}
	d.setInternalVolume(maxVolume)
	d.Reset(0)
	return d, nil
}

func (d *DACSound) setInternalVolume(maxVolume int16) {
	for i := 0; i < 256; i++ {
		d.volTable[i] = int16((int32(i-dacCenter) * int32(maxVolume)) / dacCenter)
	}
}

func (d *DACSound) Name() string                { return "DAC" }
func (d *DACSound) ChannelCount() int           { return 1 }
func (d *DACSound) ChannelMode(int) ChannelMode { return ModeMono }
func (d *DACSound) AmplificationFactor() float32 { return 1.0 }

func (d *DACSound) IsMuted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.userMute
}

func (d *DACSound) SetUserMute(muted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.userMute = muted
}

func (d *DACSound) SetSampleRate(int) {}

func (d *DACSound) Reset(EmuTime) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = dacCenter
}

// PeekRegister exposes the single held sample value.
func (d *DACSound) PeekRegister(int) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

func (d *DACSound) ReadRegister(reg int, _ EmuTime) uint8 { return d.PeekRegister(reg) }

// WriteRegister sets the DAC's held output value. Like AY8910, it first
// flushes the mixer up to emuTime (when registered with one), so no write
// straddles a GenerateChannels call, then latches the new value.
func (d *DACSound) WriteRegister(_ int, value uint8, emuTime EmuTime) {
	if d.mixer != nil {
		d.mixer.UpdateStream(emuTime)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = value
}

// GenerateChannels holds the last-written value for n samples
// (step-and-hold resampling, spec §4.9).
func (d *DACSound) GenerateChannels(bufs [][]float32, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(bufs) < 1 {
		return
	}
	sample := float32(d.volTable[d.value]) / 32768.0
	buf := bufs[0]
	for i := 0; i < n; i++ {
		buf[i] = sample
	}
}
