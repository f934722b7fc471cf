// mixer.go - central audio mixer: registration, update_stream, audio_callback

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// mixerChannelSlot tracks one registered device channel awaiting mixdown:
// its owning device, which of the device's channels this is, and the mode
// that channel mixes under.
type mixerChannelSlot struct {
	device  SoundDevice
	channel int
	mode    ChannelMode
}

// stereoGain is one device's host-adjustable software volume (spec §4.1's
// set_software_volume(handle, left, right, emu_time)). This is distinct
// from ChannelMode: ChannelMode is the chip's own fixed hardware pan wire
// (e.g. OPM/OPL3's per-channel pan register bits), while stereoGain is a
// per-device gain the host applies afterward, the same way a mixing-desk
// fader sits downstream of an instrument's own pan knob.
type stereoGain struct {
	left, right FP8
}

var unityGain = stereoGain{left: FP8FromInt(1), right: FP8FromInt(1)}

// Mixer is the single point every registered SoundDevice's output passes
// through before reaching the host. Grounded on original_source's
// Mixer.cc/.hh: one instance, a single (non-recursive) mutex guarding
// registration and stream state, devices bucketed by ChannelMode for
// mixdown. Generalized from Mixer.hh's four fixed device-vector buckets
// to a single slot list since spec.md §4.1 allows an arbitrary number of
// registered devices rather than a compile-time-fixed four.
type Mixer struct {
	mu sync.Mutex

	hostHz int

	slots []mixerChannelSlot

	volume   map[SoundDevice]stereoGain
	prevTime EmuTime

	// accum holds samples generated since the last AudioCallback drained
	// them. A single AudioCallback span can be split into several
	// UpdateStream-driven generation calls by register writes landing
	// mid-span (spec §4.1 scenario "mid-block register write"), so each
	// generateLocked call appends rather than overwrites; mixInto then
	// drains exactly the frames it needs off the front.
	accum map[SoundDevice][][]float32
}

// NewMixer constructs a Mixer driving the host at hostHz (spec §4.1:
// "f_host fixed for the mixer's lifetime"). bootTime anchors prevTime so
// the first UpdateStream call has a well-defined span to measure from.
func NewMixer(hostHz int, bootTime EmuTime) (*Mixer, error) {
	if hostHz <= 0 {
		return nil, errInvalidHostRate
	}
	return &Mixer{
		hostHz:   hostHz,
		prevTime: bootTime,
		accum:    make(map[SoundDevice][][]float32),
		volume:   make(map[SoundDevice]stereoGain),
	}, nil
}

var errInvalidHostRate = errorString("msxaudio: mixer host sample rate must be positive")

type errorString string

func (e errorString) Error() string { return string(e) }

// RegisterSound adds device to the mixer, calling SetSampleRate exactly
// once as spec §4.1 requires. Fails with ErrTooManyChannels if the device
// reports more channels than MaxChipChannels.
func (m *Mixer) RegisterSound(device SoundDevice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := device.ChannelCount()
	if n > MaxChipChannels {
		return ErrTooManyChannels
	}
	device.SetSampleRate(m.hostHz)
	if ma, ok := device.(mixerAware); ok {
		ma.setMixer(m)
	}
	for c := 0; c < n; c++ {
		m.slots = append(m.slots, mixerChannelSlot{
			device:  device,
			channel: c,
			mode:    device.ChannelMode(c),
		})
	}
	m.accum[device] = make([][]float32, n)
	m.volume[device] = unityGain
	return nil
}

// UnregisterSound removes every slot belonging to device. A no-op if
// device was never registered.
func (m *Mixer) UnregisterSound(device SoundDevice) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.slots[:0]
	for _, s := range m.slots {
		if s.device != device {
			kept = append(kept, s)
		}
	}
	m.slots = kept
	delete(m.accum, device)
	delete(m.volume, device)
}

// SetSoftwareVolume applies device's stereo software gain (spec §4.1's
// set_software_volume(handle, left, right, emu_time)), taking effect from
// emuTime onward. UpdateStream is called first, the same ordering
// discipline the teacher's and original's register-write path uses, so
// samples already generated for an in-flight span aren't retroactively
// rescaled.
func (m *Mixer) SetSoftwareVolume(device SoundDevice, left, right float32, emuTime EmuTime) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateStreamLocked(emuTime)
	m.volume[device] = stereoGain{left: FP8FromFloat(left), right: FP8FromFloat(right)}
}

// SetUserMute toggles a device's UI-facing mute flag, taking effect from
// emuTime onward. UpdateStream is called first so the flip doesn't
// retroactively silence (or unsilence) samples already generated for an
// in-flight span, the same ordering discipline SetSoftwareVolume uses.
func (m *Mixer) SetUserMute(device SoundDevice, muted bool, emuTime EmuTime) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateStreamLocked(emuTime)
	device.SetUserMute(muted)
}

// UpdateStream synthesizes every registered, unmuted device's output up
// to time, appends it to each device's accumulator for the next
// AudioCallback's mixdown, and advances prevTime. Grounded on Mixer.cc's
// updateStream/updtStrm pair: emu_time is monotonic non-decreasing (spec
// §3 invariant); a call with a time
// before prevTime generates nothing and leaves prevTime unchanged, so
// UpdateStream never panics.
func (m *Mixer) UpdateStream(time EmuTime) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateStreamLocked(time)
}

func (m *Mixer) updateStreamLocked(time EmuTime) {
	if time.Before(m.prevTime) {
		return
	}
	d := time.Sub(m.prevTime)
	m.prevTime = time
	if d <= 0 {
		return
	}
	n := EmuDurationToSamples(d, m.hostHz)
	if n <= 0 {
		return
	}
	m.generateLocked(n)
}

// generateLocked fans GenerateChannels calls out across the registered
// devices concurrently: spec §5.3 guarantees no cross-chip data
// dependency within one UpdateStream span, so each device's DSP state is
// advanced independently (grounded on SPEC_FULL.md §4.12's errgroup
// wiring). Muted devices contribute n samples of silence so every
// device's accumulator advances by the same number of frames regardless
// of mute state (mixInto's drain assumes all accumulators stay in
// lockstep across however many generateLocked calls make up one
// AudioCallback span). Newly generated samples are appended, not
// overwritten: a register write landing mid-span calls UpdateStream
// before mutating chip state, which can split what the host sees as one
// callback into several shorter generateLocked calls (spec §4.1 "mid-
// block register write").
func (m *Mixer) generateLocked(n int) {
	devices := make([]SoundDevice, 0, len(m.accum))
	for dev := range m.accum {
		devices = append(devices, dev)
	}

	fresh := make(map[SoundDevice][][]float32, len(devices))
	var eg errgroup.Group
	for _, dev := range devices {
		dev := dev
		bufs := make([][]float32, len(m.accum[dev]))
		for i := range bufs {
			bufs[i] = make([]float32, n)
		}
		fresh[dev] = bufs
		if dev.IsMuted() {
			continue
		}
		eg.Go(func() error {
			dev.GenerateChannels(bufs, n)
			return nil
		})
	}
	_ = eg.Wait() // GenerateChannels never returns an error; join point only

	for dev, bufs := range fresh {
		acc := m.accum[dev]
		for ch := range acc {
			acc[ch] = append(acc[ch], bufs[ch]...)
		}
	}
}

// mixInto writes n interleaved stereo int16 frames (2*n values) to out,
// draining exactly n samples off the front of every device's
// accumulator (spec §4.1 audio_callback step 3: per-mode accumulate,
// then saturating clip). Devices with fewer than n samples accumulated
// (shouldn't happen once every UpdateStream span since the last
// AudioCallback has been generated, but tolerated defensively) pad with
// silence rather than panicking.
func (m *Mixer) mixInto(out []int16, n int) {
	for j := 0; j < n; j++ {
		var left, right float32
		for _, s := range m.slots {
			bufs := m.accum[s.device]
			if s.channel >= len(bufs) || j >= len(bufs[s.channel]) {
				continue
			}
			v := bufs[s.channel][j] * s.device.AmplificationFactor()
			g, ok := m.volume[s.device]
			if !ok {
				g = unityGain
			}
			vl := v * g.left.ToFloat()
			vr := v * g.right.ToFloat()
			switch s.mode {
			case ModeMono:
				left += vl
				right += vr
			case ModeMonoLeft:
				left += vl
			case ModeMonoRight:
				right += vr
			case ModeStereoPair:
				// Stereo-pair devices present L/R as consecutive channel
				// slots; the even channel is left, the odd is right.
				if s.channel%2 == 0 {
					left += vl
				} else {
					right += vr
				}
			}
		}
		out[2*j] = clamp16(int32(max(-32768, min(32767, left*32768))))
		out[2*j+1] = clamp16(int32(max(-32768, min(32767, right*32768))))
	}
	m.drainAccum(n)
}

// drainAccum discards the first n samples of every device's accumulator
// now that mixInto has read them, so accumulators don't grow without
// bound across callbacks.
func (m *Mixer) drainAccum(n int) {
	for dev, bufs := range m.accum {
		for ch, buf := range bufs {
			if n >= len(buf) {
				bufs[ch] = buf[:0]
			} else {
				bufs[ch] = append(buf[:0], buf[n:]...)
			}
		}
		m.accum[dev] = bufs
	}
}

// AudioCallback is the host audio backend's pull entry point (spec §4.1):
// it advances the stream to callbackEnd, then copies exactly n stereo
// frames into out (len(out) must be 2*n). Devices that have never been
// registered produce silence, matching Mixer.cc's "no devices ⇒ memset
// mixBuffer" fallback implicitly (an empty slot list mixes to zero).
func (m *Mixer) AudioCallback(out []int16, n int, callbackEnd EmuTime) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateStreamLocked(callbackEnd)
	m.mixInto(out, n)
}
