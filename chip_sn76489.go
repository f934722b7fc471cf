// chip_sn76489.go - SN76489 Digital Complex Sound Generator (DCSG)

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

import (
	"math"
	"sync"
)

// sn76489VolumeTable converts a 4-bit volume (0=max, 15=silent) to linear
// amplitude, ~2 dB per step.
var sn76489VolumeTable [16]float32

func init() {
	for i := 0; i < 15; i++ {
		sn76489VolumeTable[i] = float32(math.Pow(10, -2.0*float64(i)/20.0))
	}
	sn76489VolumeTable[15] = 0
}

// SN76489Variant distinguishes the TI original from the Sega revision,
// which differ in LFSR width and feedback tap positions.
type SN76489Variant int

const (
	SN76489VariantTI SN76489Variant = iota
	SN76489VariantSega
)

// SN76489 is the 3-tone + 1-noise DCSG used as the MSX's second PSG slot
// (spec §4.9). Grounded on user-none-go-chip-sn76489's Clock/Write split
// (chip-clock/16 divider, rising-edge LFSR shift), cross-checked against
// original_source's SN76489.cc for the two-byte latch/data write protocol.
type SN76489 struct {
	mu sync.Mutex

	toneReg     [3]uint16
	toneCounter [3]uint16
	toneOutput  [3]bool

	noiseReg     uint8
	noiseCounter uint16
	noiseShift   uint16
	noiseToggle  bool
	noiseOut     bool

	volume [4]uint8

	latchedChannel uint8
	latchedType    uint8

	feedbackShift  uint
	lfsrInitial    uint16
	whiteNoiseTaps uint16
	toneZeroValue  uint16

	chipClock       int64
	clocksPerSample float64
	clockCounter    float64
	clockDivider    int

	userMute bool

	mixer MixerUpdater
}

func (s *SN76489) setMixer(m MixerUpdater) { s.mixer = m }

// NewSN76489 constructs a DCSG running at chipClock Hz (typically
// 3579545, the MSX master clock) using the given chip variant.
func NewSN76489(chipClock int64, variant SN76489Variant) (*SN76489, error) {
	lfsrBits := 15
	taps := uint16(0x0003)
	toneZero := uint16(1024)
	if variant == SN76489VariantSega {
		lfsrBits = 16
		taps = 0x0009
		toneZero = 1
	}
	feedbackShift := uint(lfsrBits - 1)
	lfsrInitial := uint16(1) << feedbackShift

	s := &SN76489{
		chipClock:      chipClock,
		feedbackShift:  feedbackShift,
		lfsrInitial:    lfsrInitial,
		whiteNoiseTaps: taps,
		toneZeroValue:  toneZero,
		noiseShift:     lfsrInitial,
	}
	for i := range s.volume {
		s.volume[i] = 0x0f
	}
	return s, nil
}

func (s *SN76489) Name() string                { return "SN76489" }
func (s *SN76489) ChannelCount() int           { return 4 }
func (s *SN76489) ChannelMode(int) ChannelMode { return ModeMono }
func (s *SN76489) AmplificationFactor() float32 { return 0.25 }

func (s *SN76489) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userMute {
		return true
	}
	for i := 0; i < 4; i++ {
		if s.volume[i] != 0x0f {
			return false
		}
	}
	return true
}

func (s *SN76489) SetUserMute(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userMute = muted
}

func (s *SN76489) SetSampleRate(hostHz int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clocksPerSample = float64(s.chipClock) / float64(hostHz)
}

func (s *SN76489) Reset(EmuTime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toneReg = [3]uint16{}
	s.toneCounter = [3]uint16{}
	s.toneOutput = [3]bool{}
	s.noiseReg = 0
	s.noiseCounter = 0
	s.noiseShift = s.lfsrInitial
	s.noiseToggle = false
	s.noiseOut = false
	for i := range s.volume {
		s.volume[i] = 0x0f
	}
	s.latchedChannel = 0
	s.latchedType = 0
	s.clockDivider = 0
	s.clockCounter = 0
}

// PeekRegister always reads the write-only data port as 0xff: the DCSG
// exposes no readable state (spec §7's "write-only" devices read as the
// bus floating value).
func (s *SN76489) PeekRegister(int) uint8 { return 0xff }

// WriteRegister ignores reg (the DCSG has a single 8-bit data port, not
// an addressed register file) and applies the latch/data write protocol.
func (s *SN76489) WriteRegister(_ int, value uint8, emuTime EmuTime) {
	if s.mixer != nil {
		s.mixer.UpdateStream(emuTime)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if value&0x80 != 0 {
		s.latchedChannel = (value >> 5) & 0x03
		s.latchedType = (value >> 4) & 0x01
		data := value & 0x0f
		if s.latchedType == 1 {
			s.volume[s.latchedChannel] = data
		} else if s.latchedChannel < 3 {
			s.toneReg[s.latchedChannel] = (s.toneReg[s.latchedChannel] & 0x3f0) | uint16(data)
		} else {
			s.noiseReg = data & 0x07
			s.noiseShift = s.lfsrInitial
		}
	} else if s.latchedType == 0 {
		if s.latchedChannel < 3 {
			data := uint16(value & 0x3f)
			s.toneReg[s.latchedChannel] = (s.toneReg[s.latchedChannel] & 0x0f) | (data << 4)
		} else {
			s.noiseReg = value & 0x07
			s.noiseShift = s.lfsrInitial
		}
	}
}

func (s *SN76489) ReadRegister(reg int, _ EmuTime) uint8 { return s.PeekRegister(reg) }

func (s *SN76489) clockOnce() {
	s.clockDivider++
	if s.clockDivider < 16 {
		return
	}
	s.clockDivider = 0

	for i := 0; i < 3; i++ {
		if s.toneCounter[i] > 0 {
			s.toneCounter[i]--
		} else {
			if s.toneReg[i] == 0 {
				s.toneCounter[i] = s.toneZeroValue
			} else {
				s.toneCounter[i] = s.toneReg[i]
			}
			s.toneOutput[i] = !s.toneOutput[i]
		}
	}

	if s.noiseCounter > 0 {
		s.noiseCounter--
	} else {
		switch s.noiseReg & 0x03 {
		case 0:
			s.noiseCounter = 0x10
		case 1:
			s.noiseCounter = 0x20
		case 2:
			s.noiseCounter = 0x40
		case 3:
			if s.toneReg[2] == 0 {
				s.noiseCounter = s.toneZeroValue
			} else {
				s.noiseCounter = s.toneReg[2]
			}
		}
		s.noiseToggle = !s.noiseToggle
		if s.noiseToggle {
			s.noiseOut = s.noiseShift&1 != 0
			var feedback uint16
			if s.noiseReg&0x04 != 0 {
				tapped := s.noiseShift & s.whiteNoiseTaps
				tapped ^= tapped >> 8
				tapped ^= tapped >> 4
				tapped ^= tapped >> 2
				tapped ^= tapped >> 1
				feedback = (tapped & 1) << s.feedbackShift
			} else {
				feedback = (s.noiseShift & 1) << s.feedbackShift
			}
			s.noiseShift = (s.noiseShift >> 1) | feedback
		}
	}
}

// GenerateChannels steps the chip clock-by-clock, emitting a sample into
// each of the 4 channel buffers every time the accumulated fractional
// clock count crosses clocksPerSample (ported from Run/GenerateSamples).
func (s *SN76489) GenerateChannels(bufs [][]float32, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(bufs) < 4 {
		return
	}
	for pos := 0; pos < n; {
		s.clockOnce()
		s.clockCounter++
		if s.clockCounter >= s.clocksPerSample {
			s.clockCounter -= s.clocksPerSample
			for ch := 0; ch < 3; ch++ {
				if s.toneOutput[ch] {
					bufs[ch][pos] = sn76489VolumeTable[s.volume[ch]]
				} else {
					bufs[ch][pos] = 0
				}
			}
			if s.noiseOut {
				bufs[3][pos] = sn76489VolumeTable[s.volume[3]]
			} else {
				bufs[3][pos] = 0
			}
			pos++
		}
	}
}
