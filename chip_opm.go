// chip_opm.go - YM2151/OPM FM synthesizer: 8 channels x 4 operators, 8 algorithms

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

import (
	"math"
	"sync"
)

const (
	opmChannelCount  = 8
	opmOperatorCount = 4
	opmClockHz       = 3579545

	// opmVibratoDepth/opmTremoloDepth are a fixed approximation of the
	// LFO's modulation depth. Real hardware scales depth per-channel via
	// the AMS/PMS sensitivity fields in regs 0x38-0x3F (not modeled
	// here; every channel receives the same depth instead).
	opmVibratoDepth = 0.006
	opmTremoloDepth = 0.3
)

// opmAlgorithm describes how the 4 operators of a channel connect: for
// each operator, which other operator's output (if any) feeds its phase
// modulation input, and whether it contributes directly to the channel's
// audio output. Ported from the 8 canonical YM2151 connection diagrams
// (spec §4.6: "modulators write into c1/c2/mem, carriers write into
// chan_out[c]") rather than NukeYKT-style per-slot adder wiring, matching
// the "fast software DSP" per-channel-independent style already chosen
// for OPLL.
type opmAlgorithm struct {
	modSource [4]int  // -1 = no modulation input (fed by feedback or silence)
	isCarrier [4]bool
}

var opmAlgorithms = [8]opmAlgorithm{
	// ALG 0: 1->2->3->4-> out (serial chain)
	{modSource: [4]int{-1, 0, 1, 2}, isCarrier: [4]bool{false, false, false, true}},
	// ALG 1: 2->3->4-> out; operator 1 runs (with feedback) but feeds
	// nothing, so the (1+2) sum into 3 is not modeled
	{modSource: [4]int{-1, -1, 1, 2}, isCarrier: [4]bool{false, false, false, true}},
	// ALG 2: modeled as 3->4-> out; 1->2 runs but does not reach 4
	{modSource: [4]int{-1, 0, -1, 2}, isCarrier: [4]bool{false, false, false, true}},
	// ALG 3: modeled as 3->4-> out, the same table as ALG 2; 1->2 runs
	// but does not reach 4
	{modSource: [4]int{-1, 0, -1, 2}, isCarrier: [4]bool{false, false, false, true}},
	// ALG 4: 1->2-> out, 3->4-> out (two parallel 2-op chains)
	{modSource: [4]int{-1, 0, -1, 2}, isCarrier: [4]bool{false, true, false, true}},
	// ALG 5: 1-> (2,3,4) each independently -> out
	{modSource: [4]int{-1, 0, 0, 0}, isCarrier: [4]bool{false, true, true, true}},
	// ALG 6: 1->2-> out, 3-> out, 4-> out
	{modSource: [4]int{-1, 0, -1, -1}, isCarrier: [4]bool{false, true, true, true}},
	// ALG 7: all four operators are independent carriers (additive)
	{modSource: [4]int{-1, -1, -1, -1}, isCarrier: [4]bool{true, true, true, true}},
}

// opmLFOWaveform selects the OPM's 4 LFO shapes (spec §4.6).
type opmLFOWaveform int

const (
	opmLFOSaw opmLFOWaveform = iota
	opmLFOSquare
	opmLFOTriangle
	opmLFONoise
)

type opmOperator struct {
	fmOperator
	detune1 int8 // DT1, signed cents-ish offset
	detune2 uint8
}

type opmChannel struct {
	ops       [opmOperatorCount]opmOperator
	algorithm uint8
	feedback  uint8
	keyCode   uint8
	keyFrac   uint8
	panLeft, panRight bool
	noiseEnable bool // bit 7 of reg 0x0F: noise substitutes operator 3's output
	keyOn     bool
}

// OPM is the YM2151. Registers are addressed the same way as real
// hardware (address-then-data port pair modeled as a single addressed
// register file here, matching the AY/OPLL core shape used elsewhere in
// this module).
type OPM struct {
	mu sync.Mutex

	channels [opmChannelCount]opmChannel

	lfoWaveform  opmLFOWaveform
	lfo          fmLFO
	lfoNoiseHold float32

	noiseLFSR uint32

	hostHz int
	mixer  MixerUpdater

	userMute bool
}

func NewOPM() (*OPM, error) {
	o := &OPM{noiseLFSR: 1}
	o.Reset(0)
	return o, nil
}

func (o *OPM) setMixer(m MixerUpdater) { o.mixer = m }

func (o *OPM) Name() string             { return "YM2151" }
func (o *OPM) ChannelCount() int        { return opmChannelCount }
func (o *OPM) AmplificationFactor() float32 { return 1.0 / float32(opmChannelCount) }

func (o *OPM) ChannelMode(c int) ChannelMode {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch := &o.channels[c]
	switch {
	case ch.panLeft && !ch.panRight:
		return ModeMonoLeft
	case ch.panRight && !ch.panLeft:
		return ModeMonoRight
	default:
		return ModeMono
	}
}

func (o *OPM) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.userMute {
		return true
	}
	for i := range o.channels {
		if o.channels[i].keyOn {
			return false
		}
	}
	return true
}

func (o *OPM) SetUserMute(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.userMute = muted
}

func (o *OPM) SetSampleRate(hostHz int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hostHz = hostHz
}

func (o *OPM) Reset(EmuTime) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.channels {
		o.channels[i] = opmChannel{panLeft: true, panRight: true}
		for j := range o.channels[i].ops {
			o.channels[i].ops[j].envState = fmEnvFinish
			o.channels[i].ops[j].envLevel = 1
			o.channels[i].ops[j].waveform = fmWaveSine
		}
	}
	o.lfo.phase = 0
	o.noiseLFSR = 1
}

// PeekRegister exposes per-channel key-on state for introspection.
func (o *OPM) PeekRegister(reg int) uint8 {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch := reg & 0x07
	if ch >= opmChannelCount {
		return 0
	}
	if o.channels[ch].keyOn {
		return 1
	}
	return 0
}

func (o *OPM) ReadRegister(reg int, _ EmuTime) uint8 { return o.PeekRegister(reg) }

// WriteRegister follows the YM2151 register map's channel-major layout
// (spec §4.6): 0x08 key-on (bits 0-2 select channel, bits 3-6 are the
// operator mask; any set mask bit keys all four operators on, a clear
// mask keys them off), 0x20-0x27 RL/FB/CONNECT, 0x28-0x2F KC, 0x30-0x37 KF,
// 0x38-0x3F PMS/AMS, 0x40+ per-operator DT1/MUL, TL, KS/AR, AMS-EN/D1R,
// DT2/D2R, D1L/RR (4 operators × 8 channels, 32 bytes per field block).
func (o *OPM) WriteRegister(reg int, value uint8, emuTime EmuTime) {
	if o.mixer != nil {
		o.mixer.UpdateStream(emuTime)
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case reg == 0x01:
		// Test register / LFO reset: not modeled beyond acceptance.
	case reg == 0x08:
		ch := int(value & 0x07)
		wasKeyOn := o.channels[ch].keyOn
		keyOn := value&0x78 != 0
		o.channels[ch].keyOn = keyOn
		if keyOn && !wasKeyOn {
			for i := range o.channels[ch].ops {
				o.channels[ch].ops[i].keyOnTrigger()
			}
		} else if !keyOn && wasKeyOn {
			for i := range o.channels[ch].ops {
				o.channels[ch].ops[i].keyOffTrigger()
			}
		}
	case reg == 0x0f:
		o.lfoWaveform = opmLFOWaveform(value & 0x03)
		// Real hardware only lets operator 3 of channel 7 substitute noise
		// for its sine output; every other channel ignores this bit.
		o.channels[7].noiseEnable = value&0x80 != 0
	case reg == 0x18:
		o.lfo.freq = opmLFOFreqFromReg(value)
	case reg >= 0x20 && reg <= 0x27:
		ch := reg - 0x20
		o.channels[ch].panRight = value&0x40 != 0
		o.channels[ch].panLeft = value&0x80 != 0
		o.channels[ch].feedback = value >> 3 & 0x07
		o.channels[ch].algorithm = value & 0x07
	case reg >= 0x28 && reg <= 0x2f:
		ch := reg - 0x28
		o.channels[ch].keyCode = value & 0x7f
		o.retuneChannel(ch)
	case reg >= 0x30 && reg <= 0x37:
		ch := reg - 0x30
		o.channels[ch].keyFrac = value >> 2
		o.retuneChannel(ch)
	case reg >= 0x40 && reg <= 0x5f:
		ch := (reg - 0x40) & 0x07
		op := (reg - 0x40) >> 3
		o.channels[ch].ops[op].detune1 = int8(value>>4&0x07) - 3
		o.channels[ch].ops[op].multiple = value & 0x0f
		o.retuneOperator(ch, op)
	case reg >= 0x60 && reg <= 0x7f:
		ch := (reg - 0x60) & 0x07
		op := (reg - 0x60) >> 3
		o.channels[ch].ops[op].totalLevel = value & 0x7f
	case reg >= 0x80 && reg <= 0x9f:
		ch := (reg - 0x80) & 0x07
		op := (reg - 0x80) >> 3
		o.channels[ch].ops[op].keyScaleLevel = value >> 6
		o.channels[ch].ops[op].attackRate = value & 0x1f
	case reg >= 0xa0 && reg <= 0xbf:
		ch := (reg - 0xa0) & 0x07
		op := (reg - 0xa0) >> 3
		o.channels[ch].ops[op].decayRate = value & 0x1f
	case reg >= 0xc0 && reg <= 0xdf:
		ch := (reg - 0xc0) & 0x07
		op := (reg - 0xc0) >> 3
		o.channels[ch].ops[op].detune2 = value >> 6
		// D2R (bits 0-4) is not modeled; D1L comes from regs 0xE0-0xFF.
	case reg >= 0xe0 && reg <= 0xff:
		ch := (reg - 0xe0) & 0x07
		op := (reg - 0xe0) >> 3
		o.channels[ch].ops[op].sustainLevel = value >> 4
		o.channels[ch].ops[op].releaseRate = (value & 0x0f) << 1
		o.channels[ch].ops[op].sustainHold = true
	}
}

func (o *OPM) retuneChannel(ch int) {
	for op := range o.channels[ch].ops {
		o.retuneOperator(ch, op)
	}
}

func (o *OPM) retuneOperator(ch, op int) {
	c := &o.channels[ch]
	fnum := uint32(c.keyCode)<<6 | uint32(c.keyFrac)
	mult := c.ops[op].multiple
	if mult == 0 {
		mult = 1
	}
	c.ops[op].phaseInc = phaseIncrementFNum(fnum, 2, mult, opmClockHz, o.hostHz)
}

// opmNoiseSample advances the noise LFSR at audio rate for the optional
// noise channel substitution (operator 3, reg 0x0F bit 7).
func (o *OPM) opmNoiseSample() float32 {
	bit := o.noiseLFSR & 1
	o.noiseLFSR = (o.noiseLFSR >> 1) | ((bit ^ (o.noiseLFSR >> 1 & 1)) << 16)
	if bit != 0 {
		return 1
	}
	return -1
}

// opmLFOFreqFromReg approximates the register-0x18 rate field's
// exponential rate-to-frequency curve (spec §4.6); not the bit-exact
// hardware table, but it spans the same rough 0.1-25Hz range from 0 to
// 255.
func opmLFOFreqFromReg(value uint8) float32 {
	return 0.1 * float32(math.Pow(2, float64(value)/32))
}

// advanceLFO steps the chip-wide LFO by one sample and returns its
// current value in -1..1, dispatching on the waveform selected by reg
// 0x0F (spec §4.6's 4-waveform LFO). Noise sample-and-holds a new value
// each time the phase wraps, rather than changing every sample.
func (o *OPM) advanceLFO() float32 {
	prevPhase := o.lfo.phase
	o.lfo.advance(o.hostHz)
	switch o.lfoWaveform {
	case opmLFOSaw:
		return o.lfo.saw()
	case opmLFOSquare:
		return o.lfo.square()
	case opmLFOTriangle:
		return o.lfo.triangle()
	case opmLFONoise:
		if o.lfo.phase < prevPhase {
			o.lfoNoiseHold = o.opmNoiseSample()
		}
		return o.lfoNoiseHold
	}
	return 0
}

// GenerateChannels runs each channel's algorithm-selected modulation
// network over n samples (spec §4.6's algorithm selector / c1,c2,mem
// description, generalized to the table-driven modSource/isCarrier shape
// in opmAlgorithms).
func (o *OPM) GenerateChannels(bufs [][]float32, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(bufs) < opmChannelCount {
		return
	}

	// The LFO is chip-wide (one oscillator feeds every channel's AM/PM),
	// so it's advanced once per sample here rather than once per channel.
	lfoVals := make([]float32, n)
	for i := 0; i < n; i++ {
		lfoVals[i] = o.advanceLFO()
	}

	for chIdx := range o.channels {
		c := &o.channels[chIdx]
		alg := opmAlgorithms[c.algorithm]
		buf := bufs[chIdx]
		var out [4]float32
		for i := 0; i < n; i++ {
			var sum float32
			pm := lfoVals[i] * opmVibratoDepth
			amGain := 1 - opmTremoloDepth*(lfoVals[i]+1)/2
			for op := 0; op < 4; op++ {
				mod := float32(0)
				if alg.modSource[op] >= 0 {
					mod = out[alg.modSource[op]]
				} else if op == 0 && c.feedback > 0 {
					mod = c.ops[0].lastOutput / float32(uint32(1)<<c.feedback)
				}
				if op == 2 && c.noiseEnable {
					out[op] = o.opmNoiseSample() * (1 - c.ops[op].envLevel)
					c.ops[op].advanceEnvelope(o.hostHz)
				} else {
					out[op] = c.ops[op].sampleVibrato(mod, o.hostHz, pm) * amGain
				}
				if alg.isCarrier[op] {
					sum += out[op]
				}
			}
			buf[i] = sum / 4
		}
	}
}
