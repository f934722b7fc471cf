// fmcommon.go - shared FM operator/envelope machinery for OPLL, OPL3, OPM and Y8950

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

import "math"

// fmSineTableBits sizes the shared quarter-wave-expanded sine lookup
// every FM core samples its phase generator against. Grounded on
// RetroCodeRamen-Nitro-Core-DX's fm_opm.go sine-table idiom (a
// precomputed table indexed by the top bits of a running phase
// accumulator), generalized from that file's "lite" placeholder into a
// full table covering the waveform set spec §4.5 names.
const (
	fmSineTableBits = 10
	fmSineTableSize = 1 << fmSineTableBits
	fmPhaseBits     = 20
)

var fmSineTable [fmSineTableSize]float32

func init() {
	for i := 0; i < fmSineTableSize; i++ {
		phase := 2 * math.Pi * float64(i) / float64(fmSineTableSize)
		fmSineTable[i] = float32(math.Sin(phase))
	}
}

// fmWaveform selects among the waveform families OPL3 exposes (spec
// §4.5); OPLL and OPM only ever use fmWaveSine / fmWaveHalfSine.
type fmWaveform int

const (
	fmWaveSine fmWaveform = iota
	fmWaveHalfSine
	fmWaveAbsSine
	fmWaveQuarterPulseSine
	fmWaveAlternatingSine
	fmWaveAlternatingAbsSine
	fmWaveSquare
	fmWaveSawtooth
)

// fmWave samples waveform w at a phase given as a fraction of a full
// cycle in [0, fmSineTableSize).
func fmWave(w fmWaveform, phase uint32) float32 {
	idx := phase & (fmSineTableSize - 1)
	s := fmSineTable[idx]
	switch w {
	case fmWaveSine:
		return s
	case fmWaveHalfSine:
		if idx >= fmSineTableSize/2 {
			return 0
		}
		return s
	case fmWaveAbsSine:
		if s < 0 {
			return -s
		}
		return s
	case fmWaveQuarterPulseSine:
		quarter := idx & (fmSineTableSize/4 - 1)
		v := fmSineTable[quarter]
		if v < 0 {
			v = -v
		}
		if idx&(fmSineTableSize/2) != 0 {
			return 0
		}
		return v
	case fmWaveAlternatingSine:
		if idx >= fmSineTableSize/2 {
			return 0
		}
		if idx&(fmSineTableSize/4) != 0 {
			return -s
		}
		return s
	case fmWaveAlternatingAbsSine:
		abs := s
		if abs < 0 {
			abs = -abs
		}
		if idx&(fmSineTableSize/4) != 0 {
			return -abs
		}
		return abs
	case fmWaveSquare:
		if s >= 0 {
			return 1
		}
		return -1
	case fmWaveSawtooth:
		return 2*(float32(idx)/float32(fmSineTableSize)) - 1
	}
	return s
}

// fmEnvState is the shared ADSR(+SETTLE) state machine spec §4.10 names.
type fmEnvState int

const (
	fmEnvAttack fmEnvState = iota
	fmEnvDecay
	fmEnvSustain
	fmEnvRelease
	fmEnvFinish
	fmEnvSettle
)

// fmMaxAttenuation is the envelope's fully-attenuated level; envelopes
// count attenuation up from 0 (max output) to this ceiling.
const fmMaxAttenuation = 127

// fmOperator is one FM operator: a phase generator plus an envelope
// generator, shared by every FM-derived chip core. Grounded on spec
// §4.4's "fast software DSP" per-sample generation style (explicitly
// permitted as an alternative to cycle-accurate pipelining) and on
// fm_opm.go's per-voice accumulator fields, generalized from a single
// fixed 2-operator FM-lite voice to a reusable N-operator building
// block.
type fmOperator struct {
	waveform fmWaveform

	multiple  uint8
	totalLevel uint8 // attenuation in the chip's own TL units (0 = loudest)
	keyScaleLevel uint8
	keyScaleRate  bool

	attackRate, decayRate, sustainLevel, releaseRate uint8
	sustainHold bool // EG-type: true = hold at sustain, false = keep decaying

	feedback uint8 // self-feedback shift amount (operator 1 only, per channel)

	phase    uint32
	phaseInc uint32

	envState fmEnvState
	envLevel float32 // 0 (loud) .. 1 (silent), linear approximation of the log attenuation ladder

	keyOn bool

	lastOutput float32 // for feedback
}

// keyOnTrigger transitions the operator to ATTACK and, unless it is
// already silent, through SETTLE first when re-triggered while still
// audible (spec §4.4's re-trigger rule).
func (op *fmOperator) keyOnTrigger() {
	if op.envState != fmEnvFinish && op.envLevel < 0.98 {
		op.envState = fmEnvSettle
		op.keyOn = true
		return
	}
	op.keyOn = true
	op.envState = fmEnvAttack
	op.phase = 0
}

func (op *fmOperator) keyOffTrigger() {
	op.keyOn = false
	if op.envState != fmEnvFinish {
		op.envState = fmEnvRelease
	}
}

// fmRateStep converts a chip rate register value into a per-sample
// envelope step, following the shape (not the bit-exact table) of
// OPL3/OPM's rate-shift/rate-select tables (spec §4.5/§4.6): higher rate
// values move the envelope faster, rate 0 returns 0 and stops it. No
// key-scale adjustment is applied.
func fmRateStep(rate uint8, hostHz int) float32 {
	if rate == 0 {
		return 0
	}
	// Steps per second double with every 4 counts of the rate field,
	// matching the real chips' exponential AR/DR/RR scaling.
	stepsPerSec := float32(2) * float32(math.Exp2(float64(rate)/4.0))
	return stepsPerSec / float32(hostHz)
}

// advanceEnvelope steps op's envelope generator by one sample (spec
// §4.10 state machine; §8 invariant 4's monotonicity is preserved by
// construction: envLevel only moves in the direction its current state
// permits).
func (op *fmOperator) advanceEnvelope(hostHz int) {
	switch op.envState {
	case fmEnvAttack:
		step := fmRateStep(op.attackRate, hostHz)
		if step <= 0 {
			return
		}
		// Attack ramps envLevel from 1 (silent) toward 0 (loud); an
		// exponential-ish curve matches the real chip's AR table shape
		// better than a linear ramp.
		op.envLevel -= step * op.envLevel
		if op.envLevel < 0.004 {
			op.envLevel = 0
			op.envState = fmEnvDecay
		}
	case fmEnvDecay:
		step := fmRateStep(op.decayRate, hostHz)
		sustain := float32(op.sustainLevel) / 15.0
		if op.envLevel >= sustain || step <= 0 {
			if op.envLevel >= sustain {
				op.envLevel = sustain
				if op.sustainHold {
					op.envState = fmEnvSustain
				} else {
					op.envState = fmEnvSustain
				}
			}
			return
		}
		op.envLevel += step
		if op.envLevel >= sustain {
			op.envLevel = sustain
			op.envState = fmEnvSustain
		}
	case fmEnvSustain:
		if op.sustainHold {
			return
		}
		step := fmRateStep(op.releaseRate, hostHz)
		op.envLevel += step
		if op.envLevel >= 1 {
			op.envLevel = 1
			op.envState = fmEnvFinish
		}
	case fmEnvRelease:
		step := fmRateStep(op.releaseRate, hostHz)
		if step <= 0 {
			return
		}
		op.envLevel += step
		if op.envLevel >= 1 {
			op.envLevel = 1
			op.envState = fmEnvFinish
		}
	case fmEnvFinish:
		op.envLevel = 1
	case fmEnvSettle:
		// Carrier ramps to zero output quickly, then restarts from
		// phase 0 in ATTACK (spec §4.4's SETTLE re-trigger rule).
		op.envLevel += 0.25
		if op.envLevel >= 1 {
			op.envLevel = 1
			op.phase = 0
			op.envState = fmEnvAttack
		}
	}
}

// sample returns the operator's current carrier output given an
// incoming phase-modulation value (already scaled to the operator's own
// cycle fraction) and advances its phase and envelope by one sample.
func (op *fmOperator) sample(modulation float32, hostHz int) float32 {
	tl := float32(op.totalLevel) / 127.0
	ks := float32(op.keyScaleLevel) / 15.0
	attenuation := op.envLevel
	gain := (1 - attenuation) * (1 - 0.5*tl) * (1 - 0.25*ks)
	if gain < 0 {
		gain = 0
	}

	modPhase := int32(modulation * float32(fmSineTableSize))
	out := fmWave(op.waveform, uint32(int32(op.phase>>(32-fmSineTableBits))+modPhase)) * gain

	op.phase += op.phaseInc
	op.advanceEnvelope(hostHz)
	op.lastOutput = out
	return out
}

// sampleVibrato behaves like sample but perturbs the phase increment by
// a vibrato fraction for this one sample only, restoring the
// unperturbed increment afterward so a later WriteRegister-driven
// retune isn't affected. Shared by OPLL's fixed-rate PM vibrato and
// OPM's register-selectable LFO (spec §4.4 / §4.6).
func (op *fmOperator) sampleVibrato(modulation float32, hostHz int, vibrato float32) float32 {
	orig := op.phaseInc
	if vibrato != 0 {
		op.phaseInc = uint32(float32(op.phaseInc) * (1 + vibrato))
	}
	out := op.sample(modulation, hostHz)
	op.phaseInc = orig
	return out
}

// fmLFO is the shared low-frequency oscillator driving tremolo (AM) and
// vibrato (PM) modulation, reused by OPLL's fixed-rate LFO and OPM's
// register-selectable one (spec §4.4 "Triangle 0..26..0, 3.7Hz" / §4.6's
// 4-waveform LFO).
type fmLFO struct {
	phase float32 // 0..1, one full LFO cycle
	freq  float32 // Hz
}

func (l *fmLFO) advance(hostHz int) {
	if hostHz <= 0 {
		return
	}
	l.phase += l.freq / float32(hostHz)
	l.phase -= float32(int32(l.phase))
}

// triangle01 returns a 0..1..0 unipolar triangle, the shape of OPLL's
// tremolo depth ramp.
func (l *fmLFO) triangle01() float32 {
	if l.phase < 0.5 {
		return 2 * l.phase
	}
	return 2 * (1 - l.phase)
}

// triangle returns a -1..1..-1 bipolar triangle (OPM's triangle LFO
// waveform).
func (l *fmLFO) triangle() float32 {
	return 2*l.triangle01() - 1
}

// saw returns a -1..1 ramp, the shape of OPLL's fixed vibrato and OPM's
// default saw LFO waveform.
func (l *fmLFO) saw() float32 {
	return 2*l.phase - 1
}

// square returns -1/1, OPM's square LFO waveform.
func (l *fmLFO) square() float32 {
	if l.phase < 0.5 {
		return 1
	}
	return -1
}

// triggerRhythmOperator applies an independent key-on/key-off edge for
// one operator of a percussion voice, shared by OPLL, OPL3 and Y8950's
// rhythm sections (spec §4.4/§4.5/§4.7): each drum's two operators (HH/
// SD sharing one channel, TOM/CYM sharing another) trigger independently
// rather than together.
func triggerRhythmOperator(op *fmOperator, wasOn *bool, on bool) {
	if on && !*wasOn {
		op.keyOnTrigger()
	} else if !on && *wasOn {
		op.keyOffTrigger()
	}
	*wasOn = on
}

// phaseIncrementFNum computes a phase accumulator step from an fnum/
// block/multiple triple shared by OPLL and OPL3's phase generators
// (spec §4.4: "increment = (fnum × multiplier) << block >> (20-PG_BITS)").
func phaseIncrementFNum(fnum uint32, block uint8, multiple uint8, chipClock int64, hostHz int) uint32 {
	mult := uint32(multiple)
	if mult == 0 {
		mult = 1 // multiple code 0 means ×0.5 on real hardware; approximated as the slowest integer step
	}
	step := (fnum * mult) << block
	// Scale from the chip's own fnum-at-chip-clock domain into a
	// per-host-sample phase fraction of fmSineTableSize.
	ratio := float64(step) * float64(chipClock) / (float64(hostHz) * (1 << 19))
	return uint32(ratio * float64(1<<32))
}
