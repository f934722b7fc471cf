// chip_ay8910.go - AY-3-8910 Programmable Sound Generator

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

import "sync"

// AY register indices (spec §4.3).
const (
	ayAFine = iota
	ayACoarse
	ayBFine
	ayBCoarse
	ayCFine
	ayCCoarse
	ayNoisePer
	ayEnable
	ayAVol
	ayBVol
	ayCVol
	ayEFine
	ayECoarse
	ayEShape
	ayPortA
	ayPortB
	ayRegCount
)

const (
	ayPortADirection = 0x10
	ayPortBDirection = 0x20
)

// ayFPUnit is the fixed-point multiplier applied to tone/noise/envelope
// periods so a sample period's fractional step survives across calls
// (grounded on AY8910.cc's FP_UNIT).
const ayFPUnit = 1 << 16

// AY8910 is the three-tone-plus-noise-plus-envelope PSG. Every counter
// and period field below is ported directly from AY8910.cc: counters
// count down from a period expressed in ayFPUnit fractional steps, with
// the half-period semi-volume accumulation technique used to get
// sub-sample accuracy without oversampling.
type AY8910 struct {
	mu sync.Mutex

	periphery AYPeriphery

	regs [ayRegCount]uint8

	updateStep int64

	periodA, periodB, periodC, periodN, periodE int64
	countA, countB, countC, countN, countE      int64

	outputA, outputB, outputC, outputN int

	volA, volB, volC, volE int
	envelopeA, envelopeB, envelopeC bool

	volTable [16]int

	attack, hold, alternate, holding bool
	countEnv                         int
	oldEnable                        uint8

	random int

	internalMute bool
	userMute     bool

	hostHz int

	mixer MixerUpdater
}

func (a *AY8910) setMixer(m MixerUpdater) { a.mixer = m }

// NewAY8910 constructs a PSG wired to periphery for its I/O ports.
// Grounded on AY8910::AY8910's construction sequence (setVolume, reset).
func NewAY8910(periphery AYPeriphery) (*AY8910, error) {
	if periphery == nil {
		periphery = nopAYPeriphery{}
	}
	a := &AY8910{periphery: periphery}
	a.setInternalVolume(21000)
	a.Reset(0)
	return a, nil
}

type nopAYPeriphery struct{}

func (nopAYPeriphery) ReadPortA(EmuTime) uint8        { return 0xff }
func (nopAYPeriphery) ReadPortB(EmuTime) uint8        { return 0xff }
func (nopAYPeriphery) WritePortA(uint8, EmuTime)      {}
func (nopAYPeriphery) WritePortB(uint8, EmuTime)      {}

func (a *AY8910) Name() string         { return "AY-3-8910" }
func (a *AY8910) ChannelCount() int    { return 3 }
func (a *AY8910) ChannelMode(int) ChannelMode { return ModeMono }
func (a *AY8910) AmplificationFactor() float32 { return 1.0 / 3.0 }

func (a *AY8910) IsMuted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.internalMute || a.userMute
}

func (a *AY8910) SetUserMute(muted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userMute = muted
}

// setInternalVolume computes the 16-level logarithmic volume table,
// 3 dB per step (spec §4.3), ported from AY8910::setInternalVolume.
func (a *AY8910) setInternalVolume(newVolume int) {
	out := float64(newVolume)
	for i := 15; i > 0; i-- {
		a.volTable[i] = int(out + 0.5)
		out *= 0.707945784384
	}
	a.volTable[0] = 0
}

// SetSampleRate computes updateStep = FP_UNIT * hostHz / (chipClock/8),
// ported from AY8910::setSampleRate, then recomputes the tone, noise and
// envelope periods from the current register values.
func (a *AY8910) SetSampleRate(hostHz int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hostHz = hostHz
	chipClock := int64(EmuTimeHz) // AY runs at the shared base clock/8 in this core
	a.updateStep = (ayFPUnit * int64(hostHz)) / (chipClock / 8)
	for _, reg := range []int{ayAFine, ayBFine, ayCFine, ayNoisePer, ayEFine} {
		a.writeRegisterLocked(reg, a.regs[reg], 0)
	}
}

// Reset restores hardware-reset state (spec §8 invariant 6): all
// counters, the random LFSR seed, and a full register-zero sweep,
// ending internally muted as AY8910::reset does.
func (a *AY8910) Reset(emuTime EmuTime) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.oldEnable = 0
	a.random = 1
	a.outputA, a.outputB, a.outputC = 0, 0, 0
	a.outputN = 0xff
	a.periodA, a.periodB, a.periodC, a.periodN, a.periodE = 0, 0, 0, 0, 0
	a.countA, a.countB, a.countC, a.countN, a.countE = 0, 0, 0, 0, 0
	for i := 0; i < 16; i++ {
		a.writeRegisterLocked(i, 0, emuTime)
	}
	a.internalMute = true
}

// PeekRegister reads without side effects (spec §4.2).
func (a *AY8910) PeekRegister(reg int) uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if reg < 0 || reg >= ayRegCount {
		return 0
	}
	return a.regs[reg]
}

// ReadRegister mirrors AY8910::readRegister: port registers pull from
// periphery when configured as inputs.
func (a *AY8910) ReadRegister(reg int, emuTime EmuTime) uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if reg < 0 || reg >= ayRegCount {
		return 0
	}
	switch reg {
	case ayPortA:
		if a.regs[ayEnable]&ayPortADirection == 0 {
			a.regs[ayPortA] = a.periphery.ReadPortA(emuTime)
		}
	case ayPortB:
		if a.regs[ayEnable]&ayPortBDirection == 0 {
			a.regs[ayPortB] = a.periphery.ReadPortB(emuTime)
		}
	}
	return a.regs[reg]
}

// WriteRegister mirrors AY8910::writeRegister: an audible change (or any
// write to ESHAPE, which always resets the envelope phase) must flush
// prior state to the mixer before mutating. When the chip is registered
// with a mixer, every write first calls the mixer's UpdateStream up to
// emuTime, so no write straddles a generation span (spec §5.5); the new
// value is then applied by writeRegisterLocked.
func (a *AY8910) WriteRegister(reg int, value uint8, emuTime EmuTime) {
	// The mixer must be flushed up to emuTime *before* this chip's own
	// state mutates, and flushing re-enters every registered device's
	// GenerateChannels — including this one — so the mixer call must
	// happen with a.mu unlocked (spec §9 "Cyclic references"; the
	// original's single SDL audio lock has no per-chip counterpart to
	// deadlock against, which a naive hold-while-calling-back port
	// would introduce here).
	if a.mixer != nil {
		a.mixer.UpdateStream(emuTime)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writeRegisterLocked(reg, value, emuTime)
}

func (a *AY8910) writeRegisterLocked(reg int, value uint8, emuTime EmuTime) {
	if reg < 0 || reg >= ayRegCount {
		return
	}
	a.regs[reg] = value

	switch reg {
	case ayACoarse:
		a.regs[ayACoarse] &= 0x0f
		fallthrough
	case ayAFine:
		old := a.periodA
		a.periodA = (int64(a.regs[ayAFine]) + 256*int64(a.regs[ayACoarse])) * a.updateStep
		if a.periodA == 0 {
			a.periodA = a.updateStep
		}
		a.countA += a.periodA - old
		if a.countA <= 0 {
			a.countA = 1
		}
	case ayBCoarse:
		a.regs[ayBCoarse] &= 0x0f
		fallthrough
	case ayBFine:
		old := a.periodB
		a.periodB = (int64(a.regs[ayBFine]) + 256*int64(a.regs[ayBCoarse])) * a.updateStep
		if a.periodB == 0 {
			a.periodB = a.updateStep
		}
		a.countB += a.periodB - old
		if a.countB <= 0 {
			a.countB = 1
		}
	case ayCCoarse:
		a.regs[ayCCoarse] &= 0x0f
		fallthrough
	case ayCFine:
		old := a.periodC
		a.periodC = (int64(a.regs[ayCFine]) + 256*int64(a.regs[ayCCoarse])) * a.updateStep
		if a.periodC == 0 {
			a.periodC = a.updateStep
		}
		a.countC += a.periodC - old
		if a.countC <= 0 {
			a.countC = 1
		}
	case ayNoisePer:
		a.regs[ayNoisePer] &= 0x1f
		old := a.periodN
		a.periodN = int64(a.regs[ayNoisePer]) * a.updateStep
		if a.periodN == 0 {
			a.periodN = a.updateStep
		}
		a.countN += a.periodN - old
		if a.countN <= 0 {
			a.countN = 1
		}
	case ayAVol:
		a.regs[ayAVol] &= 0x1f
		a.envelopeA = a.regs[ayAVol]&0x10 != 0
		if a.envelopeA {
			a.volA = a.volE
		} else {
			a.volA = a.volTable[a.regs[ayAVol]]
		}
		a.checkMute()
	case ayBVol:
		a.regs[ayBVol] &= 0x1f
		a.envelopeB = a.regs[ayBVol]&0x10 != 0
		if a.envelopeB {
			a.volB = a.volE
		} else {
			a.volB = a.volTable[a.regs[ayBVol]]
		}
		a.checkMute()
	case ayCVol:
		a.regs[ayCVol] &= 0x1f
		a.envelopeC = a.regs[ayCVol]&0x10 != 0
		if a.envelopeC {
			a.volC = a.volE
		} else {
			a.volC = a.volTable[a.regs[ayCVol]]
		}
		a.checkMute()
	case ayEFine, ayECoarse:
		old := a.periodE
		a.periodE = (int64(a.regs[ayEFine]) + 256*int64(a.regs[ayECoarse])) * (2 * a.updateStep)
		if a.periodE == 0 {
			a.periodE = a.updateStep
		}
		a.countE += a.periodE - old
		if a.countE <= 0 {
			a.countE = 1
		}
	case ayEShape:
		a.regs[ayEShape] &= 0x0f
		if a.regs[ayEShape]&0x04 != 0 {
			a.attack = true
		} else {
			a.attack = false
		}
		if a.regs[ayEShape]&0x08 == 0 {
			a.hold = true
			a.alternate = a.attack
		} else {
			a.hold = a.regs[ayEShape]&0x01 != 0
			a.alternate = a.regs[ayEShape]&0x02 != 0
		}
		a.countE = a.periodE
		a.countEnv = 0x0f
		a.holding = false
		a.volE = a.volTable[a.envShapeIndex()]
		if a.envelopeA {
			a.volA = a.volE
		}
		if a.envelopeB {
			a.volB = a.volE
		}
		if a.envelopeC {
			a.volC = a.volE
		}
	case ayEnable:
		if value&ayPortADirection != 0 && a.oldEnable&ayPortADirection == 0 {
			a.writeRegisterLocked(ayPortA, a.regs[ayPortA], emuTime)
		}
		if value&ayPortBDirection != 0 && a.oldEnable&ayPortBDirection == 0 {
			a.writeRegisterLocked(ayPortB, a.regs[ayPortB], emuTime)
		}
		a.oldEnable = value
		a.checkMute()
	case ayPortA:
		if a.regs[ayEnable]&ayPortADirection != 0 {
			a.periphery.WritePortA(value, emuTime)
		}
	case ayPortB:
		if a.regs[ayEnable]&ayPortBDirection != 0 {
			a.periphery.WritePortB(value, emuTime)
		}
	}
}

func (a *AY8910) envShapeIndex() int {
	idx := a.countEnv
	if a.attack {
		idx ^= 0x0f
	}
	return idx & 0x0f
}

func (a *AY8910) checkMute() {
	chA := a.regs[ayAVol] == 0 || a.regs[ayEnable]&0x09 == 0x09
	chB := a.regs[ayBVol] == 0 || a.regs[ayEnable]&0x12 == 0x12
	chC := a.regs[ayCVol] == 0 || a.regs[ayEnable]&0x24 == 0x24
	a.internalMute = chA && chB && chC
}

// GenerateChannels ports AY8910::updateBuffer: semi-volume sub-sample
// accumulation for tones A/B/C gated by the noise LFSR, plus the
// 16-level envelope counter driven at half the tone/noise rate.
func (a *AY8910) GenerateChannels(bufs [][]float32, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(bufs) < 3 || n <= 0 {
		return
	}

	length := int64(n) * ayFPUnit
	if a.regs[ayEnable]&0x01 != 0 {
		if a.countA <= length {
			a.countA += length
		}
		a.outputA = 1
	} else if a.regs[ayAVol] == 0 {
		if a.countA <= length {
			a.countA += length
		}
	}
	if a.regs[ayEnable]&0x02 != 0 {
		if a.countB <= length {
			a.countB += length
		}
		a.outputB = 1
	} else if a.regs[ayBVol] == 0 {
		if a.countB <= length {
			a.countB += length
		}
	}
	if a.regs[ayEnable]&0x04 != 0 {
		if a.countC <= length {
			a.countC += length
		}
		a.outputC = 1
	} else if a.regs[ayCVol] == 0 {
		if a.countC <= length {
			a.countC += length
		}
	}
	if a.regs[ayEnable]&0x38 == 0x38 {
		if a.countN <= length {
			a.countN += length
		}
	}
	outn := a.outputN | int(a.regs[ayEnable])

	for s := 0; s < n; s++ {
		semiVolA, semiVolB, semiVolC := int64(0), int64(0), int64(0)
		left := int64(ayFPUnit)
		for left > 0 {
			nextEvent := a.countN
			if left < nextEvent {
				nextEvent = left
			}

			semiVolA = a.stepTone(&a.countA, a.periodA, &a.outputA, outn&0x08 != 0, nextEvent, semiVolA)
			semiVolB = a.stepTone(&a.countB, a.periodB, &a.outputB, outn&0x10 != 0, nextEvent, semiVolB)
			semiVolC = a.stepTone(&a.countC, a.periodC, &a.outputC, outn&0x20 != 0, nextEvent, semiVolC)

			a.countN -= nextEvent
			if a.countN <= 0 {
				if (a.random+1)&2 != 0 {
					a.outputN = ^a.outputN
					outn = a.outputN | int(a.regs[ayEnable])
				}
				if a.random&1 != 0 {
					a.random ^= 0x28000
				}
				a.random >>= 1
				a.countN += a.periodN
			}
			left -= nextEvent
		}

		if !a.holding {
			a.countE -= ayFPUnit
			if a.countE <= 0 {
				for {
					a.countEnv--
					a.countE += a.periodE
					if a.countE > 0 {
						break
					}
				}
				if a.countEnv < 0 {
					if a.hold {
						if a.alternate {
							a.attack = !a.attack
						}
						a.holding = true
						a.countEnv = 0
					} else {
						if a.alternate && a.countEnv&0x10 != 0 {
							a.attack = !a.attack
						}
						a.countEnv &= 0x0f
					}
				}
				a.volE = a.volTable[a.envShapeIndex()]
				if a.envelopeA {
					a.volA = a.volE
				}
				if a.envelopeB {
					a.volB = a.volE
				}
				if a.envelopeC {
					a.volC = a.volE
				}
			}
		}

		chA := float32(semiVolA*int64(a.volA)/ayFPUnit) / 32768.0
		chB := float32(semiVolB*int64(a.volB)/ayFPUnit) / 32768.0
		chC := float32(semiVolC*int64(a.volC)/ayFPUnit) / 32768.0
		bufs[0][s] = chA
		bufs[1][s] = chB
		bufs[2][s] = chC
	}
}

// stepTone advances one tone channel's half-period counter by nextEvent
// fixed-point units, accumulating semiVol the way AY8910.cc's per-channel
// inline block does, and returns the updated accumulator.
func (a *AY8910) stepTone(count *int64, period int64, output *int, gated bool, nextEvent, semiVol int64) int64 {
	if gated {
		if *output != 0 {
			semiVol += *count
		}
		*count -= nextEvent
		for *count <= 0 {
			*count += period
			if *count > 0 {
				*output ^= 1
				if *output != 0 {
					semiVol += period
				}
				break
			}
			*count += period
			semiVol += period
		}
		if *output != 0 {
			semiVol -= *count
		}
	} else {
		*count -= nextEvent
		for *count <= 0 {
			*count += period
			if *count > 0 {
				*output ^= 1
				break
			}
			*count += period
		}
	}
	return semiVol
}
