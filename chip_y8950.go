// chip_y8950.go - Y8950 MSX-AUDIO: OPL2-class FM core + ADPCM unit

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

import "sync"

const (
	y8950ChannelCount = 9 + 1 // 9 FM channels + 1 ADPCM channel
	y8950FMChannels   = 9
	y8950ClockHz      = 3579545
)

// y8950AdpcmStepTable is the Yamaha 4-bit ADPCM predictor's per-nibble
// step table (Y8950Adpcm.cc's static F[8] table).
var y8950AdpcmStepTable = [8]int{57, 57, 57, 57, 77, 102, 128, 153}

const (
	y8950AdpcmDMin = 127
	y8950AdpcmDMax = 24576
)

type y8950Operator struct {
	fmOperator
}

type y8950Channel struct {
	mod, car y8950Operator
	feedback uint8
	algorithmFM bool
	block uint8
	fnum  uint16
	keyOn bool

	// modKeyOn/carKeyOn track each operator's own key state for channels
	// 6-8 in rhythm mode, where HH/SD and TOM/CYM key independently
	// rather than together (see applyRhythmKeys).
	modKeyOn, carKeyOn bool
}

// y8950Adpcm implements the chip's ADPCM-Type-B unit: start/stop
// address-bounded playback from a 256 KiB RAM/ROM sample space,
// CPU-driven or autonomous memory pointer advance, the Yamaha 4-bit
// predictor, and the documented status-register bits (spec §4.7).
type y8950Adpcm struct {
	memory ADPCMMemory

	startAddr uint32
	stopAddr  uint32
	playAddr  uint32
	deltaN    uint16

	predictor  int32
	step       int32
	nibbleHigh bool

	playing bool
	repeat  bool
	recording bool // CPU->memory write mode (REC bit)
	memData bool   // MEMDAT: RAM vs ROM select

	volume uint8

	statusPCMBusy bool
	statusEOS     bool
	statusBufRdy  bool

	rateStep float32
	rateAcc  float32

	lastSample  float32
	currSample  float32
	interpFrac  float32
}

func (a *y8950Adpcm) reset() {
	a.startAddr = 0
	a.stopAddr = 0
	a.playAddr = 0
	a.deltaN = 0
	a.predictor = 0
	a.step = y8950AdpcmDMin
	a.nibbleHigh = false
	a.playing = false
	a.repeat = false
	a.recording = false
	a.memData = false
	a.volume = 0
	a.statusPCMBusy = false
	a.statusEOS = false
	a.statusBufRdy = true
	a.rateAcc = 0
	a.lastSample = 0
	a.currSample = 0
}

// decodeNibble applies one 4-bit ADPCM step (Y8950Adpcm.cc's decode):
// magnitude*step/8 with sign from bit3, step updated via the F[] table
// and clamped to [DMIN,DMAX].
func (a *y8950Adpcm) decodeNibble(nibble uint8) int32 {
	diff := (int32(nibble&7)*2 + 1) * a.step / 8
	if nibble&8 != 0 {
		diff = -diff
	}
	a.predictor += diff
	if a.predictor > 32767 {
		a.predictor = 32767
	} else if a.predictor < -32768 {
		a.predictor = -32768
	}
	a.step = a.step * int32(y8950AdpcmStepTable[nibble&7]) / 64
	if a.step < y8950AdpcmDMin {
		a.step = y8950AdpcmDMin
	} else if a.step > y8950AdpcmDMax {
		a.step = y8950AdpcmDMax
	}
	return a.predictor
}

// advanceByte pulls the next ADPCM nibble from memory at the chip's
// internal playback rate and decodes it, wrapping or stopping at
// stopAddr per the repeat flag.
func (a *y8950Adpcm) advanceByte() {
	if a.playAddr > a.stopAddr {
		if a.repeat {
			a.playAddr = a.startAddr
		} else {
			a.playing = false
			a.statusEOS = true
			a.statusPCMBusy = false
			return
		}
	}
	raw := a.memory.ReadMem(a.playAddr)
	var nibble uint8
	if !a.nibbleHigh {
		nibble = raw & 0x0f
	} else {
		nibble = raw >> 4
		a.playAddr++
	}
	a.nibbleHigh = !a.nibbleHigh
	a.lastSample = a.currSample
	a.currSample = float32(a.decodeNibble(nibble)) / 32768.0
}

// sample advances the resampling accumulator by rateStep and linearly
// interpolates between the last two decoded ADPCM samples, converting
// the ADPCM unit's own rate to the host rate.
func (a *y8950Adpcm) sample() float32 {
	if !a.playing {
		return 0
	}
	a.rateAcc += a.rateStep
	for a.rateAcc >= 1.0 {
		a.rateAcc -= 1.0
		a.advanceByte()
		if !a.playing {
			break
		}
	}
	out := a.lastSample + (a.currSample-a.lastSample)*a.rateAcc
	return out * float32(a.volume) / 255.0
}

// Y8950 is the MSX-AUDIO chip: 9 OPL2-class FM channels plus the ADPCM
// unit, sharing one IRQ line via the existing IRQSink interface and one
// status register (spec §4.7's "STATUS_BUF_RDY Bug?" kept as-documented
// below).
type Y8950 struct {
	mu sync.Mutex

	channels [y8950FMChannels]y8950Channel
	rhythmMode bool

	adpcm y8950Adpcm

	irqSink   IRQSink
	irqEnable uint8 // mask of enabled IRQ sources (EOS, timer A/B)

	hostHz int
	mixer  MixerUpdater

	userMute bool
}

func NewY8950(memory ADPCMMemory, irqSink IRQSink) (*Y8950, error) {
	if memory == nil {
		memory = newFlatADPCMMemory(256 * 1024)
	}
	if irqSink == nil {
		irqSink = NullIRQSink{}
	}
	y := &Y8950{irqSink: irqSink}
	y.adpcm.memory = memory
	y.Reset(0)
	return y, nil
}

func (y *Y8950) setMixer(m MixerUpdater) { y.mixer = m }

func (y *Y8950) Name() string      { return "Y8950" }
func (y *Y8950) ChannelCount() int { return y8950ChannelCount }

func (y *Y8950) ChannelMode(c int) ChannelMode { return ModeMono }

func (y *Y8950) AmplificationFactor() float32 { return 1.0 / float32(y8950FMChannels) }

func (y *Y8950) IsMuted() bool {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.userMute {
		return true
	}
	if y.adpcm.playing {
		return false
	}
	for i := range y.channels {
		if y.channels[i].keyOn {
			return false
		}
	}
	return true
}

func (y *Y8950) SetUserMute(muted bool) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.userMute = muted
}

func (y *Y8950) SetSampleRate(hostHz int) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.hostHz = hostHz
	y.retuneAdpcmRate()
}

// retuneAdpcmRate derives the ADPCM playback step from deltaN using the
// same FNUM-style formula the original uses for its delta-N clock
// conversion: step_per_sample = deltaN * chipClock / (72 * 1<<16 * hostHz).
func (y *Y8950) retuneAdpcmRate() {
	if y.hostHz == 0 {
		return
	}
	y.adpcm.rateStep = float32(y.adpcm.deltaN) * float32(y8950ClockHz) / (72.0 * 65536.0 * float32(y.hostHz))
}

func (y *Y8950) Reset(EmuTime) {
	y.mu.Lock()
	defer y.mu.Unlock()
	for i := range y.channels {
		y.channels[i] = y8950Channel{}
		y.channels[i].mod.envState = fmEnvFinish
		y.channels[i].mod.envLevel = 1
		y.channels[i].car.envState = fmEnvFinish
		y.channels[i].car.envLevel = 1
		y.channels[i].mod.waveform = fmWaveSine
		y.channels[i].car.waveform = fmWaveSine
	}
	y.rhythmMode = false
	y.adpcm.reset()
	y.irqEnable = 0
	y.irqSink.SetIRQ(false)
}

// PeekRegister exposes the status register (reg 0x06 per spec §4.7's
// status bit layout: bit7 PCM_BSY, bit5 EOS, bit0 BUF_RDY) without the
// read-clears-latch side effect ReadRegister has.
func (y *Y8950) PeekRegister(reg int) uint8 {
	y.mu.Lock()
	defer y.mu.Unlock()
	if reg != 0x06 {
		return 0
	}
	return y.statusByteLocked()
}

func (y *Y8950) statusByteLocked() uint8 {
	var s uint8
	if y.adpcm.statusPCMBusy {
		s |= 0x80
	}
	if y.adpcm.statusEOS {
		s |= 0x20
	}
	// STATUS_BUF_RDY Bug?: the original flags this bit's polarity as
	// suspect (low-when-ready vs high-when-ready disagree between the
	// datasheet and observed MSX-AUDIO BIOS behavior) and leaves it
	// unresolved; preserved here as high-when-ready without "fixing" it,
	// per the explicit instruction not to guess past what's documented.
	if y.adpcm.statusBufRdy {
		s |= 0x01
	}
	return s
}

// ReadRegister reads the status register and, per the Y8950 datasheet,
// clears the EOS latch on read.
func (y *Y8950) ReadRegister(reg int, _ EmuTime) uint8 {
	y.mu.Lock()
	defer y.mu.Unlock()
	if reg != 0x06 {
		return 0
	}
	s := y.statusByteLocked()
	y.adpcm.statusEOS = false
	return s
}

// WriteRegister implements the Y8950 register map: 0x01 test, 0x02-0x03
// timers (not separately modeled beyond IRQ mask acceptance), 0x04 IRQ
// reset/mask, 0x07-0x12 ADPCM control (start/stop/delta-N/volume/memory
// data port), 0x20-0xF5 the OPL2-compatible FM operator and channel
// block shared in shape with chip_opl3.go's single-bank addressing.
func (y *Y8950) WriteRegister(reg int, value uint8, emuTime EmuTime) {
	if y.mixer != nil {
		y.mixer.UpdateStream(emuTime)
	}
	y.mu.Lock()
	defer y.mu.Unlock()

	switch {
	case reg == 0x04:
		if value&0x80 != 0 {
			y.adpcm.statusEOS = false
			y.adpcm.statusPCMBusy = false
		} else {
			y.irqEnable = value & 0x3f
		}
	case reg == 0x07:
		y.adpcm.recording = value&0x01 != 0
		wasPlaying := y.adpcm.playing
		y.adpcm.playing = value&0x02 != 0 || wasPlaying && value&0x01 == 0
		if value&0x01 != 0 {
			y.adpcm.playing = false
		}
		if value&0x10 != 0 {
			y.adpcm.playAddr = y.adpcm.startAddr
			y.adpcm.nibbleHigh = false
			y.adpcm.predictor = 0
			y.adpcm.step = y8950AdpcmDMin
			y.adpcm.playing = true
			y.adpcm.statusPCMBusy = true
			y.adpcm.statusEOS = false
		}
		y.adpcm.repeat = value&0x20 != 0
		y.adpcm.memData = value&0x08 != 0
	case reg == 0x08:
		y.rhythmMode = value&0x20 != 0
		if y.rhythmMode {
			y.applyRhythmKeys(value)
		}
	case reg == 0x09:
		y.adpcm.startAddr = (y.adpcm.startAddr & 0xff00) | uint32(value)
	case reg == 0x0a:
		y.adpcm.startAddr = (y.adpcm.startAddr & 0x00ff) | (uint32(value) << 8)
	case reg == 0x0b:
		y.adpcm.stopAddr = (y.adpcm.stopAddr & 0xff00) | uint32(value)
	case reg == 0x0c:
		y.adpcm.stopAddr = (y.adpcm.stopAddr & 0x00ff) | (uint32(value) << 8)
	case reg == 0x0f:
		y.adpcm.memory.WriteMem(y.adpcm.playAddr, value)
		y.adpcm.playAddr++
	case reg == 0x10:
		y.adpcm.deltaN = (y.adpcm.deltaN & 0xff00) | uint16(value)
		y.retuneAdpcmRate()
	case reg == 0x11:
		y.adpcm.deltaN = (y.adpcm.deltaN & 0x00ff) | (uint16(value) << 8)
		y.retuneAdpcmRate()
	case reg == 0x12:
		y.adpcm.volume = value & 0x7f
	case reg >= 0x20 && reg <= 0x35:
		y.writeOperatorReg(reg-0x20, func(op *y8950Operator) {
			op.multiple = value & 0x0f
		})
	case reg >= 0x40 && reg <= 0x55:
		y.writeOperatorReg(reg-0x40, func(op *y8950Operator) {
			op.keyScaleLevel = value >> 6
			op.totalLevel = value & 0x3f
		})
	case reg >= 0x60 && reg <= 0x75:
		y.writeOperatorReg(reg-0x60, func(op *y8950Operator) {
			op.attackRate = value >> 4
			op.decayRate = value & 0x0f
		})
	case reg >= 0x80 && reg <= 0x95:
		y.writeOperatorReg(reg-0x80, func(op *y8950Operator) {
			op.sustainLevel = value >> 4
			op.releaseRate = value & 0x0f
			op.sustainHold = true
		})
	case reg >= 0xe0 && reg <= 0xf5:
		y.writeOperatorReg(reg-0xe0, func(op *y8950Operator) {
			if value&0x01 != 0 {
				op.waveform = fmWaveHalfSine
			} else {
				op.waveform = fmWaveSine
			}
		})
	case reg >= 0xa0 && reg <= 0xa8:
		ch := reg - 0xa0
		if ch < y8950FMChannels {
			y.channels[ch].fnum = (y.channels[ch].fnum & 0x300) | uint16(value)
			y.retuneChannel(ch)
		}
	case reg >= 0xb0 && reg <= 0xb8:
		ch := reg - 0xb0
		if ch < y8950FMChannels {
			y.channels[ch].fnum = (y.channels[ch].fnum & 0xff) | (uint16(value&0x03) << 8)
			y.channels[ch].block = (value >> 2) & 0x07
			y.retuneChannel(ch)
			if y.rhythmMode && ch >= 6 && ch <= 8 {
				// Channels 6-8's key-on is driven by reg 0x08's BD/HH/SD/
				// TOM/CYM bits while rhythm mode is active; this register
				// still retunes pitch but no longer keys the channel.
			} else {
				wasKeyOn := y.channels[ch].keyOn
				keyOn := value&0x20 != 0
				y.channels[ch].keyOn = keyOn
				if keyOn && !wasKeyOn {
					y.channels[ch].mod.keyOnTrigger()
					y.channels[ch].car.keyOnTrigger()
				} else if !keyOn && wasKeyOn {
					y.channels[ch].mod.keyOffTrigger()
					y.channels[ch].car.keyOffTrigger()
				}
			}
		}
	case reg >= 0xc0 && reg <= 0xc8:
		ch := reg - 0xc0
		if ch < y8950FMChannels {
			y.channels[ch].feedback = value >> 1 & 0x07
			y.channels[ch].algorithmFM = value&0x01 == 0
		}
	}
}

// applyRhythmKeys maps reg 0x08's BD/SD/TOM/CYM/HH bits to channels 6-8
// (spec §4.7's "FM core per OPL2 feature set... rhythm mode"), the same
// bit layout and independent mod/car keying as chip_opl3.go's rhythm
// section: BD keys channel 6's modulator and carrier together; HH keys
// channel 7's modulator and SD keys its carrier independently; TOM keys
// channel 8's modulator and CYM keys its carrier independently.
func (y *Y8950) applyRhythmKeys(value uint8) {
	bd := value&0x10 != 0
	triggerRhythmOperator(&y.channels[6].mod.fmOperator, &y.channels[6].modKeyOn, bd)
	triggerRhythmOperator(&y.channels[6].car.fmOperator, &y.channels[6].carKeyOn, bd)
	y.channels[6].keyOn = bd

	hh := value&0x01 != 0
	sd := value&0x08 != 0
	triggerRhythmOperator(&y.channels[7].mod.fmOperator, &y.channels[7].modKeyOn, hh)
	triggerRhythmOperator(&y.channels[7].car.fmOperator, &y.channels[7].carKeyOn, sd)
	y.channels[7].keyOn = hh || sd

	tom := value&0x04 != 0
	cym := value&0x02 != 0
	triggerRhythmOperator(&y.channels[8].mod.fmOperator, &y.channels[8].modKeyOn, tom)
	triggerRhythmOperator(&y.channels[8].car.fmOperator, &y.channels[8].carKeyOn, cym)
	y.channels[8].keyOn = tom || cym
}

func (y *Y8950) writeOperatorReg(slot int, apply func(*y8950Operator)) {
	ch, isCarrier, ok := opl3SlotToChannel(0, slot)
	if !ok || ch >= y8950FMChannels {
		return
	}
	if isCarrier {
		apply(&y.channels[ch].car)
	} else {
		apply(&y.channels[ch].mod)
	}
}

func (y *Y8950) retuneChannel(ch int) {
	c := &y.channels[ch]
	c.mod.phaseInc = phaseIncrementFNum(uint32(c.fnum), c.block, c.mod.multiple, y8950ClockHz, y.hostHz)
	c.car.phaseInc = phaseIncrementFNum(uint32(c.fnum), c.block, c.car.multiple, y8950ClockHz, y.hostHz)
}

// GenerateChannels produces the 9 FM channel buffers followed by one
// ADPCM channel buffer (channel index y8950FMChannels), matching the
// chip's own "FM mixes with the ADPCM unit at the final adder" topology
// while keeping this core's one-buffer-per-mixer-channel convention.
func (y *Y8950) GenerateChannels(bufs [][]float32, n int) {
	y.mu.Lock()
	defer y.mu.Unlock()
	if len(bufs) < y8950ChannelCount {
		return
	}
	for ch := range y.channels {
		c := &y.channels[ch]
		buf := bufs[ch]
		for i := 0; i < n; i++ {
			fb := float32(0)
			if c.feedback > 0 {
				fb = c.mod.lastOutput / float32(uint32(1)<<c.feedback)
			}
			modOut := c.mod.sample(fb, y.hostHz)
			if c.algorithmFM {
				buf[i] = c.car.sample(modOut, y.hostHz)
			} else {
				carOut := c.car.sample(0, y.hostHz)
				buf[i] = (modOut + carOut) / 2
			}
		}
	}
	adpcmBuf := bufs[y8950FMChannels]
	for i := 0; i < n; i++ {
		adpcmBuf[i] = y.adpcm.sample()
	}
	if y.adpcm.statusEOS && y.irqEnable&0x20 != 0 {
		y.irqSink.SetIRQ(true)
	}
}
