// chip_opl3.go - YMF262/OPL3: 18 operator slots, 2-bank register file, 4-op mode

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

import "sync"

const (
	opl3ChannelCount = 18
	opl3ClockHz      = 14318180
)

// opl3FourOpPairs lists the channel index pairs that merge into one
// 4-operator channel when the corresponding NEW2 bit is set (spec §4.5).
var opl3FourOpPairs = [6][2]int{{0, 3}, {1, 4}, {2, 5}, {9, 12}, {10, 13}, {11, 14}}

type opl3Operator struct {
	fmOperator
	keyScaleRate bool
}

type opl3Channel struct {
	mod, car opl3Operator
	feedback uint8
	algorithmFM bool // false = FM (serial), true = additive (parallel)
	panLeft, panRight bool
	block uint8
	fnum  uint16
	keyOn bool

	// modKeyOn/carKeyOn track each operator's own key state for bank-0
	// channels 6-8 in rhythm mode, where HH/SD and TOM/CYM key
	// independently rather than together (see applyRhythmKeys).
	modKeyOn, carKeyOn bool
}

// OPL3 is the YMF262. Two register banks (0x000/0x100) are modeled as a
// single 0x200-entry array addressed bank*0x100+reg, matching
// YMF262.cc's own flat register file layout.
type OPL3 struct {
	mu sync.Mutex

	regs [0x200]uint8

	channels [opl3ChannelCount]opl3Channel

	newBit  bool // OPL3 "NEW" enable bit (bank 0x105)
	new2Bit bool // 4-op pairing select bits, bank 0x104

	rhythmMode bool

	irqSink IRQSink

	hostHz int
	mixer  MixerUpdater

	userMute bool
}

func NewOPL3(irqSink IRQSink) (*OPL3, error) {
	if irqSink == nil {
		irqSink = NullIRQSink{}
	}
	o := &OPL3{irqSink: irqSink}
	o.Reset(0)
	return o, nil
}

func (o *OPL3) setMixer(m MixerUpdater) { o.mixer = m }

func (o *OPL3) Name() string                { return "YMF262" }
func (o *OPL3) ChannelCount() int           { return opl3ChannelCount }
func (o *OPL3) AmplificationFactor() float32 { return 1.0 / 4096.0 * 4096.0 / float32(opl3ChannelCount) }

func (o *OPL3) ChannelMode(c int) ChannelMode {
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

func (o *OPL3) IsMuted() bool {
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

func (o *OPL3) SetUserMute(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.userMute = muted
}

// SetSampleRate stores hostHz; the chip's own input rate is documented
// as round(chip_clock/(8*36)) (spec §4.5) but this core runs every chip
// against the shared mixer host rate like the rest of the module, so
// hostHz doubles as both.
func (o *OPL3) SetSampleRate(hostHz int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hostHz = hostHz
}

func (o *OPL3) Reset(EmuTime) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.regs {
		o.regs[i] = 0
	}
	for i := range o.channels {
		o.channels[i] = opl3Channel{panLeft: true, panRight: true}
		o.channels[i].mod.envState = fmEnvFinish
		o.channels[i].mod.envLevel = 1
		o.channels[i].car.envState = fmEnvFinish
		o.channels[i].car.envLevel = 1
		o.channels[i].mod.waveform = fmWaveSine
		o.channels[i].car.waveform = fmWaveSine
	}
	o.newBit = false
	o.new2Bit = false
	o.rhythmMode = false
	o.irqSink.SetIRQ(false)
}

func (o *OPL3) PeekRegister(reg int) uint8 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if reg < 0 || reg >= len(o.regs) {
		return 0
	}
	return o.regs[reg]
}

func (o *OPL3) ReadRegister(reg int, _ EmuTime) uint8 { return o.PeekRegister(reg) }

// WriteRegister expects reg already folded to a flat 0x000-0x1FF
// address (bank*0x100 + register), matching the OPL3 host interface's
// address-latch-then-data-port protocol once both bytes have been
// combined by the caller.
func (o *OPL3) WriteRegister(reg int, value uint8, emuTime EmuTime) {
	if o.mixer != nil {
		o.mixer.UpdateStream(emuTime)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if reg < 0 || reg >= len(o.regs) {
		return
	}
	o.regs[reg] = value

	bank := reg >> 8
	addr := reg & 0xff

	switch {
	case reg == 0x105:
		o.newBit = value&0x01 != 0
	case reg == 0x104:
		o.new2Bit = value != 0 // presence of any 4-op select bit
	case addr == 0xbd && bank == 0:
		o.rhythmMode = value&0x20 != 0
		if o.rhythmMode {
			o.applyRhythmKeys(value)
		}
	case addr >= 0x20 && addr <= 0x35:
		o.writeOperatorReg(bank, addr-0x20, func(op *opl3Operator) {
			op.keyScaleRate = value&0x10 != 0
			op.multiple = value & 0x0f
		})
	case addr >= 0x40 && addr <= 0x55:
		o.writeOperatorReg(bank, addr-0x40, func(op *opl3Operator) {
			op.keyScaleLevel = value >> 6
			op.totalLevel = value & 0x3f
		})
	case addr >= 0x60 && addr <= 0x75:
		o.writeOperatorReg(bank, addr-0x60, func(op *opl3Operator) {
			op.attackRate = value >> 4
			op.decayRate = value & 0x0f
		})
	case addr >= 0x80 && addr <= 0x95:
		o.writeOperatorReg(bank, addr-0x80, func(op *opl3Operator) {
			op.sustainLevel = value >> 4
			op.releaseRate = value & 0x0f
			op.sustainHold = true
		})
	case addr >= 0xe0 && addr <= 0xf5:
		o.writeOperatorReg(bank, addr-0xe0, func(op *opl3Operator) {
			op.waveform = fmWaveform(value & 0x07)
		})
	case addr >= 0xa0 && addr <= 0xa8:
		ch := bank*9 + int(addr-0xa0)
		if ch < opl3ChannelCount {
			o.channels[ch].fnum = (o.channels[ch].fnum & 0x300) | uint16(value)
			o.retuneChannel(ch)
		}
	case addr >= 0xb0 && addr <= 0xb8:
		ch := bank*9 + int(addr-0xb0)
		if ch < opl3ChannelCount {
			o.channels[ch].fnum = (o.channels[ch].fnum & 0xff) | (uint16(value&0x03) << 8)
			o.channels[ch].block = (value >> 2) & 0x07
			o.retuneChannel(ch)
			if o.rhythmMode && bank == 0 && ch >= 6 && ch <= 8 {
				// Channels 6-8's key-on is driven by reg 0xBD's BD/HH/SD/
				// TOM/CYM bits while rhythm mode is active; this register
				// still retunes pitch but no longer keys the channel.
			} else {
				wasKeyOn := o.channels[ch].keyOn
				keyOn := value&0x20 != 0
				o.channels[ch].keyOn = keyOn
				if keyOn && !wasKeyOn {
					o.channels[ch].mod.keyOnTrigger()
					o.channels[ch].car.keyOnTrigger()
				} else if !keyOn && wasKeyOn {
					o.channels[ch].mod.keyOffTrigger()
					o.channels[ch].car.keyOffTrigger()
				}
			}
		}
	case addr >= 0xc0 && addr <= 0xc8:
		ch := bank*9 + int(addr-0xc0)
		if ch < opl3ChannelCount {
			o.channels[ch].feedback = value >> 1 & 0x07
			o.channels[ch].algorithmFM = value&0x01 == 0
			o.channels[ch].panLeft = value&0x10 != 0
			o.channels[ch].panRight = value&0x20 != 0
		}
	}
}

// writeOperatorReg dispatches an operator-field write (offsets 0x00-0x15
// within each bank's 0x20-wide field block; 18 of those 22 offsets back a
// real operator, since OPL2-compatible addressing skips 0x06/0x07 and
// 0x0E/0x0F) to the modulator or carrier operator of the channel it
// belongs to.
func (o *OPL3) writeOperatorReg(bank int, slot int, apply func(*opl3Operator)) {
	ch, isCarrier, ok := opl3SlotToChannel(bank, slot)
	if !ok {
		return
	}
	if isCarrier {
		apply(&o.channels[ch].car)
	} else {
		apply(&o.channels[ch].mod)
	}
}

// opl3SlotToChannel maps the OPL2-style operator offset within one bank
// (3 groups of 8 offsets, each covering 3 channels: offsets 0-2 mod, 3-5
// car, 6-7 unused) to a channel index and mod/carrier selector.
func opl3SlotToChannel(bank, slot int) (ch int, isCarrier bool, ok bool) {
	if slot < 0 || slot >= 0x16 {
		return 0, false, false
	}
	group := slot / 8
	within := slot % 8
	if within >= 6 {
		return 0, false, false
	}
	chInGroup := within % 3
	isCarrier = within >= 3
	ch = bank*9 + group*3 + chInGroup
	if ch >= opl3ChannelCount {
		return 0, false, false
	}
	return ch, isCarrier, true
}

// applyRhythmKeys maps reg 0xBD's BD/SD/TOM/CYM/HH bits to bank-0
// channels 6-8 (spec §4.5's percussion section, "identical in structure
// to OPLL's rhythm mode"): BD keys channel 6's modulator and carrier
// together (a normal 2-operator voice); HH keys channel 7's modulator
// and SD keys its carrier independently; TOM keys channel 8's modulator
// and CYM keys its carrier independently. Each channel keeps whatever
// operator parameters were last programmed into its own registers —
// OPL2/3 has no separate ROM patch table for percussion the way OPLL
// does, so the drum timbre is whatever the host last wrote to that
// channel's own operator registers.
func (o *OPL3) applyRhythmKeys(value uint8) {
	bd := value&0x10 != 0
	triggerRhythmOperator(&o.channels[6].mod.fmOperator, &o.channels[6].modKeyOn, bd)
	triggerRhythmOperator(&o.channels[6].car.fmOperator, &o.channels[6].carKeyOn, bd)
	o.channels[6].keyOn = bd

	hh := value&0x01 != 0
	sd := value&0x08 != 0
	triggerRhythmOperator(&o.channels[7].mod.fmOperator, &o.channels[7].modKeyOn, hh)
	triggerRhythmOperator(&o.channels[7].car.fmOperator, &o.channels[7].carKeyOn, sd)
	o.channels[7].keyOn = hh || sd

	tom := value&0x04 != 0
	cym := value&0x02 != 0
	triggerRhythmOperator(&o.channels[8].mod.fmOperator, &o.channels[8].modKeyOn, tom)
	triggerRhythmOperator(&o.channels[8].car.fmOperator, &o.channels[8].carKeyOn, cym)
	o.channels[8].keyOn = tom || cym
}

func (o *OPL3) retuneChannel(ch int) {
	c := &o.channels[ch]
	c.mod.phaseInc = phaseIncrementFNum(uint32(c.fnum), c.block, c.mod.multiple, opl3ClockHz, o.hostHz)
	c.car.phaseInc = phaseIncrementFNum(uint32(c.fnum), c.block, c.car.multiple, opl3ClockHz, o.hostHz)
}

// fourOpPartner reports whether ch is the first half of a 4-op pair
// that's currently enabled (spec §4.5's channel 0+3/1+4/2+5/9+12/10+13/
// 11+14 merge list), and returns the partner index.
func (o *OPL3) fourOpPartner(ch int) (partner int, isPrimary bool) {
	if !o.new2Bit {
		return 0, false
	}
	for i, pair := range opl3FourOpPairs {
		if pair[0] == ch && o.regs[0x104]&(1<<uint(i)) != 0 {
			return pair[1], true
		}
	}
	return 0, false
}

// GenerateChannels synthesizes each of the 18 channel slots. A 4-op
// pair's second half is silent on its own (spec S3: "channel 3 in
// isolation is silent, its carrier is fed by channel 0's mod chain") —
// its carrier is driven from the primary channel's modulator chain
// instead of its own.
func (o *OPL3) GenerateChannels(bufs [][]float32, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(bufs) < opl3ChannelCount {
		return
	}

	partnerOf := make(map[int]int)
	isSecondHalf := make(map[int]bool)
	for i, pair := range opl3FourOpPairs {
		if o.regs[0x104]&(1<<uint(i)) != 0 {
			partnerOf[pair[0]] = pair[1]
			isSecondHalf[pair[1]] = true
		}
	}

	for ch := range o.channels {
		buf := bufs[ch]
		if isSecondHalf[ch] {
			for i := range buf {
				buf[i] = 0
			}
			continue
		}
		c := &o.channels[ch]
		if partner, ok := partnerOf[ch]; ok {
			p := &o.channels[partner]
			for i := 0; i < n; i++ {
				fb := float32(0)
				if c.feedback > 0 {
					fb = c.mod.lastOutput / float32(uint32(1)<<c.feedback)
				}
				m1 := c.mod.sample(fb, o.hostHz)
				m2 := c.car.sample(m1, o.hostHz)
				out4 := p.mod.sample(m2, o.hostHz)
				buf[i] = p.car.sample(out4, o.hostHz)
			}
			continue
		}
		for i := 0; i < n; i++ {
			fb := float32(0)
			if c.feedback > 0 {
				fb = c.mod.lastOutput / float32(uint32(1)<<c.feedback)
			}
			modOut := c.mod.sample(fb, o.hostHz)
			if c.algorithmFM {
				buf[i] = c.car.sample(modOut, o.hostHz)
			} else {
				carOut := c.car.sample(0, o.hostHz)
				buf[i] = (modOut + carOut) / 2
			}
		}
	}
}
