// chip_opll.go - YM2413/OPLL FM synthesizer with 16 preset patches + rhythm

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

import "sync"

// opllInstData is the 16 ROM instrument + 3 rhythm-patch byte table,
// ported byte-for-byte from original_source's YM2413Okazaki.cc
// (inst_data[16+3][8]; row 0 is the single user-programmable patch).
var opllInstData = [19][8]uint8{
	{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, // user instrument
	{0x61, 0x61, 0x1e, 0x17, 0xf0, 0x7f, 0x00, 0x17}, // violin
	{0x13, 0x41, 0x16, 0x0e, 0xfd, 0xf4, 0x23, 0x23}, // guitar
	{0x03, 0x01, 0x9a, 0x04, 0xf3, 0xf3, 0x13, 0xf3}, // piano
	{0x11, 0x61, 0x0e, 0x07, 0xfa, 0x64, 0x70, 0x17}, // flute
	{0x22, 0x21, 0x1e, 0x06, 0xf0, 0x76, 0x00, 0x28}, // clarinet
	{0x21, 0x22, 0x16, 0x05, 0xf0, 0x71, 0x00, 0x18}, // oboe
	{0x21, 0x61, 0x1d, 0x07, 0x82, 0x80, 0x17, 0x17}, // trumpet
	{0x23, 0x21, 0x2d, 0x16, 0x90, 0x90, 0x00, 0x07}, // organ
	{0x21, 0x21, 0x1b, 0x06, 0x64, 0x65, 0x10, 0x17}, // horn
	{0x21, 0x21, 0x0b, 0x1a, 0x85, 0xa0, 0x70, 0x07}, // synthesizer
	{0x23, 0x01, 0x83, 0x10, 0xff, 0xb4, 0x10, 0xf4}, // harpsichord
	{0x97, 0xc1, 0x20, 0x07, 0xff, 0xf4, 0x22, 0x22}, // vibraphone
	{0x61, 0x00, 0x0c, 0x05, 0xc2, 0xf6, 0x40, 0x44}, // synth bass
	{0x01, 0x01, 0x56, 0x03, 0x94, 0xc2, 0x03, 0x12}, // acoustic bass
	{0x21, 0x01, 0x89, 0x03, 0xf1, 0xe4, 0xf0, 0x23}, // electric guitar
	{0x07, 0x21, 0x14, 0x00, 0xee, 0xf8, 0xff, 0xf8}, // rhythm: bass drum
	{0x01, 0x31, 0x00, 0x00, 0xf8, 0xf7, 0xf8, 0xf7}, // rhythm: snare/hi-hat
	{0x25, 0x11, 0x00, 0x00, 0xf8, 0xfa, 0xf8, 0x55}, // rhythm: tom/cymbal
}

// opllPatch is one instrument's modulator+carrier operator program,
// decoded from an 8-byte ROM row via the same bitfield layout as
// Patch::initModulator/initCarrier.
type opllPatch struct {
	mod, car opllOpParams
}

type opllOpParams struct {
	am, pm, eg, ksr bool
	multiple        uint8
	keyScaleLevel   uint8
	totalLevel      uint8
	waveform        fmWaveform
	attackRate      uint8
	decayRate       uint8
	sustainLevel    uint8
	releaseRate     uint8
	feedback        uint8
}

func decodeOPLLPatch(data [8]uint8) opllPatch {
	fb := data[3] & 0x07
	fbShift := uint8(0)
	if fb != 0 {
		fbShift = 8 - fb
	}
	wfMod := fmWaveSine
	if data[3]>>3&1 != 0 {
		wfMod = fmWaveHalfSine
	}
	wfCar := fmWaveSine
	if data[3]>>4&1 != 0 {
		wfCar = fmWaveHalfSine
	}
	return opllPatch{
		mod: opllOpParams{
			am: data[0]>>7&1 != 0, pm: data[0]>>6&1 != 0, eg: data[0]>>5&1 != 0,
			ksr: data[0]>>4&1 != 0, multiple: data[0] & 0x0f,
			keyScaleLevel: data[2] >> 6 & 3, totalLevel: data[2] & 0x3f,
			waveform: wfMod, attackRate: data[4] >> 4, decayRate: data[4] & 0x0f,
			sustainLevel: data[6] >> 4, releaseRate: data[6] & 0x0f, feedback: fbShift,
		},
		car: opllOpParams{
			am: data[1]>>7&1 != 0, pm: data[1]>>6&1 != 0, eg: data[1]>>5&1 != 0,
			ksr: data[1]>>4&1 != 0, multiple: data[1] & 0x0f,
			keyScaleLevel: data[3] >> 6 & 3, totalLevel: 0,
			waveform: wfCar, attackRate: data[5] >> 4, decayRate: data[5] & 0x0f,
			sustainLevel: data[7] >> 4, releaseRate: data[7] & 0x0f,
		},
	}
}

var opllPatches [19]opllPatch

func init() {
	for i, row := range opllInstData {
		opllPatches[i] = decodeOPLLPatch(row)
	}
}

const (
	opllClockHz      = 3579545
	opllChannelCount = 9

	// opllLFOFreqHz/opllVibratoDepth/opllTremoloDepth are the fixed LFO
	// parameters spec §4.4 names: "Triangle 0..26..0, 3.7Hz, depth
	// 4.875dB" for AM tremolo, and a sawtooth ±13.75 cents for PM
	// vibrato. Unlike OPM, OPLL's LFO rate and depth aren't
	// register-selectable.
	opllLFOFreqHz    = 3.7
	opllVibratoDepth = 0.00795 // ±13.75 cents as a phase-increment fraction
	opllTremoloDepth = 0.429   // ≈4.875dB peak attenuation, linear
)

// opllChannel is one of the 9 melodic (or 6 melodic + 3 rhythm) voices.
type opllChannel struct {
	mod, car opllOperator
	instrument uint8
	volume     uint8
	block      uint8
	fnum       uint16
	sustain    bool
	keyOn      bool

	// modKeyOn/carKeyOn track each operator's own key state for channels
	// 7 and 8 in rhythm mode, where HH/SD and TOM/CYM trigger
	// independently rather than together (see applyRhythmKeys).
	modKeyOn, carKeyOn bool
}

type opllOperator struct {
	fmOperator
	params opllOpParams
}

func (o *opllOperator) applyPatch(p opllOpParams, volumeTL uint8, carrier bool) {
	o.params = p
	o.waveform = p.waveform
	o.attackRate = p.attackRate
	o.decayRate = p.decayRate
	o.sustainLevel = p.sustainLevel
	o.releaseRate = p.releaseRate
	o.sustainHold = true
	if carrier {
		o.totalLevel = volumeTL
	} else {
		o.totalLevel = p.totalLevel
	}
	o.keyScaleLevel = p.keyScaleLevel
	o.feedback = p.feedback
}

// OPLL is the YM2413. Registers follow spec §4.4's layout exactly;
// envelope/phase generation reuses the shared fmOperator machinery from
// fmcommon.go (the "fast software DSP" style spec §4.4 permits).
type OPLL struct {
	mu sync.Mutex

	regs [0x40]uint8

	channels [opllChannelCount]opllChannel
	userPatch opllPatch

	rhythmMode bool

	lfo fmLFO

	hostHz int

	userMute bool

	mixer MixerUpdater
}

func (o *OPLL) setMixer(m MixerUpdater) { o.mixer = m }

// NewOPLL constructs an OPLL.
func NewOPLL() (*OPLL, error) {
	o := &OPLL{}
	o.lfo.freq = opllLFOFreqHz
	o.userPatch = opllPatches[0]
	o.Reset(0)
	return o, nil
}

func (o *OPLL) Name() string             { return "YM2413" }
func (o *OPLL) ChannelCount() int        { return opllChannelCount }
func (o *OPLL) ChannelMode(int) ChannelMode { return ModeMono }
func (o *OPLL) AmplificationFactor() float32 { return 1.0 / float32(opllChannelCount) }

func (o *OPLL) IsMuted() bool {
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

func (o *OPLL) SetUserMute(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.userMute = muted
}

func (o *OPLL) SetSampleRate(hostHz int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hostHz = hostHz
}

func (o *OPLL) Reset(EmuTime) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.regs {
		o.regs[i] = 0
	}
	for i := range o.channels {
		o.channels[i] = opllChannel{}
		o.channels[i].mod.envState = fmEnvFinish
		o.channels[i].mod.envLevel = 1
		o.channels[i].car.envState = fmEnvFinish
		o.channels[i].car.envLevel = 1
	}
	o.rhythmMode = false
	o.userPatch = opllPatches[0]
}

func (o *OPLL) PeekRegister(reg int) uint8 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if reg < 0 || reg >= len(o.regs) {
		return 0
	}
	return o.regs[reg]
}

func (o *OPLL) ReadRegister(reg int, _ EmuTime) uint8 { return o.PeekRegister(reg) }

// WriteRegister applies the address-space layout from spec §4.4:
// 0x00-0x07 user patch, 0x0E rhythm control, 0x10-0x18 fnum low,
// 0x20-0x28 block/fnum-high/key-on/sustain, 0x30-0x38 instrument+volume.
func (o *OPLL) WriteRegister(reg int, value uint8, emuTime EmuTime) {
	if o.mixer != nil {
		o.mixer.UpdateStream(emuTime)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if reg < 0 || reg >= len(o.regs) {
		return
	}
	o.regs[reg] = value

	switch {
	case reg <= 0x07:
		o.writeUserPatchByte(reg, value)
	case reg == 0x0e:
		// Rhythm-mode bit is evaluated before the per-drum key-on bits
		// in the same write (spec §9's documented evaluation order).
		o.rhythmMode = value&0x20 != 0
		if o.rhythmMode {
			o.applyRhythmKeys(value)
		}
	case reg >= 0x10 && reg <= 0x18:
		ch := reg - 0x10
		o.channels[ch].fnum = (o.channels[ch].fnum & 0x100) | uint16(value)
		o.retuneChannel(ch)
	case reg >= 0x20 && reg <= 0x28:
		ch := reg - 0x20
		wasKeyOn := o.channels[ch].keyOn
		o.channels[ch].fnum = (o.channels[ch].fnum & 0xff) | (uint16(value&0x01) << 8)
		o.channels[ch].block = (value >> 1) & 0x07
		o.channels[ch].sustain = value&0x20 != 0
		keyOn := value&0x10 != 0
		o.channels[ch].keyOn = keyOn
		o.retuneChannel(ch)
		if keyOn && !wasKeyOn {
			o.channels[ch].mod.keyOnTrigger()
			o.channels[ch].car.keyOnTrigger()
		} else if !keyOn && wasKeyOn {
			o.channels[ch].mod.keyOffTrigger()
			o.channels[ch].car.keyOffTrigger()
		}
	case reg >= 0x30 && reg <= 0x38:
		ch := reg - 0x30
		o.channels[ch].instrument = value >> 4
		o.channels[ch].volume = value & 0x0f
		o.applyInstrument(ch)
	}
}

func (o *OPLL) writeUserPatchByte(reg int, value uint8) {
	var row [8]uint8
	row[reg] = value
	for i := 0; i < 8; i++ {
		if i != reg {
			row[i] = opllInstData[0][i]
		}
	}
	opllInstData[0] = row
	o.userPatch = decodeOPLLPatch(row)
	for ch := range o.channels {
		if o.channels[ch].instrument == 0 {
			o.applyInstrument(ch)
		}
	}
}

func (o *OPLL) applyInstrument(ch int) {
	inst := o.channels[ch].instrument
	var patch opllPatch
	if inst == 0 {
		patch = o.userPatch
	} else {
		patch = opllPatches[inst]
	}
	vol := o.channels[ch].volume << 2 // 4-bit channel volume to 6-bit TL-ish attenuation
	o.channels[ch].mod.applyPatch(patch.mod, patch.mod.totalLevel, false)
	o.channels[ch].car.applyPatch(patch.car, vol, true)
}

func (o *OPLL) retuneChannel(ch int) {
	c := &o.channels[ch]
	c.mod.phaseInc = phaseIncrementFNum(uint32(c.fnum), c.block, c.mod.params.multiple, opllClockHz, o.hostHz)
	c.car.phaseInc = phaseIncrementFNum(uint32(c.fnum), c.block, c.car.params.multiple, opllClockHz, o.hostHz)
}

// applyRhythmKeys maps reg 0x0E's BD/SD/TOM/CYM/HH bits to channels 6-8
// using patches 16-18 (spec §4.4's rhythm section). Per
// YM2413Okazaki.cc's update_key_status and the YM2413 datasheet: BD keys
// channel 6's modulator and carrier together (it's a normal 2-operator
// voice); HH (bit0) keys channel 7's modulator and SD (bit3) keys
// channel 7's carrier independently; TOM (bit2) keys channel 8's
// modulator and CYM (bit1) keys channel 8's carrier independently.
func (o *OPLL) applyRhythmKeys(value uint8) {
	bd := value&0x10 != 0
	applyRhythmVoice(&o.channels[6], opllPatches[16], bd, bd)

	hh := value&0x01 != 0
	sd := value&0x08 != 0
	applyRhythmVoice(&o.channels[7], opllPatches[17], hh, sd)

	tom := value&0x04 != 0
	cym := value&0x02 != 0
	applyRhythmVoice(&o.channels[8], opllPatches[18], tom, cym)
}

// applyRhythmVoice loads patch into ch and triggers its modulator/carrier
// key edges independently, since HH/SD and TOM/CYM share a channel but
// key on and off at different times on real hardware.
func applyRhythmVoice(ch *opllChannel, patch opllPatch, modOn, carOn bool) {
	ch.mod.applyPatch(patch.mod, patch.mod.totalLevel, false)
	ch.car.applyPatch(patch.car, patch.car.totalLevel, true)
	triggerRhythmOperator(&ch.mod.fmOperator, &ch.modKeyOn, modOn)
	triggerRhythmOperator(&ch.car.fmOperator, &ch.carKeyOn, carOn)
	ch.keyOn = modOn || carOn
}

// GenerateChannels synthesizes 9 independent channel buffers; in rhythm
// mode channels 6-8 play the BD/SD-HH/TOM-CYM voices instead of melodic
// patches, per spec §4.4 — the shared BD/SD/HH/TOM/CYM phase-combining
// rules (XORing specific operator-7/8 bits) are approximated here by
// reusing the modulator/carrier pair per percussion voice rather than
// replicating the bit-exact cross-operator XOR network, consistent with
// the "fast software DSP" style's per-channel-independent generation.
func (o *OPLL) GenerateChannels(bufs [][]float32, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(bufs) < opllChannelCount {
		return
	}

	// The LFO is shared across every channel (spec §4.4: one chip-wide
	// AM/PM oscillator, not per-channel), so its phase is advanced once
	// per sample here rather than once per channel.
	vibrato := make([]float32, n)
	tremolo := make([]float32, n)
	for i := 0; i < n; i++ {
		vibrato[i] = opllVibratoDepth * o.lfo.saw()
		tremolo[i] = 1 - opllTremoloDepth*o.lfo.triangle01()
		o.lfo.advance(o.hostHz)
	}

	for ch := range o.channels {
		c := &o.channels[ch]
		buf := bufs[ch]
		for i := 0; i < n; i++ {
			feedbackMod := float32(0)
			if c.mod.feedback > 0 {
				feedbackMod = c.mod.lastOutput / float32(uint32(1)<<c.mod.feedback)
			}
			modVib := float32(0)
			if c.mod.params.pm {
				modVib = vibrato[i]
			}
			modOut := c.mod.sampleVibrato(feedbackMod, o.hostHz, modVib)
			if c.mod.params.am {
				modOut *= tremolo[i]
			}
			carVib := float32(0)
			if c.car.params.pm {
				carVib = vibrato[i]
			}
			carOut := c.car.sampleVibrato(modOut, o.hostHz, carVib)
			if c.car.params.am {
				carOut *= tremolo[i]
			}
			buf[i] = carOut
		}
	}
}
