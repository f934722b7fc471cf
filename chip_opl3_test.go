// chip_opl3_test.go

package main

import "testing"

func newTestOPL3(t *testing.T) *OPL3 {
	t.Helper()
	o, err := NewOPL3(nil)
	if err != nil {
		t.Fatalf("NewOPL3: %v", err)
	}
	o.SetSampleRate(44100)
	return o
}

func keyOnOPL3Channel0(o *OPL3) {
	o.WriteRegister(0x20, 0x01, 0) // mod: multiple=1
	o.WriteRegister(0x23, 0x01, 0) // car: multiple=1
	o.WriteRegister(0x40, 0x3f, 0) // mod: total level max attenuation
	o.WriteRegister(0x43, 0x00, 0) // car: total level = loudest
	o.WriteRegister(0x60, 0xf0, 0) // mod: AR=15, DR=0
	o.WriteRegister(0x63, 0xf0, 0) // car: AR=15, DR=0
	o.WriteRegister(0x80, 0x0f, 0) // mod: SL=0, RR=15
	o.WriteRegister(0x83, 0x0f, 0) // car: SL=0, RR=15
	o.WriteRegister(0xa0, 0x50, 0) // fnum low
	o.WriteRegister(0xb0, 0x28, 0) // block=2, key on
}

func TestOPL3ResetIsSilent(t *testing.T) {
	o := newTestOPL3(t)
	bufs := genChannels(o, 512)
	for ch, buf := range bufs {
		if !allZero(buf) {
			t.Errorf("channel %d: expected silence after reset, got nonzero samples", ch)
		}
	}
}

// TestOPL3TwoOperatorChannel exercises the default 2-operator FM
// algorithm on channel 0.
func TestOPL3TwoOperatorChannel(t *testing.T) {
	o := newTestOPL3(t)
	keyOnOPL3Channel0(o)

	bufs := genChannels(o, 4096)
	if allZero(bufs[0]) {
		t.Errorf("channel 0: expected a tone, got silence")
	}
	if period := detectPeriod(bufs[0]); period == 0 {
		t.Errorf("channel 0: detectPeriod found no periodicity in the tone")
	}
}

// TestOPL3FourOperatorPairSilencesSecondHalf exercises spec scenario S3:
// with NEW2 set, channel 3 (the second half of the {0,3} 4-op pair) must
// be silent on its own, with channel 0 driving the merged 4-op voice.
func TestOPL3FourOperatorPairSilencesSecondHalf(t *testing.T) {
	o := newTestOPL3(t)
	o.WriteRegister(0x105, 0x01, 0) // NEW bit
	o.WriteRegister(0x104, 0x01, 0) // NEW2: select {0,3} as a 4-op pair

	keyOnOPL3Channel0(o)
	// Channel 3's own operators (bank 0 operator offsets 0x08/0x0B) are
	// left at reset defaults; only channel 0 is keyed on.

	bufs := genChannels(o, 4096)
	if allZero(bufs[0]) {
		t.Errorf("channel 0 (4-op primary): expected output, got silence")
	}
	if !allZero(bufs[3]) {
		t.Errorf("channel 3 (4-op secondary): expected silence on its own buffer, got nonzero samples")
	}
}

func TestOPL3MuteWhenNoKeyOn(t *testing.T) {
	o := newTestOPL3(t)
	if !o.IsMuted() {
		t.Errorf("expected IsMuted() == true with no channel keyed on")
	}
	keyOnOPL3Channel0(o)
	if o.IsMuted() {
		t.Errorf("expected IsMuted() == false once channel 0 is keyed on")
	}
}

func TestOPL3PanningModes(t *testing.T) {
	o := newTestOPL3(t)
	o.WriteRegister(0xc0, 0x10, 0) // pan left only, FM algorithm
	if got := o.ChannelMode(0); got != ModeMonoLeft {
		t.Errorf("ChannelMode(0) = %v, want ModeMonoLeft", got)
	}
	o.WriteRegister(0xc0, 0x20, 0) // pan right only
	if got := o.ChannelMode(0); got != ModeMonoRight {
		t.Errorf("ChannelMode(0) = %v, want ModeMonoRight", got)
	}
	o.WriteRegister(0xc0, 0x30, 0) // both
	if got := o.ChannelMode(0); got != ModeMono {
		t.Errorf("ChannelMode(0) = %v, want ModeMono", got)
	}
}

// TestOPL3RhythmMode exercises the percussion section mapped onto
// channel 6 when reg 0xBD's rhythm and bass-drum bits are set (spec
// §4.5's rhythm mode, identical in structure to OPLL's).
func TestOPL3RhythmMode(t *testing.T) {
	o := newTestOPL3(t)
	// Channel 6: mod is offset 0x10 (addr 0x30/0x50/0x70/0x90), car is
	// offset 0x13 (addr 0x33/0x53/0x73/0x93), per opl3SlotToChannel's
	// addressing.
	o.WriteRegister(0x30, 0x01, 0)
	o.WriteRegister(0x33, 0x01, 0)
	o.WriteRegister(0x50, 0x3f, 0)
	o.WriteRegister(0x53, 0x00, 0)
	o.WriteRegister(0x70, 0xf0, 0)
	o.WriteRegister(0x73, 0xf0, 0)
	o.WriteRegister(0x90, 0x0f, 0)
	o.WriteRegister(0x93, 0x0f, 0)
	o.WriteRegister(0xa6, 0x50, 0)
	o.WriteRegister(0xb6, 0x08, 0) // block=2; rhythm mode controls keying, not this bit

	o.WriteRegister(0xbd, 0x20|0x10, 0) // rhythm mode on, bass drum key on

	bufs := genChannels(o, 2048)
	if allZero(bufs[6]) {
		t.Errorf("channel 6 (bass drum): expected output, got silence")
	}
}

// TestOPL3RhythmHiHatAndSnareKeyIndependently exercises channel 7's
// independent mod/car keying: HH (reg 0xBD bit0) keys the modulator and
// SD (bit3) keys the carrier, and the two must be triggerable
// independently of each other.
func TestOPL3RhythmHiHatAndSnareKeyIndependently(t *testing.T) {
	o := newTestOPL3(t)

	o.WriteRegister(0xbd, 0x20|0x01, 0) // rhythm on, HH only
	if !o.channels[7].modKeyOn {
		t.Errorf("expected HH (channel 7 modulator) keyed on")
	}
	if o.channels[7].carKeyOn {
		t.Errorf("expected SD (channel 7 carrier) to remain keyed off while only HH is set")
	}

	o.WriteRegister(0xbd, 0x20|0x08, 0) // rhythm on, SD only (HH bit cleared)
	if o.channels[7].modKeyOn {
		t.Errorf("expected HH (channel 7 modulator) to key off once its bit clears")
	}
	if !o.channels[7].carKeyOn {
		t.Errorf("expected SD (channel 7 carrier) keyed on")
	}
}
