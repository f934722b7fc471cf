// chip_y8950_test.go

package main

import "testing"

func newTestY8950(t *testing.T) *Y8950 {
	t.Helper()
	y, err := NewY8950(newFlatADPCMMemory(4096), nil)
	if err != nil {
		t.Fatalf("NewY8950: %v", err)
	}
	y.SetSampleRate(44100)
	return y
}

func keyOnY8950Channel0(y *Y8950) {
	y.WriteRegister(0x20, 0x01, 0)
	y.WriteRegister(0x23, 0x01, 0)
	y.WriteRegister(0x40, 0x3f, 0)
	y.WriteRegister(0x43, 0x00, 0)
	y.WriteRegister(0x60, 0xf0, 0)
	y.WriteRegister(0x63, 0xf0, 0)
	y.WriteRegister(0x80, 0x0f, 0)
	y.WriteRegister(0x83, 0x0f, 0)
	y.WriteRegister(0xa0, 0x50, 0)
	y.WriteRegister(0xb0, 0x28, 0)
}

func TestY8950ResetIsSilent(t *testing.T) {
	y := newTestY8950(t)
	bufs := genChannels(y, 512)
	for ch, buf := range bufs {
		if !allZero(buf) {
			t.Errorf("channel %d: expected silence after reset, got nonzero samples", ch)
		}
	}
}

func TestY8950FMChannelTone(t *testing.T) {
	y := newTestY8950(t)
	keyOnY8950Channel0(y)

	bufs := genChannels(y, 4096)
	if allZero(bufs[0]) {
		t.Errorf("channel 0: expected a tone, got silence")
	}
	if period := detectPeriod(bufs[0]); period == 0 {
		t.Errorf("channel 0: detectPeriod found no periodicity in the tone")
	}
	if !allZero(bufs[y8950FMChannels]) {
		t.Errorf("ADPCM channel: expected silence, got nonzero samples")
	}
}

// TestY8950ADPCMReplay exercises spec scenario S4: starting ADPCM
// playback over a bounded address range must produce nonzero audio on
// the dedicated ADPCM channel buffer.
func TestY8950ADPCMReplay(t *testing.T) {
	y := newTestY8950(t)

	y.WriteRegister(0x09, 0x00, 0) // start addr low
	y.WriteRegister(0x0a, 0x00, 0) // start addr high
	y.WriteRegister(0x0b, 0xff, 0) // stop addr low
	y.WriteRegister(0x0c, 0x0f, 0) // stop addr high
	y.WriteRegister(0x10, 0x00, 0) // deltaN low
	y.WriteRegister(0x11, 0x40, 0) // deltaN high
	y.WriteRegister(0x12, 0x7f, 0) // volume max
	y.WriteRegister(0x07, 0x10, 0) // start trigger

	bufs := genChannels(y, 4096)
	if allZero(bufs[y8950FMChannels]) {
		t.Errorf("ADPCM channel: expected replay output, got silence")
	}
}

func TestY8950MuteTracksKeyOnAndPlayback(t *testing.T) {
	y := newTestY8950(t)
	if !y.IsMuted() {
		t.Errorf("expected IsMuted() == true at reset")
	}
	keyOnY8950Channel0(y)
	if y.IsMuted() {
		t.Errorf("expected IsMuted() == false once an FM channel is keyed on")
	}
}

// TestY8950StatusRegisterReadClearsEOS exercises the documented
// read-clears-EOS-latch behavior of ReadRegister vs PeekRegister.
func TestY8950StatusRegisterReadClearsEOS(t *testing.T) {
	y := newTestY8950(t)
	y.adpcm.statusEOS = true
	if peek := y.PeekRegister(0x06); peek&0x20 == 0 {
		t.Fatalf("PeekRegister(0x06) = %#x, want EOS bit set", peek)
	}
	first := y.ReadRegister(0x06, 0)
	if first&0x20 == 0 {
		t.Errorf("ReadRegister(0x06) first read = %#x, want EOS bit set", first)
	}
	second := y.ReadRegister(0x06, 0)
	if second&0x20 != 0 {
		t.Errorf("ReadRegister(0x06) second read = %#x, want EOS bit cleared", second)
	}
}

// TestY8950RhythmMode exercises the percussion section mapped onto
// channel 6 when reg 0x08's rhythm and bass-drum bits are set (spec
// §4.7's OPL2-class rhythm mode).
func TestY8950RhythmMode(t *testing.T) {
	y := newTestY8950(t)
	// Channel 6: mod is offset 0x10 (addr 0x30/0x50/0x70/0x90), car is
	// offset 0x13 (addr 0x33/0x53/0x73/0x93), per opl3SlotToChannel's
	// addressing.
	y.WriteRegister(0x30, 0x01, 0)
	y.WriteRegister(0x33, 0x01, 0)
	y.WriteRegister(0x50, 0x3f, 0)
	y.WriteRegister(0x53, 0x00, 0)
	y.WriteRegister(0x70, 0xf0, 0)
	y.WriteRegister(0x73, 0xf0, 0)
	y.WriteRegister(0x90, 0x0f, 0)
	y.WriteRegister(0x93, 0x0f, 0)
	y.WriteRegister(0xa6, 0x50, 0)
	y.WriteRegister(0xb6, 0x08, 0) // block=2; rhythm mode controls keying, not this bit

	y.WriteRegister(0x08, 0x20|0x10, 0) // rhythm mode on, bass drum key on

	bufs := genChannels(y, 2048)
	if allZero(bufs[6]) {
		t.Errorf("channel 6 (bass drum): expected output, got silence")
	}
}

// TestY8950RhythmHiHatAndSnareKeyIndependently exercises channel 7's
// independent mod/car keying: HH (reg 0x08 bit0) keys the modulator and
// SD (bit3) keys the carrier, and the two must be triggerable
// independently of each other.
func TestY8950RhythmHiHatAndSnareKeyIndependently(t *testing.T) {
	y := newTestY8950(t)

	y.WriteRegister(0x08, 0x20|0x01, 0) // rhythm on, HH only
	if !y.channels[7].modKeyOn {
		t.Errorf("expected HH (channel 7 modulator) keyed on")
	}
	if y.channels[7].carKeyOn {
		t.Errorf("expected SD (channel 7 carrier) to remain keyed off while only HH is set")
	}

	y.WriteRegister(0x08, 0x20|0x08, 0) // rhythm on, SD only (HH bit cleared)
	if y.channels[7].modKeyOn {
		t.Errorf("expected HH (channel 7 modulator) to key off once its bit clears")
	}
	if !y.channels[7].carKeyOn {
		t.Errorf("expected SD (channel 7 carrier) keyed on")
	}
}
