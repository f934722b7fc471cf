// chip_dac_test.go

package main

import "testing"

func TestDACSoundResetIsCentered(t *testing.T) {
	d, err := NewDACSound(32767)
	if err != nil {
		t.Fatalf("NewDACSound: %v", err)
	}
	bufs := genChannels(d, 64)
	if !allZero(bufs[0]) {
		t.Errorf("expected silence (0x80 centered) after reset, got nonzero samples")
	}
}

// TestDACSoundStepAndHold exercises the step-and-hold resampling
// contract: a write must hold its value across every subsequent
// GenerateChannels call until the next write.
func TestDACSoundStepAndHold(t *testing.T) {
	d, err := NewDACSound(32767)
	if err != nil {
		t.Fatalf("NewDACSound: %v", err)
	}
	d.WriteRegister(0, 0xff, 0)

	bufs := genChannels(d, 256)
	for i, s := range bufs[0] {
		if s <= 0 {
			t.Fatalf("sample %d: expected a held positive value for 0xff, got %v", i, s)
		}
	}

	d.WriteRegister(0, 0x00, EmuTime(SamplesToEmuDuration(256, 44100)))
	bufs2 := genChannels(d, 256)
	for i, s := range bufs2[0] {
		if s >= 0 {
			t.Fatalf("sample %d: expected a held negative value for 0x00, got %v", i, s)
		}
	}
}

func TestDACSoundMuteSilencesOutput(t *testing.T) {
	d, err := NewDACSound(32767)
	if err != nil {
		t.Fatalf("NewDACSound: %v", err)
	}
	d.WriteRegister(0, 0xff, 0)
	d.SetUserMute(true)
	if !d.IsMuted() {
		t.Errorf("expected IsMuted() == true after SetUserMute(true)")
	}
}
