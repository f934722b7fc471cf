// chip_sn76489_test.go

package main

import "testing"

func newTestSN76489(t *testing.T) *SN76489 {
	t.Helper()
	s, err := NewSN76489(3579545, SN76489VariantSega)
	if err != nil {
		t.Fatalf("NewSN76489: %v", err)
	}
	s.SetSampleRate(44100)
	return s
}

func TestSN76489ResetIsSilent(t *testing.T) {
	s := newTestSN76489(t)
	bufs := genChannels(s, 512)
	for ch, buf := range bufs {
		if !allZero(buf) {
			t.Errorf("channel %d: expected silence after reset, got nonzero samples", ch)
		}
	}
}

// TestSN76489ToneChannel latches channel 0's tone period and volume via
// the two-byte write protocol and checks for a periodic signal.
func TestSN76489ToneChannel(t *testing.T) {
	s := newTestSN76489(t)
	s.WriteRegister(0, 0x84, 0) // latch: channel 0, tone, low nibble 0x04
	s.WriteRegister(0, 0x00, 0) // data byte: high 6 bits = 0
	s.WriteRegister(0, 0x90, 0) // latch: channel 0, volume, max volume

	bufs := genChannels(s, 4096)
	if allZero(bufs[0]) {
		t.Errorf("channel 0: expected a tone, got silence")
	}
	if !allZero(bufs[1]) || !allZero(bufs[2]) {
		t.Errorf("channels 1/2: expected silence, got nonzero samples")
	}
	if period := detectPeriod(bufs[0]); period == 0 {
		t.Errorf("channel 0: detectPeriod found no periodicity in the tone")
	}
}

// TestSN76489MuteWhenAllVolumesMax exercises "silence when muted": volume
// nibble 0x0f means silent for every channel per the DCSG's inverted
// attenuation scale.
func TestSN76489MuteWhenAllVolumesMax(t *testing.T) {
	s := newTestSN76489(t)
	if !s.IsMuted() {
		t.Errorf("expected IsMuted() == true at reset (all volumes default to 0x0f)")
	}
	s.WriteRegister(0, 0x90, 0) // channel 0 volume = 0 (full volume)
	if s.IsMuted() {
		t.Errorf("expected IsMuted() == false once a channel has nonzero volume")
	}
}

// TestSN76489NoiseOutput checks that the noise channel in white-noise
// mode (bit 2 set) at full volume produces non-silent output.
func TestSN76489NoiseOutput(t *testing.T) {
	s := newTestSN76489(t)
	s.WriteRegister(0, 0xe4, 0) // latch noise reg: channel 3, rate 0, white noise
	s.WriteRegister(0, 0xf0, 0) // latch channel 3 volume = max

	bufs := genChannels(s, 8192)
	if allZero(bufs[3]) {
		t.Errorf("noise channel: expected output, got silence")
	}
}
