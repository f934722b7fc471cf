// mixer_test.go

package main

import "testing"

// constantDevice is a one-channel SoundDevice that emits a fixed sample
// value, used to exercise the mixer's mixdown math in isolation from any
// particular chip's DSP.
type constantDevice struct {
	value float32
	mode  ChannelMode
	muted bool
	name  string
}

func (d *constantDevice) Name() string                { return d.name }
func (d *constantDevice) ChannelCount() int           { return 1 }
func (d *constantDevice) ChannelMode(int) ChannelMode { return d.mode }
func (d *constantDevice) SetSampleRate(int)           {}
func (d *constantDevice) AmplificationFactor() float32 { return 1 }
func (d *constantDevice) IsMuted() bool               { return d.muted }
func (d *constantDevice) SetUserMute(m bool)          { d.muted = m }
func (d *constantDevice) Reset(EmuTime)               {}
func (d *constantDevice) PeekRegister(int) uint8      { return 0 }
func (d *constantDevice) GenerateChannels(bufs [][]float32, n int) {
	for i := 0; i < n; i++ {
		bufs[0][i] = d.value
	}
}

func TestMixerRegisterSoundRejectsTooManyChannels(t *testing.T) {
	m, err := NewMixer(44100, 0)
	if err != nil {
		t.Fatalf("NewMixer: %v", err)
	}
	dev := &manyChannelDevice{count: MaxChipChannels + 1}
	if err := m.RegisterSound(dev); err != ErrTooManyChannels {
		t.Errorf("RegisterSound with too many channels = %v, want ErrTooManyChannels", err)
	}
}

type manyChannelDevice struct{ count int }

func (d *manyChannelDevice) Name() string                      { return "many" }
func (d *manyChannelDevice) ChannelCount() int                  { return d.count }
func (d *manyChannelDevice) ChannelMode(int) ChannelMode        { return ModeMono }
func (d *manyChannelDevice) SetSampleRate(int)                  {}
func (d *manyChannelDevice) AmplificationFactor() float32       { return 1 }
func (d *manyChannelDevice) IsMuted() bool                      { return false }
func (d *manyChannelDevice) SetUserMute(bool)                   {}
func (d *manyChannelDevice) Reset(EmuTime)                      {}
func (d *manyChannelDevice) PeekRegister(int) uint8              { return 0 }
func (d *manyChannelDevice) GenerateChannels([][]float32, int) {}

func TestMixerSilentWhenUnregistered(t *testing.T) {
	m, err := NewMixer(44100, 0)
	if err != nil {
		t.Fatalf("NewMixer: %v", err)
	}
	out := make([]int16, 200)
	m.AudioCallback(out, 100, EmuTime(SamplesToEmuDuration(100, 44100)))
	for i, s := range out {
		if s != 0 {
			t.Fatalf("out[%d] = %d, want 0 with no devices registered", i, s)
		}
	}
}

// TestMixerPanning exercises spec scenario S5: with a hard-left device
// and a hard-right device registered, both output channels must carry
// signal in every frame.
func TestMixerPanning(t *testing.T) {
	m, err := NewMixer(44100, 0)
	if err != nil {
		t.Fatalf("NewMixer: %v", err)
	}
	left := &constantDevice{value: 0.5, mode: ModeMonoLeft, name: "left"}
	right := &constantDevice{value: 0.5, mode: ModeMonoRight, name: "right"}
	if err := m.RegisterSound(left); err != nil {
		t.Fatalf("RegisterSound(left): %v", err)
	}
	if err := m.RegisterSound(right); err != nil {
		t.Fatalf("RegisterSound(right): %v", err)
	}

	n := 64
	out := make([]int16, n*2)
	m.AudioCallback(out, n, EmuTime(SamplesToEmuDuration(n, 44100)))

	for i := 0; i < n; i++ {
		leftSample := out[i*2]
		rightSample := out[i*2+1]
		if leftSample == 0 {
			t.Fatalf("frame %d: left channel silent, want nonzero", i)
		}
		if rightSample == 0 {
			t.Fatalf("frame %d: right channel silent, want nonzero", i)
		}
	}
}

func TestMixerMuteSilencesDevice(t *testing.T) {
	m, err := NewMixer(44100, 0)
	if err != nil {
		t.Fatalf("NewMixer: %v", err)
	}
	dev := &constantDevice{value: 1.0, mode: ModeMono, name: "tone"}
	if err := m.RegisterSound(dev); err != nil {
		t.Fatalf("RegisterSound: %v", err)
	}
	m.SetUserMute(dev, true, 0)

	n := 32
	out := make([]int16, n*2)
	m.AudioCallback(out, n, EmuTime(SamplesToEmuDuration(n, 44100)))
	for i, s := range out {
		if s != 0 {
			t.Fatalf("out[%d] = %d, want 0 while muted", i, s)
		}
	}
}

// TestMixerSetSoftwareVolumeIsPerDeviceAndStereo exercises spec §4.1's
// set_software_volume(handle, left, right, emu_time): each device's gain
// is independent and can differ between the left and right output.
func TestMixerSetSoftwareVolumeIsPerDeviceAndStereo(t *testing.T) {
	m, err := NewMixer(44100, 0)
	if err != nil {
		t.Fatalf("NewMixer: %v", err)
	}
	quiet := &constantDevice{value: 1.0, mode: ModeMono, name: "quiet"}
	loud := &constantDevice{value: 1.0, mode: ModeMono, name: "loud"}
	if err := m.RegisterSound(quiet); err != nil {
		t.Fatalf("RegisterSound(quiet): %v", err)
	}
	if err := m.RegisterSound(loud); err != nil {
		t.Fatalf("RegisterSound(loud): %v", err)
	}
	m.SetSoftwareVolume(quiet, 0, 0, 0)
	m.SetSoftwareVolume(loud, 1, 0, 0)

	n := 16
	out := make([]int16, n*2)
	m.AudioCallback(out, n, EmuTime(SamplesToEmuDuration(n, 44100)))
	for i := 0; i < n; i++ {
		if out[2*i] == 0 {
			t.Fatalf("frame %d: left = 0, want nonzero from loud device's left gain", i)
		}
		if out[2*i+1] != 0 {
			t.Fatalf("frame %d: right = %d, want 0 (quiet device silenced, loud device panned fully left)", i, out[2*i+1])
		}
	}
}

func TestMixerSaturatingClip(t *testing.T) {
	m, err := NewMixer(44100, 0)
	if err != nil {
		t.Fatalf("NewMixer: %v", err)
	}
	// Several loud devices summed together should clip rather than wrap.
	devs := make([]*constantDevice, 4)
	for i := range devs {
		dev := &constantDevice{value: 1.0, mode: ModeMono, name: "loud"}
		if err := m.RegisterSound(dev); err != nil {
			t.Fatalf("RegisterSound: %v", err)
		}
		devs[i] = dev
	}
	for _, dev := range devs {
		m.SetSoftwareVolume(dev, 100000, 100000, 0)
	}

	n := 16
	out := make([]int16, n*2)
	m.AudioCallback(out, n, EmuTime(SamplesToEmuDuration(n, 44100)))
	sawFullScale := false
	for _, s := range out {
		if s == 32767 {
			sawFullScale = true
		}
	}
	if !sawFullScale {
		t.Errorf("expected at least one fully-saturated sample with 4x 1.0 devices at software gain 100000")
	}
}

func TestMixerUpdateStreamIdempotentAtSameTime(t *testing.T) {
	m, err := NewMixer(44100, 0)
	if err != nil {
		t.Fatalf("NewMixer: %v", err)
	}
	dev := &constantDevice{value: 0.25, mode: ModeMono, name: "tone"}
	if err := m.RegisterSound(dev); err != nil {
		t.Fatalf("RegisterSound: %v", err)
	}

	t1 := SamplesToEmuDuration(100, 44100)
	m.UpdateStream(EmuTime(t1))
	before := len(m.accum[dev][0])
	// Calling UpdateStream again at the same time must not advance
	// generation a second time (spec invariant: "update_stream is
	// idempotent for repeated calls at the same time").
	m.UpdateStream(EmuTime(t1))
	if got := len(m.accum[dev][0]); got != before {
		t.Errorf("accumulated %d samples after repeated UpdateStream, want %d", got, before)
	}
}

// TestMixerMidBlockRegisterWrite exercises spec scenario S6: a register
// write that lands in the middle of what would otherwise be one
// generation span must split the span so the write takes effect only
// from its own timestamp onward.
func TestMixerMidBlockRegisterWrite(t *testing.T) {
	m, err := NewMixer(44100, 0)
	if err != nil {
		t.Fatalf("NewMixer: %v", err)
	}
	ay, err := NewAY8910(nil)
	if err != nil {
		t.Fatalf("NewAY8910: %v", err)
	}
	if err := m.RegisterSound(ay); err != nil {
		t.Fatalf("RegisterSound: %v", err)
	}

	ay.WriteRegister(ayAFine, 0xfe, 0)
	ay.WriteRegister(ayACoarse, 0x00, 0)
	ay.WriteRegister(ayEnable, 0x3e, 0)
	ay.WriteRegister(ayAVol, 0x0f, 0)

	half := EmuTime(SamplesToEmuDuration(50, 44100))
	// Silence the channel partway through what would be a 100-sample
	// callback span; this forces the mixer to flush up to `half` first.
	ay.WriteRegister(ayAVol, 0x00, half)

	full := EmuTime(SamplesToEmuDuration(100, 44100))
	out := make([]int16, 200)
	m.AudioCallback(out, 100, full)

	firstHalfLoud := false
	for frame := 0; frame < 50; frame++ {
		if out[2*frame] != 0 || out[2*frame+1] != 0 {
			firstHalfLoud = true
		}
	}
	if !firstHalfLoud {
		t.Errorf("expected nonzero samples before the mid-block mute took effect")
	}
	for frame := 50; frame < 100; frame++ {
		if out[2*frame] != 0 || out[2*frame+1] != 0 {
			t.Errorf("frame %d: got (%d, %d), want silence after the mid-block mute", frame, out[2*frame], out[2*frame+1])
			break
		}
	}
}
