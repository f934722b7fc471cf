// emutime.go - monotonically increasing emulated-time clock

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

// EmuTimeHz is the base frequency EmuTime counts in. It must divide
// evenly (or close enough) into every chip clock this core supports, so a
// register write's timestamp never loses precision converting between a
// chip's clock and the shared base. 3579545*6 covers the MSX master clock
// (3.579545 MHz) exactly and its common chip dividers (/1, /2, /8, /16).
const EmuTimeHz uint64 = 3579545 * 6

// EmuTime is a monotonic count of EmuTimeHz ticks since boot. It is
// created once at machine boot, advanced only by the scheduler driving
// the emulated CPU, and never runs backwards (spec §3: "Register writes
// have strictly non-decreasing emulated-time stamps per chip").
type EmuTime uint64

// EmuDuration is the signed difference between two EmuTimes.
type EmuDuration int64

func (t EmuTime) Add(d EmuDuration) EmuTime {
	return EmuTime(int64(t) + int64(d))
}

func (t EmuTime) Sub(other EmuTime) EmuDuration {
	return EmuDuration(int64(t) - int64(other))
}

func (t EmuTime) Before(other EmuTime) bool { return t < other }
func (t EmuTime) After(other EmuTime) bool  { return t > other }

// DurationFromHz returns the EmuDuration corresponding to n cycles of a
// clock running at hz, rounding down. Used to convert a chip's own clock
// ("f_chip") into EmuTime ticks.
func DurationFromHz(n uint64, hz uint64) EmuDuration {
	if hz == 0 {
		return 0
	}
	return EmuDuration((n * uint64(EmuTimeHz)) / hz)
}

// SamplesToEmuDuration converts a count of host-rate samples into an
// EmuDuration, used by the mixer to compute emu_time_at_callback_end
// (spec §4.1 audio_callback). It rounds up, so EmuDurationToSamples gives
// the same sample count back.
func SamplesToEmuDuration(samples int, hostHz int) EmuDuration {
	if hostHz == 0 {
		return 0
	}
	return EmuDuration((uint64(samples)*uint64(EmuTimeHz) + uint64(hostHz) - 1) / uint64(hostHz))
}

// EmuDurationToSamples converts an EmuDuration back into a (possibly
// fractional, truncated) number of host-rate samples.
func EmuDurationToSamples(d EmuDuration, hostHz int) int {
	if d <= 0 {
		return 0
	}
	return int((uint64(d) * uint64(hostHz)) / uint64(EmuTimeHz))
}
