// fixedpoint.go - signed 32-bit fixed-point scalar types

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

// Fixed-point scalar types. The chip cores' inner DSP loops compute in
// float32 and do not use these types; FP8 carries the mixer's per-device
// stereo gains. Each fractional-bit width gets its own
// named type instead of a generic FixedPoint[F int] because Go generics
// can't key arithmetic behaviour off an integer type parameter the way
// the C++ template this is grounded on (FixedPoint.hh) does; distinct
// types also prevent accidentally mixing F8 and F16 values the way the
// original "no implicit conversion across F values" invariant requires.

// FP8 is Q24.8 fixed point: 8 fractional bits, used for volume/pan gains.
type FP8 int32

const fp8One = 1 << 8

func FP8FromFloat(f float32) FP8 { return FP8(f*fp8One + 0.5*sign32(f)) }
func FP8FromInt(i int) FP8       { return FP8(i << 8) }

func (f FP8) ToFloat() float32 { return float32(f) / fp8One }
func (f FP8) ToInt() int32     { return int32(f) >> 8 }

func (f FP8) Mul(g FP8) FP8 {
	return FP8((int64(f) * int64(g)) / fp8One)
}

func (f FP8) Div(g FP8) FP8 {
	return FP8((int64(f) << 8) / int64(g))
}

// FP16 is Q16.16 fixed point, sized for phase accumulators and resampler
// step sizes, where sub-sample accuracy over long runs matters. No chip
// core in this module uses it.
type FP16 int32

const fp16One = 1 << 16

func FP16FromFloat(f float64) FP16 { return FP16(f*fp16One + 0.5*sign64(f)) }
func FP16FromInt(i int) FP16       { return FP16(i << 16) }

func (f FP16) ToInt() int32       { return int32(f) >> 16 }
func (f FP16) ToFloat() float64   { return float64(f) / fp16One }
func (f FP16) Frac() FP16         { return f & (fp16One - 1) }
func (f FP16) Add(g FP16) FP16    { return f + g }
func (f FP16) Sub(g FP16) FP16    { return f - g }

func (f FP16) Mul(g FP16) FP16 {
	return FP16((int64(f) * int64(g)) / fp16One)
}

func (f FP16) Div(g FP16) FP16 {
	return FP16((int64(f) << 16) / int64(g))
}

// FP20 is Q12.20 fixed point, a wider fractional width sized for a
// 20-bit FM phase accumulator (spec §4.4's 18-bit PG plus headroom for
// the vibrato add). No chip core in this module uses it: the FM cores'
// phase generators run plain uint32 accumulators (fmcommon.go).
type FP20 int32

const fp20One = 1 << 20

func FP20FromInt(i int) FP20 { return FP20(i << 20) }
func (f FP20) ToInt() int32  { return int32(f) >> 20 }

func (f FP20) Mul(g FP20) FP20 {
	return FP20((int64(f) * int64(g)) / fp20One)
}

func sign32(f float32) float32 {
	if f < 0 {
		return -1
	}
	return 1
}

func sign64(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

// clamp16 saturates to the 16-bit signed PCM range (spec §4.1 step 3 /
// §7 "numeric overflow... saturating clip").
func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
