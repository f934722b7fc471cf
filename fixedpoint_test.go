// fixedpoint_test.go

package main

import "testing"

func TestFP8RoundTrip(t *testing.T) {
	cases := []float32{0, 1, -1, 0.5, -0.5, 3.25, -127.75}
	for _, f := range cases {
		got := FP8FromFloat(f).ToFloat()
		if diff := got - f; diff > 1.0/256 || diff < -1.0/256 {
			t.Errorf("FP8FromFloat(%v).ToFloat() = %v, want within 1/256", f, got)
		}
	}
}

func TestFP8MulIdentity(t *testing.T) {
	one := FP8FromInt(1)
	v := FP8FromFloat(0.3)
	if got := v.Mul(one); got != v {
		t.Errorf("v.Mul(1) = %v, want %v", got, v)
	}
}

func TestFP8DivByOne(t *testing.T) {
	one := FP8FromInt(1)
	v := FP8FromFloat(2.5)
	if got := v.Div(one); got != v {
		t.Errorf("v.Div(1) = %v, want %v", got, v)
	}
}

func TestFP16FracStripsIntegerPart(t *testing.T) {
	v := FP16FromInt(5) + FP16(1<<14) // 5.25
	if got := v.Frac(); got != FP16(1<<14) {
		t.Errorf("Frac() = %v, want %v", got, FP16(1<<14))
	}
}

func TestFP20MulScaling(t *testing.T) {
	half := FP20(1 << 19)
	two := FP20FromInt(2)
	if got := half.Mul(two); got != FP20FromInt(1) {
		t.Errorf("0.5 * 2 = %v, want %v", got, FP20FromInt(1))
	}
}

func TestClamp16Saturates(t *testing.T) {
	if got := clamp16(40000); got != 32767 {
		t.Errorf("clamp16(40000) = %d, want 32767", got)
	}
	if got := clamp16(-40000); got != -32768 {
		t.Errorf("clamp16(-40000) = %d, want -32768", got)
	}
	if got := clamp16(1234); got != 1234 {
		t.Errorf("clamp16(1234) = %d, want 1234", got)
	}
}
