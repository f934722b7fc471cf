// main.go - minimal host harness exercising the mixer and chip set

// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/msxaudio
// License: GPLv3 or later

package main

import (
	"fmt"
	"os"
	"time"
)

const demoHostHz = 44100

// main wires every chip core into one Mixer and plays a short fixed
// sequence through the host audio backend. There is no CPU core or
// cartridge loader here: this module only owns the audio subsystem, so
// register writes are driven directly rather than through an emulated
// bus (spec §1 Non-goals).
func main() {
	fmt.Println("msxaudio demo: mixer + chip set smoke test")

	mixer, err := NewMixer(demoHostHz, 0)
	if err != nil {
		fmt.Printf("failed to create mixer: %v\n", err)
		os.Exit(1)
	}

	ay, err := NewAY8910(nil)
	if err != nil {
		fmt.Printf("failed to create AY8910: %v\n", err)
		os.Exit(1)
	}
	opll, err := NewOPLL()
	if err != nil {
		fmt.Printf("failed to create OPLL: %v\n", err)
		os.Exit(1)
	}
	scc, err := NewSCC(SCCModePlus)
	if err != nil {
		fmt.Printf("failed to create SCC: %v\n", err)
		os.Exit(1)
	}

	for _, device := range []SoundDevice{ay, opll, scc} {
		if err := mixer.RegisterSound(device); err != nil {
			fmt.Printf("failed to register %s: %v\n", device.Name(), err)
			os.Exit(1)
		}
	}

	player, err := NewOtoPlayer(demoHostHz)
	if err != nil {
		fmt.Printf("failed to open audio output: %v\n", err)
		os.Exit(1)
	}
	player.SetupPlayer(mixer, 0)
	player.Start()
	defer player.Close()

	t := EmuTime(0)

	// AY channel A: a middle-ish square tone (spec S1).
	ay.WriteRegister(ayAFine, 0xfe, t)
	ay.WriteRegister(ayACoarse, 0x00, t)
	ay.WriteRegister(ayEnable, 0x3e, t) // channel A tone on, noise off
	ay.WriteRegister(ayAVol, 0x0f, t)

	// OPLL channel 0: instrument 1 ("Violin"), a held note (spec S2).
	opll.WriteRegister(0x30, 0x10, t) // instrument 1, volume max
	opll.WriteRegister(0x10, 0xa2, t) // fnum low
	opll.WriteRegister(0x20, 0x13, t) // key on, block 1, fnum high bit

	// SCC channel 0: a simple ramp waveform.
	for i := 0; i < 32; i++ {
		scc.WriteRegister(i, uint8(i*8-128), t)
	}
	scc.WriteRegister(0xa0, 0x40, t) // freq low, channel 0 (SCC+ register map)
	scc.WriteRegister(0xaa, 0x0f, t) // channel 0 full volume

	time.Sleep(2 * time.Second)
}
