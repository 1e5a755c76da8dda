// cmd/caltool/main.go
//
// Interactive calibration shell. Runs the real driver against a simulated
// bus and echoes every encoded wire frame, so a threshold or KAT change can
// be previewed byte-for-byte before it is burned into a panel config.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"touchcode-go/drivers/tty6955"

	"github.com/google/shlex"
)

// echoI2C prints each write frame and serves a loadable output frame.
type echoI2C struct {
	frame [6]byte
}

func (e *echoI2C) Tx(addr uint16, w, r []byte) error {
	if len(w) > 0 {
		fmt.Printf("  wire -> addr=%#02x frame=%02X\n", addr, w)
	}
	if len(r) > 0 {
		copy(r, e.frame[:])
	}
	return nil
}

func main() {
	sim := &echoI2C{frame: [6]byte{0x80, 0, 0, 0, 0, 0}}
	cfg := tty6955.Config{Slider1Pads: 3}
	dev := tty6955.New(sim, cfg)

	fmt.Println("caltool: TTY6955 frame preview. Type 'help' for commands.")
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		args, err := shlex.Split(sc.Text())
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "help":
			usage()

		case "quit", "exit":
			return

		case "init":
			if len(args) == 4 {
				var pads [3]int
				if !parseInts(args[1:], pads[:]) {
					fmt.Println("init: pads must be integers")
					continue
				}
				cfg.Slider1Pads = uint8(pads[0])
				cfg.Slider2Pads = uint8(pads[1])
				cfg.Slider3Pads = uint8(pads[2])
				dev = tty6955.New(sim, cfg)
			}
			report(dev.Configure())

		case "kat":
			if len(args) != 2 {
				fmt.Println("usage: kat <1-8>")
				continue
			}
			n, _ := strconv.Atoi(args[1])
			report(dev.SetKAT(uint8(n)))

		case "threshold":
			var v [4]int
			if len(args) != 5 || !parseInts(args[1:], v[:]) {
				fmt.Println("usage: threshold <pad> <low> <mid> <high>")
				continue
			}
			report(dev.SetThresholds(uint8(v[0]), uint8(v[1]), uint8(v[2]), uint8(v[3])))

		case "sleep":
			var v [3]int
			if len(args) != 4 || !parseInts(args[1:], v[:]) {
				fmt.Println("usage: sleep <low> <mid> <high>")
				continue
			}
			report(dev.SetSleepThresholds(uint8(v[0]), uint8(v[1]), uint8(v[2])))

		case "frame":
			if len(args) != 7 {
				fmt.Println("usage: frame <b0> <b1> <b2> <b3> <b4> <b5>  (hex or decimal)")
				continue
			}
			var f [6]byte
			ok := true
			for i, a := range args[1:] {
				n, err := strconv.ParseUint(a, 0, 8)
				if err != nil {
					ok = false
					break
				}
				f[i] = byte(n)
			}
			if !ok {
				fmt.Println("frame: bytes must be 0..255")
				continue
			}
			sim.frame = f
			fmt.Println("output frame loaded")

		case "keys":
			fmt.Printf("  keys = %016b\n", dev.Keys())

		case "slider":
			if len(args) != 2 {
				fmt.Println("usage: slider <0-2>")
				continue
			}
			ch, _ := strconv.Atoi(args[1])
			pos, err := dev.Slider(ch)
			if err != nil {
				fmt.Println("slider:", err)
				continue
			}
			touched, _ := dev.SliderTouched(ch)
			fmt.Printf("  slider %d = %d (touched=%v)\n", ch, pos, touched)

		case "read":
			if err := dev.Update(); err != nil {
				fmt.Println("read:", err)
				continue
			}
			fmt.Printf("  keys   = %016b\n", dev.Keys())
			for ch := 0; ch < tty6955.NumSliders; ch++ {
				pos, err := dev.Slider(ch)
				if err != nil {
					continue
				}
				touched, _ := dev.SliderTouched(ch)
				fmt.Printf("  slider %d = %d (touched=%v)\n", ch, pos, touched)
			}
			fmt.Println("  raw    =", dev.DebugString())

		default:
			fmt.Println("unknown command:", args[0])
		}
	}
}

func parseInts(args []string, out []int) bool {
	if len(args) != len(out) {
		return false
	}
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return false
		}
		out[i] = n
	}
	return true
}

func report(err error) {
	if err != nil {
		fmt.Println("rejected:", err)
	} else {
		fmt.Println("ok")
	}
}

func usage() {
	fmt.Print(`commands:
  init [s1 s2 s3]              write the init frame (optionally set slider pads)
  kat <1-8>                    set key acknowledge time (rewrites init frame)
  threshold <pad> <l> <m> <h>  write custom thresholds for one pad
  sleep <l> <m> <h>            write sleep-mode thresholds
  frame <6 bytes>              load a simulated output frame
  read                         read and decode the output frame
  keys                         key bitmask from the last read
  slider <0-2>                 slider position from the last read
  quit
`)
}
