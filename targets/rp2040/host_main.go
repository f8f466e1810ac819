//go:build !rp2040

package main

import (
	"fmt"
	"os"
)

// The firmware runs on the RP2040 only: tinygo flash -target=pico ./targets/rp2040
func main() {
	fmt.Fprintln(os.Stderr, "sixstep firmware: build with tinygo -target=pico")
	os.Exit(1)
}
