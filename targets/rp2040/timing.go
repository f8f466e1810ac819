package main

import "errors"

// maxDivInt is the largest integer part of a PWM slice divider
const maxDivInt = 255

var ErrTickRate = errors.New("tick: rate not reachable")

// tickDivider picks the integer divider, counter top and wraps per tick
// that give hz from sysHz. A 16-bit counter at divider 255 wraps no
// slower than about 7.5 Hz at 125 MHz, so lower rates count several
// wraps per tick.
func tickDivider(sysHz, hz uint32) (div, top, every uint32, err error) {
	if hz == 0 {
		return 0, 0, 0, ErrTickRate
	}
	for every = 1; every <= 64; every++ {
		rate := uint64(hz) * uint64(every)
		div = uint32((uint64(sysHz) + rate*65536 - 1) / (rate * 65536))
		if div == 0 {
			div = 1
		}
		if div > maxDivInt {
			continue
		}
		top = uint32(uint64(sysHz)/uint64(div)/rate) - 1
		return div, top, every, nil
	}
	return 0, 0, 0, ErrTickRate
}

// deadtimeCounts converts the dead-time to counts of the undivided
// system clock, rounding up
func deadtimeCounts(ns uint32, sysHz uint32) uint32 {
	return uint32((uint64(ns)*uint64(sysHz) + 999999999) / 1000000000)
}

// driveCompare packs the CC register of a driven half-bridge: A (high
// side) compares at duty, B (inverted low side) trails it by the
// dead-time, capped at top+1 where the low side never turns on.
func driveCompare(duty, deadtime, top uint32) uint32 {
	b := duty + deadtime
	if b > top+1 {
		b = top + 1
	}
	return b<<16 | duty
}

// floatCompare packs the CC register with both gates off: A at 0 never
// goes high, inverted B above top never goes high
func floatCompare(top uint32) uint32 {
	return (top + 1) << 16
}
