package core

// DefaultClockFreq is the RP2040 microsecond timer rate
const DefaultClockFreq = 1000000

var (
	clockFreq  uint32 = DefaultClockFreq
	uptimeHigh uint32 // rollovers of the 32-bit clock
	lastTicks  uint32
)

// SetClockFreq sets the rate of the clock fed to SetTime
func SetClockFreq(hz uint32) {
	if hz != 0 {
		clockFreq = hz
	}
}

// ClockFreq returns the system clock rate in ticks per second
func ClockFreq() uint32 {
	return clockFreq
}

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time from the hardware counter.
// It must be called at least once per 32-bit rollover to keep uptime.
func SetTime(ticks uint32) {
	if ticks < lastTicks {
		uptimeHigh++
	}
	lastTicks = ticks
	setSystemTicks(ticks)
}

// GetUptime returns 64-bit uptime in timer ticks
func GetUptime() uint64 {
	return uint64(uptimeHigh)<<32 | uint64(GetTime())
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * uint64(clockFreq) / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / uint64(clockFreq))
}

// TimerFromHz returns the period of a frequency in timer ticks
func TimerFromHz(hz uint32) uint32 {
	if hz == 0 {
		return 0
	}
	return clockFreq / hz
}

// TimerIsBefore reports whether time a is before b, allowing for the
// 32-bit clock wrapping
func TimerIsBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// ProcessTimers runs every timer due at the current system time.
// The platform calls SetTime first.
func ProcessTimers() {
	TimerDispatch(GetTime())
}
