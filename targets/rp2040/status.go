package main

import "sixstep/commutation"

// screen is the content of the status display. The display is redrawn
// only when it changes.
type screen struct {
	running  bool
	active   bool
	shutdown bool
	step     uint8
}

func screenOf(st commutation.State, shutdown bool) screen {
	return screen{
		running:  st.Running,
		active:   st.Active,
		shutdown: shutdown,
		step:     st.Step,
	}
}

// line1 is the state line; the second line shows the pattern
func (s screen) line1() string {
	switch {
	case s.running && s.active:
		return "RUN   step " + itoa(int(s.step))
	case s.shutdown:
		return "SHUTDOWN"
	default:
		return "STOP  float"
	}
}

// itoa converts int to string without importing strconv (for embedded)
func itoa(i int) string {
	if i == 0 {
		return "0"
	}

	negative := i < 0
	if negative {
		i = -i
	}

	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}

	if negative {
		pos--
		buf[pos] = '-'
	}

	return string(buf[pos:])
}
