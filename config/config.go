// Package config holds the drive configuration: commutation pattern, PWM
// period, tick rate and pin assignment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sixstep/commutation"
)

const (
	DefaultPeriod     = 8499
	DefaultTickHz     = 150
	DefaultDeadtimeNs = 1500

	MaxTickHz     = 1000
	MaxPeriod     = 65534 // 16-bit counter, one count kept for the 100% compare
	MaxDeadtimeNs = 10000
	maxGPIO       = 29

	// UART0 debug console, always claimed by the firmware
	DebugTXPin = 0
	DebugRXPin = 1
)

var (
	ErrZeroPeriod    = errors.New("config: period must be positive")
	ErrPeriodRange   = errors.New("config: period out of range")
	ErrTickHzRange   = errors.New("config: tick_hz out of range")
	ErrDeadtimeRange = errors.New("config: deadtime_ns out of range")
	ErrBadPin        = errors.New("config: invalid pin")
	ErrPinConflict   = errors.New("config: pin used twice")
)

// PhasePins is the gate pair of one half-bridge
type PhasePins struct {
	High string `json:"high"`
	Low  string `json:"low"`
}

// Display configures the optional HD44780 status display on I2C
type Display struct {
	Enabled bool   `json:"enabled"`
	SDA     string `json:"sda"`
	SCL     string `json:"scl"`
	Address uint16 `json:"address"`
}

// Drive is the complete drive configuration
type Drive struct {
	Pattern    string `json:"pattern"`
	Period     uint32 `json:"period"` // PWM counter top, also the table's max duty
	TickHz     uint32 `json:"tick_hz"`
	DeadtimeNs uint32 `json:"deadtime_ns"`
	AutoStart  *bool  `json:"auto_start,omitempty"`
	Debug      bool   `json:"debug"`

	U      PhasePins `json:"u"`
	V      PhasePins `json:"v"`
	W      PhasePins `json:"w"`
	Button string    `json:"button"`
	Strobe string    `json:"strobe"`

	Display Display `json:"display"`
}

// Default returns the reference board configuration
func Default() *Drive {
	d := &Drive{
		U:      PhasePins{High: "gpio2", Low: "gpio3"},
		V:      PhasePins{High: "gpio4", Low: "gpio5"},
		W:      PhasePins{High: "gpio6", Low: "gpio7"},
		Button: "gpio14",
		Strobe: "gpio15",
		Display: Display{
			SDA:     "gpio20",
			SCL:     "gpio21",
			Address: 0x27,
		},
	}
	applyDefaults(d)
	return d
}

// Load parses a JSON configuration over the defaults and validates it.
// Keys absent from the JSON keep their default; an explicit zero is
// validated as given.
func Load(jsonData []byte) (*Drive, error) {
	d := Default()
	if err := json.Unmarshal(jsonData, d); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// applyDefaults fills in zero values of a fresh Drive
func applyDefaults(d *Drive) {
	if d.Pattern == "" {
		d.Pattern = commutation.PatternTwoPhase.String()
	}
	if d.Period == 0 {
		d.Period = DefaultPeriod
	}
	if d.TickHz == 0 {
		d.TickHz = DefaultTickHz
	}
	if d.DeadtimeNs == 0 {
		d.DeadtimeNs = DefaultDeadtimeNs
	}
	if d.AutoStart == nil {
		on := true
		d.AutoStart = &on
	}
	if d.Display.Address == 0 {
		d.Display.Address = 0x27
	}
}

// Validate checks ranges, the pattern name and the pin assignment
func (d *Drive) Validate() error {
	if d.Period == 0 {
		return ErrZeroPeriod
	}
	if d.Period > MaxPeriod {
		return fmt.Errorf("%w: %d > %d", ErrPeriodRange, d.Period, MaxPeriod)
	}
	if d.TickHz == 0 || d.TickHz > MaxTickHz {
		return fmt.Errorf("%w: %d", ErrTickHzRange, d.TickHz)
	}
	if d.DeadtimeNs == 0 || d.DeadtimeNs > MaxDeadtimeNs {
		return fmt.Errorf("%w: %d", ErrDeadtimeRange, d.DeadtimeNs)
	}
	if _, err := d.PatternValue(); err != nil {
		return err
	}

	named := []struct{ role, pin string }{
		{"u.high", d.U.High}, {"u.low", d.U.Low},
		{"v.high", d.V.High}, {"v.low", d.V.Low},
		{"w.high", d.W.High}, {"w.low", d.W.Low},
		{"button", d.Button}, {"strobe", d.Strobe},
	}
	if d.Display.Enabled {
		named = append(named,
			struct{ role, pin string }{"display.sda", d.Display.SDA},
			struct{ role, pin string }{"display.scl", d.Display.SCL})
	}

	used := make(map[uint8]string, len(named)+2)
	used[DebugTXPin] = "debug.tx"
	used[DebugRXPin] = "debug.rx"
	for _, n := range named {
		if n.pin == "" && (n.role == "button" || n.role == "strobe") {
			continue // optional
		}
		p, err := ParsePin(n.pin)
		if err != nil {
			return fmt.Errorf("%s: %w", n.role, err)
		}
		if other, ok := used[p]; ok {
			return fmt.Errorf("%w: %s and %s on gpio%d", ErrPinConflict, other, n.role, p)
		}
		used[p] = n.role
	}
	return nil
}

// PatternValue returns the configured commutation pattern
func (d *Drive) PatternValue() (commutation.Pattern, error) {
	return commutation.ParsePattern(d.Pattern)
}

// AutoStartEnabled reports whether commutation runs from power-up
func (d *Drive) AutoStartEnabled() bool {
	return d.AutoStart == nil || *d.AutoStart
}

// Phases returns the u, v, w pin pairs in that order
func (d *Drive) Phases() [3]PhasePins {
	return [3]PhasePins{d.U, d.V, d.W}
}

// ParsePin converts "gpioN" (or a bare number) to a GPIO number
func ParsePin(name string) (uint8, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "gpio")
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n > maxGPIO {
		return 0, fmt.Errorf("%w: %q", ErrBadPin, name)
	}
	return uint8(n), nil
}
