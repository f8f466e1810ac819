package config

import (
	"errors"
	"testing"

	"sixstep/commutation"
)

func TestDefault(t *testing.T) {
	d := Default()
	if err := d.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if d.Period != 8499 || d.TickHz != 150 || d.DeadtimeNs != 1500 {
		t.Errorf("defaults = period %d tick_hz %d deadtime %d", d.Period, d.TickHz, d.DeadtimeNs)
	}
	if p, _ := d.PatternValue(); p != commutation.PatternTwoPhase {
		t.Errorf("default pattern = %v", p)
	}
	if !d.AutoStartEnabled() {
		t.Error("default should auto start")
	}
}

func TestLoadOverrides(t *testing.T) {
	d, err := Load([]byte(`{
		"pattern": "three_level_trapezoidal",
		"period": 4000,
		"tick_hz": 300,
		"auto_start": false,
		"u": {"high": "gpio10", "low": "gpio11"}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := d.PatternValue(); p != commutation.PatternTrapezoidal {
		t.Errorf("pattern = %v", p)
	}
	if d.Period != 4000 || d.TickHz != 300 {
		t.Errorf("period %d tick_hz %d", d.Period, d.TickHz)
	}
	if d.DeadtimeNs != DefaultDeadtimeNs {
		t.Errorf("deadtime default not applied: %d", d.DeadtimeNs)
	}
	if d.AutoStartEnabled() {
		t.Error("auto_start false was ignored")
	}
	// Unspecified pins keep the board defaults
	if d.U.High != "gpio10" || d.V.High != "gpio4" {
		t.Errorf("pins u=%+v v=%+v", d.U, d.V)
	}
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		json string
		err  error
	}{
		{"unknown pattern", `{"pattern": "sine"}`, commutation.ErrUnknownPattern},
		{"period too large", `{"period": 70000}`, ErrPeriodRange},
		{"tick rate too high", `{"tick_hz": 5000}`, ErrTickHzRange},
		{"deadtime too long", `{"deadtime_ns": 20000}`, ErrDeadtimeRange},
		{"bad pin", `{"u": {"high": "pa3", "low": "gpio3"}}`, ErrBadPin},
		{"pin out of range", `{"strobe": "gpio30"}`, ErrBadPin},
		{"pin conflict", `{"button": "gpio2"}`, ErrPinConflict},
		{"zero period", `{"period": 0}`, ErrZeroPeriod},
		{"zero tick rate", `{"tick_hz": 0}`, ErrTickHzRange},
		{"zero deadtime", `{"deadtime_ns": 0}`, ErrDeadtimeRange},
		{"phase on debug uart", `{"u": {"high": "gpio0", "low": "gpio1"}}`, ErrPinConflict},
		{"button on debug rx", `{"button": "gpio1"}`, ErrPinConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]byte(tc.json))
			if !errors.Is(err, tc.err) {
				t.Errorf("err = %v, expected %v", err, tc.err)
			}
		})
	}

	if _, err := Load([]byte(`{"period": `)); err == nil {
		t.Error("malformed JSON accepted")
	}
}

func TestValidateZeroPeriod(t *testing.T) {
	d := Default()
	d.Period = 0
	if err := d.Validate(); !errors.Is(err, ErrZeroPeriod) {
		t.Errorf("err = %v, expected ErrZeroPeriod", err)
	}
}

func TestDisplayPinsChecked(t *testing.T) {
	d := Default()
	d.Display.Enabled = true
	d.Display.SCL = d.Strobe
	if err := d.Validate(); !errors.Is(err, ErrPinConflict) {
		t.Errorf("err = %v, expected ErrPinConflict", err)
	}
}

func TestParsePin(t *testing.T) {
	for name, want := range map[string]uint8{"gpio0": 0, "GPIO15": 15, " gpio29 ": 29, "7": 7} {
		got, err := ParsePin(name)
		if err != nil || got != want {
			t.Errorf("ParsePin(%q) = %d, %v", name, got, err)
		}
	}
}

func TestLoadKeepsDefaultsForAbsentKeys(t *testing.T) {
	d, err := Load([]byte(`{"pattern": "two_phase_high_low"}`))
	if err != nil {
		t.Fatal(err)
	}
	if d.Period != DefaultPeriod || d.TickHz != DefaultTickHz || d.DeadtimeNs != DefaultDeadtimeNs {
		t.Errorf("period %d tick_hz %d deadtime %d", d.Period, d.TickHz, d.DeadtimeNs)
	}
}
