package main

import (
	"testing"

	"sixstep/commutation"
)

func TestScreenLine(t *testing.T) {
	testCases := []struct {
		name     string
		st       commutation.State
		shutdown bool
		line     string
	}{
		{"running", commutation.State{Running: true, Active: true, Step: 3}, false, "RUN   step 3"},
		{"stopped", commutation.State{}, false, "STOP  float"},
		{"shut down", commutation.State{}, true, "SHUTDOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := screenOf(tc.st, tc.shutdown).line1(); got != tc.line {
				t.Errorf("line1 = %q, expected %q", got, tc.line)
			}
		})
	}
}

func TestScreenChangesWhenShutdownClears(t *testing.T) {
	floating := commutation.State{}

	before := screenOf(floating, true)
	after := screenOf(floating, false)
	if before == after {
		t.Fatal("clearing shutdown with the bridge still floating left the screen unchanged")
	}
	if after.line1() != "STOP  float" {
		t.Errorf("line1 = %q after shutdown cleared", after.line1())
	}
}

func TestItoa(t *testing.T) {
	for n, want := range map[int]string{0: "0", 7: "7", 8499: "8499", -12: "-12"} {
		if got := itoa(n); got != want {
			t.Errorf("itoa(%d) = %q, expected %q", n, got, want)
		}
	}
}
