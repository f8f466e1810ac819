package core

import (
	"strings"
	"testing"
)

func TestTimingRingKeepsNewest(t *testing.T) {
	ClearTimingRing()
	t.Cleanup(ClearTimingRing)

	for i := uint32(0); i < TimingRingSize+5; i++ {
		RecordTiming(EvtButton, i, i, 0)
	}

	events := TimingEvents()
	if len(events) != TimingRingSize {
		t.Fatalf("%d events, expected %d", len(events), TimingRingSize)
	}
	if events[0].Clock != 5 || events[len(events)-1].Clock != TimingRingSize+4 {
		t.Errorf("oldest %d newest %d", events[0].Clock, events[len(events)-1].Clock)
	}
}

func TestDumpTimingRing(t *testing.T) {
	ClearTimingRing()
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	SetDebugEnabled(true)
	t.Cleanup(func() {
		SetDebugWriter(func(string) {})
		SetDebugEnabled(false)
		ClearTimingRing()
	})

	RecordTiming(EvtStart, 100, 7, 0)
	RecordTiming(EvtShutdown, 200, 9, 0)
	DumpTimingRing()

	joined := strings.Join(lines, "\n")
	for _, want := range []string{"START clock=100 index=7", "SHUTDOWN! clock=200 index=9"} {
		if !strings.Contains(joined, want) {
			t.Errorf("dump missing %q:\n%s", want, joined)
		}
	}
}

func TestDebugPrintlnDisabled(t *testing.T) {
	called := false
	SetDebugWriter(func(string) { called = true })
	SetDebugEnabled(false)
	t.Cleanup(func() { SetDebugWriter(func(string) {}) })

	DebugPrintln("hidden")
	if called {
		t.Error("writer called while debug disabled")
	}
}
