package core

import (
	"strings"
	"testing"

	"sixstep/commutation"
	"sixstep/protocol"
)

// link captures the responses the firmware sends
type link struct {
	out *protocol.ScratchOutput
}

// isolateGlobals gives a test its own registry, dictionary and firmware
// state, restored on cleanup.
func isolateGlobals(t *testing.T) *link {
	t.Helper()

	oldRegistry, oldDictionary := globalRegistry, globalDictionary
	oldTransport, oldEngine, oldHandlers := globalTransport, engine, shutdownHandlers

	globalRegistry = NewCommandRegistry()
	globalDictionary = NewDictionary(globalRegistry)
	engine = nil
	shutdownHandlers = nil
	ResetFirmwareState()
	ClearTimingRing()

	l := &link{out: protocol.NewScratchOutput()}
	SetGlobalTransport(protocol.NewTransport(l.out, nil))

	t.Cleanup(func() {
		globalRegistry, globalDictionary = oldRegistry, oldDictionary
		globalTransport, engine, shutdownHandlers = oldTransport, oldEngine, oldHandlers
		ResetFirmwareState()
	})
	return l
}

// responses decodes every frame written so far into ID and arguments
func (l *link) responses(t *testing.T) map[uint16][]uint32 {
	t.Helper()
	got := make(map[uint16][]uint32)
	data := l.out.Result()
	for len(data) > 0 {
		n := int(data[protocol.MessagePositionLen])
		payload := data[protocol.MessageHeaderSize : n-protocol.MessageTrailerSize]
		data = data[n:]

		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			t.Fatalf("bad response id: %v", err)
		}
		var args []uint32
		for len(payload) > 0 {
			v, err := protocol.DecodeVLQUint(&payload)
			if err != nil {
				t.Fatalf("bad response arg: %v", err)
			}
			args = append(args, v)
		}
		got[uint16(id)] = args
	}
	l.out.Reset()
	return got
}

func dispatchByName(t *testing.T, name string, args ...uint32) error {
	t.Helper()
	cmd, ok := GetGlobalRegistry().GetCommandByName(name)
	if !ok {
		t.Fatalf("command %s not registered", name)
	}
	out := protocol.NewScratchOutput()
	for _, a := range args {
		protocol.EncodeVLQUint(out, a)
	}
	data := out.Result()
	return DispatchCommand(cmd.ID, &data)
}

func responseID(t *testing.T, name string) uint16 {
	t.Helper()
	cmd, ok := GetGlobalRegistry().GetCommandByName(name)
	if !ok {
		t.Fatalf("response %s not registered", name)
	}
	return cmd.ID
}

func setupCommutation(t *testing.T) (*link, *commutation.Sequencer, [3]*phase) {
	t.Helper()
	l := isolateGlobals(t)
	resetClock(t)

	seq, _, phases := newTickedSequencer(t, 1000)
	InitCoreCommands()
	InitCommutationCommands(seq, CommutationInfo{
		Pattern:    commutation.PatternTwoPhase,
		MaxDuty:    8499,
		TickHz:     150,
		DeadtimeNs: 1500,
	})
	return l, seq, phases
}

func TestBaseCommandIDs(t *testing.T) {
	setupCommutation(t)

	if responseID(t, "identify_response") != 0 || responseID(t, "identify") != 1 {
		t.Errorf("identify_response and identify must be IDs 0 and 1")
	}
}

func TestQueryCommutation(t *testing.T) {
	l, seq, _ := setupCommutation(t)

	seq.Tick()
	seq.Tick()
	if err := dispatchByName(t, "query_commutation"); err != nil {
		t.Fatal(err)
	}

	args := l.responses(t)[responseID(t, "commutation_state")]
	// running active index step u v w; step 1 is {l, h, 0}
	want := []uint32{1, 1, 2, 1, 1, 4249, 0}
	if len(args) != len(want) {
		t.Fatalf("commutation_state args = %v, expected %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("commutation_state args = %v, expected %v", args, want)
			break
		}
	}
}

func TestCommutationStopStart(t *testing.T) {
	_, seq, phases := setupCommutation(t)

	seq.Tick()
	if err := dispatchByName(t, "commutation_stop"); err != nil {
		t.Fatal(err)
	}
	if seq.Running() {
		t.Fatal("still running after commutation_stop")
	}
	seq.Tick()
	for i, p := range phases {
		if p.enabled || p.duty != 0 {
			t.Errorf("phase %d not floating after stop: %+v", i, *p)
		}
	}
	if st := seq.State(); st.Index != 1 || st.Active {
		t.Errorf("stopped state = %+v", st)
	}

	if err := dispatchByName(t, "commutation_start"); err != nil {
		t.Fatal(err)
	}
	seq.Tick()
	// Resumes at index 1 where it stopped
	if st := seq.State(); st.Step != 1 || st.Index != 2 {
		t.Errorf("resumed state = %+v", st)
	}

	events := TimingEvents()
	if len(events) != 2 || events[0].EventType != EvtStop || events[1].EventType != EvtStart {
		t.Errorf("timing events = %+v", events)
	}
}

func TestToggleCommutation(t *testing.T) {
	_, seq, _ := setupCommutation(t)

	if err := ToggleCommutation(); err != nil || seq.Running() {
		t.Fatalf("first toggle: err %v running %v", err, seq.Running())
	}
	if err := ToggleCommutation(); err != nil || !seq.Running() {
		t.Fatalf("second toggle: err %v running %v", err, seq.Running())
	}
}

func TestEmergencyStopHaltsBridge(t *testing.T) {
	_, seq, phases := setupCommutation(t)

	seq.Tick()
	if err := dispatchByName(t, "emergency_stop"); err != nil {
		t.Fatal(err)
	}

	if !IsShutdown() {
		t.Error("emergency_stop did not shut down")
	}
	for i, p := range phases {
		if p.enabled {
			t.Errorf("phase %d still enabled after emergency stop", i)
		}
	}
	if err := dispatchByName(t, "commutation_start"); err != ErrShutdown {
		t.Errorf("start during shutdown: err = %v, expected ErrShutdown", err)
	}
	if seq.Running() {
		t.Error("start was accepted during shutdown")
	}

	ResetFirmwareState()
	if err := StartCommutation(); err != nil {
		t.Errorf("start after reset: %v", err)
	}
}

func TestCommutationWithoutEngine(t *testing.T) {
	isolateGlobals(t)

	if err := StartCommutation(); err != ErrNoCommutator {
		t.Errorf("StartCommutation err = %v", err)
	}
	if err := StopCommutation(); err != ErrNoCommutator {
		t.Errorf("StopCommutation err = %v", err)
	}
}

func TestCommutationDictionary(t *testing.T) {
	setupCommutation(t)

	dict := string(GetGlobalDictionary().Generate())
	for _, want := range []string{
		`"PWM_MAX_DUTY":"8499"`,
		`"COMMUTATION_PATTERN":"two_phase_high_low"`,
		`"TICK_HZ":"150"`,
		`"DEADTIME_NS":"1500"`,
		`"pattern":{"two_phase_high_low":0,"three_level_trapezoidal":1}`,
		`"commutation_state running=%c active=%c index=%u step=%c u=%u v=%u w=%u"`,
	} {
		if !strings.Contains(dict, want) {
			t.Errorf("dictionary missing %s", want)
		}
	}
}

func TestIdentifyServesDictionary(t *testing.T) {
	l, _, _ := setupCommutation(t)
	dict := GetGlobalDictionary()
	dict.BuildDictionary()
	full := dict.Generate()

	if err := dispatchByName(t, "identify", 0, 40); err != nil {
		t.Fatal(err)
	}

	data := l.out.Result()
	n := int(data[protocol.MessagePositionLen])
	payload := data[protocol.MessageHeaderSize : n-protocol.MessageTrailerSize]
	id, _ := protocol.DecodeVLQUint(&payload)
	offset, _ := protocol.DecodeVLQUint(&payload)
	chunk, err := protocol.DecodeVLQBytes(&payload)
	if err != nil {
		t.Fatal(err)
	}
	if uint16(id) != 0 || offset != 0 {
		t.Errorf("identify_response id %d offset %d", id, offset)
	}
	if string(chunk) != string(full[:40]) {
		t.Errorf("chunk does not match the dictionary head")
	}
}

func TestGetClockAndUptime(t *testing.T) {
	l, _, _ := setupCommutation(t)

	SetTime(0xFFFFFFF0)
	SetTime(0x20)
	if err := dispatchByName(t, "get_clock"); err != nil {
		t.Fatal(err)
	}
	if err := dispatchByName(t, "get_uptime"); err != nil {
		t.Fatal(err)
	}

	got := l.responses(t)
	if clk := got[responseID(t, "clock")]; len(clk) != 1 || clk[0] != 0x20 {
		t.Errorf("clock = %v", clk)
	}
	if up := got[responseID(t, "uptime")]; len(up) != 2 || up[0] != 1 || up[1] != 0x20 {
		t.Errorf("uptime = %v", up)
	}
}

func TestConfigCommands(t *testing.T) {
	l, _, _ := setupCommutation(t)

	if err := dispatchByName(t, "finalize_config", 0xBEEF); err != nil {
		t.Fatal(err)
	}
	if err := dispatchByName(t, "get_config"); err != nil {
		t.Fatal(err)
	}
	cfg := l.responses(t)[responseID(t, "config")]
	if len(cfg) != 4 || cfg[0] != 1 || cfg[1] != 0xBEEF || cfg[2] != 0 {
		t.Errorf("config = %v", cfg)
	}

	if err := dispatchByName(t, "config_reset"); err != nil {
		t.Fatal(err)
	}
	if err := dispatchByName(t, "get_config"); err != nil {
		t.Fatal(err)
	}
	if cfg := l.responses(t)[responseID(t, "config")]; cfg[0] != 0 {
		t.Errorf("config after reset = %v", cfg)
	}
}

func TestResetDeferredToMainLoop(t *testing.T) {
	setupCommutation(t)

	resets := 0
	SetResetHandler(func() { resets++ })
	t.Cleanup(func() {
		SetResetHandler(nil)
		resetPending = 0
	})

	CheckPendingReset()
	if err := dispatchByName(t, "reset"); err != nil {
		t.Fatal(err)
	}
	if resets != 0 {
		t.Error("reset ran inside the command handler")
	}
	CheckPendingReset()
	if resets != 1 {
		t.Errorf("reset ran %d times, expected 1", resets)
	}
}
