package mcu

import (
	"context"
	"fmt"
)

// State is the decoded commutation_state response
type State struct {
	Running bool
	Active  bool
	Index   uint32
	Step    uint8
	Duty    [3]uint32 // u, v, w
}

func (s State) String() string {
	run := "stopped"
	if s.Running {
		run = "running"
	}
	if !s.Active {
		return fmt.Sprintf("%s index=%d floating", run, s.Index)
	}
	return fmt.Sprintf("%s index=%d step=%d u=%d v=%d w=%d",
		run, s.Index, s.Step, s.Duty[0], s.Duty[1], s.Duty[2])
}

// Start resumes commutation
func (m *MCU) Start(ctx context.Context) error {
	return m.Send(ctx, "commutation_start")
}

// Stop floats the bridge from the next tick
func (m *MCU) Stop(ctx context.Context) error {
	return m.Send(ctx, "commutation_stop")
}

// EmergencyStop floats the bridge immediately and shuts the firmware down
func (m *MCU) EmergencyStop(ctx context.Context) error {
	return m.Send(ctx, "emergency_stop")
}

// Query reads the commutation state
func (m *MCU) Query(ctx context.Context) (State, error) {
	p, err := m.Request(ctx, "query_commutation", "commutation_state")
	if err != nil {
		return State{}, err
	}
	v := p.Values
	return State{
		Running: v["running"] != 0,
		Active:  v["active"] != 0,
		Index:   v["index"],
		Step:    uint8(v["step"]),
		Duty:    [3]uint32{v["u"], v["v"], v["w"]},
	}, nil
}

// Clock reads the firmware's 32-bit clock
func (m *MCU) Clock(ctx context.Context) (uint32, error) {
	p, err := m.Request(ctx, "get_clock", "clock")
	if err != nil {
		return 0, err
	}
	return p.Values["clock"], nil
}

// Shutdown reports whether the firmware is in the shutdown state
func (m *MCU) Shutdown(ctx context.Context) (bool, error) {
	p, err := m.Request(ctx, "get_config", "config")
	if err != nil {
		return false, err
	}
	return p.Values["is_shutdown"] != 0, nil
}
