package sim

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"sixstep/commutation"
	"sixstep/config"
	"sixstep/core"
	"sixstep/protocol"
)

// ErrBoardExists is returned by a second NewBoard: the firmware core keeps
// its command registry and engine in package state.
var ErrBoardExists = errors.New("sim: only one board per process")

var boardMu sync.Mutex
var boardMade bool

// Sample is the bridge output after one tick
type Sample struct {
	Tick   uint32
	Clock  uint32
	State  commutation.State
	Phases [3]PhaseState
}

// Board is a simulated drive. Ticks and command handling are serialized,
// mirroring the interrupt masking of the real firmware.
type Board struct {
	Drive  *config.Drive
	Bridge *Bridge
	Ticker *core.SoftTicker
	Seq    *commutation.Sequencer

	mu    sync.Mutex
	clock uint32
	ticks uint32
}

// NewBoard brings up the firmware core for drive
func NewBoard(drive *config.Drive) (*Board, error) {
	boardMu.Lock()
	defer boardMu.Unlock()
	if boardMade {
		return nil, ErrBoardExists
	}

	core.SetClockFreq(core.DefaultClockFreq)
	core.SetTime(0)

	bridge := NewBridge()
	core.SetBridgeDriver(bridge)
	core.InitCoreCommands()

	ticker, err := core.NewSoftTicker(core.TimerFromHz(drive.TickHz))
	if err != nil {
		return nil, err
	}
	seq, err := core.SetupCommutation(drive, ticker)
	if err != nil {
		return nil, err
	}
	ticker.SetHandler(seq.Tick)

	core.RegisterConstant("MCU", "sim")
	core.RegisterConstant("CLOCK_FREQ", core.ClockFreq())
	core.GetGlobalDictionary().BuildDictionary()

	ticker.Start(core.GetTime())
	boardMade = true

	return &Board{
		Drive:  drive,
		Bridge: bridge,
		Ticker: ticker,
		Seq:    seq,
	}, nil
}

// Step advances simulated time by one tick period
func (b *Board) Step() Sample {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.clock += b.Ticker.Period()
	core.SetTime(b.clock)
	core.ProcessTimers()
	b.ticks++

	return Sample{
		Tick:   b.ticks,
		Clock:  b.clock,
		State:  b.Seq.State(),
		Phases: b.Bridge.Phases(),
	}
}

// Run steps the board in real time at the configured tick rate until ctx
// is done
func (b *Board) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(b.Drive.TickHz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Step()
		}
	}
}

// Serve runs the firmware end of the control link on conn until it is
// closed. A new connection clears the shutdown state like a USB
// reconnect does on the board.
func (b *Board) Serve(conn io.ReadWriteCloser) error {
	out := protocol.NewScratchOutput()
	transport := protocol.NewTransport(out, core.DispatchCommand)
	transport.SetResetCallback(func() {
		core.ResetFirmwareState()
		core.RecordTiming(core.EvtHostSync, core.GetTime(), 0, 0)
	})

	b.mu.Lock()
	core.SetGlobalTransport(transport)
	core.ResetFirmwareState()
	b.mu.Unlock()

	in := protocol.NewFifoBuffer(512)
	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
		in.Write(buf[:n])

		b.mu.Lock()
		transport.Receive(in)
		reply := append([]byte(nil), out.Result()...)
		out.Reset()
		b.mu.Unlock()

		if len(reply) == 0 {
			continue
		}
		if _, err := conn.Write(reply); err != nil {
			return err
		}
	}
}
