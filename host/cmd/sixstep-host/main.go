package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sort"
	"time"

	"sixstep/config"
	"sixstep/host/mcu"
	"sixstep/host/serial"
	"sixstep/host/sim"
)

var (
	device     = flag.String("device", "", `Serial device path ("" to discover, "sim" for the simulator)`)
	baud       = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	configPath = flag.String("config", "", "Drive configuration JSON (simulator)")
	ticks      = flag.Int("ticks", 12, "Ticks to print (sim)")
	interval   = flag.Duration("interval", 500*time.Millisecond, "Query interval (watch)")
	timeout    = flag.Duration("timeout", 2*time.Second, "Per-command timeout")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <command>\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  ports   List candidate USB serial ports")
	fmt.Fprintln(os.Stderr, "  dict    Print the firmware dictionary")
	fmt.Fprintln(os.Stderr, "  start   Start commutation")
	fmt.Fprintln(os.Stderr, "  stop    Stop commutation (phases float)")
	fmt.Fprintln(os.Stderr, "  estop   Emergency stop")
	fmt.Fprintln(os.Stderr, "  query   Print the commutation state")
	fmt.Fprintln(os.Stderr, "  watch   Query repeatedly until interrupted")
	fmt.Fprintln(os.Stderr, "  sim     Print the simulated waveform, no board needed")
	fmt.Fprintln(os.Stderr, "\nFlags:")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string) error {
	switch command {
	case "ports":
		return listPorts()
	case "sim":
		return printWaveform()
	case "dict", "start", "stop", "estop", "query", "watch":
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}

	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	switch command {
	case "dict":
		printDictionary(conn)
		return nil
	case "start":
		return withTimeout(ctx, conn.Start)
	case "stop":
		return withTimeout(ctx, conn.Stop)
	case "estop":
		return withTimeout(ctx, conn.EmergencyStop)
	case "query":
		return query(ctx, conn)
	default:
		return watch(ctx, conn)
	}
}

// connect opens the link and loads the dictionary
func connect(ctx context.Context) (*mcu.MCU, error) {
	var conn *mcu.MCU
	switch *device {
	case "sim":
		c, err := startSimulator(ctx)
		if err != nil {
			return nil, err
		}
		conn = c
	default:
		path := *device
		if path == "" {
			ports, err := serial.Discover()
			if err != nil {
				return nil, err
			}
			path = ports[0]
		}
		fmt.Printf("Connecting to %s...\n", path)
		cfg := serial.DefaultConfig(path)
		cfg.Baud = *baud
		c, err := mcu.Connect(cfg)
		if err != nil {
			return nil, err
		}
		conn = c
	}

	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.RetrieveDictionary(dctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func loadDrive() (*config.Drive, error) {
	if *configPath == "" {
		return config.Default(), nil
	}
	data, err := os.ReadFile(*configPath)
	if err != nil {
		return nil, err
	}
	return config.Load(data)
}

// startSimulator runs a simulated board in real time behind a pipe
func startSimulator(ctx context.Context) (*mcu.MCU, error) {
	drive, err := loadDrive()
	if err != nil {
		return nil, err
	}
	board, err := sim.NewBoard(drive)
	if err != nil {
		return nil, err
	}
	go board.Run(ctx)

	hostEnd, devEnd := net.Pipe()
	go func() {
		if err := board.Serve(devEnd); err != nil {
			fmt.Fprintf(os.Stderr, "sim: %v\n", err)
		}
	}()
	return mcu.New(hostEnd), nil
}

func withTimeout(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	return fn(cctx)
}

func query(ctx context.Context, conn *mcu.MCU) error {
	cctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	st, err := conn.Query(cctx)
	if err != nil {
		return err
	}
	fmt.Println(st)
	return nil
}

func watch(ctx context.Context, conn *mcu.MCU) error {
	t := time.NewTicker(*interval)
	defer t.Stop()
	for {
		if err := query(ctx, conn); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func listPorts() error {
	ports, err := serial.Discover()
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func printDictionary(conn *mcu.MCU) {
	dict := conn.Dictionary()

	fmt.Println("\n=== MCU Dictionary ===")
	fmt.Printf("Version: %s\n", dict.Version)
	fmt.Printf("Build: %s\n", dict.BuildVersions)

	fmt.Println("\nConfig:")
	for _, k := range sortedKeys(dict.Config) {
		fmt.Printf("  %s = %s\n", k, dict.Config[k])
	}

	fmt.Printf("\nCommands (%d):\n", len(dict.Commands))
	printByID(dict.Commands)
	fmt.Printf("\nResponses (%d):\n", len(dict.Responses))
	printByID(dict.Responses)

	for name, values := range dict.Enumerations {
		fmt.Printf("\nEnumeration %s:\n", name)
		printByID(values)
	}
}

func printByID(m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return m[keys[i]] < m[keys[j]] })
	for _, k := range keys {
		fmt.Printf("  [%d] %s\n", m[k], k)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// printWaveform steps a simulated board and prints one line per tick
func printWaveform() error {
	drive, err := loadDrive()
	if err != nil {
		return err
	}
	board, err := sim.NewBoard(drive)
	if err != nil {
		return err
	}

	fmt.Printf("pattern=%s max_duty=%d tick_hz=%d\n", drive.Pattern, board.Bridge.MaxDuty(), drive.TickHz)
	fmt.Printf("%6s %10s %4s %8s %8s %8s\n", "tick", "clock", "step", "u", "v", "w")
	for i := 0; i < *ticks; i++ {
		s := board.Step()
		step := "-"
		if s.State.Active {
			step = fmt.Sprint(s.State.Step)
		}
		fmt.Printf("%6d %10d %4s %8s %8s %8s\n", s.Tick, s.Clock, step,
			phase(s.Phases[0]), phase(s.Phases[1]), phase(s.Phases[2]))
	}
	return nil
}

func phase(p sim.PhaseState) string {
	if !p.Enabled {
		return "float"
	}
	return fmt.Sprint(p.Duty)
}
