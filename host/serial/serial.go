// Package serial opens the drive's USB CDC control port
package serial

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

var ErrNoPort = errors.New("serial: no USB serial port found")

// Port is an open control port. Tests substitute in-memory pipes.
type Port interface {
	io.ReadWriteCloser
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ignores it)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the settings used for the drive's CDC port
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100,
	}
}

// Open opens a native serial port
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("serial: nil config")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	return port, nil
}

// Discover lists the ports that look like a USB CDC device, best
// candidates first
func Discover() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}

	var found []string
	for _, p := range ports {
		if looksLikeCDC(p) {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil, ErrNoPort
	}
	sort.Strings(found)
	return found, nil
}

func looksLikeCDC(name string) bool {
	if runtime.GOOS == "windows" {
		return strings.HasPrefix(name, "COM")
	}
	return strings.Contains(name, "ttyACM") || strings.Contains(name, "usbmodem")
}
