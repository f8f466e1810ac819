// Package mcu talks to the drive firmware over the control link
package mcu

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"sixstep/host/serial"
	"sixstep/protocol"
)

const (
	identifyResponseID = 0
	identifyID         = 1
	identifyChunk      = 40
)

var (
	ErrNoDictionary   = errors.New("mcu: dictionary not loaded")
	ErrUnknownCommand = errors.New("mcu: unknown command")
)

// Dictionary represents the parsed MCU dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// MCU is a connection to the drive firmware
type MCU struct {
	transport *protocol.HostTransport

	dictionary     *Dictionary
	dictionaryData []byte
	commands       map[string]MessageFormat
	responses      map[uint16]MessageFormat
}

// New wraps an open port. The identify exchange runs in RetrieveDictionary.
func New(port io.ReadWriteCloser) *MCU {
	return &MCU{transport: protocol.NewHostTransport(port)}
}

// Connect opens device and returns an MCU on it
func Connect(cfg *serial.Config) (*MCU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	m := New(port)
	// Give a freshly enumerated board time to start its USB loop
	time.Sleep(100 * time.Millisecond)
	return m, nil
}

// Close closes the connection
func (m *MCU) Close() error {
	return m.transport.Close()
}

// RetrieveDictionary downloads, inflates and parses the dictionary
func (m *MCU) RetrieveDictionary(ctx context.Context) error {
	var raw bytes.Buffer
	for offset := uint32(0); ; {
		chunk, err := m.identify(ctx, offset)
		if err != nil {
			return fmt.Errorf("dictionary chunk at %d: %w", offset, err)
		}
		raw.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < identifyChunk {
			break
		}
	}

	data, err := inflate(raw.Bytes())
	if err != nil {
		return fmt.Errorf("inflate dictionary: %w", err)
	}
	return m.loadDictionary(data)
}

func (m *MCU) identify(ctx context.Context, offset uint32) ([]byte, error) {
	m.transport.Drain()
	err := m.transport.SendCommand(ctx, identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, identifyChunk)
	})
	if err != nil {
		return nil, err
	}

	for {
		msg, err := m.transport.Receive(ctx)
		if err != nil {
			return nil, err
		}
		id, args, err := msg.Decode()
		if err != nil || id != identifyResponseID {
			continue
		}
		respOffset, err := protocol.DecodeVLQUint(&args)
		if err != nil {
			return nil, err
		}
		if respOffset != offset {
			continue
		}
		return protocol.DecodeVLQBytes(&args)
	}
}

// inflate undoes the firmware's zlib wrapping; plain JSON passes through
func inflate(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x78 {
		return data, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (m *MCU) loadDictionary(data []byte) error {
	dict := &Dictionary{}
	if err := json.Unmarshal(data, dict); err != nil {
		return fmt.Errorf("parse dictionary: %w", err)
	}

	commands := make(map[string]MessageFormat, len(dict.Commands))
	for key, id := range dict.Commands {
		mf, err := parseFormat(id, key)
		if err != nil {
			return err
		}
		commands[mf.Name] = mf
	}
	responses := make(map[uint16]MessageFormat, len(dict.Responses))
	for key, id := range dict.Responses {
		mf, err := parseFormat(id, key)
		if err != nil {
			return err
		}
		responses[mf.ID] = mf
	}

	m.dictionary = dict
	m.dictionaryData = data
	m.commands = commands
	m.responses = responses
	return nil
}

// Dictionary returns the parsed dictionary
func (m *MCU) Dictionary() *Dictionary {
	return m.dictionary
}

// DictionaryRaw returns the inflated dictionary JSON
func (m *MCU) DictionaryRaw() []byte {
	return m.dictionaryData
}

// Constant returns a dictionary constant
func (m *MCU) Constant(name string) (string, bool) {
	if m.dictionary == nil {
		return "", false
	}
	v, ok := m.dictionary.Config[name]
	return v, ok
}

// Send sends a command by name with integer arguments in format order
func (m *MCU) Send(ctx context.Context, name string, args ...uint32) error {
	if m.dictionary == nil {
		return ErrNoDictionary
	}
	mf, ok := m.commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	if err := mf.check(args); err != nil {
		return err
	}
	err := m.transport.SendCommand(ctx, mf.ID, func(output protocol.OutputBuffer) {
		mf.encode(output, args)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Request sends a command and waits for the named response
func (m *MCU) Request(ctx context.Context, command, response string, args ...uint32) (Params, error) {
	m.transport.Drain()
	if err := m.Send(ctx, command, args...); err != nil {
		return Params{}, err
	}

	for {
		msg, err := m.transport.Receive(ctx)
		if err != nil {
			return Params{}, fmt.Errorf("wait for %s: %w", response, err)
		}
		id, payload, err := msg.Decode()
		if err != nil {
			continue
		}
		mf, ok := m.responses[id]
		if !ok || mf.Name != response {
			continue
		}
		return mf.decode(payload)
	}
}
