package mcu

import (
	"fmt"
	"strings"

	"sixstep/protocol"
)

// MessageFormat is one dictionary entry: a name and its typed parameters
type MessageFormat struct {
	ID     uint16
	Name   string
	Params []Param
}

// Param is a "name=%type" field of a message format
type Param struct {
	Name  string
	Bytes bool // %s or %*s, otherwise an integer
}

// Params holds the decoded arguments of a response
type Params struct {
	Values map[string]uint32
	Data   map[string][]byte
}

// parseFormat splits a dictionary key such as "clock clock=%u"
func parseFormat(id int, key string) (MessageFormat, error) {
	fields := strings.Fields(key)
	if len(fields) == 0 {
		return MessageFormat{}, fmt.Errorf("empty message format (id %d)", id)
	}

	mf := MessageFormat{ID: uint16(id), Name: fields[0]}
	for _, f := range fields[1:] {
		name, typ, ok := strings.Cut(f, "=")
		if !ok || !strings.HasPrefix(typ, "%") {
			return MessageFormat{}, fmt.Errorf("bad parameter %q in %q", f, key)
		}
		mf.Params = append(mf.Params, Param{
			Name:  name,
			Bytes: strings.HasSuffix(typ, "s"),
		})
	}
	return mf, nil
}

// decode reads the arguments of mf from args
func (mf MessageFormat) decode(args []byte) (Params, error) {
	p := Params{
		Values: make(map[string]uint32, len(mf.Params)),
		Data:   make(map[string][]byte),
	}
	for _, prm := range mf.Params {
		if prm.Bytes {
			b, err := protocol.DecodeVLQBytes(&args)
			if err != nil {
				return p, fmt.Errorf("%s.%s: %w", mf.Name, prm.Name, err)
			}
			p.Data[prm.Name] = append([]byte(nil), b...)
			continue
		}
		v, err := protocol.DecodeVLQUint(&args)
		if err != nil {
			return p, fmt.Errorf("%s.%s: %w", mf.Name, prm.Name, err)
		}
		p.Values[prm.Name] = v
	}
	return p, nil
}

// check reports whether values fit the parameters of mf
func (mf MessageFormat) check(values []uint32) error {
	if len(values) != len(mf.Params) {
		return fmt.Errorf("%s takes %d arguments, got %d", mf.Name, len(mf.Params), len(values))
	}
	for _, prm := range mf.Params {
		if prm.Bytes {
			return fmt.Errorf("%s.%s: byte arguments are not supported", mf.Name, prm.Name)
		}
	}
	return nil
}

// encode writes values in the parameter order of mf; call check first
func (mf MessageFormat) encode(output protocol.OutputBuffer, values []uint32) {
	for _, v := range values {
		protocol.EncodeVLQUint(output, v)
	}
}
