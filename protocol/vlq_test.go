package protocol

import (
	"bytes"
	"testing"
)

func TestVLQEncoding(t *testing.T) {
	testCases := []struct {
		value    int32
		expected []byte
	}{
		{0, []byte{0x00}},
		{95, []byte{0x5F}},
		{96, []byte{0x80, 0x60}},
		{-1, []byte{0x7F}},
		{-32, []byte{0x60}},
		{-33, []byte{0xFF, 0x5F}},
		{8499, []byte{0xC2, 0x33}},
		{1000000, []byte{0xBD, 0x84, 0x40}},
	}

	for _, tc := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, tc.value)
		if !bytes.Equal(output.Result(), tc.expected) {
			t.Errorf("EncodeVLQInt(%d) = % x, expected % x", tc.value, output.Result(), tc.expected)
		}

		data := output.Result()
		got, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("DecodeVLQInt(% x): %v", tc.expected, err)
			continue
		}
		if got != tc.value {
			t.Errorf("DecodeVLQInt(% x) = %d, expected %d", tc.expected, got, tc.value)
		}
		if len(data) != 0 {
			t.Errorf("DecodeVLQInt(% x) left %d bytes", tc.expected, len(data))
		}
	}
}

func TestVLQUintFullRange(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 65535, 1 << 31, 0xFFFFFFFF} {
		output := NewScratchOutput()
		EncodeVLQUint(output, v)
		data := output.Result()
		got, err := DecodeVLQUint(&data)
		if err != nil || got != v {
			t.Errorf("uint %d: got %d, err %v", v, got, err)
		}
	}
}

func TestVLQSequence(t *testing.T) {
	output := NewScratchOutput()
	EncodeVLQUint(output, 1)
	EncodeVLQUint(output, 8499)
	EncodeVLQBytes(output, []byte("abc"))

	data := output.Result()
	if v, _ := DecodeVLQUint(&data); v != 1 {
		t.Errorf("first value = %d, expected 1", v)
	}
	if v, _ := DecodeVLQUint(&data); v != 8499 {
		t.Errorf("second value = %d, expected 8499", v)
	}
	b, err := DecodeVLQBytes(&data)
	if err != nil || string(b) != "abc" {
		t.Errorf("bytes = %q, err %v", b, err)
	}
	if len(data) != 0 {
		t.Errorf("%d bytes left over", len(data))
	}
}

func TestVLQDecodeErrors(t *testing.T) {
	empty := []byte{}
	if _, err := DecodeVLQInt(&empty); err != ErrBufferTooSmall {
		t.Errorf("empty input: err = %v, expected ErrBufferTooSmall", err)
	}

	truncated := []byte{0x81}
	if _, err := DecodeVLQInt(&truncated); err != ErrBufferTooSmall {
		t.Errorf("truncated input: err = %v, expected ErrBufferTooSmall", err)
	}
	if len(truncated) != 1 {
		t.Errorf("failed decode must not consume input")
	}

	overlong := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&overlong); err != ErrInvalidVLQ {
		t.Errorf("overlong input: err = %v, expected ErrInvalidVLQ", err)
	}

	short := []byte{0x05, 'a', 'b'}
	if _, err := DecodeVLQBytes(&short); err != ErrBufferTooSmall {
		t.Errorf("short string: err = %v, expected ErrBufferTooSmall", err)
	}
}
