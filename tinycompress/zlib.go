// Package tinycompress writes zlib streams using stored (uncompressed)
// DEFLATE blocks. The output is valid zlib that any inflater accepts, at a
// fraction of the code size and memory of compress/zlib on a microcontroller.
package tinycompress

import (
	"errors"
	"hash/adler32"
	"io"
)

// maxStoredBlock is the largest payload of one stored DEFLATE block
const maxStoredBlock = 0xFFFF

var ErrClosed = errors.New("tinycompress: write after close")

// Writer buffers its input and emits the zlib stream on Close
type Writer struct {
	output   io.Writer
	inputBuf []byte
	closed   bool
}

// NewWriter creates a zlib Writer that writes to w
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		output:   w,
		inputBuf: make([]byte, 0, 2048),
	}
}

// Write implements io.Writer
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	w.inputBuf = append(w.inputBuf, p...)
	return len(p), nil
}

// Close writes the header, the stored blocks and the Adler-32 trailer
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	// CMF=0x78 (deflate, 32K window), FLG=0x9C (default level, check bits)
	if _, err := w.output.Write([]byte{0x78, 0x9C}); err != nil {
		return err
	}

	data := w.inputBuf
	for {
		n := len(data)
		if n > maxStoredBlock {
			n = maxStoredBlock
		}
		var final byte
		if n == len(data) {
			final = 0x01
		}

		length := uint16(n)
		nlength := ^length
		header := []byte{
			final,
			byte(length), byte(length >> 8),
			byte(nlength), byte(nlength >> 8),
		}
		if _, err := w.output.Write(header); err != nil {
			return err
		}
		if _, err := w.output.Write(data[:n]); err != nil {
			return err
		}

		data = data[n:]
		if final != 0 {
			break
		}
	}

	checksum := adler32.Checksum(w.inputBuf)
	_, err := w.output.Write([]byte{
		byte(checksum >> 24),
		byte(checksum >> 16),
		byte(checksum >> 8),
		byte(checksum),
	})
	return err
}
