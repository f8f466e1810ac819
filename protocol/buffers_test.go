package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	buf.Pop(2)
	if buf.Available() != 3 || buf.Data()[0] != 3 {
		t.Errorf("after Pop(2): available %d, data %v", buf.Available(), buf.Data())
	}

	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Pop past end left %d bytes", buf.Available())
	}
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3})
	scratch.Output([]byte{4, 5})

	if scratch.CurPosition() != 5 {
		t.Errorf("position = %d, expected 5", scratch.CurPosition())
	}

	scratch.Update(0, 99)
	scratch.Update(7, 42) // past the end: ignored
	if !bytes.Equal(scratch.Result(), []byte{99, 2, 3, 4, 5}) {
		t.Errorf("result = %v", scratch.Result())
	}
	if !bytes.Equal(scratch.DataSince(3), []byte{4, 5}) {
		t.Errorf("DataSince(3) = %v", scratch.DataSince(3))
	}
	if scratch.DataSince(6) != nil {
		t.Errorf("DataSince past position should be nil")
	}

	scratch.Reset()
	if len(scratch.Result()) != 0 {
		t.Errorf("Reset left %d bytes", len(scratch.Result()))
	}
}

func TestScratchOutputTruncates(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output(make([]byte, MessageMax+10))
	if scratch.CurPosition() != MessageMax {
		t.Errorf("position = %d, expected %d", scratch.CurPosition(), MessageMax)
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(8)

	if n := fifo.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}); n != 7 {
		t.Errorf("Write stored %d bytes, expected 7 (capacity minus one)", n)
	}
	if fifo.Free() != 0 {
		t.Errorf("Free = %d, expected 0", fifo.Free())
	}

	out := make([]byte, 5)
	if n := fifo.Read(out); n != 5 || !bytes.Equal(out, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Read = %d %v", n, out)
	}

	// Wrap around the end of the ring
	fifo.Write([]byte{10, 11, 12, 13})
	if !bytes.Equal(fifo.Data(), []byte{6, 7, 10, 11, 12, 13}) {
		t.Errorf("wrapped Data = %v", fifo.Data())
	}

	fifo.Pop(3)
	if !bytes.Equal(fifo.Data(), []byte{11, 12, 13}) {
		t.Errorf("after Pop(3) Data = %v", fifo.Data())
	}

	fifo.Pop(100)
	if !fifo.IsEmpty() {
		t.Errorf("Pop past end should empty the ring")
	}
}
