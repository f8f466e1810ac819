package protocol

import "sync/atomic"

// CommandHandler dispatches one decoded command. It consumes its own
// arguments from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link. It is driven from the main
// loop only.
type Transport struct {
	scanner frameScanner
	// nextSequence is the sequence expected from the host. ACKs and
	// responses carry it too.
	nextSequence uint32
	output       OutputBuffer
	handler      CommandHandler
	lastErr      error

	resetCallback func()
	flushCallback func()
}

func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
}

// Receive consumes every complete frame in input. Each frame is answered
// with an ACK carrying the next expected sequence; a repeated or
// out-of-order frame gets the same ACK, which the host reads as a NAK.
func (t *Transport) Receive(input InputBuffer) {
	n := t.scanner.scan(input.Data(), t.encodeAckNak, t.receiveFrame)
	if n > 0 {
		input.Pop(n)
	}
}

func (t *Transport) receiveFrame(seq uint8, payload []byte) {
	expected := uint8(atomic.LoadUint32(&t.nextSequence))
	if seq == MessageDest && expected != MessageDest {
		// Host restarted its sequence: it reconnected
		expected = MessageDest
		atomic.StoreUint32(&t.nextSequence, MessageDest)
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}
	if seq == expected {
		atomic.StoreUint32(&t.nextSequence, uint32(NextSequence(seq)))
		t.lastErr = t.dispatch(payload)
	}
	t.encodeAckNak()
}

// dispatch runs the commands of one frame in order. A handler error stops
// the rest of the frame; a handler panic desynchronizes the link.
func (t *Transport) dispatch(frame []byte) error {
	defer func() {
		if r := recover(); r != nil {
			t.scanner.desynced = true
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.scanner.desynced = true
			return err
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			return err
		}
	}
	return nil
}

// LastError returns the error of the most recently dispatched frame
func (t *Transport) LastError() error {
	return t.lastErr
}

// encodeAckNak writes an empty frame and flushes it right away: the host
// waits for the ACK before it reads any response.
func (t *Transport) encodeAckNak() {
	t.EncodeFrame(nil)
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame writes one frame whose payload is produced by frameData
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	start := t.output.CurPosition()
	t.output.Output([]byte{0, uint8(atomic.LoadUint32(&t.nextSequence))})
	if frameData != nil {
		frameData(t.output)
	}

	size := len(t.output.DataSince(start)) + MessageTrailerSize
	t.output.Update(start+MessagePositionLen, uint8(size))
	crc := CRC16(t.output.DataSince(start))
	t.output.Output([]byte{byte(crc >> 8), byte(crc), MessageValueSync})
}

// SendCommand encodes a response with its ID and arguments
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns to the power-on state, e.g. after a USB reconnect
func (t *Transport) Reset() {
	t.scanner.desynced = false
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback registers a function run when the host restarts
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback registers a function that pushes pending output to USB
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}
