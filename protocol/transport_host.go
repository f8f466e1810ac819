package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrTransportClosed = errors.New("protocol: transport closed")
	ErrMessageTooLong  = errors.New("protocol: message too long")
)

// Message is a response frame received from the firmware
type Message struct {
	Sequence uint8
	Payload  []byte
}

// Decode splits the payload into the response ID and its arguments
func (m *Message) Decode() (uint16, []byte, error) {
	args := m.Payload
	id, err := DecodeVLQUint(&args)
	if err != nil {
		return 0, nil, err
	}
	return uint16(id), args, nil
}

// NakError reports an ACK carrying an unexpected sequence
type NakError struct {
	Sent, Got uint8
}

func (e *NakError) Error() string {
	return fmt.Sprintf("protocol: nak for seq 0x%02x, firmware expects 0x%02x", e.Sent, e.Got)
}

// ResponseHandler observes every response as it arrives
type ResponseHandler func(msg *Message)

// HostTransport is the host end of the link. Commands are sent one at a
// time and each waits for its ACK; responses are queued for Receive.
type HostTransport struct {
	port io.ReadWriteCloser

	sendMu sync.Mutex
	seq    uint8

	scanner   frameScanner
	pending   []byte
	acks      chan uint8
	responses chan *Message

	handlerMu sync.RWMutex
	handler   ResponseHandler

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewHostTransport starts reading from port in the background
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:      port,
		seq:       MessageDest,
		acks:      make(chan uint8, 1),
		responses: make(chan *Message, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand frames one command, writes it, and waits for the ACK
func (t *HostTransport) SendCommand(ctx context.Context, cmdID uint16, args func(output OutputBuffer)) error {
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	payload := scratch.Result()
	if len(payload)+MessageLengthMin > MessageLengthMax {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(payload)+MessageLengthMin)
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	// Drop an ACK left over from a frame that timed out
	select {
	case <-t.acks:
	default:
	}

	sent := t.seq
	msg := AppendFrame(make([]byte, 0, MessageLengthMax), sent, payload)
	if _, err := t.port.Write(msg); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	select {
	case got := <-t.acks:
		want := NextSequence(sent)
		t.seq = got
		if got != want {
			return &NakError{Sent: sent, Got: got}
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for ack: %w", ctx.Err())
	case <-t.stop:
		return ErrTransportClosed
	}
}

// Receive returns the next queued response
func (t *HostTransport) Receive(ctx context.Context) (*Message, error) {
	select {
	case msg := <-t.responses:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.stop:
		return nil, ErrTransportClosed
	}
}

// SetResponseHandler registers a callback run from the read goroutine
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	t.handler = handler
	t.handlerMu.Unlock()
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	buf := make([]byte, 256)
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.feed(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// feed runs on the read goroutine only
func (t *HostTransport) feed(data []byte) {
	t.pending = append(t.pending, data...)
	n := t.scanner.scan(t.pending, nil, t.onFrame)
	t.pending = append(t.pending[:0], t.pending[n:]...)
}

func (t *HostTransport) onFrame(seq uint8, payload []byte) {
	if len(payload) == 0 {
		select {
		case t.acks <- seq:
		default:
		}
		return
	}

	msg := &Message{Sequence: seq, Payload: append([]byte(nil), payload...)}

	t.handlerMu.RLock()
	h := t.handler
	t.handlerMu.RUnlock()
	if h != nil {
		h(msg)
	}

	// Keep the newest responses when nobody is reading
	for {
		select {
		case t.responses <- msg:
			return
		default:
		}
		select {
		case <-t.responses:
		default:
		}
	}
}

// Drain discards queued responses
func (t *HostTransport) Drain() {
	for {
		select {
		case <-t.responses:
		default:
			return
		}
	}
}

// Sequence returns the sequence of the next command
func (t *HostTransport) Sequence() uint8 {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return t.seq
}

// Close stops the reader and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}
