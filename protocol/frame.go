package protocol

type frameStatus uint8

const (
	frameOK         frameStatus = iota
	frameIncomplete             // wait for more bytes
	frameInvalid                // drop sync and hunt for the next 0x7E
)

// checkFrame validates the frame at the start of data and returns its
// total length.
func checkFrame(data []byte) (int, frameStatus) {
	if len(data) < MessageLengthMin {
		return 0, frameIncomplete
	}
	n := int(data[MessagePositionLen])
	if n < MessageLengthMin || n > MessageLengthMax {
		return 0, frameInvalid
	}
	if data[MessagePositionSeq]&^MessageSeqMask != MessageDest {
		return 0, frameInvalid
	}
	if len(data) < n {
		return 0, frameIncomplete
	}
	if data[n-MessageTrailerSync] != MessageValueSync {
		return 0, frameInvalid
	}
	crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
	if crc != CRC16(data[:n-MessageTrailerSize]) {
		return 0, frameInvalid
	}
	return n, frameOK
}

// frameScanner splits a byte stream into frames and resynchronizes on the
// sync byte after corruption.
type frameScanner struct {
	desynced bool
}

// scan hands every complete frame in data to onFrame and returns the
// number of bytes consumed. onResync runs when sync is regained.
func (s *frameScanner) scan(data []byte, onResync func(), onFrame func(seq uint8, payload []byte)) int {
	total := len(data)
	for len(data) > 0 {
		if s.desynced {
			i := indexSync(data)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			s.desynced = false
			if onResync != nil {
				onResync()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		n, status := checkFrame(data)
		if status == frameIncomplete {
			break
		}
		if status == frameInvalid {
			s.desynced = true
			continue
		}

		onFrame(data[MessagePositionSeq], data[MessageHeaderSize:n-MessageTrailerSize])
		data = data[n:]
	}
	return total - len(data)
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i
		}
	}
	return -1
}

// AppendFrame appends a complete frame carrying payload to dst
func AppendFrame(dst []byte, seq uint8, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, byte(len(payload)+MessageLengthMin), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, byte(crc>>8), byte(crc), MessageValueSync)
}
