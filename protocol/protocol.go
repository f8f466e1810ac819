// Package protocol implements the Klipper-style framed link between the
// drive firmware and the host tool: VLQ argument encoding, CRC16 framing,
// and the ACK/sequence discipline on both ends.
package protocol

// Frame layout: len, seq, payload..., crc_hi, crc_lo, sync
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax bounds a scratch buffer: an ACK plus several responses
	MessageMax = 512
)

// NextSequence returns the sequence byte that follows seq
func NextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
