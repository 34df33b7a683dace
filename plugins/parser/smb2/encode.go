package smb2

import (
	"encoding/binary"
)

// AppendBinary appends the wire form of the header: magic, header length
// and the fixed fields, all little-endian.
func (h Header) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, h.Magic[:]...)
	b = binary.LittleEndian.AppendUint16(b, h.HeaderLen)
	b = binary.LittleEndian.AppendUint16(b, h.CreditCharge)
	b = binary.LittleEndian.AppendUint32(b, h.Status)
	b = binary.LittleEndian.AppendUint16(b, uint16(h.Command))
	b = binary.LittleEndian.AppendUint16(b, h.CreditReqResp)
	b = binary.LittleEndian.AppendUint32(b, uint32(h.Flags))
	b = binary.LittleEndian.AppendUint32(b, h.ChainOffset)
	b = binary.LittleEndian.AppendUint64(b, h.MessageID)
	b = binary.LittleEndian.AppendUint32(b, h.ProcessID)
	b = binary.LittleEndian.AppendUint32(b, h.TreeID)
	b = binary.LittleEndian.AppendUint64(b, h.SessionID)
	return h.Signature.AppendLE(b), nil
}

// MarshalBinary returns the 64-byte wire form of the header.
func (h Header) MarshalBinary() ([]byte, error) {
	return h.AppendBinary(make([]byte, 0, HeaderLen))
}

// AppendFrame appends the message as it travels on the wire: session
// envelope, header and payload.
func (m Message) AppendFrame(b []byte) ([]byte, error) {
	b = AppendEnvelope(b, HeaderLen+len(m.Payload))
	b, err := m.Header.AppendBinary(b)
	if err != nil {
		return nil, err
	}
	return append(b, m.Payload...), nil
}
