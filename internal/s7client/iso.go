package s7client

// S7 session setup: TSAP derivation and communication setup (PDU length
// negotiation) after the COTP handshake.

import (
	"context"
	"encoding/binary"

	"github.com/tturner/s7dip/internal/s7"
)

// LocalTSAP is the client-side transport service access point. The PLC
// does not dispatch on it; 0x0101 is the conventional value.
const LocalTSAP uint16 = 0x0101

const (
	setupFunction byte = 0xF0 // setup communication
	setupMaxAmQ        = 1    // one queued job in each direction
)

// RemoteTSAP derives the PLC-side TSAP from rack and slot: connection type
// PG in the high byte, rack in bits 7..5 and slot in the low nibble of the
// low byte.
func RemoteTSAP(rack, slot uint8) uint16 {
	return 0x0100 | uint16(rack)<<5 | uint16(slot&0x0F)
}

// negotiatePDU sends the setup communication job and returns the PDU
// length granted by the PLC. It advances the caller-owned reference
// counter for this logical operation.
func negotiatePDU(ctx context.Context, x Exchanger, pduRef *uint16, requested uint16) (uint16, error) {
	*pduRef++

	params := make([]byte, 8)
	params[0] = setupFunction
	binary.BigEndian.PutUint16(params[2:4], setupMaxAmQ)
	binary.BigEndian.PutUint16(params[4:6], setupMaxAmQ)
	binary.BigEndian.PutUint16(params[6:8], requested)

	header := s7.BuildRequestHeader(*pduRef, uint16(len(params)), 0)
	frame := append(header.Encode(), params...)

	response, err := x.Exchange(ctx, frame)
	if err != nil {
		return 0, err
	}

	h, err := s7.DecodeHeader(response)
	if err != nil {
		return 0, err
	}
	if h, err = h.Acknowledged(); err != nil {
		return 0, err
	}
	if h, err = h.CurrentPDU(*pduRef); err != nil {
		return 0, err
	}
	if err := h.ProtocolError(); err != nil {
		return 0, err
	}

	if len(response) < s7.AckHeaderSize+8 {
		return 0, &s7.TryFromError{Bytes: response, Msg: "setup communication response too short"}
	}
	negotiated := binary.BigEndian.Uint16(response[s7.AckHeaderSize+6 : s7.AckHeaderSize+8])
	if negotiated == 0 {
		return 0, &s7.TryFromError{Bytes: response, Msg: "PLC negotiated a zero PDU length"}
	}
	return negotiated, nil
}
