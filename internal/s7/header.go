package s7

// S7 protocol header: the fixed-size frame envelope identifying a PDU and
// carrying section lengths. Acknowledgement responses append an error
// class and code byte pair.

import (
	"encoding/binary"
)

// ProtocolID is the first byte of every S7comm frame.
const ProtocolID byte = 0x32

// Remote operating service control (ROSCTR) values: the PDU type
// discriminant in the second header byte.
const (
	ROSCTRJob     byte = 0x01 // request issued by the client
	ROSCTRAck     byte = 0x02 // acknowledgement without data
	ROSCTRAckData byte = 0x03 // acknowledgement carrying data
)

// Header sizes. Ack-data headers carry two extra error bytes.
const (
	RequestHeaderSize = 10
	AckHeaderSize     = 12
)

// Header is the fixed-size S7 frame envelope.
type Header struct {
	ProtocolID  byte
	ROSCTR      byte
	Reserved    uint16
	PDURef      uint16
	ParamLength uint16
	DataLength  uint16

	// Error class/code are only present on ack-data headers.
	HasErrorInfo bool
	ErrorClass   byte
	ErrorCode    byte
}

// BuildRequestHeader builds a job header for an outgoing request. The PDU
// reference is the caller-owned, connection-scoped counter; advancing it
// between logical operations is the caller's responsibility.
func BuildRequestHeader(pduRef uint16, paramLength, dataLength uint16) Header {
	return Header{
		ProtocolID:  ProtocolID,
		ROSCTR:      ROSCTRJob,
		PDURef:      pduRef,
		ParamLength: paramLength,
		DataLength:  dataLength,
	}
}

// Encode serializes the header. Job headers are 10 bytes; ack-data headers
// append the error class and code.
func (h Header) Encode() []byte {
	size := RequestHeaderSize
	if h.HasErrorInfo {
		size = AckHeaderSize
	}
	buf := make([]byte, size)
	buf[0] = h.ProtocolID
	buf[1] = h.ROSCTR
	binary.BigEndian.PutUint16(buf[2:4], h.Reserved)
	binary.BigEndian.PutUint16(buf[4:6], h.PDURef)
	binary.BigEndian.PutUint16(buf[6:8], h.ParamLength)
	binary.BigEndian.PutUint16(buf[8:10], h.DataLength)
	if h.HasErrorInfo {
		buf[10] = h.ErrorClass
		buf[11] = h.ErrorCode
	}
	return buf
}

// DecodeHeader parses the fixed-size leading slice of a frame. A slice
// shorter than the fixed header is a short packet; a wrong protocol
// identifier is a malformed PDU.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < RequestHeaderSize {
		return Header{}, &ISOResponseError{Code: IsoShortPacket}
	}
	if b[0] != ProtocolID {
		return Header{}, &ISOResponseError{Code: IsoInvalidPDU}
	}
	h := Header{
		ProtocolID:  b[0],
		ROSCTR:      b[1],
		Reserved:    binary.BigEndian.Uint16(b[2:4]),
		PDURef:      binary.BigEndian.Uint16(b[4:6]),
		ParamLength: binary.BigEndian.Uint16(b[6:8]),
		DataLength:  binary.BigEndian.Uint16(b[8:10]),
	}
	switch h.ROSCTR {
	case ROSCTRJob:
	case ROSCTRAck, ROSCTRAckData:
		if len(b) < AckHeaderSize {
			return Header{}, &ISOResponseError{Code: IsoShortPacket}
		}
		h.HasErrorInfo = true
		h.ErrorClass = b[10]
		h.ErrorCode = b[11]
	default:
		return Header{}, &ISOResponseError{Code: IsoInvalidPDU}
	}
	return h, nil
}

// Acknowledged checks that the header is a positive acknowledgement. It
// returns the header unchanged so validation checks compose.
func (h Header) Acknowledged() (Header, error) {
	if h.ROSCTR != ROSCTRAckData {
		return h, ErrRequestNotAcknowledged
	}
	return h, nil
}

// CurrentPDU checks that the header answers the outstanding request. A
// mismatched reference means the response cannot be trusted.
func (h Header) CurrentPDU(pduRef uint16) (Header, error) {
	if h.PDURef != pduRef {
		return h, ErrResponseDoesNotBelongToCurrentPDU
	}
	return h, nil
}

// HasError reports whether the header carries a non-zero protocol error.
func (h Header) HasError() bool {
	return h.HasErrorInfo && (h.ErrorClass != 0 || h.ErrorCode != 0)
}

// ProtocolError maps the header's error class and code into an
// S7ProtocolError, or nil when the header carries no error.
func (h Header) ProtocolError() error {
	if !h.HasError() {
		return nil
	}
	return &S7ProtocolError{
		Class:    h.ErrorClass,
		Code:     h.ErrorCode,
		HasClass: true,
		HasCode:  true,
	}
}
