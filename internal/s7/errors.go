package s7

// Closed error taxonomy for everything that can go wrong building, sending,
// or interpreting an S7 frame. Every failure surfaces as exactly one of
// these so callers can tell a transport fault from a framing bug from a
// PLC-side rejection.

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra data.
var (
	// ErrRequestedBitOutOfRange is returned when a bit-granular address
	// names a bit index outside [0,7].
	ErrRequestedBitOutOfRange = errors.New("the requested bit is out of range [0..7]")

	// ErrRequestNotAcknowledged is returned when a response header does not
	// carry a positive acknowledgement.
	ErrRequestNotAcknowledged = errors.New("the PLC did not acknowledge the request")

	// ErrResponseDoesNotBelongToCurrentPDU is returned when a response
	// carries a PDU reference that does not match the outstanding request.
	ErrResponseDoesNotBelongToCurrentPDU = errors.New("mismatch in response and request PDU reference")

	// ErrDataExchangeTimedOut is returned when a request/response exchange
	// exceeds its deadline.
	ErrDataExchangeTimedOut = errors.New("timeout during data exchange")
)

// IOError wraps a transport I/O failure.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("IO error: %v", e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// PoolError wraps a connection-pool checkout failure.
type PoolError struct {
	Err error
}

func (e *PoolError) Error() string { return fmt.Sprintf("pool error: %v", e.Err) }
func (e *PoolError) Unwrap() error { return e.Err }

// ConnectionError is a connection-level failure with a descriptive message.
type ConnectionError struct {
	Msg string
}

func (e *ConnectionError) Error() string { return "connection error: " + e.Msg }

// TryFromError is a failure converting a byte sequence into a structured
// value. It keeps the offending bytes for diagnosis.
type TryFromError struct {
	Bytes []byte
	Msg   string
}

func (e *TryFromError) Error() string { return e.Msg }

// IsoErrorCode classifies ISO-transport-layer framing problems.
type IsoErrorCode int

const (
	IsoConnect IsoErrorCode = iota + 1
	IsoDisconnect
	IsoInvalidPDU
	IsoInvalidDataSize
	IsoShortPacket
	IsoTooManyFragments
	IsoPduOverflow
	IsoSendPacket
	IsoRecvPacket
	IsoInvalidParams
	IsoUnknown
)

func (c IsoErrorCode) String() string {
	switch c {
	case IsoConnect:
		return "connection error"
	case IsoDisconnect:
		return "disconnect error"
	case IsoInvalidPDU:
		return "bad PDU format"
	case IsoInvalidDataSize:
		return "data size passed to send/recv buffer is invalid"
	case IsoShortPacket:
		return "a short packet received"
	case IsoTooManyFragments:
		return "too many packets without EoT flag"
	case IsoPduOverflow:
		return "the sum of fragments data exceeded maximum packet size"
	case IsoSendPacket:
		return "an error occurred during send"
	case IsoRecvPacket:
		return "an error occurred during recv"
	case IsoInvalidParams:
		return "invalid connection params (wrong TSAPs)"
	default:
		return "unknown error"
	}
}

// ISORequestError is an ISO-transport framing problem while building a
// request. It signals a programming or configuration error on our side.
type ISORequestError struct {
	Code IsoErrorCode
}

func (e *ISORequestError) Error() string { return "ISO request error: " + e.Code.String() }

// Is allows errors.Is matching on the carried code.
func (e *ISORequestError) Is(target error) bool {
	t, ok := target.(*ISORequestError)
	return ok && t.Code == e.Code
}

// ISOResponseError is an ISO-transport framing problem while interpreting
// a response.
type ISOResponseError struct {
	Code IsoErrorCode
}

func (e *ISOResponseError) Error() string { return "ISO response error: " + e.Code.String() }

func (e *ISOResponseError) Is(target error) bool {
	t, ok := target.(*ISOResponseError)
	return ok && t.Code == e.Code
}

// S7ProtocolError is a protocol-level rejection carried in a response
// header's error class and code bytes.
type S7ProtocolError struct {
	Class    byte
	Code     byte
	HasClass bool
	HasCode  bool
}

// ClassText maps the error class byte to its S7 meaning.
func (e *S7ProtocolError) ClassText() string {
	if !e.HasClass {
		return "No error class given"
	}
	switch e.Class {
	case 0x00:
		return "No error"
	case 0x81:
		return "Application relationship error"
	case 0x82:
		return "Object definition error"
	case 0x83:
		return "No resources available error"
	case 0x84:
		return "Error on service processing"
	case 0x85:
		return "Error on supplies"
	case 0x87:
		return "Access error"
	default:
		return "Unknown error class"
	}
}

func (e *S7ProtocolError) Error() string {
	msg := "S7 protocol error: " + e.ClassText()
	if e.HasCode {
		msg += fmt.Sprintf(" - error code: %d", e.Code)
	}
	return msg
}

// DataItemStatus is the per-item result byte inside a PLC response.
type DataItemStatus byte

const (
	DataItemStatusReserved             DataItemStatus = 0x00
	DataItemStatusHardwareFault        DataItemStatus = 0x01
	DataItemStatusAccessNotAllowed     DataItemStatus = 0x03
	DataItemStatusAddressOutOfRange    DataItemStatus = 0x05
	DataItemStatusDataTypeNotSupported DataItemStatus = 0x06
	DataItemStatusDataTypeInconsistent DataItemStatus = 0x07
	DataItemStatusObjectDoesNotExist   DataItemStatus = 0x0A
	DataItemStatusSuccess              DataItemStatus = 0xFF
)

func (s DataItemStatus) String() string {
	switch s {
	case DataItemStatusReserved:
		return "reserved"
	case DataItemStatusHardwareFault:
		return "hardware fault"
	case DataItemStatusAccessNotAllowed:
		return "accessing the object not allowed"
	case DataItemStatusAddressOutOfRange:
		return "address out of range"
	case DataItemStatusDataTypeNotSupported:
		return "data type not supported"
	case DataItemStatusDataTypeInconsistent:
		return "data type inconsistent"
	case DataItemStatusObjectDoesNotExist:
		return "object does not exist"
	case DataItemStatusSuccess:
		return "success"
	default:
		return "unknown error"
	}
}

// DataItemError is a PLC-side rejection of a single request item.
type DataItemError struct {
	Status DataItemStatus
}

func (e *DataItemError) Error() string {
	return "S7 data item response error: " + e.Status.String()
}

func (e *DataItemError) Is(target error) bool {
	t, ok := target.(*DataItemError)
	return ok && t.Status == e.Status
}
