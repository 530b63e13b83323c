package s7client

// Client for S7 PLC communication: one connection, one in-flight
// operation. Concurrent operations on the same client must be serialized
// by the caller.

import (
	"context"
	"fmt"
	"time"

	"github.com/tturner/s7dip/internal/s7"
)

// DefaultPDUSize is the PDU length requested during setup when the caller
// does not override it. The PLC may grant less.
const DefaultPDUSize uint16 = 480

// Client owns the transport, the negotiated PDU length, and the
// connection-scoped PDU reference counter. The counter advances once per
// logical operation and stays constant across that operation's fragments.
type Client struct {
	transport Transport
	pduLength uint16
	pduRef    uint16
	connected bool
}

// NewClient creates a client over a fresh TCP transport. The timeout
// bounds the dial and every request/response exchange.
func NewClient(timeout time.Duration) *Client {
	return &Client{transport: NewTCPTransport(timeout)}
}

// NewClientWithTransport creates a client over a caller-supplied
// transport.
func NewClientWithTransport(t Transport) *Client {
	return &Client{transport: t}
}

// Connect dials the PLC, runs the COTP handshake for the given rack and
// slot, and negotiates the PDU length.
func (c *Client) Connect(ctx context.Context, ip string, port int, rack, slot uint8, requestedPDU uint16) error {
	if c.connected {
		return &s7.ConnectionError{Msg: "already connected"}
	}
	if requestedPDU == 0 {
		requestedPDU = DefaultPDUSize
	}

	addr := fmt.Sprintf("%s:%d", ip, port)
	if err := c.transport.Connect(ctx, addr, LocalTSAP, RemoteTSAP(rack, slot)); err != nil {
		return err
	}

	pduLength, err := negotiatePDU(ctx, c.transport, &c.pduRef, requestedPDU)
	if err != nil {
		c.transport.Disconnect()
		return err
	}

	c.pduLength = pduLength
	c.connected = true
	return nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() error {
	if !c.connected {
		return nil
	}
	c.connected = false
	return c.transport.Disconnect()
}

// PDULength returns the PDU length negotiated at connect time.
func (c *Client) PDULength() uint16 {
	return c.pduLength
}

// ReadArea reads elements of the given type from the PLC, fragmenting
// across exchanges as the negotiated PDU requires.
func (c *Client) ReadArea(ctx context.Context, area s7.Area, dbNumber uint16, start uint32, dataType s7.DataType, elements uint32) ([]byte, error) {
	if !c.connected {
		return nil, &s7.ConnectionError{Msg: "not connected"}
	}
	c.pduRef++
	return ReadArea(ctx, c.transport, c.pduLength, &c.pduRef, area, dbNumber, start, dataType, elements)
}

// WriteArea writes the buffer to the PLC, fragmenting across exchanges as
// the negotiated PDU requires.
func (c *Client) WriteArea(ctx context.Context, area s7.Area, dbNumber uint16, start uint32, dataType s7.DataType, buffer []byte) error {
	if !c.connected {
		return &s7.ConnectionError{Msg: "not connected"}
	}
	c.pduRef++
	return WriteArea(ctx, c.transport, c.pduLength, &c.pduRef, area, dbNumber, start, dataType, buffer)
}

// WriteBit sets or clears a single bit. bit must lie in [0,7] within the
// byte at start.
func (c *Client) WriteBit(ctx context.Context, area s7.Area, dbNumber uint16, start uint32, bit uint8, value bool) error {
	if bit > 7 {
		return s7.ErrRequestedBitOutOfRange
	}
	b := byte(0)
	if value {
		b = 1
	}
	return c.WriteArea(ctx, area, dbNumber, start<<3|uint32(bit), s7.DataTypeBit, []byte{b})
}
