package s7client

// TCP transport with TPKT/COTP framing for ISO-on-TCP (RFC 1006).

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/tturner/s7dip/internal/s7"
)

// Transport is a connection-oriented byte transport carrying one S7
// request/response exchange at a time.
type Transport interface {
	Connect(ctx context.Context, addr string, localTSAP, remoteTSAP uint16) error
	Disconnect() error
	Exchange(ctx context.Context, request []byte) ([]byte, error)
	IsConnected() bool
}

const (
	tpktVersion    byte = 0x03
	tpktHeaderSize      = 4

	cotpDTHeaderLen byte = 0x02 // bytes of DT header after the length byte
	cotpPDUData     byte = 0xF0 // DT data
	cotpPDUConnect  byte = 0xE0 // CR connection request
	cotpPDUConfirm  byte = 0xD0 // CC connection confirm
	cotpEOT         byte = 0x80 // end of transmission flag
)

// TCPTransport implements Transport over a TCP socket.
type TCPTransport struct {
	conn    net.Conn
	addr    string
	timeout time.Duration
	connMu  sync.Mutex
}

var _ Transport = (*TCPTransport)(nil)
var _ Exchanger = (*TCPTransport)(nil)

// NewTCPTransport creates a TCP transport. The timeout bounds the dial and
// every individual exchange.
func NewTCPTransport(timeout time.Duration) *TCPTransport {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TCPTransport{timeout: timeout}
}

// Connect dials the PLC and performs the COTP connection handshake with
// the given TSAPs.
func (t *TCPTransport) Connect(ctx context.Context, addr string, localTSAP, remoteTSAP uint16) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn != nil {
		return &s7.ConnectionError{Msg: "already connected"}
	}

	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &s7.IOError{Err: err}
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			conn.Close()
			return &s7.IOError{Err: err}
		}
	}
	t.conn = conn
	t.addr = addr

	if err := t.cotpConnect(ctx, localTSAP, remoteTSAP); err != nil {
		conn.Close()
		t.conn = nil
		t.addr = ""
		return err
	}
	return nil
}

// Disconnect closes the socket.
func (t *TCPTransport) Disconnect() error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.addr = ""
	if err != nil {
		return &s7.IOError{Err: err}
	}
	return nil
}

// IsConnected reports whether the socket is open.
func (t *TCPTransport) IsConnected() bool {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.conn != nil
}

// Exchange sends one S7 payload wrapped in TPKT and a COTP DT header and
// returns the S7 payload of the response frame.
func (t *TCPTransport) Exchange(ctx context.Context, request []byte) ([]byte, error) {
	cotp := make([]byte, 3, 3+len(request))
	cotp[0] = cotpDTHeaderLen
	cotp[1] = cotpPDUData
	cotp[2] = cotpEOT
	cotp = append(cotp, request...)

	resp, err := t.roundTrip(ctx, cotp)
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 || resp[1] != cotpPDUData {
		return nil, &s7.ISOResponseError{Code: s7.IsoInvalidPDU}
	}
	headerLen := int(resp[0]) + 1
	if len(resp) < headerLen {
		return nil, &s7.ISOResponseError{Code: s7.IsoShortPacket}
	}
	return resp[headerLen:], nil
}

// cotpConnect sends a COTP connection request and checks the confirm.
func (t *TCPTransport) cotpConnect(ctx context.Context, localTSAP, remoteTSAP uint16) error {
	cr := buildCOTPConnectRequest(localTSAP, remoteTSAP)
	resp, err := t.roundTrip(ctx, cr)
	if err != nil {
		return err
	}
	if len(resp) < 2 || resp[1] != cotpPDUConfirm {
		return &s7.ISOResponseError{Code: s7.IsoConnect}
	}
	return nil
}

// roundTrip writes one TPKT-framed COTP TPDU and reads one back. The
// returned slice starts at the COTP length byte.
func (t *TCPTransport) roundTrip(ctx context.Context, cotp []byte) ([]byte, error) {
	conn := t.conn
	if conn == nil {
		return nil, &s7.ConnectionError{Msg: "not connected"}
	}

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, &s7.IOError{Err: err}
	}

	frame := make([]byte, tpktHeaderSize+len(cotp))
	frame[0] = tpktVersion
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(frame)))
	copy(frame[tpktHeaderSize:], cotp)

	if _, err := conn.Write(frame); err != nil {
		return nil, wrapIOError(err)
	}

	var hdr [tpktHeaderSize]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, wrapIOError(err)
	}
	if hdr[0] != tpktVersion {
		return nil, &s7.ISOResponseError{Code: s7.IsoInvalidPDU}
	}
	length := int(binary.BigEndian.Uint16(hdr[2:4]))
	if length < tpktHeaderSize+2 {
		return nil, &s7.ISOResponseError{Code: s7.IsoShortPacket}
	}

	body := make([]byte, length-tpktHeaderSize)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, wrapIOError(err)
	}
	return body, nil
}

// buildCOTPConnectRequest builds a class-0 COTP CR TPDU requesting 1024
// byte TPDUs, carrying the caller and PLC TSAPs.
func buildCOTPConnectRequest(localTSAP, remoteTSAP uint16) []byte {
	return []byte{
		0x11, cotpPDUConnect, // length, CR
		0x00, 0x00, // destination reference
		0x00, 0x01, // source reference
		0x00,             // class 0
		0xC0, 0x01, 0x0A, // TPDU size 1024
		0xC1, 0x02, byte(localTSAP >> 8), byte(localTSAP),
		0xC2, 0x02, byte(remoteTSAP >> 8), byte(remoteTSAP),
	}
}

// wrapIOError maps a socket failure into the taxonomy: deadline expiry is
// a data exchange timeout, everything else a transport IO error.
func wrapIOError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return s7.ErrDataExchangeTimedOut
	}
	return &s7.IOError{Err: err}
}
