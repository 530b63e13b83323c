package s7client

// TCP transport tests against a loopback fake PLC.

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/tturner/s7dip/internal/s7"
)

// startFakePLC listens on loopback and hands the first accepted connection
// to handler.
func startFakePLC(t *testing.T, handler func(conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}()
	return ln.Addr().String()
}

// readTPKTBody reads one TPKT frame off the wire and returns the COTP body.
func readTPKTBody(conn net.Conn) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, err
	}
	if hdr[0] != 3 {
		return nil, fmt.Errorf("TPKT version %d, want 3", hdr[0])
	}
	length := int(binary.BigEndian.Uint16(hdr[2:4]))
	if length < 4 {
		return nil, fmt.Errorf("TPKT length %d too small", length)
	}
	body := make([]byte, length-4)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}
	return body, nil
}

func writeTPKTBody(conn net.Conn, cotp []byte) error {
	frame := make([]byte, 4+len(cotp))
	frame[0] = 3
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(frame)))
	copy(frame[4:], cotp)
	_, err := conn.Write(frame)
	return err
}

// answerCOTPConnect consumes the connection request and replies with a
// minimal COTP CC, returning the CR body it saw.
func answerCOTPConnect(conn net.Conn) ([]byte, error) {
	cr, err := readTPKTBody(conn)
	if err != nil {
		return nil, err
	}
	return cr, writeTPKTBody(conn, []byte{0x02, 0xD0, 0x80})
}

func TestTCPTransportConnectHandshake(t *testing.T) {
	crCh := make(chan []byte, 1)
	addr := startFakePLC(t, func(conn net.Conn) {
		cr, err := answerCOTPConnect(conn)
		if err != nil {
			return
		}
		crCh <- cr
		// Hold the connection open until the client disconnects.
		_, _ = readTPKTBody(conn)
	})

	transport := NewTCPTransport(2 * time.Second)
	if transport.IsConnected() {
		t.Error("transport should not report connected before Connect")
	}
	if err := transport.Connect(context.Background(), addr, LocalTSAP, RemoteTSAP(0, 2)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !transport.IsConnected() {
		t.Error("transport should report connected after handshake")
	}

	cr := <-crCh
	if cr[1] != 0xE0 {
		t.Errorf("CR PDU type = 0x%02X, want 0xE0", cr[1])
	}
	// Both TSAP parameters must ride in the CR.
	if !bytes.Contains(cr, []byte{0xC1, 0x02, 0x01, 0x01}) {
		t.Errorf("CR % X missing local TSAP parameter", cr)
	}
	wantRemote := RemoteTSAP(0, 2)
	if !bytes.Contains(cr, []byte{0xC2, 0x02, byte(wantRemote >> 8), byte(wantRemote)}) {
		t.Errorf("CR % X missing remote TSAP parameter", cr)
	}

	if err := transport.Disconnect(); err != nil {
		t.Errorf("Disconnect: %v", err)
	}
	if transport.IsConnected() {
		t.Error("transport should not report connected after Disconnect")
	}
}

func TestTCPTransportExchangeFraming(t *testing.T) {
	dtCh := make(chan []byte, 1)
	addr := startFakePLC(t, func(conn net.Conn) {
		if _, err := answerCOTPConnect(conn); err != nil {
			return
		}
		dt, err := readTPKTBody(conn)
		if err != nil {
			return
		}
		dtCh <- dt
		_ = writeTPKTBody(conn, []byte{0x02, 0xF0, 0x80, 0xAA, 0xBB})
	})

	transport := NewTCPTransport(2 * time.Second)
	if err := transport.Connect(context.Background(), addr, LocalTSAP, RemoteTSAP(0, 2)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer transport.Disconnect()

	resp, err := transport.Exchange(context.Background(), []byte{0x32, 0x01, 0x02})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if !bytes.Equal(resp, []byte{0xAA, 0xBB}) {
		t.Errorf("response payload = % X, want AA BB", resp)
	}

	dt := <-dtCh
	// COTP DT header ahead of the payload: length 2, DT, EOT.
	if len(dt) < 3 || dt[0] != 0x02 || dt[1] != 0xF0 || dt[2] != 0x80 {
		t.Fatalf("DT header = % X, want 02 F0 80 prefix", dt)
	}
	if !bytes.Equal(dt[3:], []byte{0x32, 0x01, 0x02}) {
		t.Errorf("DT payload = % X, want 32 01 02", dt[3:])
	}
}

func TestTCPTransportExchangeTimeout(t *testing.T) {
	addr := startFakePLC(t, func(conn net.Conn) {
		if _, err := answerCOTPConnect(conn); err != nil {
			return
		}
		// Swallow the request and never answer.
		_, _ = readTPKTBody(conn)
		time.Sleep(time.Second)
	})

	transport := NewTCPTransport(100 * time.Millisecond)
	if err := transport.Connect(context.Background(), addr, LocalTSAP, RemoteTSAP(0, 2)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer transport.Disconnect()

	_, err := transport.Exchange(context.Background(), []byte{0x32, 0x01})
	if !errors.Is(err, s7.ErrDataExchangeTimedOut) {
		t.Fatalf("err = %v, want data exchange timeout", err)
	}
}

func TestTCPTransportCOTPConnectRejected(t *testing.T) {
	addr := startFakePLC(t, func(conn net.Conn) {
		if _, err := readTPKTBody(conn); err != nil {
			return
		}
		// DT where a CC is expected.
		_ = writeTPKTBody(conn, []byte{0x02, 0xF0, 0x80})
	})

	transport := NewTCPTransport(2 * time.Second)
	err := transport.Connect(context.Background(), addr, LocalTSAP, RemoteTSAP(0, 2))
	if !errors.Is(err, &s7.ISOResponseError{Code: s7.IsoConnect}) {
		t.Fatalf("err = %v, want ISO connect response error", err)
	}
	if transport.IsConnected() {
		t.Error("transport should not report connected after a rejected handshake")
	}
}

func TestTCPTransportBadTPKTVersionResponse(t *testing.T) {
	addr := startFakePLC(t, func(conn net.Conn) {
		if _, err := answerCOTPConnect(conn); err != nil {
			return
		}
		if _, err := readTPKTBody(conn); err != nil {
			return
		}
		_, _ = conn.Write([]byte{0x00, 0x00, 0x00, 0x07, 0x02, 0xF0, 0x80})
	})

	transport := NewTCPTransport(2 * time.Second)
	if err := transport.Connect(context.Background(), addr, LocalTSAP, RemoteTSAP(0, 2)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer transport.Disconnect()

	_, err := transport.Exchange(context.Background(), []byte{0x32, 0x01})
	if !errors.Is(err, &s7.ISOResponseError{Code: s7.IsoInvalidPDU}) {
		t.Fatalf("err = %v, want invalid PDU response error", err)
	}
}

func TestTCPTransportShortTPKTResponse(t *testing.T) {
	addr := startFakePLC(t, func(conn net.Conn) {
		if _, err := answerCOTPConnect(conn); err != nil {
			return
		}
		if _, err := readTPKTBody(conn); err != nil {
			return
		}
		// Declared length below the smallest possible COTP frame.
		_, _ = conn.Write([]byte{0x03, 0x00, 0x00, 0x05, 0x02})
	})

	transport := NewTCPTransport(2 * time.Second)
	if err := transport.Connect(context.Background(), addr, LocalTSAP, RemoteTSAP(0, 2)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer transport.Disconnect()

	_, err := transport.Exchange(context.Background(), []byte{0x32, 0x01})
	if !errors.Is(err, &s7.ISOResponseError{Code: s7.IsoShortPacket}) {
		t.Fatalf("err = %v, want short packet response error", err)
	}
}

func TestTCPTransportNonDataResponse(t *testing.T) {
	addr := startFakePLC(t, func(conn net.Conn) {
		if _, err := answerCOTPConnect(conn); err != nil {
			return
		}
		if _, err := readTPKTBody(conn); err != nil {
			return
		}
		// CC where a DT is expected.
		_ = writeTPKTBody(conn, []byte{0x02, 0xD0, 0x80})
	})

	transport := NewTCPTransport(2 * time.Second)
	if err := transport.Connect(context.Background(), addr, LocalTSAP, RemoteTSAP(0, 2)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer transport.Disconnect()

	_, err := transport.Exchange(context.Background(), []byte{0x32, 0x01})
	if !errors.Is(err, &s7.ISOResponseError{Code: s7.IsoInvalidPDU}) {
		t.Fatalf("err = %v, want invalid PDU response error", err)
	}
}

func TestTCPTransportExchangeNotConnected(t *testing.T) {
	transport := NewTCPTransport(time.Second)

	_, err := transport.Exchange(context.Background(), []byte{0x32, 0x01})
	var connErr *s7.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("err = %v, want connection error", err)
	}
}

func TestTCPTransportDoubleConnect(t *testing.T) {
	addr := startFakePLC(t, func(conn net.Conn) {
		if _, err := answerCOTPConnect(conn); err != nil {
			return
		}
		_, _ = readTPKTBody(conn)
	})

	transport := NewTCPTransport(2 * time.Second)
	if err := transport.Connect(context.Background(), addr, LocalTSAP, RemoteTSAP(0, 2)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer transport.Disconnect()

	err := transport.Connect(context.Background(), addr, LocalTSAP, RemoteTSAP(0, 2))
	var connErr *s7.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("second Connect err = %v, want connection error", err)
	}
}

func TestTCPTransportDisconnectIdempotent(t *testing.T) {
	transport := NewTCPTransport(time.Second)
	if err := transport.Disconnect(); err != nil {
		t.Errorf("first Disconnect: %v", err)
	}
	if err := transport.Disconnect(); err != nil {
		t.Errorf("second Disconnect: %v", err)
	}
}
