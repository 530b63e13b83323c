package s7

import (
	"errors"
	"strings"
	"testing"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := BuildRequestHeader(0x1234, 14, 520)
	buf := h.Encode()
	if len(buf) != RequestHeaderSize {
		t.Fatalf("encoded size = %d, want %d", len(buf), RequestHeaderSize)
	}

	decoded, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if decoded.PDURef != 0x1234 {
		t.Errorf("PDURef = 0x%04X, want 0x1234", decoded.PDURef)
	}
	if decoded.ParamLength != 14 {
		t.Errorf("ParamLength = %d, want 14", decoded.ParamLength)
	}
	if decoded.DataLength != 520 {
		t.Errorf("DataLength = %d, want 520", decoded.DataLength)
	}
	if decoded.HasErrorInfo {
		t.Error("job header should not carry error info")
	}
}

func TestDecodeHeaderAckData(t *testing.T) {
	buf := []byte{ProtocolID, ROSCTRAckData, 0, 0, 0x00, 0x07, 0, 14, 0, 5, 0x84, 0x05}
	h, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if !h.HasErrorInfo {
		t.Fatal("ack-data header should carry error info")
	}
	if h.ErrorClass != 0x84 || h.ErrorCode != 0x05 {
		t.Errorf("error class/code = 0x%02X/0x%02X, want 0x84/0x05", h.ErrorClass, h.ErrorCode)
	}
}

func TestDecodeHeaderShortPacket(t *testing.T) {
	_, err := DecodeHeader([]byte{ProtocolID, ROSCTRAckData, 0, 0})
	if !errors.Is(err, &ISOResponseError{Code: IsoShortPacket}) {
		t.Fatalf("err = %v, want ISO response short packet", err)
	}

	// Ack-data discriminant but no room for the error bytes.
	_, err = DecodeHeader([]byte{ProtocolID, ROSCTRAckData, 0, 0, 0, 1, 0, 2, 0, 0})
	if !errors.Is(err, &ISOResponseError{Code: IsoShortPacket}) {
		t.Fatalf("err = %v, want ISO response short packet", err)
	}
}

func TestDecodeHeaderInvalidPDU(t *testing.T) {
	buf := []byte{0x00, ROSCTRJob, 0, 0, 0, 1, 0, 2, 0, 0}
	_, err := DecodeHeader(buf)
	if !errors.Is(err, &ISOResponseError{Code: IsoInvalidPDU}) {
		t.Fatalf("err = %v, want ISO response invalid PDU", err)
	}
}

func TestHeaderValidationChain(t *testing.T) {
	h := Header{ProtocolID: ProtocolID, ROSCTR: ROSCTRAckData, PDURef: 7, HasErrorInfo: true}

	h2, err := h.Acknowledged()
	if err != nil {
		t.Fatalf("Acknowledged: %v", err)
	}
	if _, err := h2.CurrentPDU(7); err != nil {
		t.Fatalf("CurrentPDU: %v", err)
	}
	if _, err := h2.CurrentPDU(8); !errors.Is(err, ErrResponseDoesNotBelongToCurrentPDU) {
		t.Fatalf("err = %v, want reference mismatch", err)
	}

	nack := Header{ProtocolID: ProtocolID, ROSCTR: ROSCTRJob, PDURef: 7}
	if _, err := nack.Acknowledged(); !errors.Is(err, ErrRequestNotAcknowledged) {
		t.Fatalf("err = %v, want not acknowledged", err)
	}
}

func TestHeaderProtocolError(t *testing.T) {
	h := Header{HasErrorInfo: true, ErrorClass: 0x84, ErrorCode: 0x05}
	err := h.ProtocolError()
	if err == nil {
		t.Fatal("expected protocol error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "Error on service processing") {
		t.Errorf("message %q missing class text", msg)
	}
	if !strings.Contains(msg, "5") {
		t.Errorf("message %q missing error code", msg)
	}

	clean := Header{HasErrorInfo: true, ErrorClass: 0x00, ErrorCode: 0x00}
	if err := clean.ProtocolError(); err != nil {
		t.Errorf("clean header yielded %v", err)
	}
}

func TestProtocolErrorClassTexts(t *testing.T) {
	cases := []struct {
		class byte
		want  string
	}{
		{0x00, "No error"},
		{0x81, "Application relationship error"},
		{0x82, "Object definition error"},
		{0x83, "No resources available error"},
		{0x84, "Error on service processing"},
		{0x85, "Error on supplies"},
		{0x87, "Access error"},
		{0x42, "Unknown error class"},
	}
	for _, c := range cases {
		e := &S7ProtocolError{Class: c.class, HasClass: true}
		if got := e.ClassText(); got != c.want {
			t.Errorf("class 0x%02X text = %q, want %q", c.class, got, c.want)
		}
	}

	absent := &S7ProtocolError{}
	if got := absent.ClassText(); got != "No error class given" {
		t.Errorf("absent class text = %q", got)
	}
}
