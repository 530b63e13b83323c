package s7client

// Write-path fragmentation: split a logical write into a sequence of
// PDU-bounded request/response exchanges.

import (
	"context"

	"github.com/tturner/s7dip/internal/s7"
)

// Exchanger is the transport primitive the engine drives: send one request
// frame and return the S7 payload of the matching response.
type Exchanger interface {
	Exchange(ctx context.Context, request []byte) ([]byte, error)
}

// Telegram overhead in bytes for a one-item transfer, counting request and
// reply framing. Write telegrams carry the request item and the data item
// prefix alongside the header and function block; read telegrams only the
// request item.
const (
	writeOverhead = 35
	readOverhead  = 18
)

// itemStatusOffset is where the per-item return code of a one-item
// response sits: ack-data header plus function code and item count.
const itemStatusOffset = s7.AckHeaderSize + s7.ParamsFixedSize

// WriteArea writes the entire buffer to the PLC as one or more fragments,
// each bounded by the negotiated PDU length. Fragments are strictly
// sequential; the first failure aborts the operation and fragments already
// acknowledged by the PLC are not rolled back. pduRef is the caller-owned
// connection-scoped reference counter and stays constant across fragments
// of one logical write.
func WriteArea(ctx context.Context, x Exchanger, pduLength uint16, pduRef *uint16, area s7.Area, dbNumber uint16, start uint32, dataType s7.DataType, buffer []byte) error {
	elemSize := dataType.Size()
	if elemSize == 0 {
		return &s7.ISORequestError{Code: s7.IsoInvalidParams}
	}
	maxElements := (int(pduLength) - writeOverhead) / int(elemSize)
	if maxElements < 1 {
		// The negotiated PDU cannot carry even one element. This is a
		// configuration error, not a retry condition.
		return &s7.ISORequestError{Code: s7.IsoInvalidPDU}
	}

	if uint32(len(buffer))%elemSize != 0 {
		// A partial trailing element cannot be expressed on the wire;
		// refuse rather than silently truncate the buffer.
		return &s7.ISORequestError{Code: s7.IsoInvalidDataSize}
	}

	total := uint32(len(buffer)) / elemSize
	for offset := uint32(0); offset < total; {
		n := total - offset
		if n > uint32(maxElements) {
			n = uint32(maxElements)
		}

		item, err := buildItem(area, dbNumber, start, offset, dataType, uint16(n))
		if err != nil {
			return err
		}
		data, err := s7.BuildDataItem(dataType.TransportSize(), sliceRange(buffer, offset*elemSize, (offset+n)*elemSize))
		if err != nil {
			return err
		}

		params := s7.BuildWriteParams(item).Encode()
		payload := data.Encode()
		header := s7.BuildRequestHeader(*pduRef, uint16(len(params)), uint16(len(payload)))

		frame := header.Encode()
		frame = append(frame, params...)
		frame = append(frame, payload...)

		response, err := x.Exchange(ctx, frame)
		if err != nil {
			return err
		}
		if err := checkResponse(response, *pduRef); err != nil {
			return err
		}

		offset += n
	}
	return nil
}

// checkResponse runs the header validation chain and the per-item return
// code check shared by the read and write paths.
func checkResponse(response []byte, pduRef uint16) error {
	header, err := s7.DecodeHeader(response)
	if err != nil {
		return err
	}
	if header, err = header.Acknowledged(); err != nil {
		return err
	}
	if header, err = header.CurrentPDU(pduRef); err != nil {
		return err
	}
	if err := header.ProtocolError(); err != nil {
		return err
	}
	if len(response) > itemStatusOffset {
		if status := s7.DataItemStatus(response[itemStatusOffset]); status != s7.DataItemStatusSuccess {
			return &s7.DataItemError{Status: status}
		}
	}
	return nil
}

// buildItem resolves one fragment's address: start plus the element offset
// scaled to the type's granularity. start is a byte offset, except for
// bit-granular types where it is already bit-resolved and the offset
// advances in bits.
func buildItem(area s7.Area, dbNumber uint16, start, offset uint32, dataType s7.DataType, count uint16) (s7.RequestItem, error) {
	if dataType.BitGranular() {
		addr := start + offset
		return s7.BuildRequestItem(area, dbNumber, addr/8, uint8(addr%8), dataType, count)
	}
	return s7.BuildRequestItem(area, dbNumber, start+offset*dataType.Size(), 0, dataType, count)
}

// sliceRange returns buffer[lo:hi], or nil when the bounds do not fit.
// BuildDataItem turns nil into the invalid-data-size request error.
func sliceRange(buffer []byte, lo, hi uint32) []byte {
	if lo > hi || hi > uint32(len(buffer)) {
		return nil
	}
	return buffer[lo:hi]
}
