package s7client

// Read-path fragmentation. Structurally symmetric to the write path with
// the payload direction swapped: requests carry no data section and each
// response's data item is validated and aggregated in order.

import (
	"context"
	"encoding/binary"

	"github.com/tturner/s7dip/internal/s7"
)

// ReadArea reads elements of the given type starting at start, issuing as
// many PDU-bounded exchanges as needed, and returns the aggregated bytes
// in request order.
func ReadArea(ctx context.Context, x Exchanger, pduLength uint16, pduRef *uint16, area s7.Area, dbNumber uint16, start uint32, dataType s7.DataType, elements uint32) ([]byte, error) {
	elemSize := dataType.Size()
	if elemSize == 0 {
		return nil, &s7.ISORequestError{Code: s7.IsoInvalidParams}
	}
	maxElements := (int(pduLength) - readOverhead) / int(elemSize)
	if maxElements < 1 {
		return nil, &s7.ISORequestError{Code: s7.IsoInvalidPDU}
	}

	out := make([]byte, 0, elements*elemSize)
	for offset := uint32(0); offset < elements; {
		n := elements - offset
		if n > uint32(maxElements) {
			n = uint32(maxElements)
		}

		item, err := buildItem(area, dbNumber, start, offset, dataType, uint16(n))
		if err != nil {
			return nil, err
		}
		params := s7.BuildReadParams(item).Encode()
		header := s7.BuildRequestHeader(*pduRef, uint16(len(params)), 0)

		frame := header.Encode()
		frame = append(frame, params...)

		response, err := x.Exchange(ctx, frame)
		if err != nil {
			return nil, err
		}
		if err := checkResponse(response, *pduRef); err != nil {
			return nil, err
		}
		if len(response) < itemStatusOffset+s7.DataItemPrefixSize {
			return nil, &s7.ISOResponseError{Code: s7.IsoShortPacket}
		}

		data, err := s7.DecodeDataItem(response[itemStatusOffset:])
		if err != nil {
			return nil, err
		}
		// The declared count is elements times the transport width; it must
		// cover exactly the bytes this fragment asked for.
		if uint32(data.Count) != n*elemSize {
			return nil, &s7.ISOResponseError{Code: s7.IsoInvalidDataSize}
		}
		out = append(out, data.Data...)

		offset += n
	}
	return out, nil
}

// ReadUint16 is a convenience for single word-sized values.
func ReadUint16(ctx context.Context, x Exchanger, pduLength uint16, pduRef *uint16, area s7.Area, dbNumber uint16, start uint32) (uint16, error) {
	raw, err := ReadArea(ctx, x, pduLength, pduRef, area, dbNumber, start, s7.DataTypeWord, 1)
	if err != nil {
		return 0, err
	}
	if len(raw) != 2 {
		return 0, &s7.TryFromError{Bytes: raw, Msg: "word read returned an unexpected byte count"}
	}
	return binary.BigEndian.Uint16(raw), nil
}
