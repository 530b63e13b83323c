package s7

// S7comm areas, data types, and request/data item encoding.

import (
	"encoding/binary"
)

// Function codes for the read/write parameter block.
const (
	FunctionRead  byte = 0x04
	FunctionWrite byte = 0x05
)

// Variable specification constants used in every request item.
const (
	specTypeVariable byte = 0x12 // variable specification
	specAddrLength   byte = 0x0A // length of the remaining item bytes
	syntaxIDS7Any    byte = 0x10 // S7ANY addressing
)

// Area identifies the PLC memory region being addressed.
type Area byte

const (
	AreaInputs     Area = 0x81
	AreaOutputs    Area = 0x82
	AreaMerkers    Area = 0x83
	AreaDataBlocks Area = 0x84
	AreaCounters   Area = 0x1C
	AreaTimers     Area = 0x1D
)

func (a Area) String() string {
	switch a {
	case AreaInputs:
		return "inputs"
	case AreaOutputs:
		return "outputs"
	case AreaMerkers:
		return "merkers"
	case AreaDataBlocks:
		return "data blocks"
	case AreaCounters:
		return "counters"
	case AreaTimers:
		return "timers"
	default:
		return "unknown"
	}
}

// HasDBNumber reports whether addressing in this area carries a data block
// number. Only data block areas do; the DB number is encoded as zero for
// every other area.
func (a Area) HasDBNumber() bool {
	return a == AreaDataBlocks
}

// DataType is the element granularity of a transfer, encoded into the
// request item. It determines the element size used for all offset math.
type DataType byte

const (
	DataTypeBit   DataType = 0x01
	DataTypeByte  DataType = 0x02
	DataTypeChar  DataType = 0x03
	DataTypeWord  DataType = 0x04
	DataTypeInt   DataType = 0x05
	DataTypeDWord DataType = 0x06
	DataTypeDInt  DataType = 0x07
	DataTypeReal  DataType = 0x08
)

// Size returns the byte size of one element of this type. Bit elements
// occupy one byte on the wire.
func (t DataType) Size() uint32 {
	switch t {
	case DataTypeBit, DataTypeByte, DataTypeChar:
		return 1
	case DataTypeWord, DataTypeInt:
		return 2
	case DataTypeDWord, DataTypeDInt, DataTypeReal:
		return 4
	default:
		return 0
	}
}

// BitGranular reports whether addressing for this type resolves down to a
// single bit rather than a byte boundary.
func (t DataType) BitGranular() bool {
	return t == DataTypeBit
}

// TransportSize returns the data item transport size code used when this
// type is carried in a data section.
func (t DataType) TransportSize() TransportSize {
	switch t {
	case DataTypeBit:
		return TransportSizeBit
	case DataTypeWord, DataTypeInt:
		return TransportSizeWord
	case DataTypeDWord, DataTypeDInt, DataTypeReal:
		return TransportSizeDWord
	default:
		return TransportSizeByte
	}
}

func (t DataType) String() string {
	switch t {
	case DataTypeBit:
		return "BIT"
	case DataTypeByte:
		return "BYTE"
	case DataTypeChar:
		return "CHAR"
	case DataTypeWord:
		return "WORD"
	case DataTypeInt:
		return "INT"
	case DataTypeDWord:
		return "DWORD"
	case DataTypeDInt:
		return "DINT"
	case DataTypeReal:
		return "REAL"
	default:
		return "UNKNOWN"
	}
}

// TransportSize is the envelope code for one data item in the data section.
type TransportSize byte

const (
	TransportSizeBit   TransportSize = 0x03
	TransportSizeByte  TransportSize = 0x04
	TransportSizeWord  TransportSize = 0x06
	TransportSizeDWord TransportSize = 0x07
)

// Width returns the byte width of one addressed element for this transport
// size. The declared count of a data item is elements times this width.
func (ts TransportSize) Width() uint16 {
	switch ts {
	case TransportSizeWord:
		return 2
	case TransportSizeDWord:
		return 4
	default:
		return 1
	}
}

// RequestItemSize is the encoded size of one request item.
const RequestItemSize = 12

// RequestItem is one addressing descriptor inside a read/write request:
// N elements of a type starting at an address within an area.
type RequestItem struct {
	DataType DataType
	Count    uint16
	DBNumber uint16
	Area     Area
	Address  uint32 // bit-resolved address, 24 bits on the wire
}

// BuildRequestItem builds the addressing descriptor for one item. start is
// a byte offset into the area; for bit-granular types bit selects the bit
// within that byte and must lie in [0,7].
func BuildRequestItem(area Area, dbNumber uint16, start uint32, bit uint8, dataType DataType, count uint16) (RequestItem, error) {
	address := start << 3
	if dataType.BitGranular() {
		if bit > 7 {
			return RequestItem{}, ErrRequestedBitOutOfRange
		}
		address |= uint32(bit)
	}
	if !area.HasDBNumber() {
		dbNumber = 0
	}
	return RequestItem{
		DataType: dataType,
		Count:    count,
		DBNumber: dbNumber,
		Area:     area,
		Address:  address,
	}, nil
}

// Encode serializes the request item into its 12-byte wire form.
func (it RequestItem) Encode() []byte {
	buf := make([]byte, RequestItemSize)
	buf[0] = specTypeVariable
	buf[1] = specAddrLength
	buf[2] = syntaxIDS7Any
	buf[3] = byte(it.DataType)
	binary.BigEndian.PutUint16(buf[4:6], it.Count)
	binary.BigEndian.PutUint16(buf[6:8], it.DBNumber)
	buf[8] = byte(it.Area)
	buf[9] = byte(it.Address >> 16)
	buf[10] = byte(it.Address >> 8)
	buf[11] = byte(it.Address)
	return buf
}

// DataItemPrefixSize is the fixed prefix of a data item: return code,
// transport size, and declared count.
const DataItemPrefixSize = 4

// DataItem is the payload envelope wrapping raw bytes for one item. The
// return code is zero when building a request and mirrors the PLC's
// per-item result when decoded from a response.
type DataItem struct {
	ReturnCode    byte
	TransportSize TransportSize
	Count         uint16 // declared byte count: elements times transport width
	Data          []byte
}

// BuildDataItem wraps raw bytes for one outgoing item. A nil slice means
// the caller sliced the fragment out of bounds, which is a request-side
// framing error, not a network fault.
func BuildDataItem(ts TransportSize, data []byte) (DataItem, error) {
	if data == nil {
		return DataItem{}, &ISORequestError{Code: IsoInvalidDataSize}
	}
	elements := uint16(len(data)) / ts.Width()
	return DataItem{
		ReturnCode:    0,
		TransportSize: ts,
		Count:         elements * ts.Width(),
		Data:          data,
	}, nil
}

// Encode serializes the data item prefix followed by the raw payload.
func (d DataItem) Encode() []byte {
	buf := make([]byte, DataItemPrefixSize, DataItemPrefixSize+len(d.Data))
	buf[0] = d.ReturnCode
	buf[1] = byte(d.TransportSize)
	binary.BigEndian.PutUint16(buf[2:4], d.Count)
	return append(buf, d.Data...)
}

// DecodeDataItem parses one data item from the leading bytes of a response
// data section. The declared count is trusted only after checking it
// against the bytes actually received.
func DecodeDataItem(b []byte) (DataItem, error) {
	if len(b) < DataItemPrefixSize {
		return DataItem{}, &ISOResponseError{Code: IsoShortPacket}
	}
	d := DataItem{
		ReturnCode:    b[0],
		TransportSize: TransportSize(b[1]),
		Count:         binary.BigEndian.Uint16(b[2:4]),
	}
	if int(d.Count) > len(b)-DataItemPrefixSize {
		return DataItem{}, &ISOResponseError{Code: IsoShortPacket}
	}
	if d.Count > 0 {
		d.Data = make([]byte, d.Count)
		copy(d.Data, b[DataItemPrefixSize:DataItemPrefixSize+int(d.Count)])
	}
	return d, nil
}

// ParamsFixedSize is the fixed portion of a read/write parameter block:
// function code and item count.
const ParamsFixedSize = 2

// ReadWriteParams is the parameter section of a request: a function code
// and an ordered sequence of request items.
type ReadWriteParams struct {
	Function byte
	Items    []RequestItem
}

// BuildReadParams builds the parameter block for a read request.
func BuildReadParams(items ...RequestItem) ReadWriteParams {
	return ReadWriteParams{Function: FunctionRead, Items: items}
}

// BuildWriteParams builds the parameter block for a write request.
func BuildWriteParams(items ...RequestItem) ReadWriteParams {
	return ReadWriteParams{Function: FunctionWrite, Items: items}
}

// Encode serializes the parameter block: function code, item count, then
// one addressing descriptor per item.
func (p ReadWriteParams) Encode() []byte {
	buf := make([]byte, ParamsFixedSize, ParamsFixedSize+len(p.Items)*RequestItemSize)
	buf[0] = p.Function
	buf[1] = byte(len(p.Items))
	for _, it := range p.Items {
		buf = append(buf, it.Encode()...)
	}
	return buf
}
