package pcap

// S7 PCAP extraction: extract S7comm PDUs from ISO-on-TCP (port 102) traffic.

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/tturner/s7dip/internal/s7"
)

// S7Port is the standard ISO-on-TCP port.
const S7Port = 102

// TPKTHeaderSize is the size of the RFC 1006 framing header.
const TPKTHeaderSize = 4

// TPKTVersion is the only TPKT version in use.
const TPKTVersion = 3

// COTP PDU types seen in S7 traffic.
const (
	COTPConnectRequest byte = 0xE0
	COTPConnectConfirm byte = 0xD0
	COTPData           byte = 0xF0
)

// S7Packet represents an extracted S7 PDU from a PCAP.
type S7Packet struct {
	PDURef      uint16 // S7 header reference
	ROSCTR      byte   // job, ack, or ack-data
	Function    byte   // first parameter byte, 0 when no parameters
	COTPType    byte   // COTP PDU type carrying this frame
	Data        []byte // S7 PDU after the COTP header, empty for CR/CC
	FullFrame   []byte // Complete TPKT + COTP + S7 frame
	IsRequest   bool   // Direction: true = client to PLC
	Description string // Human-readable description
	Timestamp   time.Time
	SrcIP       string
	DstIP       string
	SrcPort     uint16
	DstPort     uint16
}

// PacketMetadata carries capture metadata for an extracted frame.
type PacketMetadata struct {
	Timestamp time.Time
	SrcIP     string
	DstIP     string
	SrcPort   uint16
	DstPort   uint16
}

// ExtractS7FromPCAP extracts S7 frames from a PCAP file.
// Supports ISO-on-TCP on port 102 with TCP stream reassembly.
func ExtractS7FromPCAP(pcapFile string) ([]S7Packet, error) {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return nil, fmt.Errorf("open pcap file: %w", err)
	}
	defer handle.Close()

	var packets []S7Packet
	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	streams := make(map[string][]byte)

	for packet := range packetSource.Packets() {
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, _ := tcpLayer.(*layers.TCP)
		if !isS7Port(uint16(tcp.SrcPort), uint16(tcp.DstPort)) {
			continue
		}
		if len(tcp.Payload) == 0 {
			continue
		}

		meta := extractPacketMeta(packet)
		meta.SrcPort = uint16(tcp.SrcPort)
		meta.DstPort = uint16(tcp.DstPort)

		netLayer := packet.NetworkLayer()
		key := streamKey(netLayer, tcp)
		streams[key] = append(streams[key], tcp.Payload...)
		streamBuf := streams[key]

		isToServer := tcp.DstPort == S7Port

		parsed, remaining := ExtractS7Frames(streamBuf, isToServer, meta)
		packets = append(packets, parsed...)
		streams[key] = remaining
	}

	return packets, nil
}

// ExtractS7Frames extracts complete TPKT-framed S7 PDUs from a byte buffer.
// Returns extracted packets and any remaining incomplete bytes.
func ExtractS7Frames(payload []byte, isToServer bool, meta *PacketMetadata) ([]S7Packet, []byte) {
	var packets []S7Packet

	for len(payload) >= TPKTHeaderSize+2 { // TPKT + at least COTP length/type bytes
		if payload[0] != TPKTVersion {
			// Not TPKT framing - discard one byte and try again.
			payload = payload[1:]
			continue
		}

		frameLen := int(binary.BigEndian.Uint16(payload[2:4]))
		if frameLen < TPKTHeaderSize+2 {
			payload = payload[1:]
			continue
		}
		if frameLen > len(payload) {
			// Incomplete frame - wait for more data.
			break
		}

		cotpLen := 1 + int(payload[TPKTHeaderSize])
		if TPKTHeaderSize+cotpLen > frameLen {
			payload = payload[1:]
			continue
		}
		cotpType := payload[TPKTHeaderSize+1]

		fullFrame := make([]byte, frameLen)
		copy(fullFrame, payload[:frameLen])

		pkt := S7Packet{
			COTPType:  cotpType,
			FullFrame: fullFrame,
			IsRequest: isToServer,
			Timestamp: metadataValue(meta, func(m *PacketMetadata) time.Time { return m.Timestamp }),
			SrcIP:     metadataValue(meta, func(m *PacketMetadata) string { return m.SrcIP }),
			DstIP:     metadataValue(meta, func(m *PacketMetadata) string { return m.DstIP }),
			SrcPort:   metadataValue(meta, func(m *PacketMetadata) uint16 { return m.SrcPort }),
			DstPort:   metadataValue(meta, func(m *PacketMetadata) uint16 { return m.DstPort }),
		}

		switch cotpType {
		case COTPData:
			s7Payload := fullFrame[TPKTHeaderSize+cotpLen:]
			header, err := s7.DecodeHeader(s7Payload)
			if err != nil {
				// DT frame that is not S7comm - skip it.
				payload = payload[frameLen:]
				continue
			}
			pkt.PDURef = header.PDURef
			pkt.ROSCTR = header.ROSCTR
			pkt.Data = s7Payload
			if header.ParamLength > 0 {
				paramOffset := s7.RequestHeaderSize
				if header.ROSCTR == s7.ROSCTRAckData {
					paramOffset = s7.AckHeaderSize
				}
				if paramOffset < len(s7Payload) {
					pkt.Function = s7Payload[paramOffset]
				}
			}
			pkt.Description = describeS7Frame(header.ROSCTR, pkt.Function, isToServer)
		case COTPConnectRequest:
			pkt.Description = "COTP Connect Request"
		case COTPConnectConfirm:
			pkt.Description = "COTP Connect Confirm"
		default:
			pkt.Description = fmt.Sprintf("COTP 0x%02X", cotpType)
		}

		packets = append(packets, pkt)
		payload = payload[frameLen:]
	}

	// Return remaining bytes
	if len(payload) == 0 {
		return packets, nil
	}
	remaining := make([]byte, len(payload))
	copy(remaining, payload)
	return packets, remaining
}

func isS7Port(src, dst uint16) bool {
	return src == S7Port || dst == S7Port
}

func describeS7Frame(rosctr, function byte, isRequest bool) string {
	dir := "Request"
	if !isRequest {
		dir = "Response"
	}

	var fnName string
	switch function {
	case s7.FunctionRead:
		fnName = "Read Var"
	case s7.FunctionWrite:
		fnName = "Write Var"
	case 0xF0:
		fnName = "Setup Communication"
	case 0:
		fnName = "No Params"
	default:
		fnName = fmt.Sprintf("Unknown(0x%02X)", function)
	}

	var rosctrName string
	switch rosctr {
	case s7.ROSCTRJob:
		rosctrName = "Job"
	case s7.ROSCTRAck:
		rosctrName = "Ack"
	case s7.ROSCTRAckData:
		rosctrName = "Ack-Data"
	default:
		rosctrName = fmt.Sprintf("ROSCTR 0x%02X", rosctr)
	}

	return fmt.Sprintf("S7 %s %s %s", rosctrName, fnName, dir)
}

func streamKey(netLayer gopacket.NetworkLayer, tcp *layers.TCP) string {
	if netLayer != nil {
		src, dst := netLayer.NetworkFlow().Endpoints()
		return fmt.Sprintf("%s:%d->%s:%d", src, tcp.SrcPort, dst, tcp.DstPort)
	}
	return fmt.Sprintf("unknown:%d->unknown:%d", tcp.SrcPort, tcp.DstPort)
}

func extractPacketMeta(packet gopacket.Packet) *PacketMetadata {
	meta := &PacketMetadata{}
	if packet.Metadata() != nil {
		meta.Timestamp = packet.Metadata().Timestamp
	}
	netLayer := packet.NetworkLayer()
	if netLayer == nil {
		return meta
	}
	src, dst := netLayer.NetworkFlow().Endpoints()
	meta.SrcIP = src.String()
	meta.DstIP = dst.String()
	return meta
}

func metadataValue[T any](meta *PacketMetadata, getter func(*PacketMetadata) T) T {
	if meta == nil {
		var zero T
		return zero
	}
	return getter(meta)
}
