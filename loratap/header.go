// Package loratap encodes and decodes the fixed 15 byte LoRaTap v0 capture
// header that precedes every captured LoRa frame.
package loratap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// HeaderLength is the size of an encoded Header, and the value carried in
	// its Length field.
	HeaderLength = 15
	Version      = 0

	// MaxRSSIUnavailable marks the max_rssi field as having no source.
	MaxRSSIUnavailable = 0xff

	// Bandwidth is carried in 125kHz steps.
	BandwidthStep = 125000

	// LinkType is the pcap link-layer type for LoRaTap.
	LinkType = 270
)

// EndMarker terminates every stream record. It is not escaped inside payloads.
var EndMarker = []byte{0xcf, 0xcf}

var (
	ErrShortHeader = errors.New("loratap: short header")
	ErrVersion     = errors.New("loratap: unsupported version")
	ErrLength      = errors.New("loratap: unexpected header length")
)

// Header is a LoRaTap v0 header. All multi-byte fields are big-endian on the
// wire.
type Header struct {
	Version         uint8
	Padding         uint8
	Length          uint16
	Frequency       uint32 // Hz
	Bandwidth       uint8  // 125kHz steps
	SpreadingFactor uint8
	PacketRSSI      int8
	MaxRSSI         uint8
	CurrentRSSI     int8
	SNR             int8
	SyncWord        uint8
}

// New returns a header for a single captured frame. max_rssi has no live
// source and is always MaxRSSIUnavailable.
func New(frequency, bandwidthHz uint32, sf, syncWord uint8, packetRSSI, currentRSSI, snr int8) Header {
	return Header{
		Version:         Version,
		Length:          HeaderLength,
		Frequency:       frequency,
		Bandwidth:       EncodeBandwidth(bandwidthHz),
		SpreadingFactor: sf,
		PacketRSSI:      packetRSSI,
		MaxRSSI:         MaxRSSIUnavailable,
		CurrentRSSI:     currentRSSI,
		SNR:             snr,
		SyncWord:        syncWord,
	}
}

func EncodeBandwidth(hz uint32) uint8 {
	return uint8(hz / BandwidthStep)
}

func (h Header) BandwidthHz() uint32 {
	return uint32(h.Bandwidth) * BandwidthStep
}

// ClampInt8 converts v to an int8, saturating at the type's bounds rather than
// wrapping.
func ClampInt8(v int) int8 {
	if v > math.MaxInt8 {
		return math.MaxInt8
	}
	if v < math.MinInt8 {
		return math.MinInt8
	}
	return int8(v)
}

// AppendBinary appends the wire form of h to dst.
func (h Header) AppendBinary(dst []byte) []byte {
	dst = append(dst, h.Version, h.Padding)
	dst = binary.BigEndian.AppendUint16(dst, h.Length)
	dst = binary.BigEndian.AppendUint32(dst, h.Frequency)
	return append(dst,
		h.Bandwidth,
		h.SpreadingFactor,
		uint8(h.PacketRSSI),
		h.MaxRSSI,
		uint8(h.CurrentRSSI),
		uint8(h.SNR),
		h.SyncWord,
	)
}

func (h Header) MarshalBinary() ([]byte, error) {
	return h.AppendBinary(make([]byte, 0, HeaderLength)), nil
}

func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderLength {
		return ErrShortHeader
	}
	if data[0] != Version || data[1] != 0 {
		return fmt.Errorf("%w: version %d padding %d", ErrVersion, data[0], data[1])
	}
	length := binary.BigEndian.Uint16(data[2:4])
	if length != HeaderLength {
		return fmt.Errorf("%w: %d", ErrLength, length)
	}
	*h = Header{
		Version:         data[0],
		Padding:         data[1],
		Length:          length,
		Frequency:       binary.BigEndian.Uint32(data[4:8]),
		Bandwidth:       data[8],
		SpreadingFactor: data[9],
		PacketRSSI:      int8(data[10]),
		MaxRSSI:         data[11],
		CurrentRSSI:     int8(data[12]),
		SNR:             int8(data[13]),
		SyncWord:        data[14],
	}
	return nil
}

// IsPrefix reports whether b starts like an encoded header: zero version and
// padding followed by the fixed length.
func IsPrefix(b []byte) bool {
	return len(b) >= 4 && b[0] == Version && b[1] == 0 && binary.BigEndian.Uint16(b[2:4]) == HeaderLength
}

func (h Header) String() string {
	maxRSSI := "n/a"
	if h.MaxRSSI != MaxRSSIUnavailable {
		maxRSSI = fmt.Sprintf("%d", h.MaxRSSI)
	}
	return fmt.Sprintf("freq=%dHz bw=%dHz sf=%d rssi=%ddBm max_rssi=%s current_rssi=%ddBm snr=%ddB sync=%#02x",
		h.Frequency, h.BandwidthHz(), h.SpreadingFactor, h.PacketRSSI, maxRSSI, h.CurrentRSSI, h.SNR, h.SyncWord)
}
