package capture

import (
	"github.com/hatstand/lorasniffer/loratap"
)

// Channel is the fixed radio configuration the sniffer listens on.
type Channel struct {
	Frequency       uint32 // Hz
	Bandwidth       uint32 // Hz
	SpreadingFactor uint8
	CodingRate      uint8 // denominator, numerator is 4
	SyncWord        uint8
	PreambleLength  uint16
}

// LongFastUS is the default Meshtastic LongFast channel in the US band.
// See https://meshtastic.org/docs/overview/radio-settings/
var LongFastUS = Channel{
	Frequency:       906875000,
	Bandwidth:       250000,
	SpreadingFactor: 11,
	CodingRate:      5,
	SyncWord:        0x2b,
	PreambleLength:  16,
}

// Header builds the capture header for one frame received on ch.
func Header(ch Channel, packetRSSI, currentRSSI int, snr float64) loratap.Header {
	return loratap.New(
		ch.Frequency,
		ch.Bandwidth,
		ch.SpreadingFactor,
		ch.SyncWord,
		loratap.ClampInt8(packetRSSI),
		loratap.ClampInt8(currentRSSI),
		loratap.ClampInt8(int(snr)),
	)
}
