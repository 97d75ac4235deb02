package lorasniffer

import (
	"fmt"
	"io"
	"time"

	"github.com/hatstand/lorasniffer/capture"
	"go.uber.org/zap"
)

const (
	// Register access flag, set for writes.
	WRITE = 0x80

	// Registers
	REG_FIFO                 = 0x00
	REG_OP_MODE              = 0x01
	REG_FRF_MSB              = 0x06
	REG_FRF_MID              = 0x07
	REG_FRF_LSB              = 0x08
	REG_LNA                  = 0x0c
	REG_FIFO_ADDR_PTR        = 0x0d
	REG_FIFO_TX_BASE_ADDR    = 0x0e
	REG_FIFO_RX_BASE_ADDR    = 0x0f
	REG_FIFO_RX_CURRENT_ADDR = 0x10
	REG_IRQ_FLAGS            = 0x12
	REG_RX_NB_BYTES          = 0x13
	REG_PKT_SNR_VALUE        = 0x19
	REG_PKT_RSSI_VALUE       = 0x1a
	REG_RSSI_VALUE           = 0x1b
	REG_MODEM_CONFIG_1       = 0x1d
	REG_MODEM_CONFIG_2       = 0x1e
	REG_PREAMBLE_MSB         = 0x20
	REG_PREAMBLE_LSB         = 0x21
	REG_MODEM_CONFIG_3       = 0x26
	REG_DETECTION_OPTIMIZE   = 0x31
	REG_DETECTION_THRESHOLD  = 0x37
	REG_SYNC_WORD            = 0x39
	REG_VERSION              = 0x42

	// Modes
	MODE_LONG_RANGE_MODE = 0x80
	MODE_SLEEP           = 0x00
	MODE_STDBY           = 0x01
	MODE_RX_SINGLE       = 0x06

	// IRQ flags
	IRQ_PAYLOAD_CRC_ERROR_MASK = 0x20
	IRQ_RX_DONE_MASK           = 0x40

	CHIP_VERSION = 0x12

	RF_MID_BAND_THRESHOLD = 525000000
	RSSI_OFFSET_HF_PORT   = 157
	RSSI_OFFSET_LF_PORT   = 164

	// 32MHz crystal, 2^19 steps.
	FXOSC = 32000000
)

// Signal bandwidths in Hz, indexed by their MODEM_CONFIG_1 value.
var bandwidths = []uint32{7800, 10400, 15600, 20800, 31250, 41700, 62500, 125000, 250000, 500000}

// Bus is a full-duplex SPI transfer. embd.SPIBus satisfies it.
type Bus interface {
	TransferAndReceiveData(data []byte) error
	Close() error
}

// Pin drives the radio's active-low reset line. embd.DigitalPin satisfies it.
type Pin interface {
	Write(val int) error
	Close() error
}

// SX1276 drives a Semtech SX1276/RFM95 in LoRa mode as a receive-only sniffer.
// It implements capture.Radio.
type SX1276 struct {
	bus   Bus
	reset Pin
	log   *zap.Logger

	frequency uint32
	bandwidth uint32
	sf        uint8

	packetLength int
	packetIndex  int
}

// NewSX1276 returns a driver for the radio on bus. reset may be nil if the
// reset line is not wired.
func NewSX1276(bus Bus, reset Pin, log *zap.Logger) *SX1276 {
	if log == nil {
		log = zap.NewNop()
	}
	return &SX1276{
		bus:   bus,
		reset: reset,
		log:   log,
	}
}

func (r *SX1276) Close() error {
	r.Sleep()
	if r.reset != nil {
		r.reset.Close()
	}
	return r.bus.Close()
}

func (r *SX1276) ReadRegister(address byte) (byte, error) {
	data := []byte{address &^ WRITE, 0x00}
	err := r.bus.TransferAndReceiveData(data)
	if err != nil {
		return 0x00, err
	}
	return data[1], nil
}

func (r *SX1276) WriteRegister(address byte, value byte) error {
	return r.bus.TransferAndReceiveData([]byte{address | WRITE, value})
}

func (r *SX1276) modifyRegister(address byte, f func(byte) byte) error {
	v, err := r.ReadRegister(address)
	if err != nil {
		return err
	}
	return r.WriteRegister(address, f(v))
}

func (r *SX1276) Reset() error {
	if r.reset == nil {
		return nil
	}
	if err := r.reset.Write(0); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := r.reset.Write(1); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

func (r *SX1276) SelfTest() error {
	version, err := r.ReadRegister(REG_VERSION)
	if err != nil {
		return err
	}
	r.log.Debug("Radio version", zap.Uint8("version", version))
	if version != CHIP_VERSION {
		return fmt.Errorf("self test failed: got version %#02x, want %#02x", version, CHIP_VERSION)
	}
	return nil
}

func (r *SX1276) SetMode(mode byte) error {
	return r.WriteRegister(REG_OP_MODE, MODE_LONG_RANGE_MODE|mode)
}

func (r *SX1276) Sleep() error {
	return r.SetMode(MODE_SLEEP)
}

func (r *SX1276) Idle() error {
	return r.SetMode(MODE_STDBY)
}

func (r *SX1276) SetFrequency(hz uint32) error {
	frf := (uint64(hz) << 19) / FXOSC
	if err := r.WriteRegister(REG_FRF_MSB, byte(frf>>16)); err != nil {
		return err
	}
	if err := r.WriteRegister(REG_FRF_MID, byte(frf>>8)); err != nil {
		return err
	}
	if err := r.WriteRegister(REG_FRF_LSB, byte(frf)); err != nil {
		return err
	}
	r.frequency = hz
	return nil
}

func (r *SX1276) SetSyncWord(word byte) error {
	return r.WriteRegister(REG_SYNC_WORD, word)
}

func (r *SX1276) SetPreambleLength(length uint16) error {
	if err := r.WriteRegister(REG_PREAMBLE_MSB, byte(length>>8)); err != nil {
		return err
	}
	return r.WriteRegister(REG_PREAMBLE_LSB, byte(length))
}

func (r *SX1276) SetSpreadingFactor(sf uint8) error {
	if sf < 6 {
		sf = 6
	} else if sf > 12 {
		sf = 12
	}

	optimize, threshold := byte(0xc3), byte(0x0a)
	if sf == 6 {
		optimize, threshold = 0xc5, 0x0c
	}
	if err := r.WriteRegister(REG_DETECTION_OPTIMIZE, optimize); err != nil {
		return err
	}
	if err := r.WriteRegister(REG_DETECTION_THRESHOLD, threshold); err != nil {
		return err
	}
	err := r.modifyRegister(REG_MODEM_CONFIG_2, func(v byte) byte {
		return (v & 0x0f) | ((sf << 4) & 0xf0)
	})
	if err != nil {
		return err
	}
	r.sf = sf
	return r.setLdoFlag()
}

// SetSignalBandwidth selects the smallest supported bandwidth at or above hz.
func (r *SX1276) SetSignalBandwidth(hz uint32) error {
	bw := len(bandwidths) - 1
	for i, b := range bandwidths {
		if hz <= b {
			bw = i
			break
		}
	}
	err := r.modifyRegister(REG_MODEM_CONFIG_1, func(v byte) byte {
		return (v & 0x0f) | byte(bw<<4)
	})
	if err != nil {
		return err
	}
	r.bandwidth = bandwidths[bw]
	return r.setLdoFlag()
}

// SetCodingRate4 sets the coding rate to 4/denominator.
func (r *SX1276) SetCodingRate4(denominator uint8) error {
	if denominator < 5 {
		denominator = 5
	} else if denominator > 8 {
		denominator = 8
	}
	cr := denominator - 4
	return r.modifyRegister(REG_MODEM_CONFIG_1, func(v byte) byte {
		return (v & 0xf1) | (cr << 1)
	})
}

// Low data rate optimisation is mandated when a symbol lasts longer than 16ms.
func (r *SX1276) setLdoFlag() error {
	if r.bandwidth == 0 || r.sf == 0 {
		return nil
	}
	symbolMillis := 1000 * float64(uint32(1)<<r.sf) / float64(r.bandwidth)
	ldo := symbolMillis > 16
	return r.modifyRegister(REG_MODEM_CONFIG_3, func(v byte) byte {
		if ldo {
			return v | 0x08
		}
		return v &^ 0x08
	})
}

// Configure resets the radio and tunes it to ch in explicit header mode.
func (r *SX1276) Configure(ch capture.Channel) error {
	if err := r.Reset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := r.SelfTest(); err != nil {
		return err
	}

	steps := []struct {
		name string
		f    func() error
	}{
		{"sleep", r.Sleep},
		{"frequency", func() error { return r.SetFrequency(ch.Frequency) }},
		{"fifo tx base", func() error { return r.WriteRegister(REG_FIFO_TX_BASE_ADDR, 0) }},
		{"fifo rx base", func() error { return r.WriteRegister(REG_FIFO_RX_BASE_ADDR, 0) }},
		{"lna boost", func() error { return r.modifyRegister(REG_LNA, func(v byte) byte { return v | 0x03 }) }},
		{"auto agc", func() error { return r.WriteRegister(REG_MODEM_CONFIG_3, 0x04) }},
		{"idle", r.Idle},
		{"sync word", func() error { return r.SetSyncWord(ch.SyncWord) }},
		{"preamble", func() error { return r.SetPreambleLength(ch.PreambleLength) }},
		{"spreading factor", func() error { return r.SetSpreadingFactor(ch.SpreadingFactor) }},
		{"coding rate", func() error { return r.SetCodingRate4(ch.CodingRate) }},
		{"bandwidth", func() error { return r.SetSignalBandwidth(ch.Bandwidth) }},
		{"explicit header", func() error {
			return r.modifyRegister(REG_MODEM_CONFIG_1, func(v byte) byte { return v &^ 0x01 })
		}},
	}
	for _, s := range steps {
		if err := s.f(); err != nil {
			return fmt.Errorf("set %s: %w", s.name, err)
		}
	}
	r.log.Info("Radio configured", zap.Uint32("frequency", r.frequency), zap.Uint32("bandwidth", r.bandwidth), zap.Uint8("sf", r.sf))
	return nil
}

// Poll checks for a received frame. Frames failing the payload CRC are
// discarded. If nothing is waiting the radio is (re)armed for a single
// reception.
func (r *SX1276) Poll() (int, error) {
	irq, err := r.ReadRegister(REG_IRQ_FLAGS)
	if err != nil {
		return 0, err
	}
	// Clear whatever was raised.
	if err := r.WriteRegister(REG_IRQ_FLAGS, irq); err != nil {
		return 0, err
	}

	if irq&IRQ_RX_DONE_MASK != 0 && irq&IRQ_PAYLOAD_CRC_ERROR_MASK == 0 {
		length, err := r.ReadRegister(REG_RX_NB_BYTES)
		if err != nil {
			return 0, err
		}
		current, err := r.ReadRegister(REG_FIFO_RX_CURRENT_ADDR)
		if err != nil {
			return 0, err
		}
		if err := r.WriteRegister(REG_FIFO_ADDR_PTR, current); err != nil {
			return 0, err
		}
		if err := r.Idle(); err != nil {
			return 0, err
		}
		r.packetLength = int(length)
		r.packetIndex = 0
		return r.packetLength, nil
	}
	if irq&IRQ_PAYLOAD_CRC_ERROR_MASK != 0 {
		r.log.Debug("Dropped frame with bad CRC")
	}

	mode, err := r.ReadRegister(REG_OP_MODE)
	if err != nil {
		return 0, err
	}
	if mode != MODE_LONG_RANGE_MODE|MODE_RX_SINGLE {
		if err := r.WriteRegister(REG_FIFO_ADDR_PTR, 0); err != nil {
			return 0, err
		}
		if err := r.SetMode(MODE_RX_SINGLE); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// ReadByte returns the next byte of the frame found by the last Poll.
func (r *SX1276) ReadByte() (byte, error) {
	if r.packetIndex >= r.packetLength {
		return 0, io.EOF
	}
	b, err := r.ReadRegister(REG_FIFO)
	if err != nil {
		return 0, err
	}
	r.packetIndex++
	return b, nil
}

func (r *SX1276) rssiOffset() int {
	if r.frequency < RF_MID_BAND_THRESHOLD {
		return RSSI_OFFSET_LF_PORT
	}
	return RSSI_OFFSET_HF_PORT
}

// PacketRSSI returns the RSSI of the last frame in dBm.
func (r *SX1276) PacketRSSI() (int, error) {
	v, err := r.ReadRegister(REG_PKT_RSSI_VALUE)
	if err != nil {
		return 0, err
	}
	return int(v) - r.rssiOffset(), nil
}

// RSSI returns the current channel RSSI in dBm.
func (r *SX1276) RSSI() (int, error) {
	v, err := r.ReadRegister(REG_RSSI_VALUE)
	if err != nil {
		return 0, err
	}
	return int(v) - r.rssiOffset(), nil
}

// PacketSNR returns the SNR of the last frame in dB.
func (r *SX1276) PacketSNR() (float64, error) {
	v, err := r.ReadRegister(REG_PKT_SNR_VALUE)
	if err != nil {
		return 0, err
	}
	return float64(int8(v)) * 0.25, nil
}
