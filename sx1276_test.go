package lorasniffer

import (
	"errors"
	"io"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/hatstand/lorasniffer/capture"
	"github.com/hatstand/lorasniffer/mocks"

	. "github.com/smartystreets/goconvey/convey"
)

func WithMocks(t *testing.T, f func(bus *mocks.MockBus, radio *SX1276)) func() {
	return func() {
		mock := gomock.NewController(t)
		defer mock.Finish()
		bus := mocks.NewMockBus(mock)
		radio := NewSX1276(bus, nil, nil)
		f(bus, radio)
	}
}

// registers emulates the radio's register file and FIFO behind a bus.
type registers struct {
	regs   map[byte]byte
	fifo   [256]byte
	writes map[byte]int
}

func newRegisters() *registers {
	return &registers{
		regs:   map[byte]byte{REG_VERSION: CHIP_VERSION, REG_LNA: 0x20},
		writes: map[byte]int{},
	}
}

func (r *registers) transfer(data []byte) error {
	addr := data[0] &^ WRITE
	if data[0]&WRITE != 0 {
		r.writes[addr]++
		switch addr {
		case REG_IRQ_FLAGS:
			r.regs[addr] &^= data[1]
		case REG_FIFO:
			r.fifo[r.regs[REG_FIFO_ADDR_PTR]] = data[1]
			r.regs[REG_FIFO_ADDR_PTR]++
		default:
			r.regs[addr] = data[1]
		}
		return nil
	}
	if addr == REG_FIFO {
		data[1] = r.fifo[r.regs[REG_FIFO_ADDR_PTR]]
		r.regs[REG_FIFO_ADDR_PTR]++
		return nil
	}
	data[1] = r.regs[addr]
	return nil
}

func WithRegisters(t *testing.T, f func(regs *registers, radio *SX1276)) func() {
	return WithMocks(t, func(bus *mocks.MockBus, radio *SX1276) {
		regs := newRegisters()
		bus.EXPECT().TransferAndReceiveData(gomock.Any()).DoAndReturn(regs.transfer).AnyTimes()
		f(regs, radio)
	})
}

func TestSelfTest(t *testing.T) {
	Convey("Init", t, WithMocks(t, func(bus *mocks.MockBus, radio *SX1276) {
		bus.EXPECT().TransferAndReceiveData([]byte{REG_VERSION, 0x00}).Return(nil).SetArg(0, []byte{0x00, 0x12})

		So(radio.SelfTest(), ShouldBeNil)
	}))
	Convey("Wrong chip", t, WithMocks(t, func(bus *mocks.MockBus, radio *SX1276) {
		bus.EXPECT().TransferAndReceiveData([]byte{REG_VERSION, 0x00}).Return(nil).SetArg(0, []byte{0x00, 0x00})

		So(radio.SelfTest(), ShouldNotBeNil)
	}))
	Convey("Bus failure", t, WithMocks(t, func(bus *mocks.MockBus, radio *SX1276) {
		bus.EXPECT().TransferAndReceiveData([]byte{REG_VERSION, 0x00}).Return(errors.New("spi"))

		So(radio.SelfTest(), ShouldNotBeNil)
	}))
}

func TestRegisterAccess(t *testing.T) {
	Convey("Read", t, WithMocks(t, func(bus *mocks.MockBus, radio *SX1276) {
		bus.EXPECT().TransferAndReceiveData([]byte{0x1a, 0x00}).Return(nil).SetArg(0, []byte{0x00, 0x73})

		ret, err := radio.ReadRegister(0x1a)
		So(err, ShouldBeNil)
		So(ret, ShouldEqual, 0x73)
	}))
	Convey("Write", t, WithMocks(t, func(bus *mocks.MockBus, radio *SX1276) {
		bus.EXPECT().TransferAndReceiveData([]byte{REG_SYNC_WORD | WRITE, 0x2b}).Return(nil)

		So(radio.SetSyncWord(0x2b), ShouldBeNil)
	}))
	Convey("Mode", t, WithMocks(t, func(bus *mocks.MockBus, radio *SX1276) {
		gomock.InOrder(
			bus.EXPECT().TransferAndReceiveData([]byte{REG_OP_MODE | WRITE, 0x80}).Return(nil),
			bus.EXPECT().TransferAndReceiveData([]byte{REG_OP_MODE | WRITE, 0x81}).Return(nil),
		)
		So(radio.Sleep(), ShouldBeNil)
		So(radio.Idle(), ShouldBeNil)
	}))
}

func TestReset(t *testing.T) {
	Convey("Reset pulses the reset line low", t, func() {
		mock := gomock.NewController(t)
		defer mock.Finish()
		pin := mocks.NewMockPin(mock)
		radio := NewSX1276(mocks.NewMockBus(mock), pin, nil)

		gomock.InOrder(
			pin.EXPECT().Write(0).Return(nil),
			pin.EXPECT().Write(1).Return(nil),
		)
		So(radio.Reset(), ShouldBeNil)
	})
	Convey("Reset without a pin is a no-op", t, WithMocks(t, func(bus *mocks.MockBus, radio *SX1276) {
		So(radio.Reset(), ShouldBeNil)
	}))
}

func TestConfigure(t *testing.T) {
	Convey("LongFast", t, WithRegisters(t, func(regs *registers, radio *SX1276) {
		So(radio.Configure(capture.LongFastUS), ShouldBeNil)

		So(regs.regs[REG_OP_MODE], ShouldEqual, 0x81)
		So(regs.regs[REG_FRF_MSB], ShouldEqual, 0xe2)
		So(regs.regs[REG_FRF_MID], ShouldEqual, 0xb8)
		So(regs.regs[REG_FRF_LSB], ShouldEqual, 0x00)
		So(regs.regs[REG_LNA], ShouldEqual, 0x23)
		So(regs.regs[REG_SYNC_WORD], ShouldEqual, 0x2b)
		So(regs.regs[REG_PREAMBLE_MSB], ShouldEqual, 0x00)
		So(regs.regs[REG_PREAMBLE_LSB], ShouldEqual, 16)
		So(regs.regs[REG_DETECTION_OPTIMIZE], ShouldEqual, 0xc3)
		So(regs.regs[REG_DETECTION_THRESHOLD], ShouldEqual, 0x0a)
		// 250kHz, 4/5, explicit header.
		So(regs.regs[REG_MODEM_CONFIG_1], ShouldEqual, 0x82)
		So(regs.regs[REG_MODEM_CONFIG_2], ShouldEqual, 0xb0)
		// AGC on, low data rate optimisation off.
		So(regs.regs[REG_MODEM_CONFIG_3], ShouldEqual, 0x04)
	}))

	Convey("Slow channel enables low data rate optimisation", t, WithRegisters(t, func(regs *registers, radio *SX1276) {
		ch := capture.Channel{
			Frequency:       433175000,
			Bandwidth:       125000,
			SpreadingFactor: 12,
			CodingRate:      8,
			SyncWord:        0x12,
			PreambleLength:  8,
		}
		So(radio.Configure(ch), ShouldBeNil)

		So(regs.regs[REG_FRF_MSB], ShouldEqual, 0x6c)
		So(regs.regs[REG_FRF_MID], ShouldEqual, 0x4b)
		So(regs.regs[REG_FRF_LSB], ShouldEqual, 0x33)
		So(regs.regs[REG_MODEM_CONFIG_1], ShouldEqual, 0x78)
		So(regs.regs[REG_MODEM_CONFIG_2], ShouldEqual, 0xc0)
		So(regs.regs[REG_MODEM_CONFIG_3], ShouldEqual, 0x0c)
	}))

	Convey("Missing chip", t, WithRegisters(t, func(regs *registers, radio *SX1276) {
		regs.regs[REG_VERSION] = 0xff
		So(radio.Configure(capture.LongFastUS), ShouldNotBeNil)
		So(regs.writes, ShouldBeEmpty)
	}))
}

func TestPoll(t *testing.T) {
	Convey("No frame arms a single reception", t, WithRegisters(t, func(regs *registers, radio *SX1276) {
		n, err := radio.Poll()
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 0)
		So(regs.regs[REG_OP_MODE], ShouldEqual, 0x86)

		Convey("and does not re-arm while receiving", func() {
			n, err := radio.Poll()
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
			So(regs.writes[REG_OP_MODE], ShouldEqual, 1)
		})
	}))

	Convey("Received frame", t, WithRegisters(t, func(regs *registers, radio *SX1276) {
		copy(regs.fifo[0x20:], []byte{0x01, 0x02, 0x03})
		regs.regs[REG_IRQ_FLAGS] = IRQ_RX_DONE_MASK
		regs.regs[REG_RX_NB_BYTES] = 3
		regs.regs[REG_FIFO_RX_CURRENT_ADDR] = 0x20

		n, err := radio.Poll()
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 3)
		So(regs.regs[REG_IRQ_FLAGS], ShouldEqual, 0)
		So(regs.regs[REG_OP_MODE], ShouldEqual, 0x81)

		var got []byte
		for {
			b, err := radio.ReadByte()
			if err == io.EOF {
				break
			}
			So(err, ShouldBeNil)
			got = append(got, b)
		}
		So(got, ShouldResemble, []byte{0x01, 0x02, 0x03})
	}))

	Convey("Frames with a bad CRC are dropped", t, WithRegisters(t, func(regs *registers, radio *SX1276) {
		regs.regs[REG_IRQ_FLAGS] = IRQ_RX_DONE_MASK | IRQ_PAYLOAD_CRC_ERROR_MASK
		regs.regs[REG_RX_NB_BYTES] = 3

		n, err := radio.Poll()
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 0)
		So(regs.regs[REG_IRQ_FLAGS], ShouldEqual, 0)

		_, err = radio.ReadByte()
		So(err, ShouldEqual, io.EOF)
	}))
}

func TestSignalQuality(t *testing.T) {
	Convey("High frequency port", t, WithMocks(t, func(bus *mocks.MockBus, radio *SX1276) {
		radio.frequency = 906875000
		gomock.InOrder(
			bus.EXPECT().TransferAndReceiveData([]byte{REG_PKT_RSSI_VALUE, 0x00}).Return(nil).SetArg(0, []byte{0x00, 115}),
			bus.EXPECT().TransferAndReceiveData([]byte{REG_RSSI_VALUE, 0x00}).Return(nil).SetArg(0, []byte{0x00, 77}),
			bus.EXPECT().TransferAndReceiveData([]byte{REG_PKT_SNR_VALUE, 0x00}).Return(nil).SetArg(0, []byte{0x00, 28}),
			bus.EXPECT().TransferAndReceiveData([]byte{REG_PKT_SNR_VALUE, 0x00}).Return(nil).SetArg(0, []byte{0x00, 0xf0}),
		)

		rssi, err := radio.PacketRSSI()
		So(err, ShouldBeNil)
		So(rssi, ShouldEqual, -42)

		current, err := radio.RSSI()
		So(err, ShouldBeNil)
		So(current, ShouldEqual, -80)

		snr, err := radio.PacketSNR()
		So(err, ShouldBeNil)
		So(snr, ShouldEqual, 7.0)

		snr, err = radio.PacketSNR()
		So(err, ShouldBeNil)
		So(snr, ShouldEqual, -4.0)
	}))

	Convey("Low frequency port", t, WithMocks(t, func(bus *mocks.MockBus, radio *SX1276) {
		radio.frequency = 433175000
		bus.EXPECT().TransferAndReceiveData([]byte{REG_PKT_RSSI_VALUE, 0x00}).Return(nil).SetArg(0, []byte{0x00, 100})

		rssi, err := radio.PacketRSSI()
		So(err, ShouldBeNil)
		So(rssi, ShouldEqual, -64)
	}))
}
