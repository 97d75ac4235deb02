package loratap

import (
	"encoding/binary"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

var longFastHeader = []byte{
	0x00, 0x00,
	0x00, 0x0f,
	0x36, 0x0d, 0xd0, 0x78,
	0x02,
	0x0b,
	0xd6,
	0xff,
	0xb0,
	0x07,
	0x2b,
}

func TestMarshal(t *testing.T) {
	Convey("Header for the LongFast channel", t, func() {
		h := New(906875000, 250000, 11, 0x2b, -42, -80, 7)
		b, err := h.MarshalBinary()
		So(err, ShouldBeNil)

		Convey("is exactly HeaderLength bytes", func() {
			So(len(b), ShouldEqual, HeaderLength)
		})
		Convey("matches the expected wire bytes", func() {
			So(b, ShouldResemble, longFastHeader)
		})
		Convey("carries a big-endian length of 15", func() {
			So(binary.BigEndian.Uint16(b[2:4]), ShouldEqual, 15)
		})
		Convey("has zero version and padding", func() {
			So(b[0], ShouldEqual, 0)
			So(b[1], ShouldEqual, 0)
		})
		Convey("marks max_rssi unavailable", func() {
			So(b[11], ShouldEqual, 0xff)
		})
	})

	Convey("AppendBinary preserves the destination prefix", t, func() {
		h := New(868100000, 125000, 7, 0x34, 0, 0, 0)
		b := h.AppendBinary([]byte{0xaa})
		So(len(b), ShouldEqual, HeaderLength+1)
		So(b[0], ShouldEqual, 0xaa)
		So(binary.BigEndian.Uint32(b[5:9]), ShouldEqual, 868100000)
		So(b[9], ShouldEqual, 1)
	})
}

func TestUnmarshal(t *testing.T) {
	Convey("Round trip", t, func() {
		in := New(433175000, 500000, 12, 0x12, -120, -128, -15)
		b, _ := in.MarshalBinary()

		var out Header
		So(out.UnmarshalBinary(b), ShouldBeNil)
		So(out, ShouldResemble, in)
		So(out.BandwidthHz(), ShouldEqual, 500000)
	})

	Convey("Known bytes decode to the expected fields", t, func() {
		var h Header
		So(h.UnmarshalBinary(longFastHeader), ShouldBeNil)
		So(h.Frequency, ShouldEqual, 906875000)
		So(h.Bandwidth, ShouldEqual, 2)
		So(h.SpreadingFactor, ShouldEqual, 11)
		So(h.PacketRSSI, ShouldEqual, -42)
		So(h.CurrentRSSI, ShouldEqual, -80)
		So(h.SNR, ShouldEqual, 7)
		So(h.SyncWord, ShouldEqual, 0x2b)
	})

	Convey("Short buffers are rejected", t, func() {
		var h Header
		So(h.UnmarshalBinary(longFastHeader[:14]), ShouldEqual, ErrShortHeader)
	})

	Convey("Non-zero version is rejected", t, func() {
		b := append([]byte{}, longFastHeader...)
		b[0] = 1
		var h Header
		err := h.UnmarshalBinary(b)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, ErrVersion.Error())
	})

	Convey("Unexpected length is rejected", t, func() {
		b := append([]byte{}, longFastHeader...)
		b[3] = 0x10
		var h Header
		err := h.UnmarshalBinary(b)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, ErrLength.Error())
	})
}

func TestClampInt8(t *testing.T) {
	Convey("Values in range are kept", t, func() {
		So(ClampInt8(-42), ShouldEqual, -42)
		So(ClampInt8(127), ShouldEqual, 127)
	})
	Convey("Values out of range saturate", t, func() {
		So(ClampInt8(-139), ShouldEqual, -128)
		So(ClampInt8(300), ShouldEqual, 127)
	})
}

func TestIsPrefix(t *testing.T) {
	Convey("IsPrefix", t, func() {
		So(IsPrefix(longFastHeader), ShouldBeTrue)
		So(IsPrefix([]byte{0x00, 0x00, 0x00}), ShouldBeFalse)
		So(IsPrefix([]byte("Starting LoRa failed!")), ShouldBeFalse)
	})
}
