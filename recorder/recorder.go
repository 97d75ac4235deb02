// Package recorder writes captured LoRa frames to pcap files with the LoRaTap
// link type, readable by Wireshark.
package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"github.com/hatstand/lorasniffer/capture"
	"github.com/hatstand/lorasniffer/loratap"
	"go.uber.org/zap"
)

const DefaultSnapLen = 1024

const (
	magicMicroseconds = 0xa1b2c3d4
	versionMajor      = 2
	versionMinor      = 4
)

type Recorder struct {
	w       *pcapgo.Writer
	snaplen uint32
	log     *zap.Logger
}

// fileHeader is the pcap global header. pcapgo.Writer.WriteFileHeader takes an
// 8-bit layers.LinkType, which cannot carry LoRaTap's 270.
func fileHeader(snaplen uint32, linkType uint32) []byte {
	var buf [24]byte
	binary.LittleEndian.PutUint32(buf[0:4], magicMicroseconds)
	binary.LittleEndian.PutUint16(buf[4:6], versionMajor)
	binary.LittleEndian.PutUint16(buf[6:8], versionMinor)
	// Zone and sigfigs stay 0.
	binary.LittleEndian.PutUint32(buf[16:20], snaplen)
	binary.LittleEndian.PutUint32(buf[20:24], linkType)
	return buf[:]
}

// New writes the pcap file header to w.
func New(w io.Writer, snaplen uint32, log *zap.Logger) (*Recorder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := w.Write(fileHeader(snaplen, loratap.LinkType)); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Recorder{w: pcapgo.NewWriter(w), snaplen: snaplen, log: log}, nil
}

// Write appends one record, captured at ts. Frames longer than the snap
// length are truncated; the original length is kept.
func (r *Recorder) Write(rec *capture.Record, ts time.Time) error {
	data := rec.Frame()
	length := len(data)
	if uint32(len(data)) > r.snaplen {
		data = data[:r.snaplen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        length,
	}
	if err := r.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

// Copy reads records from dec and writes them, stamped with the time the
// decoder saw them end, until the stream ends or ctx is cancelled.
func (r *Recorder) Copy(ctx context.Context, dec *capture.Decoder) (int, error) {
	var n int
	for {
		select {
		case <-ctx.Done():
			return n, nil
		default:
		}

		rec, err := dec.Next()
		if err == io.EOF {
			return n, nil
		}
		if errors.Is(err, capture.ErrTruncated) {
			r.log.Warn("Stream ended mid-record")
			return n, nil
		}
		if err != nil {
			return n, err
		}

		if err := r.Write(rec, rec.Time); err != nil {
			return n, err
		}
		n++
		r.log.Debug("Recorded frame", zap.Int("length", len(rec.Payload)), zap.Stringer("header", rec.Header))
	}
}
