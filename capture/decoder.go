package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hatstand/lorasniffer/loratap"
	"go.uber.org/zap"
)

// MaxPayload is the largest frame an SX127x FIFO can hold.
const MaxPayload = 255

var (
	ErrFrameTooLong = errors.New("capture: no end marker within max payload")
	ErrTruncated    = errors.New("capture: truncated record")
)

// Record is one captured frame as it appears on the stream.
type Record struct {
	Header  loratap.Header
	Payload []byte
	// Time is when the decoder first saw the record's end marker.
	Time time.Time
}

// Frame returns the header followed by the payload, without the end marker.
// This is the LoRaTap packet as stored in a pcap file.
func (r *Record) Frame() []byte {
	b := r.Header.AppendBinary(make([]byte, 0, loratap.HeaderLength+len(r.Payload)))
	return append(b, r.Payload...)
}

// Bytes returns the record's stream form.
func (r *Record) Bytes() []byte {
	return append(r.Frame(), loratap.EndMarker...)
}

// Decoder splits a capture stream into records.
//
// The header is delimited by its fixed length, never by scanning for the end
// marker, so header bytes that happen to equal 0xCF 0xCF are harmless. The
// payload carries no length and the marker is not escaped, so 0xCF 0xCF only
// ends a payload when it is followed by the end of the stream or by the start
// of another header. A payload that contains 0xCF 0xCF 0x00 0x00 0x00 0x0F is
// still cut short; the remainder is skipped while the decoder resynchronises.
type Decoder struct {
	r       *bufio.Reader
	log     *zap.Logger
	metrics *Metrics
	skipped int64

	// Now stamps decoded records. It defaults to time.Now.
	Now func() time.Time
}

var headerPrefix = []byte{loratap.Version, 0, 0, loratap.HeaderLength}

func NewDecoder(r io.Reader, log *zap.Logger, metrics *Metrics) *Decoder {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Decoder{
		r:       bufio.NewReaderSize(r, 4096),
		log:     log,
		metrics: metrics,
		Now:     time.Now,
	}
}

// Skipped returns the number of bytes discarded while resynchronising.
func (d *Decoder) Skipped() int64 {
	return d.skipped
}

func (d *Decoder) skip(n int) {
	d.r.Discard(n)
	d.count(n)
}

func (d *Decoder) count(n int) {
	d.skipped += int64(n)
	d.metrics.SkippedBytes.Add(float64(n))
}

// sync discards bytes until the reader is positioned at a header prefix.
func (d *Decoder) sync() error {
	var dropped int
	defer func() {
		if dropped > 0 {
			d.log.Debug("Resynchronised", zap.Int("skipped", dropped))
		}
	}()
	for {
		prefix, err := d.r.Peek(4)
		if loratap.IsPrefix(prefix) {
			return nil
		}
		if err != nil {
			if len(prefix) > 0 {
				d.skip(len(prefix))
				dropped += len(prefix)
			}
			return err
		}
		d.skip(1)
		dropped++
	}
}

// Next returns the next record. It returns io.EOF once the stream ends
// cleanly, and ErrTruncated if it ends mid-record.
func (d *Decoder) Next() (*Record, error) {
	for {
		if err := d.sync(); err != nil {
			return nil, err
		}

		raw, err := d.r.Peek(loratap.HeaderLength)
		if err != nil {
			if err == io.EOF {
				d.skip(len(raw))
				return nil, ErrTruncated
			}
			return nil, err
		}
		var rec Record
		// Cannot fail: sync has matched the version, padding and length.
		if err := rec.Header.UnmarshalBinary(raw); err != nil {
			return nil, err
		}
		d.r.Discard(loratap.HeaderLength)

		payload, ts, err := d.readPayload()
		if err == ErrFrameTooLong {
			d.log.Debug("Dropping record without end marker", zap.String("header", rec.Header.String()))
			continue
		}
		if err != nil {
			return nil, err
		}
		rec.Payload = payload
		rec.Time = ts
		d.metrics.Records.Inc()
		return &rec, nil
	}
}

// atBoundary reports whether the reader is at the end of the stream or at the
// start of another record.
func (d *Decoder) atBoundary() bool {
	next, err := d.r.Peek(len(headerPrefix))
	if loratap.IsPrefix(next) {
		return true
	}
	return err != nil && bytes.HasPrefix(headerPrefix, next)
}

// readPayload reads up to and including the end marker. A marker that is not
// followed by a record boundary is taken as payload, but remembered: if the
// stream ends or the payload overruns, the record is cut at the last one seen.
func (d *Decoder) readPayload() ([]byte, time.Time, error) {
	var payload []byte
	var seen time.Time
	end := -1
	cut := func() ([]byte, time.Time, error) {
		d.count(len(payload) - end - len(loratap.EndMarker))
		return payload[:end], seen, nil
	}
	for {
		b, err := d.r.ReadByte()
		if err == io.EOF {
			if end >= 0 {
				return cut()
			}
			d.count(len(payload))
			return nil, seen, ErrTruncated
		}
		if err != nil {
			return nil, seen, fmt.Errorf("read payload: %w", err)
		}
		payload = append(payload, b)
		if bytes.HasSuffix(payload, loratap.EndMarker) {
			if seen.IsZero() {
				seen = d.Now()
			}
			n := len(payload) - len(loratap.EndMarker)
			if d.atBoundary() {
				return payload[:n], seen, nil
			}
			end = n
		}
		if len(payload) > MaxPayload+len(loratap.EndMarker) {
			if end >= 0 {
				return cut()
			}
			d.count(len(payload))
			return nil, seen, ErrFrameTooLong
		}
	}
}
