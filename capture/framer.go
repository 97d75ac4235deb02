// Package capture implements the sniffer's capture loop: it polls a LoRa radio
// for frames and writes each one to a byte sink as a stream record
//
//	LoRaTap header (15 bytes) ++ payload ++ 0xCF 0xCF
//
// and, on the host side, splits such a stream back into records.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hatstand/lorasniffer/loratap"
	"go.uber.org/zap"
)

// FailureNotice is written to the sink once if the radio cannot be set up.
const FailureNotice = "Starting LoRa failed!\r\n"

var ErrRadioInit = errors.New("radio initialisation failed")

// Radio is the driver side of the capture loop.
type Radio interface {
	Configure(ch Channel) error
	// Poll returns the length of a newly received frame, or 0 if none is
	// waiting. It never blocks.
	Poll() (int, error)
	// ReadByte returns the next byte of the current frame, or io.EOF once the
	// frame is exhausted.
	ReadByte() (byte, error)
	PacketRSSI() (int, error)
	RSSI() (int, error)
	PacketSNR() (float64, error)
}

type Options struct {
	Logger  *zap.Logger
	Metrics *Metrics
	// PollInterval is how long Run waits after an empty poll.
	PollInterval time.Duration
	// OnConfigured is called once after the radio has been configured.
	OnConfigured func()
}

// Framer owns a radio and a sink for its whole lifetime. It is not safe for
// concurrent use.
type Framer struct {
	radio   Radio
	sink    io.Writer
	buf     []byte
	channel Channel
	log     *zap.Logger
	metrics *Metrics
	opts    Options
}

func NewFramer(radio Radio, sink io.Writer, ch Channel, opts Options) *Framer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Framer{
		radio:   radio,
		sink:    sink,
		channel: ch,
		log:     opts.Logger,
		metrics: opts.Metrics,
		opts:    opts,
	}
}

// Setup configures the radio. It is attempted exactly once.
func (f *Framer) Setup() error {
	f.log.Info("Configuring radio",
		zap.Uint32("frequency", f.channel.Frequency),
		zap.Uint32("bandwidth", f.channel.Bandwidth),
		zap.Uint8("sf", f.channel.SpreadingFactor),
		zap.Uint8("cr", f.channel.CodingRate),
		zap.Uint8("sync_word", f.channel.SyncWord),
		zap.Uint16("preamble", f.channel.PreambleLength))
	if err := f.radio.Configure(f.channel); err != nil {
		return fmt.Errorf("%w: %v", ErrRadioInit, err)
	}
	return nil
}

// PollOnce polls the radio and, if a frame is waiting, writes its record to
// the sink. It reports whether a record was written. No bytes are written when
// no frame is available.
func (f *Framer) PollOnce() (bool, error) {
	n, err := f.radio.Poll()
	if err != nil {
		return false, fmt.Errorf("poll: %w", err)
	}
	if n <= 0 {
		return false, nil
	}

	packetRSSI, err := f.radio.PacketRSSI()
	if err != nil {
		return false, fmt.Errorf("packet rssi: %w", err)
	}
	rssi, err := f.radio.RSSI()
	if err != nil {
		return false, fmt.Errorf("rssi: %w", err)
	}
	snr, err := f.radio.PacketSNR()
	if err != nil {
		return false, fmt.Errorf("snr: %w", err)
	}
	header := Header(f.channel, packetRSSI, rssi, snr)

	// Each record goes out in a single write.
	f.buf = header.AppendBinary(f.buf[:0])
	// Drain whatever the radio yields; n is only a hint.
	var readErr error
	for {
		b, err := f.radio.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = fmt.Errorf("read payload byte %d: %w", len(f.buf)-loratap.HeaderLength, err)
			break
		}
		f.buf = append(f.buf, b)
	}
	drained := len(f.buf) - loratap.HeaderLength
	f.buf = append(f.buf, loratap.EndMarker...)

	if _, err := f.sink.Write(f.buf); err != nil {
		if readErr != nil {
			f.log.Warn("Failed to terminate partial record", zap.Error(err))
			return false, readErr
		}
		return false, fmt.Errorf("write record: %w", err)
	}
	if readErr != nil {
		// The partial record is still terminated so the stream stays delimited.
		return false, readErr
	}

	if drained != n {
		f.log.Debug("Frame length mismatch", zap.Int("polled", n), zap.Int("drained", drained))
	}
	f.log.Debug("Captured frame",
		zap.Int("length", drained),
		zap.Int("rssi", packetRSSI),
		zap.Int("current_rssi", rssi),
		zap.Float64("snr", snr))
	f.metrics.Frames.Inc()
	f.metrics.PayloadBytes.Add(float64(drained))
	f.metrics.PacketRSSI.Set(float64(packetRSSI))
	f.metrics.PacketSNR.Set(snr)
	return true, nil
}

// Run configures the radio and then captures frames until ctx is cancelled.
//
// If configuration fails, Run writes FailureNotice to the sink, then idles
// until ctx is cancelled and returns an error wrapping ErrRadioInit. There are
// no retries.
func (f *Framer) Run(ctx context.Context) error {
	if err := f.Setup(); err != nil {
		f.log.Error("Radio setup failed, halting", zap.Error(err))
		if _, err := f.sink.Write([]byte(FailureNotice)); err != nil {
			f.log.Warn("Failed to write failure notice", zap.Error(err))
		}
		<-ctx.Done()
		return err
	}
	if f.opts.OnConfigured != nil {
		f.opts.OnConfigured()
	}
	f.log.Info("Waiting for packets...")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		got, err := f.PollOnce()
		if err != nil {
			f.metrics.PollErrors.Inc()
			f.log.Warn("Capture failed", zap.Error(err))
		}
		if got || f.opts.PollInterval <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.opts.PollInterval):
		}
	}
}
