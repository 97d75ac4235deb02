// Command sniffer receives LoRa frames on a fixed channel and streams them,
// wrapped in LoRaTap headers, to a serial port.
package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/hatstand/lorasniffer"
	"github.com/hatstand/lorasniffer/capture"
	"github.com/hatstand/lorasniffer/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

var (
	hal          = flag.String("hal", "embd", "Hardware access layer: embd or periph")
	spiChannel   = flag.Int("spi-channel", 0, "SPI chip select (embd)")
	spiName      = flag.String("spi", "", "SPI port name, empty for the first one (periph)")
	speed        = flag.Int("speed", 8000000, "SPI clock in Hz")
	resetPin     = flag.String("reset", "25", "Reset GPIO: BCM number (embd) or name (periph), empty to skip")
	port         = flag.String("port", "/dev/ttyGS0", "Serial port for the capture stream, - for stdout")
	baud         = flag.Int("baud", 9600, "Serial baud rate")
	pollInterval = flag.Duration("poll-interval", time.Millisecond, "Wait after an empty poll")
	metricsAddr  = flag.String("metrics", "", "Address to serve Prometheus metrics on")
	debug        = flag.Bool("debug", false, "Verbose logging")
	logFile      = flag.String("log-file", "", "Log to a rotated file")
	gcloud       = flag.String("gcloud-project", "", "Send logs to Cloud Logging in this project")
)

func openRadio(log *zap.Logger) (*lorasniffer.SX1276, error) {
	var bus lorasniffer.Bus
	var reset lorasniffer.Pin
	var err error
	switch *hal {
	case "periph":
		bus, err = lorasniffer.OpenPeriphBus(*spiName, int64(*speed))
		if err == nil && *resetPin != "" {
			reset, err = lorasniffer.OpenPeriphPin(*resetPin)
		}
	default:
		bus, err = lorasniffer.OpenEmbdBus(byte(*spiChannel), *speed)
		if err == nil && *resetPin != "" {
			var n int
			if n, err = parsePin(*resetPin); err == nil {
				reset, err = lorasniffer.OpenEmbdPin(n)
			}
		}
	}
	if err != nil {
		if bus != nil {
			bus.Close()
		}
		return nil, err
	}
	return lorasniffer.NewSX1276(bus, reset, log), nil
}

func openSink() (io.WriteCloser, error) {
	if *port == "-" {
		return os.Stdout, nil
	}
	return serial.Open(*port, &serial.Mode{BaudRate: *baud})
}

func main() {
	flag.Parse()

	log, err := logging.New(logging.Options{Debug: *debug, File: *logFile, GCloudProject: *gcloud})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	metrics := capture.NewMetrics(reg)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	sink, err := openSink()
	if err != nil {
		log.Fatal("Failed to open serial port", zap.String("port", *port), zap.Error(err))
	}
	defer sink.Close()

	// A radio that cannot be opened is reported the same way as one that
	// cannot be configured.
	var radio capture.Radio
	sx, err := openRadio(log)
	if err != nil {
		log.Error("Failed to open radio", zap.Error(err))
		radio = brokenRadio{err}
	} else {
		defer sx.Close()
		radio = sx
	}

	framer := capture.NewFramer(radio, sink, capture.LongFastUS, capture.Options{
		Logger:       log,
		Metrics:      metrics,
		PollInterval: *pollInterval,
		OnConfigured: func() {
			if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
				log.Warn("Failed to notify systemd", zap.Error(err))
			}
		},
	})
	if err := framer.Run(ctx); err != nil {
		log.Error("Capture stopped", zap.Error(err))
	}
}
