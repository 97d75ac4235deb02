// Command recorder reads the sniffer's capture stream from a serial port and
// writes it to a pcap file for Wireshark.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hatstand/lorasniffer/capture"
	"github.com/hatstand/lorasniffer/logging"
	"github.com/hatstand/lorasniffer/recorder"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

var (
	port        = flag.String("p", "", "Serial port, defaults to the first one found")
	out         = flag.String("o", "", "Output pcap file, - for stdout")
	baud        = flag.Int("baud", 9600, "Serial baud rate")
	snaplen     = flag.Uint("snaplen", recorder.DefaultSnapLen, "pcap snap length")
	metricsAddr = flag.String("metrics", "", "Address to serve Prometheus metrics on")
	debug       = flag.Bool("debug", false, "Verbose logging")
	logFile     = flag.String("log-file", "", "Log to a rotated file")
)

func outputName(now time.Time) string {
	return now.Format("output-20060102-150405.pcap")
}

func firstPort() (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", errors.New("no serial ports found")
	}
	return ports[0], nil
}

func openOutput(name string) (io.WriteCloser, error) {
	if name == "-" {
		return os.Stdout, nil
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}
	return f, nil
}

func main() {
	flag.Parse()

	log, err := logging.New(logging.Options{Debug: *debug, File: *logFile})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

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

	if *port == "" {
		if *port, err = firstPort(); err != nil {
			log.Fatal("Failed to find a serial port", zap.Error(err))
		}
	}
	if *out == "" {
		*out = outputName(time.Now())
	}

	src, err := serial.Open(*port, &serial.Mode{BaudRate: *baud})
	if err != nil {
		log.Fatal("Failed to open serial port", zap.String("port", *port), zap.Error(err))
	}

	dst, err := openOutput(*out)
	if err != nil {
		log.Fatal("Failed to open output", zap.Error(err))
	}
	defer dst.Close()

	rec, err := recorder.New(dst, uint32(*snaplen), log)
	if err != nil {
		log.Fatal("Failed to start pcap", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Unblock the pending read on shutdown.
	go func() {
		<-ctx.Done()
		src.Close()
	}()

	log.Info("Recording", zap.String("port", *port), zap.String("output", *out))
	dec := capture.NewDecoder(src, log, metrics)
	n, err := rec.Copy(ctx, dec)
	if err != nil && ctx.Err() == nil {
		log.Error("Recording failed", zap.Error(err))
	}
	log.Info("Recording finished", zap.Int("records", n), zap.Int64("skipped_bytes", dec.Skipped()))
}
