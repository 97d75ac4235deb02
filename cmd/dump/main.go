package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hatstand/lorasniffer/capture"
	"github.com/hatstand/lorasniffer/logging"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

var port = flag.String("p", "/dev/ttyACM0", "Serial port, - for stdin")
var baud = flag.Int("baud", 9600, "Serial baud rate")
var debug = flag.Bool("debug", false, "Verbose logging")

func dumpRecord(w io.Writer, rec *capture.Record) {
	fmt.Fprintf(w, "%s\n%s\n", rec.Header, hex.EncodeToString(rec.Payload))
}

func dump(r io.Reader, w io.Writer, log *zap.Logger) error {
	dec := capture.NewDecoder(r, log, nil)
	for {
		rec, err := dec.Next()
		if err == io.EOF || errors.Is(err, capture.ErrTruncated) {
			return nil
		}
		if err != nil {
			return err
		}
		dumpRecord(w, rec)
	}
}

func main() {
	flag.Parse()

	log, err := logging.New(logging.Options{Debug: *debug})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var src io.Reader = os.Stdin
	if *port != "-" {
		p, err := serial.Open(*port, &serial.Mode{BaudRate: *baud})
		if err != nil {
			log.Fatal("Failed to open serial port", zap.String("port", *port), zap.Error(err))
		}
		defer p.Close()
		src = p
	}

	if err := dump(src, os.Stdout, log); err != nil {
		log.Fatal("Failed to read capture stream", zap.Error(err))
	}
}
