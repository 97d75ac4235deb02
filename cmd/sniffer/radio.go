package main

import (
	"fmt"
	"strconv"

	"github.com/hatstand/lorasniffer/capture"
)

func parsePin(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid GPIO number %q: %w", s, err)
	}
	return n, nil
}

// brokenRadio stands in for hardware that could not be opened.
type brokenRadio struct {
	err error
}

func (r brokenRadio) Configure(capture.Channel) error { return r.err }
func (r brokenRadio) Poll() (int, error)               { return 0, r.err }
func (r brokenRadio) ReadByte() (byte, error)          { return 0, r.err }
func (r brokenRadio) PacketRSSI() (int, error)         { return 0, r.err }
func (r brokenRadio) RSSI() (int, error)               { return 0, r.err }
func (r brokenRadio) PacketSNR() (float64, error)      { return 0, r.err }
