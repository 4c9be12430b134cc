//go:build !pcap
// +build !pcap

package feed

import (
	"context"
	"errors"
)

// ErrCaptureDisabled is returned by CaptureLive in builds without libpcap.
var ErrCaptureDisabled = errors.New("live capture not enabled: rebuild with -tags=pcap")

// CaptureLive is a stub used when live capture support is disabled.
func CaptureLive(ctx context.Context, iface string, port int, pump *Pump) error {
	return ErrCaptureDisabled
}
