//go:build !pcap
// +build !pcap

package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureLive_Disabled(t *testing.T) {
	err := CaptureLive(context.Background(), "lo", 5600, NewPump(&captureSink{}, 0))
	assert.ErrorIs(t, err, ErrCaptureDisabled)
}
