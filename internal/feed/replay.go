package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ReplayOptions controls ReplayPCAP.
type ReplayOptions struct {
	// Port selects datagrams by UDP destination port; zero accepts any port.
	Port int
	// Speed scales the recorded inter-packet gaps: 1 replays in real time,
	// 2 twice as fast. Zero or negative replays without pacing.
	Speed float64
}

// ReplayStats summarises a replay.
type ReplayStats struct {
	Packets  int `json:"packets"`
	Matched  int `json:"matched"`
	Rejected int `json:"rejected"`
}

// ReplayPCAP feeds the UDP payloads of a recorded capture file to pump. The
// file is read with the pure-Go pcapgo reader, so no libpcap is required.
func ReplayPCAP(ctx context.Context, path string, pump *Pump, opts ReplayOptions) (ReplayStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReplayStats{}, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	defer f.Close()
	return Replay(ctx, f, pump, opts)
}

// Replay is ReplayPCAP over an already open capture stream.
func Replay(ctx context.Context, r io.Reader, pump *Pump, opts ReplayOptions) (ReplayStats, error) {
	var stats ReplayStats
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return stats, fmt.Errorf("failed to read capture header: %w", err)
	}

	var prev time.Time
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			logf("replay complete: %d packets, %d detection payloads in %v", stats.Packets, stats.Matched, time.Since(start))
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.Default)
		payload, ok := udpPayload(packet, opts.Port)
		if !ok {
			continue
		}

		if opts.Speed > 0 && !prev.IsZero() {
			if gap := ci.Timestamp.Sub(prev); gap > 0 {
				if err := sleepCtx(ctx, time.Duration(float64(gap)/opts.Speed)); err != nil {
					return stats, err
				}
			}
		}
		prev = ci.Timestamp

		stats.Matched++
		if err := pump.Handle(payload); err != nil {
			stats.Rejected++
		}
	}
}

// udpPayload extracts the UDP payload of packet when its destination port
// matches port (any port when zero).
func udpPayload(packet gopacket.Packet, port int) ([]byte, bool) {
	layer := packet.Layer(layers.LayerTypeUDP)
	if layer == nil {
		return nil, false
	}
	udp, ok := layer.(*layers.UDP)
	if !ok || len(udp.Payload) == 0 {
		return nil, false
	}
	if port != 0 && int(udp.DstPort) != port {
		return nil, false
	}
	return udp.Payload, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
