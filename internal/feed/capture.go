//go:build pcap
// +build pcap

package feed

import (
	"context"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// CaptureLive sniffs detection datagrams for UDP port on iface and feeds
// them to pump until ctx is done. It needs libpcap and capture privileges
// and is only available when building with the 'pcap' build tag.
func CaptureLive(ctx context.Context, iface string, port int, pump *Pump) error {
	handle, err := pcap.OpenLive(iface, maxDatagram, true, pcap.BlockForever)
	if err != nil {
		return fmt.Errorf("failed to open %s for capture: %w", iface, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp dst port %d", port)
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filter, err)
	}
	logf("capturing on %s with filter %q", iface, filter)

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case packet, ok := <-source.Packets():
			if !ok {
				return nil
			}
			payload, ok := udpPayload(packet, port)
			if !ok {
				continue
			}
			if err := pump.Handle(payload); err != nil {
				logf("rejected captured payload: %v", err)
			}
		}
	}
}
