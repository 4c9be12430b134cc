package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// maxDatagram bounds a single detection datagram.
const maxDatagram = 64 * 1024

// UDPListenerConfig configures a UDPListener.
type UDPListenerConfig struct {
	// Address is the host:port to bind, e.g. ":5600".
	Address string
	// RcvBuf is the socket receive buffer in bytes; zero keeps the OS default.
	RcvBuf int
	// Pump parses and forwards datagrams.
	Pump *Pump
}

// UDPListener receives one JSON detection payload per datagram.
type UDPListener struct {
	address string
	rcvBuf  int
	pump    *Pump

	mu   sync.Mutex
	conn *net.UDPConn
}

// NewUDPListener creates a listener; call Start to bind and receive.
func NewUDPListener(cfg UDPListenerConfig) *UDPListener {
	return &UDPListener{address: cfg.Address, rcvBuf: cfg.RcvBuf, pump: cfg.Pump}
}

// Start binds the socket and receives datagrams until ctx is done.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			logf("failed to set UDP receive buffer to %d: %v", l.rcvBuf, err)
		}
	}
	logf("UDP listener started on %s", conn.LocalAddr())

	buf := make([]byte, maxDatagram)
	for {
		if ctx.Err() != nil {
			logf("UDP listener stopping")
			return ctx.Err()
		}
		// short deadline so cancellation is observed promptly
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logf("UDP read error: %v", err)
			continue
		}
		if err := l.pump.Handle(buf[:n]); err != nil {
			logf("rejected datagram from %v: %v", from, err)
		}
	}
}

// LocalAddr returns the bound address once Start has bound the socket.
func (l *UDPListener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Close releases the socket.
func (l *UDPListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
