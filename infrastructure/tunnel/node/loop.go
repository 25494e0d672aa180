package node

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"time"
)

// Transport carries datagrams between nodes.
type Transport interface {
	ReadFrom(b []byte) (int, netip.AddrPort, error)
	WriteTo(b []byte, addr netip.AddrPort) error
	Close() error
}

const tickInterval = 100 * time.Millisecond

type datagram struct {
	data []byte
	from netip.AddrPort
}

// Run drives the node over transport until ctx is cancelled. Outgoing
// datagrams are flushed after every received datagram and every tick.
func (n *Node) Run(ctx context.Context, transport Transport) error {
	inbound := make(chan datagram, framesBuffer)
	readErr := make(chan error, 1)

	go func() {
		<-ctx.Done()
		_ = transport.Close()
	}()

	go func() {
		var buffer [MaxDatagramSize]byte
		for {
			size, from, err := transport.ReadFrom(buffer[:])
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					readErr <- nil
					return
				}
				n.logger.Printf("failed to read from UDP: %s", err)
				continue
			}
			if size == 0 {
				continue
			}
			n.traffic.AddRX(size)
			data := make([]byte, size)
			copy(data, buffer[:size])
			select {
			case inbound <- datagram{data: data, from: from}:
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	n.Tick()
	n.flush(transport)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case d := <-inbound:
			n.InputPacket(d.data, d.from)
		case <-ticker.C:
			n.Tick()
		case <-n.wake:
		}
		n.flush(transport)
	}
}

func (n *Node) flush(transport Transport) {
	for {
		data, addr, ok := n.OutputPacket()
		if !ok {
			return
		}
		if err := transport.WriteTo(data, addr); err != nil {
			n.debug.Printf("failed to send %d bytes to %s: %s", len(data), addr, err)
			continue
		}
		n.traffic.AddTX(len(data))
	}
}
