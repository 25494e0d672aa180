package transport

import (
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const socketBufferSize = 4 * 1024 * 1024

// Transport is a UDP socket carrying the datagrams of one node.
type Transport struct {
	conn *net.UDPConn
}

// Listen opens a UDP socket on addr. A non-zero trafficClass is applied as
// the IPv4 TOS and the IPv6 traffic class of outgoing datagrams.
func Listen(addr netip.AddrPort, trafficClass int) (*Transport, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	// Size socket buffers for burst absorption.
	_ = conn.SetReadBuffer(socketBufferSize)
	_ = conn.SetWriteBuffer(socketBufferSize)

	if trafficClass != 0 {
		if err := setTrafficClass(conn, addr, trafficClass); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return &Transport{conn: conn}, nil
}

func setTrafficClass(conn *net.UDPConn, addr netip.AddrPort, trafficClass int) error {
	if addr.Addr().Is4() {
		if err := ipv4.NewConn(conn).SetTOS(trafficClass); err != nil {
			return fmt.Errorf("failed to set TOS: %w", err)
		}
		return nil
	}
	if err := ipv6.NewConn(conn).SetTrafficClass(trafficClass); err != nil {
		return fmt.Errorf("failed to set traffic class: %w", err)
	}
	// dual-stack sockets also carry IPv4 traffic
	_ = ipv4.NewConn(conn).SetTOS(trafficClass)
	return nil
}

// ReadFrom reads one datagram. IPv4-mapped source addresses are unmapped.
func (t *Transport) ReadFrom(b []byte) (int, netip.AddrPort, error) {
	n, addr, err := t.conn.ReadFromUDPAddrPort(b)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	return n, netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port()), nil
}

func (t *Transport) WriteTo(b []byte, addr netip.AddrPort) error {
	_, err := t.conn.WriteToUDPAddrPort(b, addr)
	return err
}

func (t *Transport) LocalAddr() netip.AddrPort {
	return t.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

func (t *Transport) Close() error {
	return t.conn.Close()
}
