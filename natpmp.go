// Package natpmp implements a client for version 0 of the NAT Port
// Mapping Protocol (NAT-PMP, RFC 6886), the UDP control protocol that
// lets a host on a private network ask its gateway for the gateway's
// public address and for time-limited TCP/UDP port mappings.
//
// The implementation is deliberately incomplete in two documented ways:
//
//   - It does not listen for the multicast address-change announcements a
//     gateway sends after rebooting.
//   - It does not serialize requests. Concurrent callers each use their
//     own ephemeral socket and race independently on the wire, which the
//     protocol draft tolerates but recommends against. Wrap operations in
//     a Queue for strict FIFO behavior.
package natpmp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Log carries package diagnostics. It discards everything by default;
// embedders can swap in their own logger.
var Log = zerolog.Nop()

const (
	// DefaultTimeout bounds the wait for a single response. NAT-PMP round
	// trips are local-network, so a few seconds is plenty.
	DefaultTimeout = 3 * time.Second

	// DefaultLifetime is the mapping lifetime requested when the caller
	// does not specify one.
	DefaultLifetime = time.Hour
)

// Protocol is the transport protocol of a mapping.
type Protocol string

const (
	UDP Protocol = "udp"
	TCP Protocol = "tcp"
)

func (p Protocol) opcode() (Opcode, error) {
	switch p {
	case UDP:
		return OpMapUDP, nil
	case TCP:
		return OpMapTCP, nil
	}
	return 0, fmt.Errorf("%w: unknown protocol %q", ErrInvalidRequest, string(p))
}

// Client issues NAT-PMP requests against a single gateway. The zero
// value auto-detects the gateway from the default route and uses
// DefaultTimeout.
//
// A Client holds no state between calls and no locks: each request owns
// an ephemeral UDP socket for the duration of one exchange.
type Client struct {
	// Gateway is the router's IPv4 address. When nil it is resolved per
	// call via GatewayFunc.
	Gateway net.IP

	// GatewayFunc overrides default-route detection. nil means
	// DefaultGateway.
	GatewayFunc GatewayFunc

	// Port overrides the well-known NAT-PMP port. Useful for tests.
	Port int

	// Timeout bounds the wait for each response. 0 means DefaultTimeout.
	Timeout time.Duration
}

func (c *Client) gateway() (net.IP, error) {
	if c.Gateway != nil {
		return c.Gateway, nil
	}
	fn := c.GatewayFunc
	if fn == nil {
		fn = DefaultGateway
	}
	return fn()
}

func (c *Client) port() int {
	if c.Port != 0 {
		return c.Port
	}
	return GatewayPort
}

func (c *Client) timeout() time.Duration {
	if c.Timeout != 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// GetPublicAddress asks the gateway for its public IPv4 address.
func (c *Client) GetPublicAddress(ctx context.Context) (*PublicAddressResult, error) {
	gw, err := c.gateway()
	if err != nil {
		return nil, err
	}
	resp, err := exchange(ctx, gw, c.port(), encodePublicAddressRequest(), c.timeout())
	if err != nil {
		return nil, err
	}
	res, err := decodePublicAddressResponse(resp)
	if err != nil {
		return nil, err
	}
	Log.Debug().IPAddr("gateway", gw).IPAddr("public", res.Addr).Msg("got public address")
	return res, nil
}

// MapPort asks the gateway to map publicPort to privatePort for the
// given protocol. publicPort 0 lets the gateway assign one; lifetime 0
// deletes the mapping. The returned public port and lifetime are what
// the gateway granted, which may differ from the requested values;
// callers must treat them as the authoritative mapping state.
func (c *Client) MapPort(ctx context.Context, proto Protocol, privatePort, publicPort uint16, lifetime time.Duration) (*MappingResult, error) {
	op, err := proto.opcode()
	if err != nil {
		return nil, err
	}
	if privatePort == 0 {
		return nil, fmt.Errorf("%w: private port must be nonzero", ErrInvalidRequest)
	}
	gw, err := c.gateway()
	if err != nil {
		return nil, err
	}
	req := encodeMappingRequest(op, privatePort, publicPort, uint32(lifetime/time.Second))
	resp, err := exchange(ctx, gw, c.port(), req, c.timeout())
	if err != nil {
		return nil, err
	}
	res, err := decodeMappingResponse(resp, proto)
	if err != nil {
		return nil, err
	}
	Log.Debug().
		Str("proto", string(proto)).
		Uint16("private", res.PrivatePort).
		Uint16("public", res.PublicPort).
		Dur("lifetime", res.Lifetime).
		Msg("mapped port")
	return res, nil
}

// MapUDPPort maps a UDP port. See MapPort.
func (c *Client) MapUDPPort(ctx context.Context, privatePort, publicPort uint16, lifetime time.Duration) (*MappingResult, error) {
	return c.MapPort(ctx, UDP, privatePort, publicPort, lifetime)
}

// MapTCPPort maps a TCP port. See MapPort.
func (c *Client) MapTCPPort(ctx context.Context, privatePort, publicPort uint16, lifetime time.Duration) (*MappingResult, error) {
	return c.MapPort(ctx, TCP, privatePort, publicPort, lifetime)
}

// UnmapPort deletes the mapping for privatePort by requesting it with a
// zero lifetime. A gateway reports a zero lifetime back on success.
func (c *Client) UnmapPort(ctx context.Context, proto Protocol, privatePort uint16) (*MappingResult, error) {
	return c.MapPort(ctx, proto, privatePort, 0, 0)
}
