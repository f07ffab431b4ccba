package natpmp

import (
	"context"
	"net"
	"time"
)

// exchange sends one request datagram to the gateway's NAT-PMP port and
// waits for one datagram back from that same source. The socket is an
// ephemeral udp4 port owned by this call alone, so concurrent exchanges
// never share state.
//
// Exactly one datagram is sent: the draft's retransmission schedule is
// left to callers (see Retry).
func exchange(ctx context.Context, gateway net.IP, port int, req []byte, timeout time.Duration) ([]byte, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	gwAddr := &net.UDPAddr{IP: gateway, Port: port}
	if _, err := conn.WriteTo(req, gwAddr); err != nil {
		return nil, err
	}

	buf := make([]byte, 256)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, ErrTimeout
			}
			return nil, err
		}
		// NAT-PMP is strictly unicast request/response: datagrams from
		// anyone but the gateway are dropped and the wait continues on
		// the residual deadline.
		udp, ok := src.(*net.UDPAddr)
		if !ok || !udp.IP.Equal(gateway) || udp.Port != port {
			Log.Debug().Stringer("from", src).Msg("ignoring datagram from unexpected source")
			continue
		}
		out := make([]byte, n)
		copy(out, buf[:n])
		return out, nil
	}
}
