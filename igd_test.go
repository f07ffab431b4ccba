package natpmp

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeGateway is an in-process NAT-PMP responder bound to a loopback UDP
// port. Response contents are configurable so tests can exercise
// refusals, router-assigned ports, and malformed frames without a real
// router.
type fakeGateway struct {
	conn net.PacketConn

	mu          sync.Mutex
	externalIP  [4]byte
	epoch       uint32
	resultCode  ResultCode
	publicPort  uint16 // 0 means echo the requested (or private) port
	grantedLife *uint32
	silent      bool   // drop requests instead of answering
	raw         []byte // when set, sent verbatim as the response
	spoof       bool   // first answer from a different source port

	publicAddrRecv int
	mapUDPRecv     int
	mapTCPRecv     int
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	g := &fakeGateway{
		conn:       conn,
		externalIP: [4]byte{203, 0, 113, 5},
		epoch:      5,
	}
	go g.serve()
	t.Cleanup(func() { _ = conn.Close() })
	return g
}

func (g *fakeGateway) port() int {
	return g.conn.LocalAddr().(*net.UDPAddr).Port
}

func (g *fakeGateway) client() *Client {
	return &Client{
		Gateway: net.IPv4(127, 0, 0, 1),
		Port:    g.port(),
		Timeout: time.Second,
	}
}

func (g *fakeGateway) serve() {
	buf := make([]byte, 64)
	for {
		n, src, err := g.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		resp, spoof := g.respond(buf[:n])
		if spoof {
			// A datagram from a source that is not the gateway's
			// address/port; clients must ignore it and keep waiting.
			if junk, err := net.ListenPacket("udp4", "127.0.0.1:0"); err == nil {
				_, _ = junk.WriteTo(make([]byte, mappingResponseLen), src)
				_ = junk.Close()
			}
		}
		if resp == nil {
			continue
		}
		_, _ = g.conn.WriteTo(resp, src)
	}
}

func (g *fakeGateway) respond(req []byte) (resp []byte, spoof bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	spoof = g.spoof

	if len(req) < 2 || req[0] != version {
		return nil, spoof
	}
	switch Opcode(req[1]) {
	case OpPublicAddress:
		g.publicAddrRecv++
	case OpMapUDP:
		g.mapUDPRecv++
	case OpMapTCP:
		g.mapTCPRecv++
	default:
		return nil, spoof
	}
	if g.silent {
		return nil, spoof
	}
	if g.raw != nil {
		return g.raw, spoof
	}

	if Opcode(req[1]) == OpPublicAddress {
		resp = make([]byte, publicAddressResponseLen)
		resp[1] = byte(OpPublicAddress) | opReply
		binary.BigEndian.PutUint16(resp[2:4], uint16(g.resultCode))
		binary.BigEndian.PutUint32(resp[4:8], g.epoch)
		copy(resp[8:12], g.externalIP[:])
		return resp, spoof
	}

	if len(req) != mappingRequestLen {
		return nil, spoof
	}
	private := binary.BigEndian.Uint16(req[4:6])
	public := binary.BigEndian.Uint16(req[6:8])
	lifetime := binary.BigEndian.Uint32(req[8:12])
	if g.publicPort != 0 {
		public = g.publicPort
	} else if public == 0 {
		public = private
	}
	if g.grantedLife != nil {
		lifetime = *g.grantedLife
	}
	resp = make([]byte, mappingResponseLen)
	resp[1] = req[1] | opReply
	binary.BigEndian.PutUint16(resp[2:4], uint16(g.resultCode))
	binary.BigEndian.PutUint32(resp[4:8], g.epoch)
	binary.BigEndian.PutUint16(resp[8:10], private)
	binary.BigEndian.PutUint16(resp[10:12], public)
	binary.BigEndian.PutUint32(resp[12:16], lifetime)
	return resp, spoof
}

func (g *fakeGateway) setResultCode(code ResultCode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resultCode = code
}

func (g *fakeGateway) setPublicPort(port uint16) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.publicPort = port
}

func (g *fakeGateway) setGrantedLifetime(sec uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grantedLife = &sec
}

func (g *fakeGateway) setSilent(silent bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.silent = silent
}

func (g *fakeGateway) setRaw(raw []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.raw = raw
}

func (g *fakeGateway) setSpoof(spoof bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spoof = spoof
}

func (g *fakeGateway) counters() (publicAddr, mapUDP, mapTCP int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.publicAddrRecv, g.mapUDPRecv, g.mapTCPRecv
}
