package natpmp

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// Opcode selects the NAT-PMP operation.
type Opcode byte

const (
	OpPublicAddress Opcode = 0
	OpMapUDP        Opcode = 1
	OpMapTCP        Opcode = 2

	// opReply is ORed into the request opcode by the gateway.
	opReply = 0x80
)

const (
	version = 0

	// GatewayPort is the well-known UDP port NAT-PMP gateways listen on.
	GatewayPort = 5351

	publicAddressRequestLen  = 2
	publicAddressResponseLen = 12
	mappingRequestLen        = 12
	mappingResponseLen       = 16
)

// ResultCode is the outcome a gateway reports for a request. Any nonzero
// code is a protocol-level refusal, not a transport error.
type ResultCode uint16

const (
	ResultSuccess ResultCode = iota
	ResultUnsupportedVersion
	ResultNotAuthorized
	ResultNetworkFailure
	ResultOutOfResources
	ResultUnsupportedOpcode
)

func (c ResultCode) String() string {
	switch c {
	case ResultSuccess:
		return "success"
	case ResultUnsupportedVersion:
		return "unsupported protocol version"
	case ResultNotAuthorized:
		return "not authorized (NAT-PMP may be disabled on the gateway)"
	case ResultNetworkFailure:
		return "network failure (the gateway may not have an external address)"
	case ResultOutOfResources:
		return "out of resources (the gateway cannot create more mappings)"
	case ResultUnsupportedOpcode:
		return "unsupported opcode"
	}
	return fmt.Sprintf("result code %d", uint16(c))
}

// PublicAddressResult is the gateway's answer to a public address request.
type PublicAddressResult struct {
	Addr net.IP
	// Epoch is the gateway's seconds-since-mapping-table-reset counter at
	// response time. It regresses when the gateway reboots.
	Epoch time.Duration
}

// MappingResult is the gateway's answer to a mapping request. PublicPort
// and Lifetime are what the gateway actually granted; they may differ
// from the requested values and are the authoritative mapping state.
type MappingResult struct {
	Protocol    Protocol
	PrivatePort uint16
	PublicPort  uint16
	Lifetime    time.Duration
	Epoch       time.Duration
}

func encodePublicAddressRequest() []byte {
	return []byte{version, byte(OpPublicAddress)}
}

func encodeMappingRequest(op Opcode, privatePort, publicPort uint16, lifetimeSec uint32) []byte {
	pkt := make([]byte, mappingRequestLen)
	pkt[0] = version
	pkt[1] = byte(op)
	// pkt[2:4] is reserved, zero
	binary.BigEndian.PutUint16(pkt[4:6], privatePort)
	binary.BigEndian.PutUint16(pkt[6:8], publicPort)
	binary.BigEndian.PutUint32(pkt[8:12], lifetimeSec)
	return pkt
}

// checkHeader validates the fixed header shared by all responses. Frame
// checks run before the result code is read: a malformed frame cannot be
// trusted even for its result code. A well-formed frame with a nonzero
// result code yields a RefusedError carrying the exact code.
func checkHeader(data []byte, op Opcode, wantLen int) error {
	if len(data) != wantLen {
		return fmt.Errorf("%w: %d bytes, want %d", ErrMalformedResponse, len(data), wantLen)
	}
	if data[0] != version {
		return fmt.Errorf("%w: version %d", ErrMalformedResponse, data[0])
	}
	if data[1] != byte(op)|opReply {
		return fmt.Errorf("%w: opcode %#02x, want %#02x", ErrMalformedResponse, data[1], byte(op)|opReply)
	}
	if code := ResultCode(binary.BigEndian.Uint16(data[2:4])); code != ResultSuccess {
		return &RefusedError{Code: code}
	}
	return nil
}

func decodePublicAddressResponse(data []byte) (*PublicAddressResult, error) {
	if err := checkHeader(data, OpPublicAddress, publicAddressResponseLen); err != nil {
		return nil, err
	}
	return &PublicAddressResult{
		Addr:  net.IPv4(data[8], data[9], data[10], data[11]),
		Epoch: time.Duration(binary.BigEndian.Uint32(data[4:8])) * time.Second,
	}, nil
}

func decodeMappingResponse(data []byte, proto Protocol) (*MappingResult, error) {
	op, err := proto.opcode()
	if err != nil {
		return nil, err
	}
	if err := checkHeader(data, op, mappingResponseLen); err != nil {
		return nil, err
	}
	return &MappingResult{
		Protocol:    proto,
		Epoch:       time.Duration(binary.BigEndian.Uint32(data[4:8])) * time.Second,
		PrivatePort: binary.BigEndian.Uint16(data[8:10]),
		PublicPort:  binary.BigEndian.Uint16(data[10:12]),
		Lifetime:    time.Duration(binary.BigEndian.Uint32(data[12:16])) * time.Second,
	}, nil
}
