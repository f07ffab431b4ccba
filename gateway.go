package natpmp

import (
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"runtime"
)

// GatewayFunc produces the IPv4 address of the NAT gateway. Detection is
// best-effort: implementations must return an error rather than guess
// when they cannot find a default route.
type GatewayFunc func() (net.IP, error)

var (
	posixGatewayRe   = regexp.MustCompile(`(?m)^(?:default|0\.0\.0\.0)\s+(\d+\.\d+\.\d+\.\d+)\s+.*UG`)
	windowsGatewayRe = regexp.MustCompile(`(?m)^\s*0\.0\.0\.0\s+0\.0\.0\.0\s+(\d+\.\d+\.\d+\.\d+)`)
)

// DefaultGateway finds the default route by running netstat -rn and
// scanning its output. The format varies across platforms and netstat
// builds, so this can fail on systems a stricter tool would handle;
// callers should fall back to asking the user for an explicit gateway
// address on ErrNoGateway.
func DefaultGateway() (net.IP, error) {
	out, err := exec.Command("netstat", "-rn").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: netstat: %v", ErrNoGateway, err)
	}
	re := posixGatewayRe
	if runtime.GOOS == "windows" {
		re = windowsGatewayRe
	}
	return parseGateway(re, out)
}

func parseGateway(re *regexp.Regexp, out []byte) (net.IP, error) {
	m := re.FindSubmatch(out)
	if m == nil {
		return nil, fmt.Errorf("%w: no default route in netstat output", ErrNoGateway)
	}
	ip := net.ParseIP(string(m[1]))
	if ip = ip.To4(); ip == nil {
		return nil, fmt.Errorf("%w: default route %q is not IPv4", ErrNoGateway, m[1])
	}
	return ip, nil
}
