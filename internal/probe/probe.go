// Package probe implements the per-port protocol handshakes that turn a bare
// TCP connection into an identity-bearing Observation. Every Prober is a
// closed capability — run against an address, never fail outward — selected
// once at construction time by Resolve.
package probe

import (
	"net"
	"strconv"
	"time"

	"github.com/snapetech/netindexer/internal/observation"
)

// Default wall-time bounds, per spec §4.1.
const (
	ConnectTimeout     = 1500 * time.Millisecond
	DefaultReadTimeout = 2000 * time.Millisecond
	BannerReadTimeout  = 1000 * time.Millisecond
)

// Prober is satisfied by every protocol-specific probe. Run must never
// return a non-nil error — every outcome, including I/O faults, is encoded
// into the returned Observation's Status/ErrorReason fields.
type Prober interface {
	Run(ip string) observation.Observation
}

// Resolve selects the Prober for a port per the table in spec §4.1.
func Resolve(port int) Prober {
	switch port {
	case 80, 8000, 8080:
		return &httpProbe{port: port, tls: false}
	case 443, 8443:
		return &httpProbe{port: port, tls: true}
	case 22:
		return &sshProbe{port: port}
	case 21:
		return &ftpProbe{port: port}
	case 23:
		return &telnetProbe{port: port}
	case 554:
		return &rtspProbe{port: port}
	case 1883:
		return &mqttProbe{port: port}
	case 5900:
		return &vncProbe{port: port}
	default:
		return &tcpProbe{port: port}
	}
}

// dialTCP opens a bare TCP connection with the standard connect deadline.
func dialTCP(ip string, port int) (net.Conn, error) {
	d := net.Dialer{Timeout: ConnectTimeout}
	return d.Dial("tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
}

// classifyConnErr maps a dial error into a Status + reason per spec §4.1:
// refusal is closed, deadline exceeded is timeout, anything else is error.
func classifyConnErr(err error) (observation.Status, string) {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return observation.StatusTimeout, "timeout"
	}
	if isRefused(err) {
		return observation.StatusClosed, "refused"
	}
	return observation.StatusError, err.Error()
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}
