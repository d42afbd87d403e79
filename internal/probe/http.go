package probe

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/snapetech/netindexer/internal/observation"
)

// httpProbe speaks just enough HTTP/1.x to pull a status line, headers, and
// body out of a minimal GET. It never uses net/http — the handshake is raw
// so the same deadline discipline applies whether or not TLS is involved.
type httpProbe struct {
	port int
	tls  bool
}

func (p *httpProbe) Run(ip string) observation.Observation {
	service := "http"
	if p.tls {
		service = "https"
	}
	obs := observation.New(ip, p.port, service)
	obs.Timestamp = nowSeconds()
	start := time.Now()

	conn, err := dialTCP(ip, p.port)
	if err != nil {
		obs.LatencyMS = elapsedMS(start)
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		obs.Service = "http"
		return obs
	}
	defer conn.Close()

	if p.tls {
		tlsConn := tls.Client(conn, &tls.Config{
			InsecureSkipVerify: true, // intentionally not verifying the handshake target; this is an identity probe, not a client
			ServerName:         ip,
		})
		_ = tlsConn.SetDeadline(time.Now().Add(DefaultReadTimeout))
		if err := tlsConn.Handshake(); err != nil {
			obs.LatencyMS = elapsedMS(start)
			obs.Status, obs.ErrorReason = classifyConnErr(err)
			obs.Service = "http"
			return obs
		}
		conn = tlsConn
	}

	req := fmt.Sprintf("GET / HTTP/1.1\r\nHost: %s\r\nUser-Agent: DeepFocus/1.0\r\nConnection: close\r\n\r\n", ip)
	_ = conn.SetWriteDeadline(time.Now().Add(DefaultReadTimeout))
	if _, err := conn.Write([]byte(req)); err != nil {
		obs.LatencyMS = elapsedMS(start)
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}

	_ = conn.SetReadDeadline(time.Now().Add(DefaultReadTimeout))
	buf := make([]byte, 4096)
	n, readErr := conn.Read(buf)
	obs.LatencyMS = elapsedMS(start)
	if n == 0 && readErr != nil {
		obs.Status, obs.ErrorReason = classifyConnErr(readErr)
		return obs
	}

	raw := decodeUTF8Lenient(buf[:n])
	head, body, hasBody := strings.Cut(raw, "\r\n\r\n")

	obs.Status = observation.StatusOpen
	obs.Banner = head
	if hasBody {
		obs.Body = body
	}

	lines := strings.Split(head, "\r\n")
	if len(lines) > 0 {
		parseStatusLine(lines[0], &obs)
		for _, line := range lines[1:] {
			name, value, ok := strings.Cut(line, ": ")
			if !ok {
				continue
			}
			obs.Headers.Set(name, value)
		}
	}
	return obs
}

// parseStatusLine extracts the numeric code from an "HTTP/1.1 200 OK" line.
func parseStatusLine(line string, obs *observation.Observation) {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return
	}
	obs.ResponseCode = code
	obs.HasResponseCode = true
}
