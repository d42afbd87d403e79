package probe

import (
	"strings"
	"time"

	"github.com/snapetech/netindexer/internal/observation"
)

type telnetProbe struct {
	port int
}

func (p *telnetProbe) Run(ip string) observation.Observation {
	obs := observation.New(ip, p.port, "telnet")
	obs.Timestamp = nowSeconds()
	start := time.Now()

	conn, err := dialTCP(ip, p.port)
	if err != nil {
		obs.LatencyMS = elapsedMS(start)
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(DefaultReadTimeout))
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	obs.LatencyMS = elapsedMS(start)
	if n == 0 && err != nil {
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}

	obs.Status = observation.StatusOpen
	obs.Banner = stripNonPrintable(decodeUTF8Lenient(buf[:n]))
	return obs
}

// stripNonPrintable removes every byte outside printable ASCII 0x20-0x7E.
func stripNonPrintable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x20 && r <= 0x7E {
			b.WriteRune(r)
		}
	}
	return b.String()
}
