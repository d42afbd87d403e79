package probe

import (
	"time"
	"unicode/utf8"

	"github.com/snapetech/netindexer/internal/observation"
)

// tcpProbe is the fallback for any port with no dedicated protocol handler:
// connect, then opportunistically read a short banner.
type tcpProbe struct {
	port int
}

func (p *tcpProbe) Run(ip string) observation.Observation {
	obs := observation.New(ip, p.port, "tcp")
	obs.Timestamp = nowSeconds()
	start := time.Now()

	conn, err := dialTCP(ip, p.port)
	if err != nil {
		obs.LatencyMS = elapsedMS(start)
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}
	defer conn.Close()
	obs.LatencyMS = elapsedMS(start)

	_ = conn.SetReadDeadline(time.Now().Add(BannerReadTimeout))
	buf := make([]byte, 1024)
	n, _ := conn.Read(buf)
	obs.Status = observation.StatusOpen
	if n > 0 {
		obs.Banner = decodeUTF8Lenient(buf[:n])
	}
	return obs
}

// decodeUTF8Lenient decodes b as UTF-8, substituting the replacement
// character for any invalid byte sequence rather than failing.
func decodeUTF8Lenient(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out := make([]rune, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		out = append(out, r)
		b = b[size:]
	}
	return string(out)
}
