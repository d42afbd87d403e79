package probe

import (
	"strings"
	"time"

	"github.com/snapetech/netindexer/internal/observation"
)

type sshProbe struct {
	port int
}

func (p *sshProbe) Run(ip string) observation.Observation {
	obs := observation.New(ip, p.port, "ssh")
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
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	obs.LatencyMS = elapsedMS(start)
	if n == 0 && err != nil {
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}

	banner := strings.TrimSpace(decodeUTF8Lenient(buf[:n]))
	obs.Status = observation.StatusOpen
	obs.Banner = banner + " | Device: [" + sshDeviceHint(banner) + "]"
	return obs
}

// sshDeviceHint derives a device label from case-insensitive substring
// matches in the SSH identification line, per spec §4.1.
func sshDeviceHint(banner string) string {
	lower := strings.ToLower(banner)
	switch {
	case strings.Contains(lower, "dropbear"):
		return "Dropbear (Embedded/IoT)"
	case strings.Contains(lower, "cisco"):
		return "Cisco IOS"
	case strings.Contains(lower, "mikrotik"):
		return "MikroTik Router"
	case strings.Contains(lower, "openssh"):
		return "OpenSSH"
	default:
		return "SSH Service"
	}
}
