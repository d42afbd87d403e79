package probe

import (
	"net"
	"strings"
	"time"

	"github.com/snapetech/netindexer/internal/observation"
)

type ftpProbe struct {
	port int
}

func (p *ftpProbe) Run(ip string) observation.Observation {
	obs := observation.New(ip, p.port, "ftp")
	obs.Timestamp = nowSeconds()
	start := time.Now()

	conn, err := dialTCP(ip, p.port)
	if err != nil {
		obs.LatencyMS = elapsedMS(start)
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}
	defer conn.Close()

	greeting, err := readLineFTP(conn)
	obs.LatencyMS = elapsedMS(start)
	if err != nil && greeting == "" {
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}

	outcome := ftpAuthOutcome(conn, greeting)
	obs.Status = observation.StatusOpen
	obs.Banner = greeting + " | Auth: [" + outcome + "]"
	return obs
}

func readLineFTP(conn net.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(DefaultReadTimeout))
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if n == 0 {
		return "", err
	}
	return strings.TrimSpace(decodeUTF8Lenient(buf[:n])), nil
}

// ftpAuthOutcome attempts the anonymous USER/PASS handshake and classifies
// the result per spec §4.1.
func ftpAuthOutcome(conn net.Conn, greeting string) string {
	if !strings.HasPrefix(greeting, "220") {
		return "Unknown"
	}

	_ = conn.SetWriteDeadline(time.Now().Add(DefaultReadTimeout))
	if _, err := conn.Write([]byte("USER anonymous\r\n")); err != nil {
		return "Handshake Error: ERR"
	}
	respUser, err := readLineFTP(conn)
	if err != nil && respUser == "" {
		return "Handshake Error: ERR"
	}

	switch {
	case strings.HasPrefix(respUser, "331"):
		_ = conn.SetWriteDeadline(time.Now().Add(DefaultReadTimeout))
		if _, err := conn.Write([]byte("PASS anonymous@\r\n")); err != nil {
			return "Handshake Error: ERR"
		}
		respPass, err := readLineFTP(conn)
		if err != nil && respPass == "" {
			return "Handshake Error: ERR"
		}
		switch {
		case strings.HasPrefix(respPass, "230"):
			return "Anonymous Access ALLOWED"
		case strings.HasPrefix(respPass, "530"):
			return "Anonymous Access DENIED (530)"
		default:
			return "Login Failed Code: " + first3(respPass)
		}
	case strings.HasPrefix(respUser, "230"):
		return "Anonymous Access ALLOWED (No Pass)"
	case strings.HasPrefix(respUser, "530"):
		return "Anonymous User Rejected"
	case strings.HasPrefix(respUser, "500"), strings.Contains(strings.ToLower(respUser), "auth"):
		return "Encryption Required (AUTH TLS)"
	default:
		return "Handshake Error: " + first3(respUser)
	}
}

func first3(s string) string {
	if len(s) <= 3 {
		return s
	}
	return s[:3]
}
