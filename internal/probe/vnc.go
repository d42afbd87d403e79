package probe

import (
	"net"
	"strconv"
	"time"

	"github.com/snapetech/netindexer/internal/observation"
)

type vncProbe struct {
	port int
}

func (p *vncProbe) Run(ip string) observation.Observation {
	obs := observation.New(ip, p.port, "vnc")
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
	version := make([]byte, 12)
	n, err := readFull(conn, version)
	obs.LatencyMS = elapsedMS(start)
	if n == 0 && err != nil {
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}
	versionStr := decodeUTF8Lenient(version[:n])

	_ = conn.SetWriteDeadline(time.Now().Add(DefaultReadTimeout))
	if _, err := conn.Write(version[:n]); err != nil {
		obs.Status = observation.StatusOpen
		obs.Banner = versionStr
		return obs
	}

	_ = conn.SetReadDeadline(time.Now().Add(DefaultReadTimeout))
	lenByte := make([]byte, 1)
	if _, err := readFull(conn, lenByte); err != nil {
		obs.Status = observation.StatusOpen
		obs.Banner = versionStr + " | Auth: [Handshake Incomplete]"
		return obs
	}

	numTypes := int(lenByte[0])
	if numTypes == 0 {
		reason := make([]byte, 100)
		n, _ := conn.Read(reason)
		obs.Status = observation.StatusOpen
		obs.Banner = versionStr + " (Connect Failed: " + decodeUTF8Lenient(reason[:n]) + ")"
		return obs
	}

	types := make([]byte, numTypes)
	if _, err := readFull(conn, types); err != nil {
		obs.Status = observation.StatusOpen
		obs.Banner = versionStr + " | Auth: [Handshake Incomplete]"
		return obs
	}

	labels := make([]string, 0, numTypes)
	for _, t := range types {
		labels = append(labels, vncSecurityLabel(t))
	}

	obs.Status = observation.StatusOpen
	obs.Banner = versionStr + " | Auth: [" + joinLabels(labels) + "]"
	return obs
}

func vncSecurityLabel(t byte) string {
	switch t {
	case 1:
		return "None (OPEN)"
	case 2:
		return "VNC Auth"
	case 16:
		return "TightVNC"
	case 19:
		return "VeNCrypt (TLS)"
	default:
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
}

func joinLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += ", "
		}
		out += l
	}
	return out
}

// readFull reads until buf is full or an error occurs, returning how much was
// actually filled. Short reads are common with slow embedded VNC stacks.
func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
