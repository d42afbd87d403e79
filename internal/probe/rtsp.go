package probe

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/snapetech/netindexer/internal/observation"
)

type rtspProbe struct {
	port int
}

var rtspBrands = []string{"hikvision", "dahua", "axis", "foscam", "amcrest", "reolink", "ubiquiti"}

func (p *rtspProbe) Run(ip string) observation.Observation {
	obs := observation.New(ip, p.port, "rtsp")
	obs.Timestamp = nowSeconds()
	start := time.Now()

	conn, err := dialTCP(ip, p.port)
	if err != nil {
		obs.LatencyMS = elapsedMS(start)
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}
	defer conn.Close()

	req := fmt.Sprintf("OPTIONS rtsp://%s RTSP/1.0\r\nCSeq: 1\r\nUser-Agent: DeepFocus\r\n\r\n",
		net.JoinHostPort(ip, strconv.Itoa(p.port)))
	_ = conn.SetWriteDeadline(time.Now().Add(DefaultReadTimeout))
	if _, err := conn.Write([]byte(req)); err != nil {
		obs.LatencyMS = elapsedMS(start)
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}

	_ = conn.SetReadDeadline(time.Now().Add(DefaultReadTimeout))
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	obs.LatencyMS = elapsedMS(start)
	if n == 0 && err != nil {
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}

	resp := decodeUTF8Lenient(buf[:n])
	auth := "Unknown"
	switch {
	case strings.Contains(resp, "RTSP/1.0 200"):
		auth = "No Auth Required (OPEN)"
	case strings.Contains(resp, "RTSP/1.0 401"):
		auth = "Auth Required"
	case strings.Contains(resp, "RTSP/1.0 403"):
		auth = "Forbidden"
	}

	brand := "RTSP Camera"
	lower := strings.ToLower(resp)
	for _, candidate := range rtspBrands {
		if strings.Contains(lower, candidate) {
			brand = strings.ToUpper(candidate[:1]) + candidate[1:]
			break
		}
	}

	obs.Status = observation.StatusOpen
	obs.Banner = brand + " | Auth: [" + auth + "]"
	return obs
}
