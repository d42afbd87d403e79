package probe

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/snapetech/netindexer/internal/observation"
)

type mqttProbe struct {
	port int
}

// mqttConnectPacket is a fixed MQTT 3.1.1 CONNECT packet for client id "test"
// with a 60 second keep-alive, clean session set, no credentials.
var mqttConnectPacket, _ = hex.DecodeString("101000044D5154540402003C000474657374")

func (p *mqttProbe) Run(ip string) observation.Observation {
	obs := observation.New(ip, p.port, "mqtt")
	obs.Timestamp = nowSeconds()
	start := time.Now()

	conn, err := dialTCP(ip, p.port)
	if err != nil {
		obs.LatencyMS = elapsedMS(start)
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(DefaultReadTimeout))
	if _, err := conn.Write(mqttConnectPacket); err != nil {
		obs.LatencyMS = elapsedMS(start)
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}

	_ = conn.SetReadDeadline(time.Now().Add(DefaultReadTimeout))
	buf := make([]byte, 4)
	n, err := conn.Read(buf)
	obs.LatencyMS = elapsedMS(start)
	if n == 0 && err != nil {
		obs.Status, obs.ErrorReason = classifyConnErr(err)
		return obs
	}

	if n < 4 || buf[0] != 0x20 {
		obs.Status = observation.StatusOpen
		obs.Banner = "MQTT Broker Detected (Non-standard CONNACK)"
		return obs
	}

	obs.Status = observation.StatusOpen
	obs.Banner = mqttReturnCodeLabel(buf[3])
	return obs
}

func mqttReturnCodeLabel(code byte) string {
	switch code {
	case 0:
		return "Access ALLOWED (No Auth)"
	case 1:
		return "Refused: Protocol Version"
	case 2:
		return "Refused: ID Rejected"
	case 3:
		return "Refused: Server Unavailable"
	case 4:
		return "Refused: Bad User/Pass"
	case 5:
		return "Refused: Not Authorized"
	default:
		return fmt.Sprintf("Refused: Code %d", code)
	}
}
