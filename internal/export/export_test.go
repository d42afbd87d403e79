package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/snapetech/netindexer/internal/fingerprint"
	"github.com/snapetech/netindexer/internal/observation"
	"github.com/snapetech/netindexer/internal/store"
)

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "export.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	seed := func(ip string, port int, serviceType, banner string) {
		obs := observation.New(ip, port, serviceType)
		obs.Status = observation.StatusOpen
		obs.Banner = banner
		if err := s.SaveObservationBatch([]store.ScanResult{{
			Observation: obs,
			Analysis:    fingerprint.Result{ServiceType: serviceType, Confidence: 50},
		}}); err != nil {
			t.Fatal(err)
		}
	}

	seed("10.0.0.1", 22, "ssh", "SSH-2.0-OpenSSH_8.9")
	seed("10.0.0.2", 80, "http", "HTTP/1.1 200 OK")
	seed("10.0.0.3", 80, "http", "HTTP/1.1 403 Forbidden")
	seed("10.0.0.4", 8080, "http-alt", "HTTP/1.1 404 Not Found")
	seed("10.0.0.5", 23, "telnet", "Welcome")

	return s
}

func TestQueryReturnsOnlyActionableServices(t *testing.T) {
	s := seedStore(t)
	rows, err := Query(s.DB())
	if err != nil {
		t.Fatal(err)
	}

	ips := make(map[string]bool)
	for _, r := range rows {
		ips[r.IP] = true
	}

	if !ips["10.0.0.1"] {
		t.Error("ssh service should be actionable")
	}
	if !ips["10.0.0.2"] {
		t.Error("plain http 200 should be actionable")
	}
	if ips["10.0.0.3"] {
		t.Error("http 403 should be excluded")
	}
	if ips["10.0.0.4"] {
		t.Error("http 404 should be excluded")
	}
	if ips["10.0.0.5"] {
		t.Error("telnet is not in the actionable service type list")
	}
}

func TestWriteReportFormatsRows(t *testing.T) {
	rows := []Row{
		{IP: "10.0.0.1", Port: 22, ServiceType: "ssh", Vendor: "OpenBSD", Product: "OpenSSH", Confidence: 100, Banner: "SSH-2.0-OpenSSH_8.9"},
	}
	var buf bytes.Buffer
	if err := WriteReport(&buf, rows); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "10.0.0.1") || !strings.Contains(out, "OpenSSH") {
		t.Fatalf("report missing expected fields: %q", out)
	}
}
