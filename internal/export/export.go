// Package export renders the actionable subset of discovered services — open
// ports worth a human's attention — to a flat text report.
package export

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/snapetech/netindexer/internal/store"
)

// actionablePredicate mirrors the operator shell's export query: remote
// administration surfaces (SSH, VNC, RTSP, FTP) are always actionable; HTTP
// services are actionable unless their banner contains "403 Forbidden" or
// "404 Not Found" anywhere.
const actionablePredicate = `
	state = 'open' AND (
		service_type IN ('ssh', 'vnc', 'rtsp', 'ftp')
		OR (
			service_type LIKE '%http%'
			AND banner NOT LIKE '%403 Forbidden%'
			AND banner NOT LIKE '%404 Not Found%'
		)
	)
`

// Row is one line of the export report.
type Row struct {
	IP          string
	Port        int
	ServiceType string
	Vendor      string
	Product     string
	Version     string
	Confidence  int
	Banner      string
}

// Query returns every actionable service from db.
func Query(db *sql.DB) ([]Row, error) {
	var rows *sql.Rows
	err := store.WithRetry(func() error {
		var queryErr error
		rows, queryErr = db.Query(`
			SELECT ip, port, service_type, vendor, product, version, confidence, banner
			FROM services
			WHERE ` + actionablePredicate + `
			ORDER BY ip, port
		`)
		return queryErr
	})
	if err != nil {
		return nil, fmt.Errorf("query actionable services: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var vendor, product, version, banner sql.NullString
		if err := rows.Scan(&r.IP, &r.Port, &r.ServiceType, &vendor, &product, &version, &r.Confidence, &banner); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Vendor = vendor.String
		r.Product = product.String
		r.Version = version.String
		r.Banner = banner.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// WriteReport renders rows as a flat, human-readable report to w.
func WriteReport(w io.Writer, rows []Row) error {
	for _, r := range rows {
		version := r.Version
		if version == "" {
			version = "-"
		}
		_, err := fmt.Fprintf(w, "%-15s %-5d %-8s %-12s %-20s %-10s conf=%-3d  %s\n",
			r.IP, r.Port, r.ServiceType, r.Vendor, r.Product, version, r.Confidence, r.Banner)
		if err != nil {
			return err
		}
	}
	return nil
}
