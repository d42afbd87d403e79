package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/snapetech/netindexer/internal/fingerprint"
	"github.com/snapetech/netindexer/internal/observation"
)

// ScanResult pairs a probe Observation with its fingerprint analysis, the
// unit SaveObservationBatch persists.
type ScanResult struct {
	Observation observation.Observation
	Analysis    fingerprint.Result
}

type existingService struct {
	id      int64
	banner  string
	state   string
}

// SaveObservationBatch upserts hosts and services and appends history rows
// for any service whose banner or state changed. Every write for the batch
// happens inside a single transaction.
func (s *Store) SaveObservationBatch(results []ScanResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := upsertHosts(tx, results); err != nil {
		return fmt.Errorf("upsert hosts: %w", err)
	}

	existing, err := fetchExisting(tx, results)
	if err != nil {
		return fmt.Errorf("fetch existing services: %w", err)
	}

	var historyRows []historyRow
	for _, r := range results {
		key := serviceKey{r.Observation.IP, r.Observation.Port, r.Observation.Protocol}
		ts := time.Unix(int64(r.Observation.Timestamp), 0).UTC().Format(time.RFC3339)
		newBanner := r.Observation.Banner
		newState := string(r.Observation.Status)

		if prior, ok := existing[key]; ok {
			if err := updateService(tx, prior.id, ts, newBanner, newState, r.Analysis); err != nil {
				return fmt.Errorf("update service %d: %w", prior.id, err)
			}
			if (newBanner != "" && newBanner != prior.banner) || newState != prior.state {
				historyRows = append(historyRows, historyRow{prior.id, ts, newBanner, newState})
			}
			continue
		}

		if err := insertService(tx, r, ts); err != nil {
			return fmt.Errorf("insert service: %w", err)
		}
	}

	for _, h := range historyRows {
		if _, err := tx.Exec(
			`INSERT INTO history (service_id, timestamp, banner, state) VALUES (?, ?, ?, ?)`,
			h.serviceID, h.timestamp, h.banner, h.state,
		); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}

	return tx.Commit()
}

type serviceKey struct {
	ip       string
	port     int
	protocol string
}

type historyRow struct {
	serviceID int64
	timestamp string
	banner    string
	state     string
}

func upsertHosts(tx *sql.Tx, results []ScanResult) error {
	stmt, err := tx.Prepare(`
		INSERT INTO hosts (ip, first_seen, last_seen) VALUES (?, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET last_seen = excluded.last_seen
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if seen[r.Observation.IP] {
			continue
		}
		seen[r.Observation.IP] = true
		ts := time.Unix(int64(r.Observation.Timestamp), 0).UTC().Format(time.RFC3339)
		if _, err := stmt.Exec(r.Observation.IP, ts, ts); err != nil {
			return err
		}
	}
	return nil
}

func fetchExisting(tx *sql.Tx, results []ScanResult) (map[serviceKey]existingService, error) {
	ips := make(map[string]bool, len(results))
	for _, r := range results {
		ips[r.Observation.IP] = true
	}
	placeholders := make([]string, 0, len(ips))
	args := make([]any, 0, len(ips))
	for ip := range ips {
		placeholders = append(placeholders, "?")
		args = append(args, ip)
	}

	query := fmt.Sprintf(
		`SELECT ip, port, protocol, id, banner, state FROM services WHERE ip IN (%s)`,
		strings.Join(placeholders, ","),
	)
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[serviceKey]existingService)
	for rows.Next() {
		var key serviceKey
		var svc existingService
		var banner, state sql.NullString
		if err := rows.Scan(&key.ip, &key.port, &key.protocol, &svc.id, &banner, &state); err != nil {
			return nil, err
		}
		svc.banner = banner.String
		svc.state = state.String
		out[key] = svc
	}
	return out, rows.Err()
}

func insertService(tx *sql.Tx, r ScanResult, ts string) error {
	obs := r.Observation
	_, err := tx.Exec(`
		INSERT INTO services (
			ip, port, protocol, state, banner,
			service_type, vendor, product, version, confidence, tags,
			first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		obs.IP, obs.Port, obs.Protocol, string(obs.Status), obs.Banner,
		r.Analysis.ServiceType, r.Analysis.Vendor, r.Analysis.Product,
		r.Analysis.Version, r.Analysis.Confidence, tagsString(r.Analysis.Tags),
		ts, ts,
	)
	return err
}

func updateService(tx *sql.Tx, id int64, ts, banner, state string, analysis fingerprint.Result) error {
	_, err := tx.Exec(`
		UPDATE services
		SET last_seen = ?,
		    banner = ?,
		    service_type = COALESCE(NULLIF(?, 'unknown'), service_type),
		    vendor = COALESCE(NULLIF(?, 'unknown'), vendor),
		    product = COALESCE(NULLIF(?, 'unknown'), product),
		    version = COALESCE(NULLIF(?, ''), version),
		    confidence = CASE WHEN ? > 0 THEN ? ELSE confidence END,
		    tags = COALESCE(NULLIF(?, ''), tags),
		    state = ?
		WHERE id = ?
	`,
		ts, banner,
		analysis.ServiceType, analysis.Vendor, analysis.Product, analysis.Version,
		analysis.Confidence, analysis.Confidence,
		tagsString(analysis.Tags),
		state, id,
	)
	return err
}

func tagsString(tags []string) string {
	return strings.Join(tags, ",")
}
