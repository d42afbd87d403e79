package store

import (
	"database/sql"
	"errors"
	"time"
)

// Chunk is one unit of scheduled scan work: an address range drawn from a
// CIDR block.
type Chunk struct {
	ID         int64
	CIDR       string
	Start      string
	End        string
	Status     string
	Priority   int
	RetryCount int
}

const (
	StatusQueued    = "QUEUED"
	StatusScanning  = "SCANNING"
	StatusRetrying  = "RETRYING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// EnqueueChunk inserts a new chunk in QUEUED status.
func (s *Store) EnqueueChunk(cidr, start, end string, priority int) error {
	now := nowISO()
	_, err := s.db.Exec(
		`INSERT INTO scan_state (cidr, chunk_start, chunk_end, status, priority, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cidr, start, end, StatusQueued, priority, now, now,
	)
	return err
}

// ClaimNextChunk selects the highest-priority, oldest eligible chunk and
// marks it SCANNING in one transaction so two callers never claim the same
// chunk.
func (s *Store) ClaimNextChunk() (*Chunk, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`SELECT id, cidr, chunk_start, chunk_end, priority, retry_count
		 FROM scan_state
		 WHERE status IN (?, ?)
		 ORDER BY priority DESC, created_at ASC
		 LIMIT 1`,
		StatusQueued, StatusRetrying,
	)

	var c Chunk
	if err := row.Scan(&c.ID, &c.CIDR, &c.Start, &c.End, &c.Priority, &c.RetryCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Status = StatusScanning

	now := nowISO()
	if _, err := tx.Exec(`UPDATE scan_state SET status = ?, updated_at = ? WHERE id = ?`, StatusScanning, now, c.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &c, nil
}

// CompleteChunk marks a chunk COMPLETED.
func (s *Store) CompleteChunk(id int64) error {
	_, err := s.db.Exec(`UPDATE scan_state SET status = ?, updated_at = ? WHERE id = ?`, StatusCompleted, nowISO(), id)
	return err
}

// FailChunk records an error against a chunk, incrementing its retry count,
// and sets RETRYING or FAILED according to maxRetries.
func (s *Store) FailChunk(id int64, retryCount, maxRetries int, errMsg string) error {
	status := StatusRetrying
	if retryCount+1 >= maxRetries {
		status = StatusFailed
	}
	_, err := s.db.Exec(
		`UPDATE scan_state SET status = ?, last_error = ?, updated_at = ?, retry_count = retry_count + 1 WHERE id = ?`,
		status, errMsg, nowISO(), id,
	)
	return err
}

// PromoteIgnoredChunks bumps the priority of QUEUED chunks older than
// ageHours that have not yet reached the priority ceiling, returning the
// number promoted.
func (s *Store) PromoteIgnoredChunks(ageHours int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(ageHours) * time.Hour).UTC().Format(time.RFC3339)
	res, err := s.db.Exec(
		`UPDATE scan_state SET priority = priority + 1, updated_at = ?
		 WHERE status = ? AND created_at < ? AND priority < 10`,
		nowISO(), StatusQueued, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StaleChunk identifies a COMPLETED chunk eligible for rescan.
type StaleChunk struct {
	ID       int64
	CIDR     string
	Priority int
}

// StaleChunks finds COMPLETED chunks last updated before minAgeHours ago,
// restricted to the high- or low-priority band.
func (s *Store) StaleChunks(limit int, highPriority bool, minAgeHours int) ([]StaleChunk, error) {
	cutoff := time.Now().Add(-time.Duration(minAgeHours) * time.Hour).UTC().Format(time.RFC3339)
	priorityClause := "priority < 5"
	if highPriority {
		priorityClause = "priority >= 5"
	}

	rows, err := s.db.Query(
		`SELECT id, cidr, priority FROM scan_state
		 WHERE status = ? AND updated_at < ? AND `+priorityClause+`
		 ORDER BY updated_at ASC LIMIT ?`,
		StatusCompleted, cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StaleChunk
	for rows.Next() {
		var c StaleChunk
		if err := rows.Scan(&c.ID, &c.CIDR, &c.Priority); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResetStaleChunk requeues a stale chunk for rescan and clears its retry
// count.
func (s *Store) ResetStaleChunk(id int64) error {
	_, err := s.db.Exec(
		`UPDATE scan_state SET status = ?, updated_at = ?, retry_count = 0 WHERE id = ?`,
		StatusQueued, nowISO(), id,
	)
	return err
}

// PruneOldData deletes history rows older than historyDays and service rows
// not seen within serviceDays, returning the counts removed.
func (s *Store) PruneOldData(historyDays, serviceDays int) (prunedHistory, prunedServices int64, err error) {
	historyCutoff := time.Now().AddDate(0, 0, -historyDays).UTC().Format(time.RFC3339)
	serviceCutoff := time.Now().AddDate(0, 0, -serviceDays).UTC().Format(time.RFC3339)

	res, err := s.db.Exec(`DELETE FROM history WHERE timestamp < ?`, historyCutoff)
	if err != nil {
		return 0, 0, err
	}
	prunedHistory, _ = res.RowsAffected()

	res, err = s.db.Exec(`DELETE FROM services WHERE last_seen < ?`, serviceCutoff)
	if err != nil {
		return prunedHistory, 0, err
	}
	prunedServices, _ = res.RowsAffected()

	return prunedHistory, prunedServices, nil
}

// PendingChunkCount returns the number of chunks not yet COMPLETED or
// FAILED.
func (s *Store) PendingChunkCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM scan_state WHERE status NOT IN (?, ?)`, StatusCompleted, StatusFailed).Scan(&n)
	return n, err
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
