// Package health reports whether the running scan process is actually
// making progress: the store is reachable and the queue isn't stalled on a
// chunk that claimed SCANNING and never finished.
package health

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/snapetech/netindexer/internal/store"
)

// Status is the result of a health check, serialized as JSON by Handler.
type Status struct {
	OK             bool   `json:"ok"`
	Error          string `json:"error,omitempty"`
	PendingChunks  int64  `json:"pending_chunks"`
	OldestScanning string `json:"oldest_scanning,omitempty"`
}

// CheckStore verifies the database is reachable and, if maxScanningAge is
// positive, that no chunk has been stuck in SCANNING longer than that —
// a sign the process that claimed it died without releasing it.
func CheckStore(db *sql.DB, maxScanningAge time.Duration) Status {
	var pending int64
	err := store.WithRetry(func() error {
		return db.QueryRow(`SELECT COUNT(*) FROM scan_state WHERE status IN ('QUEUED', 'RETRYING')`).Scan(&pending)
	})
	if err != nil {
		return Status{OK: false, Error: fmt.Sprintf("query store: %v", err)}
	}

	st := Status{OK: true, PendingChunks: pending}
	if maxScanningAge <= 0 {
		return st
	}

	var oldest sql.NullString
	err = store.WithRetry(func() error {
		return db.QueryRow(`SELECT MIN(updated_at) FROM scan_state WHERE status = 'SCANNING'`).Scan(&oldest)
	})
	if err != nil {
		return Status{OK: false, Error: fmt.Sprintf("query stuck chunks: %v", err)}
	}
	if !oldest.Valid {
		return st
	}
	st.OldestScanning = oldest.String
	updated, err := time.Parse(time.RFC3339, oldest.String)
	if err != nil {
		return st
	}
	if time.Since(updated) > maxScanningAge {
		st.OK = false
		st.Error = fmt.Sprintf("chunk stuck in SCANNING since %s", oldest.String)
	}
	return st
}

// Handler returns an http.Handler that reports check's result as JSON,
// with a 503 status when the check fails.
func Handler(check func() Status) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := check()
		w.Header().Set("Content-Type", "application/json")
		if !st.OK {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(st)
	})
}
