package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/snapetech/netindexer/internal/fingerprint"
	"github.com/snapetech/netindexer/internal/observation"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveObservationBatchInsertsNewService(t *testing.T) {
	s := openTestStore(t)

	obs := observation.New("192.0.2.1", 22, "ssh")
	obs.Status = observation.StatusOpen
	obs.Banner = "SSH-2.0-OpenSSH_8.9"
	obs.Timestamp = float64(time.Now().Unix())

	result := ScanResult{Observation: obs, Analysis: fingerprint.Result{
		ServiceType: "ssh", Vendor: "OpenBSD", Product: "OpenSSH", Confidence: 100,
	}}

	if err := s.SaveObservationBatch([]ScanResult{result}); err != nil {
		t.Fatalf("SaveObservationBatch: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM services WHERE ip = ?`, "192.0.2.1").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("services count = %d, want 1", count)
	}

	var hostCount int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM hosts WHERE ip = ?`, "192.0.2.1").Scan(&hostCount); err != nil {
		t.Fatal(err)
	}
	if hostCount != 1 {
		t.Fatalf("hosts count = %d, want 1", hostCount)
	}
}

func TestSaveObservationBatchRecordsHistoryOnStateChange(t *testing.T) {
	s := openTestStore(t)

	base := observation.New("192.0.2.2", 80, "http")
	base.Status = observation.StatusOpen
	base.Banner = "HTTP/1.1 200 OK"
	base.Timestamp = float64(time.Now().Unix())

	first := ScanResult{Observation: base, Analysis: fingerprint.Result{ServiceType: "http", Vendor: "unknown", Product: "unknown"}}
	if err := s.SaveObservationBatch([]ScanResult{first}); err != nil {
		t.Fatalf("first save: %v", err)
	}

	changed := base
	changed.Status = observation.StatusClosed
	changed.Timestamp = base.Timestamp + 60
	second := ScanResult{Observation: changed, Analysis: first.Analysis}
	if err := s.SaveObservationBatch([]ScanResult{second}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var historyCount int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM history`).Scan(&historyCount); err != nil {
		t.Fatal(err)
	}
	if historyCount != 1 {
		t.Fatalf("history count = %d, want 1", historyCount)
	}

	var state string
	if err := s.db.QueryRow(`SELECT state FROM services WHERE ip = ?`, "192.0.2.2").Scan(&state); err != nil {
		t.Fatal(err)
	}
	if state != string(observation.StatusClosed) {
		t.Fatalf("state = %s, want closed", state)
	}
}

func TestSaveObservationBatchNoHistoryWhenUnchanged(t *testing.T) {
	s := openTestStore(t)

	obs := observation.New("192.0.2.3", 443, "https")
	obs.Status = observation.StatusOpen
	obs.Banner = "HTTP/1.1 200 OK"
	obs.Timestamp = float64(time.Now().Unix())

	result := ScanResult{Observation: obs, Analysis: fingerprint.Result{ServiceType: "http"}}
	if err := s.SaveObservationBatch([]ScanResult{result}); err != nil {
		t.Fatal(err)
	}
	repeat := result
	repeat.Observation.Timestamp = obs.Timestamp + 30
	if err := s.SaveObservationBatch([]ScanResult{repeat}); err != nil {
		t.Fatal(err)
	}

	var historyCount int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM history`).Scan(&historyCount); err != nil {
		t.Fatal(err)
	}
	if historyCount != 0 {
		t.Fatalf("history count = %d, want 0 (banner/state unchanged)", historyCount)
	}
}

func TestChunkLifecycleClaimCompleteAndFail(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueChunk("203.0.113.0/24", "203.0.113.0", "203.0.113.255", 1); err != nil {
		t.Fatal(err)
	}

	chunk, err := s.ClaimNextChunk()
	if err != nil {
		t.Fatal(err)
	}
	if chunk == nil {
		t.Fatal("expected a claimable chunk")
	}
	if chunk.Status != StatusScanning {
		t.Fatalf("status = %s, want SCANNING", chunk.Status)
	}

	second, err := s.ClaimNextChunk()
	if err != nil {
		t.Fatal(err)
	}
	if second != nil {
		t.Fatal("expected no second claimable chunk while first is SCANNING")
	}

	if err := s.CompleteChunk(chunk.ID); err != nil {
		t.Fatal(err)
	}

	pending, err := s.PendingChunkCount()
	if err != nil {
		t.Fatal(err)
	}
	if pending != 0 {
		t.Fatalf("pending = %d, want 0", pending)
	}
}

func TestFailChunkExhaustsRetriesToFailed(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueChunk("198.51.100.0/24", "198.51.100.0", "198.51.100.255", 1); err != nil {
		t.Fatal(err)
	}
	chunk, _ := s.ClaimNextChunk()

	if err := s.FailChunk(chunk.ID, chunk.RetryCount, 3, "timeout"); err != nil {
		t.Fatal(err)
	}
	var status string
	s.db.QueryRow(`SELECT status FROM scan_state WHERE id = ?`, chunk.ID).Scan(&status)
	if status != StatusRetrying {
		t.Fatalf("status = %s, want RETRYING after first failure", status)
	}

	s.db.Exec(`UPDATE scan_state SET retry_count = 2 WHERE id = ?`, chunk.ID)
	if err := s.FailChunk(chunk.ID, 2, 3, "timeout"); err != nil {
		t.Fatal(err)
	}
	s.db.QueryRow(`SELECT status FROM scan_state WHERE id = ?`, chunk.ID).Scan(&status)
	if status != StatusFailed {
		t.Fatalf("status = %s, want FAILED after exhausting retries", status)
	}
}

func TestPromoteIgnoredChunksBumpsOldQueuedPriority(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueChunk("10.0.0.0/24", "10.0.0.0", "10.0.0.255", 1); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-72 * time.Hour).UTC().Format(time.RFC3339)
	if _, err := s.db.Exec(`UPDATE scan_state SET created_at = ?`, old); err != nil {
		t.Fatal(err)
	}

	promoted, err := s.PromoteIgnoredChunks(48)
	if err != nil {
		t.Fatal(err)
	}
	if promoted != 1 {
		t.Fatalf("promoted = %d, want 1", promoted)
	}

	var priority int
	s.db.QueryRow(`SELECT priority FROM scan_state`).Scan(&priority)
	if priority != 2 {
		t.Fatalf("priority = %d, want 2", priority)
	}
}

func TestResetOrphanedScanningRequeuesAbandonedChunks(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnqueueChunk("172.16.0.0/24", "172.16.0.0", "172.16.0.255", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimNextChunk(); err != nil {
		t.Fatal(err)
	}

	reset, err := s.ResetOrphanedScanning()
	if err != nil {
		t.Fatal(err)
	}
	if reset != 1 {
		t.Fatalf("reset = %d, want 1", reset)
	}

	var status string
	s.db.QueryRow(`SELECT status FROM scan_state`).Scan(&status)
	if status != StatusQueued {
		t.Fatalf("status = %s, want QUEUED", status)
	}
}

func TestWithRetrySucceedsWithoutRetryingOnNilError(t *testing.T) {
	calls := 0
	err := WithRetry(func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWithRetryRetriesOnBusyThenSucceeds(t *testing.T) {
	calls := 0
	err := WithRetry(func() error {
		calls++
		if calls < 3 {
			return errors.New("SQLITE_BUSY: database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetryGivesUpOnPersistentBusyAndDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	err := WithRetry(func() error {
		calls++
		return errors.New("SQLITE_BUSY: database is locked")
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls != busyRetries {
		t.Fatalf("calls = %d, want %d", calls, busyRetries)
	}

	calls = 0
	wantErr := errors.New("syntax error")
	err = WithRetry(func() error {
		calls++
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (non-busy errors should not retry)", calls)
	}
}
