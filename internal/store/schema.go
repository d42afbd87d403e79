package store

const schemaScript = `
CREATE TABLE IF NOT EXISTS hosts (
    ip TEXT PRIMARY KEY,
    country TEXT,
    city TEXT,
    lat REAL,
    lon REAL,
    first_seen DATETIME,
    last_seen DATETIME
);

CREATE TABLE IF NOT EXISTS services (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ip TEXT,
    port INTEGER,
    protocol TEXT,
    state TEXT,
    service_type TEXT,
    vendor TEXT,
    product TEXT,
    version TEXT,
    banner TEXT,
    confidence INTEGER,
    tags TEXT,
    first_seen DATETIME,
    last_seen DATETIME,
    FOREIGN KEY(ip) REFERENCES hosts(ip),
    UNIQUE(ip, port, protocol)
);

CREATE TABLE IF NOT EXISTS history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    service_id INTEGER,
    timestamp DATETIME,
    banner TEXT,
    state TEXT,
    FOREIGN KEY(service_id) REFERENCES services(id)
);

CREATE TABLE IF NOT EXISTS scan_state (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    cidr TEXT,
    chunk_start TEXT,
    chunk_end TEXT,
    status TEXT,
    priority INTEGER DEFAULT 1,
    retry_count INTEGER DEFAULT 0,
    last_error TEXT,
    created_at DATETIME,
    updated_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_scan_state_queue ON scan_state(status, priority DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_services_ip ON services(ip);
`

// migrate applies the schema script. It is idempotent and safe to call on
// every startup.
func (s *Store) migrate() error {
	_, err := s.db.Exec(schemaScript)
	return err
}

// ResetOrphanedScanning returns any chunk left in SCANNING status back to
// QUEUED. A chunk can only be left in that state if the process that claimed
// it exited without completing or failing it.
func (s *Store) ResetOrphanedScanning() (int64, error) {
	res, err := s.db.Exec(`UPDATE scan_state SET status = 'QUEUED' WHERE status = 'SCANNING'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
