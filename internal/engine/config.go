package engine

import "time"

// Config controls the scan engine's concurrency and thermal discipline.
type Config struct {
	// Rate is the number of concurrent probe workers. Default: 300.
	Rate int

	// Ports is the ordered list of TCP ports probed for every address.
	// Default: 80,443,22,21,8080,5900,554,3389.
	Ports []int

	// Loop keeps the engine running continuously, pulling new chunks from
	// the scheduler as they complete rather than exiting when the queue
	// empties.
	Loop bool

	// MaxLoad is the 1-minute load average above which the engine pauses
	// before starting new chunks. Default: 6.0.
	MaxLoad float64

	// CoolDownTarget is the load average the engine waits to fall back to
	// before resuming after a thermal pause. Default: 3.0.
	CoolDownTarget float64

	// BatchSize is how many observations accumulate before a batch flush to
	// storage. Default: 50.
	BatchSize int

	// YieldEvery is how many completed chunks pass before the engine yields
	// briefly to avoid starving other system work. Default: 5.
	YieldEvery int

	// PruneEvery is how many completed chunks pass before a retention sweep
	// runs. Default: 50.
	PruneEvery int

	// EmptyQueueWait is how long the engine sleeps before rechecking the
	// queue when Loop is set and no chunk is available. Default: 5s.
	EmptyQueueWait time.Duration

	// ThermalPollInterval is how often the thermal governor is re-checked
	// while paused. Default: 30s.
	ThermalPollInterval time.Duration

	// HistoryRetentionDays and ServiceRetentionDays bound the prune sweep.
	HistoryRetentionDays int
	ServiceRetentionDays int
}

// DefaultPorts mirrors the original scanner's default port list.
var DefaultPorts = []int{80, 443, 22, 21, 8080, 5900, 554, 3389}

func (c *Config) setDefaults() {
	if c.Rate <= 0 {
		c.Rate = 300
	}
	if len(c.Ports) == 0 {
		c.Ports = DefaultPorts
	}
	if c.MaxLoad <= 0 {
		c.MaxLoad = 6.0
	}
	if c.CoolDownTarget <= 0 {
		c.CoolDownTarget = 3.0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.YieldEvery <= 0 {
		c.YieldEvery = 5
	}
	if c.PruneEvery <= 0 {
		c.PruneEvery = 50
	}
	if c.EmptyQueueWait <= 0 {
		c.EmptyQueueWait = 5 * time.Second
	}
	if c.ThermalPollInterval <= 0 {
		c.ThermalPollInterval = 30 * time.Second
	}
	if c.HistoryRetentionDays <= 0 {
		c.HistoryRetentionDays = 30
	}
	if c.ServiceRetentionDays <= 0 {
		c.ServiceRetentionDays = 90
	}
}
