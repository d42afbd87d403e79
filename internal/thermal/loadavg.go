package thermal

import "golang.org/x/sys/unix"

// LoadAvgGovernor is the default Governor, backed by the kernel's 1-minute
// load average via getloadavg(3).
type LoadAvgGovernor struct{}

// ShouldPause reports whether the 1-minute load average exceeds maxLoad.
func (LoadAvgGovernor) ShouldPause(maxLoad float64) bool {
	var avg [3]float64
	n, err := unix.Getloadavg(avg[:])
	if err != nil || n == 0 {
		return false
	}
	return avg[0] > maxLoad
}
