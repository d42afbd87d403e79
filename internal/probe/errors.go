package probe

import (
	"errors"
	"syscall"
)

// isRefused reports whether err ultimately wraps ECONNREFUSED, across the
// net.OpError / os.SyscallError chain net package errors normally come in.
func isRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
