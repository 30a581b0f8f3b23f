//go:build !linux

package shm

import (
	"sync/atomic"
	"time"
)

// Without futexes a waiter polls the shared word.
const pollSlice = time.Millisecond

func futexWait(addr *uint32, val uint32, timeout time.Duration) error {
	if atomic.LoadUint32(addr) != val {
		return nil
	}
	time.Sleep(min(timeout, pollSlice))
	return nil
}

func futexWake(addr *uint32, n int) (int, error) {
	return 0, nil
}
