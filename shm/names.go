package shm

import (
	"os"
	"path/filepath"
)

// DefaultNamespace names the region and prefixes the semaphores.
const DefaultNamespace = "3col"

// Semaphore name suffixes.
const (
	SemFree  = "free"
	SemUsed  = "used"
	SemMutex = "mutex"
)

// RegionPath returns the backing file of the shared region for ns.
func RegionPath(ns string) string {
	return filepath.Join(shmDir(), ns)
}

// SemaphorePath returns the backing file of semaphore sem in ns,
// e.g. /dev/shm/3col_free.
func SemaphorePath(ns, sem string) string {
	return filepath.Join(shmDir(), ns+"_"+sem)
}

// shmDir prefers /dev/shm (RAM backed) and falls back to the temp dir.
func shmDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}
