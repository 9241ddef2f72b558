//go:build !windows

package locking

import (
	"os"

	"github.com/google/renameio/v2"
)

// atomicWriteFile writes data to path atomically using rename-on-same-filesystem.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
