package scripts

import (
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// CreateSymlink points linkPath at target. An existing entry is replaced
// atomically, so linkPath never goes missing.
func CreateSymlink(target, linkPath string) error {
	if err := renameio.Symlink(target, linkPath); err != nil {
		return fmt.Errorf("could not create symlink %s: %w", linkPath, err)
	}
	return nil
}

// RemoveSymlink deletes linkPath if anything exists there.
func RemoveSymlink(linkPath string) error {
	if _, err := os.Lstat(linkPath); os.IsNotExist(err) {
		return nil
	}
	if err := os.Remove(linkPath); err != nil {
		return fmt.Errorf("could not remove %s: %w", linkPath, err)
	}
	return nil
}
