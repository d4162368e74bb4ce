package log

import "os"

// StorageCleanup is the downward collaborator interface spec.md §6
// names: whatever removes a truncated segment's files.
// The default is plain local-filesystem removal; swapping the
// implementation lets a cloud-backed or test-injected log verify
// cleanup without touching the core's logic.
type StorageCleanup interface {
	DeleteFile(path string) error
	CleanupSegment(storePath, indexPath string) error
}

// localFileCleanup deletes segment files from the local filesystem.
type localFileCleanup struct{}

func (localFileCleanup) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c localFileCleanup) CleanupSegment(storePath, indexPath string) error {
	if err := c.DeleteFile(storePath); err != nil {
		return err
	}
	return c.DeleteFile(indexPath)
}
