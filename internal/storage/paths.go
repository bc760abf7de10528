package storage

import (
	"fmt"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"path"
	"time"
)

const remotePrefix = "backups"

// ArchivePath returns where an archive created at t is stored. Local storage already
// lives under a backups directory so it skips the prefix.
func ArchivePath(st types.StorageType, t time.Time, filename string) string {
	dir := fmt.Sprintf("%04d/%02d", t.Year(), int(t.Month()))
	if st == types.StorageTypeLocal {
		return path.Join(dir, filename)
	}
	return path.Join(remotePrefix, dir, filename)
}
