package backup

import (
	"context"
	"fmt"
)

type (
	// DumpStats is what the dump tool reports about the archive it produced
	DumpStats struct {
		Collections int
		Documents   int
	}

	// Tool dumps the database into a single compressed archive and restores it back
	Tool interface {
		Dump(ctx context.Context, archivePath string) (DumpStats, error)
		// Restore replaces the live data, dropping collections before loading them
		Restore(ctx context.Context, archivePath string) error
	}

	ToolExecutionError struct {
		Tool     string
		ExitCode int
		Stderr   string
	}
)

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("%s failed with exit code %d: %s", e.Tool, e.ExitCode, e.Stderr)
}
