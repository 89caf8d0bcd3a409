package media

import (
	"context"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/process"
)

// InUseChecker reports whether a file is held open by another process.
type InUseChecker interface {
	InUse(ctx context.Context, path string) (bool, error)
}

// ProcessChecker walks the process table and inspects open file descriptors.
// It replaces shelling out to lsof.
type ProcessChecker struct {
	selfPID int32
}

// NewProcessChecker creates an open-handle checker that ignores the current process.
func NewProcessChecker() *ProcessChecker {
	return &ProcessChecker{selfPID: int32(os.Getpid())}
}

// InUse returns true if any other process currently has path open.
// Processes that cannot be inspected (permissions, races with exit) are
// skipped rather than treated as errors; if the process table itself cannot
// be enumerated the file is assumed not in use, matching the behavior of a
// failed lsof invocation.
func (c *ProcessChecker) InUse(ctx context.Context, path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, nil
	}

	for _, p := range procs {
		if p.Pid == c.selfPID {
			continue
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		open, err := p.OpenFilesWithContext(ctx)
		if err != nil {
			continue
		}
		for _, of := range open {
			if of.Path == abs {
				return true, nil
			}
		}
	}

	return false, nil
}
