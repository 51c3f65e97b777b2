package guard

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// minFreeBytes is the minimum free space required in the state directory.
const minFreeBytes = 50 * 1024 * 1024

// StateDirChecker verifies the directory holding the local sync state is
// writable and has headroom for an atomic rewrite of the state file.
type StateDirChecker struct {
	// StatePath is the path to the state file; its parent is checked.
	StatePath string
}

// Name implements Checker.
func (c *StateDirChecker) Name() string {
	return "state directory"
}

// Check implements Checker.
func (c *StateDirChecker) Check() CheckResult {
	result := CheckResult{Name: c.Name(), Status: StatusPass}
	dir := filepath.Dir(c.StatePath)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create state directory %s: %v", dir, err)
		return result
	}

	probe, err := os.CreateTemp(dir, ".kbsync-probe-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("state directory %s is not writable: %v", dir, err)
		result.Suggestion = "check permissions on the state directory"
		return result
	}
	probe.Close()
	os.Remove(probe.Name())

	var fs syscall.Statfs_t
	if err := syscall.Statfs(dir, &fs); err == nil {
		free := fs.Bavail * uint64(fs.Bsize)
		if free < minFreeBytes {
			result.Status = StatusWarn
			result.Message = fmt.Sprintf("low disk space in %s: %d MB free", dir, free/(1024*1024))
			result.Suggestion = "free up disk space before the state file grows"
			return result
		}
	}

	result.Message = fmt.Sprintf("state directory %s is writable", dir)
	return result
}
