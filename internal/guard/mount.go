package guard

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// MountChecker verifies that a source root is healthy before any run-level
// work starts. An unmounted network share presents as an empty directory,
// which a naive sync would read as "every document vanished"; this check is
// what keeps that from reaching the deletion pass.
type MountChecker struct {
	// Path is the source root to verify.
	Path string
	// Label names the root in messages.
	Label string
	// RequireMountpoint additionally demands that Path is a mount point.
	// Roots on the local filesystem set this to false.
	RequireMountpoint bool
}

// Name implements Checker.
func (c *MountChecker) Name() string {
	return fmt.Sprintf("mount health (%s)", c.Label)
}

// Check implements Checker.
func (c *MountChecker) Check() CheckResult {
	result := CheckResult{Name: c.Name(), Status: StatusPass}

	info, err := os.Stat(c.Path)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("root %s does not exist", c.Path)
		result.Suggestion = "verify the share is mounted and the path is correct"
		return result
	}
	if !info.IsDir() {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("root %s is not a directory", c.Path)
		return result
	}
	if c.RequireMountpoint {
		mounted, err := isMountpoint(c.Path)
		if err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("cannot verify mount state of %s: %v", c.Path, err)
			return result
		}
		if !mounted {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("root %s is not a mount point", c.Path)
			result.Suggestion = "mount the share before syncing"
			return result
		}
	}
	entries, err := os.ReadDir(c.Path)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot list root %s: %v", c.Path, err)
		return result
	}
	if len(entries) == 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("root %s is empty", c.Path)
		result.Suggestion = "an empty root usually means the share failed to mount"
		return result
	}

	result.Message = fmt.Sprintf("root %s is healthy (%d entries)", c.Path, len(entries))
	return result
}

// isMountpoint reports whether path sits on a different device than its
// parent directory, the same test mountpoint(1) performs.
func isMountpoint(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	var st, parentSt syscall.Stat_t
	if err := syscall.Stat(abs, &st); err != nil {
		return false, err
	}
	parent := filepath.Dir(abs)
	if err := syscall.Stat(parent, &parentSt); err != nil {
		return false, err
	}
	if st.Dev != parentSt.Dev {
		return true, nil
	}
	// Same device: only the filesystem root is its own parent.
	return st.Ino == parentSt.Ino, nil
}
