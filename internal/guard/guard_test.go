package guard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatusString(t *testing.T) {
	assert.Equal(t, "PASS", StatusPass.String())
	assert.Equal(t, "WARN", StatusWarn.String())
	assert.Equal(t, "FAIL", StatusFail.String())
}

func TestCheckResultPassed(t *testing.T) {
	assert.True(t, CheckResult{Status: StatusPass}.Passed())
	assert.True(t, CheckResult{Status: StatusWarn}.Passed())
	assert.False(t, CheckResult{Status: StatusFail}.Passed())
}

func TestMountCheckerHealthy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("x"), 0o644))

	c := &MountChecker{Path: dir, Label: "kb"}
	result := c.Check()
	assert.Equal(t, StatusPass, result.Status)
}

func TestMountCheckerMissing(t *testing.T) {
	c := &MountChecker{Path: "/nonexistent/share", Label: "kb"}
	result := c.Check()
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "does not exist")
}

func TestMountCheckerNotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	c := &MountChecker{Path: path, Label: "kb"}
	result := c.Check()
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "not a directory")
}

func TestMountCheckerEmptyRoot(t *testing.T) {
	c := &MountChecker{Path: t.TempDir(), Label: "kb"}
	result := c.Check()
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "empty")
}

func TestMountCheckerRequireMountpoint(t *testing.T) {
	// A temp dir is on the same device as its parent, so the mountpoint
	// requirement must veto even though the directory has content.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("x"), 0o644))

	c := &MountChecker{Path: dir, Label: "kb", RequireMountpoint: true}
	result := c.Check()
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "not a mount point")
}

func TestIsMountpointRoot(t *testing.T) {
	mounted, err := isMountpoint("/")
	require.NoError(t, err)
	assert.True(t, mounted)
}

func TestStateDirChecker(t *testing.T) {
	dir := t.TempDir()
	c := &StateDirChecker{StatePath: filepath.Join(dir, "state", "kb_state.json")}
	result := c.Check()
	assert.True(t, result.Passed())
	assert.DirExists(t, filepath.Join(dir, "state"))
}

func TestRootRemoval(t *testing.T) {
	state := map[string]bool{"policies": true, "runbooks": true}
	config := map[string]bool{"policies": true}

	removed := RootRemoval(state, config)
	assert.Equal(t, []string{"runbooks"}, removed)

	assert.Empty(t, RootRemoval(state, map[string]bool{"policies": true, "runbooks": true}))
	assert.Empty(t, RootRemoval(nil, config))
}

func TestRootRemovalCheckerVetoes(t *testing.T) {
	c := &RootRemovalChecker{
		StateLabels:  map[string]bool{"policies": true, "runbooks": true},
		ConfigLabels: map[string]bool{"policies": true},
	}
	result := c.Check()
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "runbooks")
}

func TestRootRemovalCheckerOverride(t *testing.T) {
	c := &RootRemovalChecker{
		StateLabels:  map[string]bool{"runbooks": true},
		ConfigLabels: map[string]bool{},
		AllowRemoval: true,
	}
	result := c.Check()
	assert.Equal(t, StatusWarn, result.Status)
	assert.True(t, result.Passed())
}

func TestRunAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("x"), 0o644))

	checkers := []Checker{
		&MountChecker{Path: dir, Label: "kb"},
		&MountChecker{Path: "/nonexistent", Label: "gone"},
	}
	results, ok := RunAll(checkers)
	require.Len(t, results, 2)
	assert.False(t, ok)
	assert.Equal(t, StatusPass, results[0].Status)
	assert.Equal(t, StatusFail, results[1].Status)
}
