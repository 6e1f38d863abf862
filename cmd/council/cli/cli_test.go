package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hugo-lorenzo-mato/council/internal/testutil"
)

func writeConfigFile(t *testing.T, cacheRoot string) string {
	t.Helper()
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("cache_root: %q\n", cacheRoot)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestRun_NoArgs_Rejected(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)
	testutil.AssertEqual(t, code, ExitRejected)
}

func TestRun_UnknownSubcommand_Rejected(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"frobnicate"}, &stdout, &stderr)
	testutil.AssertEqual(t, code, ExitRejected)
}

func TestRun_Help_Success(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"help"}, &stdout, &stderr)
	testutil.AssertEqual(t, code, ExitSuccess)
	testutil.AssertContains(t, stdout.String(), "Usage")
}

func TestApply_MissingJobID_Rejected(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"apply"}, &stdout, &stderr)
	testutil.AssertEqual(t, code, ExitRejected)
}

func TestCancel_MissingJobID_Rejected(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"cancel"}, &stdout, &stderr)
	testutil.AssertEqual(t, code, ExitRejected)
}

func TestRunJob_MissingTarget_Rejected(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	repo.WriteFile("README.md", "hello\n")
	repo.Commit("initial")

	cacheRoot := testutil.TempDir(t)
	cfgPath := writeConfigFile(t, cacheRoot)

	var stdout, stderr bytes.Buffer
	code := run([]string{"run", "--mode", "fix", "--target", "does/not/exist.go", "--repo", repo.Path, "--config", cfgPath}, &stdout, &stderr)
	testutil.AssertEqual(t, code, ExitRejected)
}

func TestListJobs_EmptyCache_Success(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	repo.WriteFile("README.md", "hello\n")
	repo.Commit("initial")

	cacheRoot := testutil.TempDir(t)
	cfgPath := writeConfigFile(t, cacheRoot)

	var stdout, stderr bytes.Buffer
	code := run([]string{"list", "--repo", repo.Path, "--config", cfgPath}, &stdout, &stderr)
	testutil.AssertEqual(t, code, ExitSuccess)
	testutil.AssertEqual(t, stdout.String(), "")
}
