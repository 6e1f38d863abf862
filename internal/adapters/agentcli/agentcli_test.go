package agentcli_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hugo-lorenzo-mato/council/internal/adapters/agentcli"
	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/testutil"
)

// writeFakeAgent writes a shell script that echoes its stdin back to
// stdout, standing in for a real CLI agent binary.
func writeFakeAgent(t *testing.T, dir string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake agent script assumes a POSIX shell")
	}
	path := filepath.Join(dir, "fake-agent.sh")
	script := "#!/bin/sh\ncat\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake agent script: %v", err)
	}
	return path
}

func TestCaller_Call_ReturnsStdout(t *testing.T) {
	dir := testutil.TempDir(t)
	path := writeFakeAgent(t, dir)

	agents := config.Agents{
		Implementer: config.RoleAgent{Path: path, TimeoutSeconds: 5},
	}
	caller := agentcli.NewCaller(agents)

	out, err := caller.Call(context.Background(), "implementer", "be terse", "fix the bug")
	testutil.AssertNoError(t, err)
	testutil.AssertContains(t, out, "be terse")
	testutil.AssertContains(t, out, "fix the bug")
}

func TestCaller_Call_UnknownRole(t *testing.T) {
	caller := agentcli.NewCaller(config.Agents{})
	_, err := caller.Call(context.Background(), "not_a_role", "", "x")
	testutil.AssertError(t, err)
}

func TestCaller_Call_NoPathConfigured(t *testing.T) {
	caller := agentcli.NewCaller(config.Agents{Implementer: config.RoleAgent{}})
	_, err := caller.Call(context.Background(), "implementer", "", "x")
	testutil.AssertError(t, err)
}

func TestCaller_Call_NonzeroExitIsError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake agent script assumes a POSIX shell")
	}
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "failing-agent.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("writing fake agent script: %v", err)
	}

	agents := config.Agents{CriticA: config.RoleAgent{Path: path, TimeoutSeconds: 5}}
	caller := agentcli.NewCaller(agents)

	_, err := caller.Call(context.Background(), "critic_a", "", "x")
	testutil.AssertError(t, err)
}
