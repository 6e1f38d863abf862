package patch_test

import (
	"context"
	"testing"

	"github.com/hugo-lorenzo-mato/council/internal/adapters/patch"
	"github.com/hugo-lorenzo-mato/council/internal/testutil"
)

const samplePatch = `*** Begin Patch
*** Update File: greeting.txt
@@
-hello
+hello, world
*** End Patch
`

const unifiedDiff = `--- a/greeting.txt
+++ b/greeting.txt
@@ -1 +1 @@
-hello
+hello, world
`

func TestApplier_DryRun_AppliesCleanly(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	repo.WriteFile("greeting.txt", "hello\n")
	repo.Commit("initial")

	applier := patch.NewApplier("")
	err := applier.DryRun(context.Background(), repo.Path, unifiedDiff)
	testutil.AssertNoError(t, err)
}

func TestApplier_DryRun_RejectsConflicting(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	repo.WriteFile("greeting.txt", "totally different content\n")
	repo.Commit("initial")

	applier := patch.NewApplier("")
	err := applier.DryRun(context.Background(), repo.Path, unifiedDiff)
	testutil.AssertError(t, err)
}

func TestApplier_ApplyPatchInDir_MutatesWorkingTree(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	repo.WriteFile("greeting.txt", "hello\n")
	repo.Commit("initial")

	applier := patch.NewApplier("")
	err := applier.ApplyPatchInDir(context.Background(), repo.Path, unifiedDiff)
	testutil.AssertNoError(t, err)

	out, err := repo.Run("show", ":greeting.txt")
	testutil.AssertNoError(t, err)
	testutil.AssertContains(t, out, "hello, world")
}

func TestApplier_ApplyThenDryRunAgain_Fails(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	repo.WriteFile("greeting.txt", "hello\n")
	repo.Commit("initial")

	applier := patch.NewApplier("")
	testutil.AssertNoError(t, applier.ApplyPatchInDir(context.Background(), repo.Path, unifiedDiff))

	// The same patch no longer applies once its change is already present.
	err := applier.DryRun(context.Background(), repo.Path, unifiedDiff)
	testutil.AssertError(t, err)
}
