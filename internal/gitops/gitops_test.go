package gitops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var testSig = &object.Signature{Name: "tester", Email: "tester@example.com"}

// initRepo creates a working repository with one commit and a local
// bare repository wired up as its "origin" remote.
func initRepo(t *testing.T) (r *Repo, workDir string, remote *git.Repository) {
	t.Helper()

	remoteDir := t.TempDir()
	bare, err := git.PlainInit(remoteDir, true)
	require.NoError(t, err)

	workDir = t.TempDir()
	raw, err := git.PlainInit(workDir, false)
	require.NoError(t, err)

	// Commit identity for CommitPaths, which relies on repo config.
	cfg, err := raw.Config()
	require.NoError(t, err)
	cfg.User.Name = testSig.Name
	cfg.User.Email = testSig.Email
	require.NoError(t, raw.SetConfig(cfg))

	_, err = raw.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{remoteDir},
	})
	require.NoError(t, err)

	writeFile(t, workDir, "manifest.json", `{"version": "1.2.3"}`)
	commitAll(t, raw, "initial commit")

	return &Repo{repo: raw}, workDir, bare
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func commitAll(t *testing.T, raw *git.Repository, msg string) {
	t.Helper()

	wt, err := raw.Worktree()
	require.NoError(t, err)

	_, err = wt.Add(".")
	require.NoError(t, err)

	_, err = wt.Commit(msg, &git.CommitOptions{Author: testSig})
	require.NoError(t, err)
}

func remoteHasTag(t *testing.T, remote *git.Repository, tag string) bool {
	t.Helper()

	_, err := remote.Reference(plumbing.NewTagReferenceName(tag), false)

	return err == nil
}

// ---------------------------------------------------------------------------
// Open
// ---------------------------------------------------------------------------

func TestOpen_DetectsDotGitUpward(t *testing.T) {
	_, workDir, _ := initRepo(t)

	sub := filepath.Join(workDir, "debug-tools")
	require.NoError(t, os.Mkdir(sub, 0o755))

	r, err := Open(sub)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestOpen_NotARepo(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Tag deletion tri-state
// ---------------------------------------------------------------------------

func TestDeleteLocalTag(t *testing.T) {
	r, _, _ := initRepo(t)
	require.NoError(t, r.CreateTag("1.2.3"))

	outcome, err := r.DeleteLocalTag("1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Done, outcome)

	// Second delete is an expected no-op, not an error.
	outcome, err = r.DeleteLocalTag("1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Noop, outcome)
}

func TestDeleteRemoteTag(t *testing.T) {
	ctx := context.Background()
	r, _, remote := initRepo(t)

	require.NoError(t, r.CreateTag("1.2.3"))
	require.NoError(t, r.PushTag(ctx, "origin", "1.2.3"))
	require.True(t, remoteHasTag(t, remote, "1.2.3"))

	outcome, err := r.DeleteRemoteTag(ctx, "origin", "1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Done, outcome)
	assert.False(t, remoteHasTag(t, remote, "1.2.3"))

	outcome, err = r.DeleteRemoteTag(ctx, "origin", "1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Noop, outcome)
}

func TestDeleteRemoteTag_UnknownRemote(t *testing.T) {
	r, _, _ := initRepo(t)

	_, err := r.DeleteRemoteTag(context.Background(), "upstream", "1.2.3")
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// CommitPaths
// ---------------------------------------------------------------------------

func TestCommitPaths(t *testing.T) {
	r, workDir, _ := initRepo(t)

	writeFile(t, workDir, "manifest.json", `{"version": "1.3.0"}`)
	writeFile(t, workDir, "manifest-beta.json", `{"version": "1.3.0"}`)

	outcome, err := r.CommitPaths(
		[]string{"manifest.json", "manifest-beta.json"},
		"version: bump the version to 1.3.0",
	)
	require.NoError(t, err)
	assert.Equal(t, Done, outcome)

	head, err := r.repo.Head()
	require.NoError(t, err)

	commit, err := r.repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "version: bump the version to 1.3.0", commit.Message)
}

func TestCommitPaths_CleanWorktreeIsNoop(t *testing.T) {
	r, _, _ := initRepo(t)

	before, err := r.repo.Head()
	require.NoError(t, err)

	outcome, err := r.CommitPaths([]string{"manifest.json"}, "version: bump the version to 1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Noop, outcome)

	after, err := r.repo.Head()
	require.NoError(t, err)
	assert.Equal(t, before.Hash(), after.Hash())
}

// ---------------------------------------------------------------------------
// Push
// ---------------------------------------------------------------------------

func TestPushBranch(t *testing.T) {
	ctx := context.Background()
	r, _, remote := initRepo(t)

	require.NoError(t, r.PushBranch(ctx, "origin", false))

	head, err := r.repo.Head()
	require.NoError(t, err)

	remoteRef, err := remote.Reference(head.Name(), false)
	require.NoError(t, err)
	assert.Equal(t, head.Hash(), remoteRef.Hash())

	// Pushing an already up-to-date branch is not an error.
	require.NoError(t, r.PushBranch(ctx, "origin", false))
}

func TestPushBranch_Force(t *testing.T) {
	ctx := context.Background()
	r, workDir, remote := initRepo(t)

	require.NoError(t, r.PushBranch(ctx, "origin", false))

	writeFile(t, workDir, "manifest.json", `{"version": "1.2.4"}`)
	commitAll(t, r.repo, "version: bump the version to 1.2.4")

	require.NoError(t, r.PushBranch(ctx, "origin", true))

	head, err := r.repo.Head()
	require.NoError(t, err)

	remoteRef, err := remote.Reference(head.Name(), false)
	require.NoError(t, err)
	assert.Equal(t, head.Hash(), remoteRef.Hash())
}

func TestPushBranch_DivergedRemoteNeedsForce(t *testing.T) {
	ctx := context.Background()
	r, workDir, remote := initRepo(t)

	base, err := r.repo.Head()
	require.NoError(t, err)

	// Push a commit, then rewind past it and commit something else so
	// the local branch and the remote tip diverge.
	writeFile(t, workDir, "manifest.json", `{"version": "1.2.4"}`)
	commitAll(t, r.repo, "version: bump the version to 1.2.4")
	require.NoError(t, r.PushBranch(ctx, "origin", false))

	wt, err := r.repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Reset(&git.ResetOptions{Commit: base.Hash(), Mode: git.HardReset}))

	writeFile(t, workDir, "manifest.json", `{"version": "1.2.5"}`)
	commitAll(t, r.repo, "version: bump the version to 1.2.5")

	// A plain push is rejected as non-fast-forward.
	require.Error(t, r.PushBranch(ctx, "origin", false))

	// The forced refspec replaces the remote tip.
	require.NoError(t, r.PushBranch(ctx, "origin", true))

	head, err := r.repo.Head()
	require.NoError(t, err)

	remoteRef, err := remote.Reference(head.Name(), false)
	require.NoError(t, err)
	assert.Equal(t, head.Hash(), remoteRef.Hash())
}

// ---------------------------------------------------------------------------
// Tags
// ---------------------------------------------------------------------------

func TestCreateTag_AtHead(t *testing.T) {
	r, _, _ := initRepo(t)

	require.NoError(t, r.CreateTag("1.2.3"))

	head, err := r.repo.Head()
	require.NoError(t, err)

	ref, err := r.repo.Reference(plumbing.NewTagReferenceName("1.2.3"), false)
	require.NoError(t, err)
	assert.Equal(t, head.Hash(), ref.Hash())
}

func TestCreateTag_Duplicate(t *testing.T) {
	r, _, _ := initRepo(t)

	require.NoError(t, r.CreateTag("1.2.3"))
	require.Error(t, r.CreateTag("1.2.3"))
}

func TestPushTag(t *testing.T) {
	ctx := context.Background()
	r, _, remote := initRepo(t)

	require.NoError(t, r.CreateTag("1.2.3"))
	require.NoError(t, r.PushTag(ctx, "origin", "1.2.3"))
	assert.True(t, remoteHasTag(t, remote, "1.2.3"))

	// Re-pushing the same tag is up-to-date, not an error.
	require.NoError(t, r.PushTag(ctx, "origin", "1.2.3"))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "noop", Noop.String())
}
