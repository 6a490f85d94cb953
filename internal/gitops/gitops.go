// Package gitops wraps the go-git operations of the release pipeline:
// tag deletion, manifest commits, and branch/tag pushes.
//
// Tag deletion and committing are idempotent. Instead of swallowing
// errors, they report an Outcome so callers can tell an expected no-op
// (tag already absent, worktree already clean) from a genuine failure.
package gitops

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// Outcome reports whether an idempotent operation actually did anything.
type Outcome int

const (
	// Done means the operation was performed.
	Done Outcome = iota
	// Noop means the operation's target state already held, e.g. the
	// tag was already absent or there was nothing to commit.
	Noop
)

// String implements fmt.Stringer for log output.
func (o Outcome) String() string {
	if o == Noop {
		return "noop"
	}

	return "done"
}

// Repo is a handle on a local git working copy.
type Repo struct {
	repo *git.Repository
}

// Open locates the repository containing path, searching parent
// directories for a .git the way the git CLI does.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository at %q: %w", path, err)
	}

	return &Repo{repo: repo}, nil
}

// DeleteRemoteTag removes the tag from the named remote. The remote's
// refs are listed first so a missing tag is a Noop rather than a failed
// push.
func (r *Repo) DeleteRemoteTag(ctx context.Context, remoteName, tag string) (Outcome, error) {
	remote, err := r.repo.Remote(remoteName)
	if err != nil {
		return Noop, fmt.Errorf("resolving remote %q: %w", remoteName, err)
	}

	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return Noop, fmt.Errorf("listing refs on %q: %w", remoteName, err)
	}

	ref := plumbing.NewTagReferenceName(tag)

	exists := false

	for _, remoteRef := range refs {
		if remoteRef.Name() == ref {
			exists = true
			break
		}
	}

	if !exists {
		return Noop, nil
	}

	err = r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(":" + ref.String())},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return Noop, fmt.Errorf("deleting tag %q on %q: %w", tag, remoteName, err)
	}

	return Done, nil
}

// DeleteLocalTag removes the tag from the local repository.
func (r *Repo) DeleteLocalTag(tag string) (Outcome, error) {
	err := r.repo.DeleteTag(tag)

	switch {
	case err == nil:
		return Done, nil
	case errors.Is(err, git.ErrTagNotFound):
		return Noop, nil
	default:
		return Noop, fmt.Errorf("deleting local tag %q: %w", tag, err)
	}
}

// CommitPaths stages the given paths and commits them with message.
// Returns Noop without committing when staging leaves the worktree
// clean (nothing changed since the last commit).
func (r *Repo) CommitPaths(paths []string, message string) (Outcome, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return Noop, fmt.Errorf("opening worktree: %w", err)
	}

	for _, p := range paths {
		if _, err := wt.Add(p); err != nil {
			return Noop, fmt.Errorf("staging %q: %w", p, err)
		}
	}

	status, err := wt.Status()
	if err != nil {
		return Noop, fmt.Errorf("reading worktree status: %w", err)
	}

	if status.IsClean() {
		return Noop, nil
	}

	if _, err := wt.Commit(message, &git.CommitOptions{}); err != nil {
		return Noop, fmt.Errorf("committing: %w", err)
	}

	return Done, nil
}

// PushBranch pushes the currently checked-out branch to the named
// remote. With force set the refspec is forced, allowing a rewritten
// branch tip to replace the remote one.
func (r *Repo) PushBranch(ctx context.Context, remoteName string, force bool) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD: %w", err)
	}

	if !head.Name().IsBranch() {
		return fmt.Errorf("HEAD is not on a branch (detached at %s)", head.Hash())
	}

	spec := fmt.Sprintf("%s:%s", head.Name(), head.Name())
	if force {
		spec = "+" + spec
	}

	err = r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(spec)},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pushing %s to %q: %w", head.Name().Short(), remoteName, err)
	}

	return nil
}

// CreateTag creates a lightweight tag at the current HEAD.
func (r *Repo) CreateTag(tag string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD: %w", err)
	}

	if _, err := r.repo.CreateTag(tag, head.Hash(), nil); err != nil {
		return fmt.Errorf("creating tag %q: %w", tag, err)
	}

	return nil
}

// PushTag pushes the named tag to the remote.
func (r *Repo) PushTag(ctx context.Context, remoteName, tag string) error {
	ref := plumbing.NewTagReferenceName(tag)

	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(ref.String() + ":" + ref.String())},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pushing tag %q to %q: %w", tag, remoteName, err)
	}

	return nil
}
