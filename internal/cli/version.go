package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/no-instructions/relay-tools/internal/bump"
	"github.com/no-instructions/relay-tools/internal/config"
	"github.com/no-instructions/relay-tools/internal/gitops"
	"github.com/no-instructions/relay-tools/internal/logging"
	"github.com/no-instructions/relay-tools/internal/manifest"
	"github.com/no-instructions/relay-tools/internal/release"
)

type versionOptions struct {
	dryRun bool
}

// newReleaseChecker is a seam for tests to point at a stub API server.
var newReleaseChecker = func() *release.Checker {
	return release.NewChecker(os.Getenv("RELAY_GITHUB_TOKEN"))
}

func newVersionCommand() *cobra.Command {
	opts := &versionOptions{}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "version <type>",
		Short: "Bump the manifest versions and publish a release tag",
		Long: `Version bumps the plugin version and walks it through the whole
release flow.

The beta manifest is bumped according to <type> (major, minor, patch,
or force, which re-pushes the current version unchanged) and the new
version is propagated into the primary manifest. Both manifests are
committed and pushed, the version is tagged, the tag is pushed, and
the command then waits for GitHub to publish the corresponding
release.

Any existing tag of the same name — local or on the remote — is
deleted first so the pushed tag is unique. With force, the branch
push itself is forced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd.Context(), cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.dryRun, "dry-run", false, "preview manifest changes without writing or pushing")
	f.String("remote", defaults.Remote, "git remote to push to")
	f.String("repo", defaults.Repo, "hosting repository slug (owner/name)")
	f.String("manifest", defaults.Manifest, "primary manifest path")
	f.String("beta-manifest", defaults.BetaManifest, "beta manifest path")
	f.Duration("release-interval", defaults.ReleaseInterval, "delay between release-list polls")
	f.Duration("release-timeout", defaults.ReleaseTimeout, "total time to wait for the release")

	return cmd
}

func runVersion(ctx context.Context, cmd *cobra.Command, versionType string, opts *versionOptions) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)
	out := cmd.OutOrStdout()

	mode, err := bump.ParseMode(versionType)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	// The beta manifest is the source of truth; its bumped version is
	// propagated into the primary manifest verbatim.
	beta, err := manifest.Load(cfg.BetaManifest)
	if err != nil {
		return err
	}

	current, err := beta.Version()
	if err != nil {
		return err
	}

	newVersion := bump.Next(current, mode).String()
	beta.SetVersion(newVersion)

	primary, err := manifest.Load(cfg.Manifest)
	if err != nil {
		return err
	}

	primary.SetVersion(newVersion)

	logger.Info("bumping version",
		slog.String("mode", string(mode)),
		slog.String("from", current.String()),
		slog.String("to", newVersion),
	)

	if opts.dryRun {
		return previewManifests(out, beta, primary)
	}

	if err := beta.Save(); err != nil {
		return err
	}

	if err := primary.Save(); err != nil {
		return err
	}

	repo, err := gitops.Open(".")
	if err != nil {
		return err
	}

	deleteExistingTag(ctx, repo, cfg.Remote, newVersion, logger)

	outcome, err := repo.CommitPaths(
		[]string{cfg.Manifest, cfg.BetaManifest},
		"version: bump the version to "+newVersion,
	)
	if err != nil {
		// The push below still makes sense when the bump was already
		// committed, so a commit failure is reported but not fatal.
		logger.Warn("committing manifests", slog.String("error", err.Error()))
	} else {
		logger.Debug("commit", slog.String("outcome", outcome.String()))
	}

	if err := repo.PushBranch(ctx, cfg.Remote, mode == bump.ModeForce); err != nil {
		return err
	}

	if err := repo.CreateTag(newVersion); err != nil {
		return err
	}

	if err := repo.PushTag(ctx, cfg.Remote, newVersion); err != nil {
		return err
	}

	found, err := waitForRelease(ctx, cmd, cfg, newVersion, logger)
	if err != nil {
		return err
	}

	if found {
		fmt.Fprintf(out, "Release %s created successfully.\n", newVersion)
	} else {
		fmt.Fprintf(out, "Release %s not found.\n", newVersion)
	}

	return nil
}

// previewManifests prints the unified diff each manifest would receive.
func previewManifests(out io.Writer, manifests ...*manifest.Manifest) error {
	for _, m := range manifests {
		diff, err := m.Diff()
		if err != nil {
			return err
		}

		if diff == "" {
			fmt.Fprintf(out, "%s: no changes\n", m.Path())
			continue
		}

		fmt.Fprint(out, diff)
	}

	return nil
}

// deleteExistingTag clears any previous tag of the version, remote then
// local, so the tag pushed later is unique. Already-absent tags are
// expected no-ops; genuine failures are reported but do not abort the
// release, matching the one-shot nature of the flow.
func deleteExistingTag(ctx context.Context, repo *gitops.Repo, remote, tag string, logger *slog.Logger) {
	if outcome, err := repo.DeleteRemoteTag(ctx, remote, tag); err != nil {
		logger.Warn("deleting remote tag", slog.String("tag", tag), slog.String("error", err.Error()))
	} else {
		logger.Debug("remote tag delete", slog.String("tag", tag), slog.String("outcome", outcome.String()))
	}

	if outcome, err := repo.DeleteLocalTag(tag); err != nil {
		logger.Warn("deleting local tag", slog.String("tag", tag), slog.String("error", err.Error()))
	} else {
		logger.Debug("local tag delete", slog.String("tag", tag), slog.String("outcome", outcome.String()))
	}
}

// spinnerEnabled reports whether the release wait shows an animated
// spinner. Quiet runs and no-color terminals get none.
func spinnerEnabled(cfg *config.Config) bool {
	return !cfg.Quiet && !cfg.NoColor
}

// waitForRelease polls the hosting platform until the release for tag
// appears or the configured timeout elapses.
func waitForRelease(ctx context.Context, cmd *cobra.Command, cfg *config.Config, tag string, logger *slog.Logger) (bool, error) {
	owner, name, err := config.SplitRepo(cfg.Repo)
	if err != nil {
		return false, err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Waiting for GitHub to create the release...")

	if spinnerEnabled(cfg) {
		spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
			spinner.WithWriter(cmd.ErrOrStderr()))
		spin.Suffix = fmt.Sprintf(" waiting for release %s", tag)
		spin.Start()

		defer spin.Stop()
	}

	checker := newReleaseChecker()

	return checker.Wait(ctx, owner, name, tag, release.WaitOptions{
		Interval: cfg.ReleaseInterval,
		Timeout:  cfg.ReleaseTimeout,
		Logger:   logger,
	})
}
