package manifest

import (
	"fmt"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff computes a unified diff between the manifest file's current
// on-disk content and the manifest's rendered in-memory state. Used by
// dry runs to preview what a bump would change without writing.
func (m *Manifest) Diff() (string, error) {
	current, err := os.ReadFile(m.path)
	if err != nil {
		return "", fmt.Errorf("reading manifest %q: %w", m.path, err)
	}

	proposed, err := m.Render()
	if err != nil {
		return "", err
	}

	diff := difflib.UnifiedDiff{
		A:        splitLines(string(current)),
		B:        splitLines(string(proposed)),
		FromFile: m.path,
		ToFile:   m.path + " (proposed)",
		Context:  3,
	}

	unified, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("computing diff for %q: %w", m.path, err)
	}

	return unified, nil
}

// splitLines splits a document into lines, each retaining its trailing
// newline as difflib expects.
func splitLines(doc string) []string {
	if doc == "" {
		return nil
	}

	lines := strings.SplitAfter(doc, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}
