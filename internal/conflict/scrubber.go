package conflict

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/pkg/xattr"

	"github.com/kitamorio/galley/internal/model"
)

// dropboxIgnoredAttr is the extended attribute Dropbox checks to decide
// whether to sync a path. Value "1" means ignored.
const dropboxIgnoredAttr = "com.dropbox.ignored"

// dropboxConflictRe matches Dropbox's conflicted-copy naming, e.g.
// "notes (alice's conflicted copy 2026-08-01).md".
var dropboxConflictRe = regexp.MustCompile(`\(.*conflicted copy( \d{4}-\d{2}-\d{2})?(\s*\(\d+\))?\)`)

// syncthingConflictMarker is the infix Syncthing inserts into conflict
// file names, e.g. "notes.sync-conflict-20260801-123456-ABCDEF7.md".
const syncthingConflictMarker = ".sync-conflict-"

// IsConflictFile reports whether a file name is a sync-conflict
// duplicate left behind by Dropbox or Syncthing.
func IsConflictFile(name string) bool {
	return dropboxConflictRe.MatchString(name) ||
		strings.Contains(name, syncthingConflictMarker)
}

// Scrubber walks a project tree, removing sync-conflict duplicates and
// marking the named directories as ignored by Dropbox.
type Scrubber struct {
	// Root is the directory to scrub.
	Root string

	// IgnoreDirs are directory names (relative to Root) to mark with the
	// Dropbox ignore attribute. Typically the build output directory.
	IgnoreDirs []string

	// DryRun reports what would be done without touching anything.
	DryRun bool

	// Verbose, when non-nil, receives debug/trace messages.
	Verbose func(format string, args ...interface{})
}

// Report summarizes a scrub.
type Report struct {
	// Removed lists the conflict files that were deleted (or would be,
	// under DryRun), relative to the root.
	Removed []string `json:"removed"`

	// Marked lists the directories that received the Dropbox ignore
	// attribute, relative to the root.
	Marked []string `json:"marked"`

	// DryRun echoes whether this was a dry run.
	DryRun bool `json:"dry_run"`
}

// Scrub performs the cleanup and returns what was done.
func (s *Scrubber) Scrub() (*Report, error) {
	report := &Report{DryRun: s.DryRun}

	err := filepath.Walk(s.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !IsConflictFile(info.Name()) {
			return nil
		}

		rel, relErr := filepath.Rel(s.Root, path)
		if relErr != nil {
			rel = path
		}
		s.verbose("Removing conflict file %s", rel)
		if !s.DryRun {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
		report.Removed = append(report.Removed, rel)
		return nil
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			"failed to scan for conflict files", err)
	}

	for _, name := range s.IgnoreDirs {
		dir := filepath.Join(s.Root, name)
		if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
			s.verbose("Skipping %s: does not exist", name)
			continue
		}

		s.verbose("Marking %s as ignored by Dropbox", name)
		if !s.DryRun {
			if err := MarkIgnored(dir); err != nil {
				return nil, err
			}
		}
		report.Marked = append(report.Marked, name)
	}

	return report, nil
}

// MarkIgnored sets the Dropbox ignore attribute on a path.
func MarkIgnored(path string) error {
	if err := xattr.Set(path, attrName(), []byte("1")); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to set ignore attribute on %s", path), err)
	}
	return nil
}

// IsIgnored reports whether a path carries the Dropbox ignore attribute.
func IsIgnored(path string) (bool, error) {
	value, err := xattr.Get(path, attrName())
	if err != nil {
		// A missing attribute is the normal "not ignored" case; the
		// library surfaces it as an *xattr.Error wrapping ENOATTR/ENODATA.
		if _, ok := err.(*xattr.Error); ok {
			return false, nil
		}
		return false, err
	}
	return string(value) == "1", nil
}

// attrName returns the platform-specific attribute name. Linux user
// extended attributes live in the "user." namespace; macOS has a flat
// namespace.
func attrName() string {
	if runtime.GOOS == "linux" {
		return "user." + dropboxIgnoredAttr
	}
	return dropboxIgnoredAttr
}

func (s *Scrubber) verbose(format string, args ...interface{}) {
	if s.Verbose != nil {
		s.Verbose(format, args...)
	}
}
