// Package conflict cleans up after file-syncing services.
//
// Services like Dropbox and Syncthing resolve concurrent edits by
// writing duplicate files ("conflicted copy", ".sync-conflict-") next to
// the original. In a project tree these duplicates are always noise —
// the VCS is the source of truth — so the scrubber deletes them.
//
// The scrubber also marks build-output directories as ignored by
// Dropbox via the com.dropbox.ignored extended attribute, which stops
// the sync churn those directories cause in the first place.
package conflict
