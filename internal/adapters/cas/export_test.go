package cas

import "time"

// SetRenameHook replaces the rename used to commit the active file.
func SetRenameHook(s *Store, fn func(oldpath, newpath string) error) {
	s.rename = fn
}

// SetClock replaces the store clock.
func SetClock(s *Store, now func() time.Time) {
	s.now = now
}

// BaseName exposes the active file name for a key.
var BaseName = baseName
