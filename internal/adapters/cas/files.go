package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/zerr"
)

// baseName returns the active file name for key.
func baseName(key domain.CacheKey) string {
	sum := sha256.Sum256([]byte(key.String()))
	return hex.EncodeToString(sum[:]) + domain.CacheFileExt
}

// keyFiles are the files that belong to one key, found by scanning its dataset directory.
type keyFiles struct {
	dir       string
	active    string
	backups   []int
	forensics []string
	temps     []string
}

func (f keyFiles) backupPath(gen int) string {
	return f.active + domain.BackupInfix + strconv.Itoa(gen)
}

func (s *Store) files(key domain.CacheKey) (keyFiles, error) {
	dir := filepath.Join(s.root, key.Dataset)
	base := baseName(key)
	f := keyFiles{dir: dir, active: filepath.Join(dir, base)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return f, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}

	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasPrefix(name, base+domain.BackupInfix):
			gen, err := strconv.Atoi(strings.TrimPrefix(name, base+domain.BackupInfix))
			if err == nil && gen > 0 {
				f.backups = append(f.backups, gen)
			}
		case strings.HasPrefix(name, base+domain.CorruptInfix):
			f.forensics = append(f.forensics, filepath.Join(dir, name))
		case strings.HasPrefix(name, domain.TempPrefix+base):
			f.temps = append(f.temps, filepath.Join(dir, name))
		}
	}
	slices.Sort(f.backups)
	slices.Sort(f.forensics)
	return f, nil
}

// isStoreFile reports whether name was written by the store.
func isStoreFile(name string) bool {
	if strings.HasPrefix(name, domain.TempPrefix) {
		return true
	}
	hash, rest, ok := strings.Cut(name, ".")
	if !ok || len(hash) != sha256.Size*2 {
		return false
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return false
	}
	return strings.HasPrefix("."+rest, domain.CacheFileExt)
}

func isTempOrForensic(name string) bool {
	return strings.HasPrefix(name, domain.TempPrefix) || strings.Contains(name, domain.CorruptInfix)
}

// writeTemp writes data to a new temp file in dir and syncs it.
func writeTemp(dir, base string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, domain.TempPrefix+base+"-*")
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	path := f.Name()

	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(path, domain.FilePerm)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	return path, nil
}

// writeAtomic replaces target with data through a temp file and rename.
func writeAtomic(target string, data []byte, rename func(string, string) error) error {
	dir := filepath.Dir(target)
	tmp, err := writeTemp(dir, filepath.Base(target), data)
	if err != nil {
		return err
	}
	if err := rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", target)
	}
	return syncDir(dir)
}

// syncDir flushes directory entries so a completed rename survives a crash.
func syncDir(dir string) error {
	//nolint:gosec // dir is the store's own dataset directory
	d, err := os.Open(dir)
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	defer func() { _ = d.Close() }()
	if err := d.Sync(); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreRemoveFailed.Error()), "path", path)
	}
	return nil
}
