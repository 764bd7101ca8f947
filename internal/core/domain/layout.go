package domain

import "path/filepath"

const (
	// OrreryDirName is the name of the internal workspace directory.
	OrreryDirName = ".orrery"

	// CacheDirName is the name of the record cache directory.
	CacheDirName = "cache"

	// ExportDirName is the name of the directory receiving JSONL exports.
	ExportDirName = "exports"

	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "orrery.yaml"

	// CacheFileExt is the extension of active cache files.
	CacheFileExt = ".json"

	// BackupInfix separates a cache file name from its backup generation.
	BackupInfix = ".bak."

	// CorruptInfix separates a cache file name from its forensic timestamp.
	CorruptInfix = ".corrupt-"

	// TempPrefix marks in-flight writes that have not been renamed into place.
	TempPrefix = ".tmp-"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultOrreryPath returns the default root directory for orrery state.
func DefaultOrreryPath() string {
	return OrreryDirName
}

// DefaultCachePath returns the default path for the record cache.
// It joins .orrery and cache.
func DefaultCachePath() string {
	return filepath.Join(OrreryDirName, CacheDirName)
}

// DefaultExportPath returns the default path for JSONL exports.
// It joins .orrery and exports.
func DefaultExportPath() string {
	return filepath.Join(OrreryDirName, ExportDirName)
}
