package consts

import (
	"path/filepath"
	"time"
)

// Constants for configuration paths and defaults
const (
	DefaultDirName      = ".vigil"
	DefaultTemplateName = "vigil.yaml"
	StateFileName       = "state.json"
	BuildDirName        = "build"
	CacheDirName        = "cache"
	ArtifactSuffix      = ".zip"
)

// Watch zamanlamaları. Controller'lar bunları varsayılan olarak kullanır,
// CLI bayrakları ile ezilebilirler.
const (
	DefaultDebounce         = 1 * time.Second
	DefaultPollInterval     = 1 * time.Second
	DefaultFlowDelay        = 500 * time.Millisecond
	DefaultWorkerCount      = 4
	TemplatePollEveryNTicks = 5
)

// DefaultWatchExcludes, her kaynak için izlemeden düşülen desenlerdir.
// Derleme çıktıları ve dil-spesifik artifact dizinleri buraya girer;
// aksi halde watch -> build -> watch döngüsü oluşur.
var DefaultWatchExcludes = []string{
	".git",
	".hg",
	".svn",
	DefaultDirName,
	"node_modules",
	"__pycache__",
	".venv",
	".idea",
	".vscode",
	"*.pyc",
	"*.swp",
	"*~",
}

// GetStateFilePath returns the path to the state file under the base dir.
func GetStateFilePath(baseDir string) string {
	return filepath.Join(baseDir, DefaultDirName, StateFileName)
}

// GetBuildDirPath returns the default build output directory under the base dir.
func GetBuildDirPath(baseDir string) string {
	return filepath.Join(baseDir, DefaultDirName, BuildDirName)
}

// GetCacheDirPath returns the default cache directory under the base dir.
func GetCacheDirPath(baseDir string) string {
	return filepath.Join(baseDir, DefaultDirName, CacheDirName)
}
