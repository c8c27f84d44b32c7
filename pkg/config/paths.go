package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	appName        = "folio"
	databaseFile   = "folio.db"
)

// UseDataDir points the database at $XDG_DATA_HOME/folio/folio.db when no
// other source configured it. It's meant as the fallback passed to Load by
// command line tools, where there is no /config volume.
func UseDataDir(cfg *Config) {
	if cfg.DatabaseFilePath != "" {
		return
	}
	// DataFile creates the parent directory. On failure the path stays empty
	// and validation reports it as missing.
	path, err := xdg.DataFile(filepath.Join(appName, databaseFile))
	if err != nil {
		return
	}
	cfg.DatabaseFilePath = path
}
