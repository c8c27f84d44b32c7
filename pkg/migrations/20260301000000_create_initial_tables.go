package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				subtitle TEXT,
				description TEXT,
				language TEXT,
				published_year INTEGER,
				series TEXT,
				series_index REAL,
				cover_url TEXT,
				source_url TEXT
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_items_title ON items (title COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE authors (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				item_id INTEGER REFERENCES items (id) ON DELETE CASCADE NOT NULL,
				name TEXT NOT NULL,
				sort_order INTEGER NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_authors_item_id_sort_order ON authors (item_id, sort_order)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE item_field_sources (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				item_id INTEGER REFERENCES items (id) ON DELETE CASCADE NOT NULL,
				field TEXT NOT NULL,
				source TEXT NOT NULL,
				confidence REAL NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_item_field_sources_item_id ON item_field_sources (item_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE files (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				item_id INTEGER REFERENCES items (id) ON DELETE CASCADE NOT NULL,
				path TEXT NOT NULL,
				filename TEXT NOT NULL,
				extension TEXT NOT NULL,
				mime_type TEXT,
				size_bytes INTEGER NOT NULL,
				sha256 TEXT NOT NULL,
				hash_algo TEXT NOT NULL DEFAULT 'sha256',
				modified_at TIMESTAMPTZ NOT NULL,
				status TEXT NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_files_item_id ON files (item_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_files_sha256 ON files (sha256)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_files_path ON files (path)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE identifiers (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				item_id INTEGER REFERENCES items (id) ON DELETE CASCADE NOT NULL,
				type TEXT NOT NULL,
				value TEXT NOT NULL,
				source TEXT NOT NULL,
				confidence REAL NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_identifiers_item_id_type_value ON identifiers (item_id, type, value)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_identifiers_type_value ON identifiers (type, value)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE enrichment_sources (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				rate_limit_per_min INTEGER NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_enrichment_sources_name ON enrichment_sources (name)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			INSERT INTO enrichment_sources (name, rate_limit_per_min) VALUES
				('openlibrary', 60),
				('googlebooks', 120)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE enrichment_results (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				item_id INTEGER REFERENCES items (id) ON DELETE SET NULL,
				source_id INTEGER REFERENCES enrichment_sources (id) NOT NULL,
				query_type TEXT NOT NULL,
				query TEXT NOT NULL,
				response_json TEXT NOT NULL,
				confidence REAL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_enrichment_results_lookup ON enrichment_results (source_id, query_type, query, created_at)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE scan_sessions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				root_path TEXT NOT NULL,
				started_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				ended_at TIMESTAMPTZ,
				status TEXT NOT NULL,
				stage TEXT,
				error TEXT,
				added INTEGER NOT NULL DEFAULT 0,
				updated INTEGER NOT NULL DEFAULT 0,
				moved INTEGER NOT NULL DEFAULT 0,
				unchanged INTEGER NOT NULL DEFAULT 0,
				missing INTEGER NOT NULL DEFAULT 0
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE scan_entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id INTEGER REFERENCES scan_sessions (id) ON DELETE CASCADE NOT NULL,
				path TEXT NOT NULL,
				modified_at TIMESTAMPTZ,
				size_bytes INTEGER,
				sha256 TEXT,
				action TEXT NOT NULL,
				file_id INTEGER REFERENCES files (id) ON DELETE SET NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_scan_entries_session_id ON scan_entries (session_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE issues (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				item_id INTEGER REFERENCES items (id) ON DELETE CASCADE,
				file_id INTEGER REFERENCES files (id) ON DELETE CASCADE,
				session_id INTEGER REFERENCES scan_sessions (id) ON DELETE SET NULL,
				type TEXT NOT NULL,
				message TEXT NOT NULL,
				severity TEXT NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_issues_item_id ON issues (item_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		tables := []string{
			"issues",
			"scan_entries",
			"scan_sessions",
			"enrichment_results",
			"enrichment_sources",
			"identifiers",
			"files",
			"item_field_sources",
			"authors",
			"items",
		}
		for _, table := range tables {
			_, err := db.Exec("DROP TABLE IF EXISTS " + table)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
