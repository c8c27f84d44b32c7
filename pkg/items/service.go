package items

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/fileutils"
	"github.com/shishobooks/folio/pkg/mediafile"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/uptrace/bun"
)

type RetrieveItemOptions struct {
	ID *int
}

type ListItemsOptions struct {
	Limit  *int
	Offset *int
	IDs    []int
	Search *string
	// MissingMetadata limits the list to items without authors, without a
	// description or without an ISBN.
	MissingMetadata bool

	includeTotal bool
}

type UpdateItemOptions struct {
	Columns       []string
	UpdateAuthors bool
}

type RetrieveFileOptions struct {
	ID   *int
	Path *string
}

type ListFilesOptions struct {
	IDs    []int
	ItemID *int
	SHA256 *string
	Status *string
	// Root limits the list to files at or below this directory.
	Root        *string
	IncludeItem bool
}

type UpdateFileOptions struct {
	Columns []string
}

type ListIssuesOptions struct {
	Limit     *int
	Offset    *int
	ItemID    *int
	SessionID *int
	Type      *string

	includeTotal bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// CreateItem inserts the item together with its authors and identifiers.
func (svc *Service) CreateItem(ctx context.Context, item *models.Item) error {
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = item.CreatedAt

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Insert item.
		_, err := tx.
			NewInsert().
			Model(item).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		// Insert authors.
		if err := insertAuthors(ctx, tx, item); err != nil {
			return err
		}

		// Insert identifiers.
		for _, ident := range item.Identifiers {
			ident.ItemID = item.ID
			ident.CreatedAt = item.CreatedAt
		}
		if len(item.Identifiers) > 0 {
			_, err := tx.
				NewInsert().
				Model(&item.Identifiers).
				On("CONFLICT (item_id, type, value) DO NOTHING").
				Returning("*").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func insertAuthors(ctx context.Context, tx bun.Tx, item *models.Item) error {
	for i, author := range item.Authors {
		author.ItemID = item.ID
		author.SortOrder = i + 1
		author.CreatedAt = item.UpdatedAt
		author.UpdatedAt = item.UpdatedAt
	}
	if len(item.Authors) == 0 {
		return nil
	}
	_, err := tx.
		NewInsert().
		Model(&item.Authors).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveItem(ctx context.Context, opts RetrieveItemOptions) (*models.Item, error) {
	item := &models.Item{}

	q := svc.db.
		NewSelect().
		Model(item).
		Relation("Authors", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("a.sort_order ASC")
		}).
		Relation("Files", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("f.path ASC")
		}).
		Relation("Identifiers", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("ident.confidence DESC", "ident.id ASC")
		}).
		Relation("FieldSources", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("ifs.id ASC")
		})

	if opts.ID != nil {
		q = q.Where("i.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Item")
		}
		return nil, errors.WithStack(err)
	}

	return item, nil
}

func (svc *Service) ListItems(ctx context.Context, opts ListItemsOptions) ([]*models.Item, error) {
	i, _, err := svc.listItemsWithTotal(ctx, opts)
	return i, errors.WithStack(err)
}

func (svc *Service) ListItemsWithTotal(ctx context.Context, opts ListItemsOptions) ([]*models.Item, int, error) {
	opts.includeTotal = true
	return svc.listItemsWithTotal(ctx, opts)
}

func (svc *Service) listItemsWithTotal(ctx context.Context, opts ListItemsOptions) ([]*models.Item, int, error) {
	items := []*models.Item{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&items).
		Relation("Authors", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("a.sort_order ASC")
		}).
		Relation("Files", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("f.path ASC")
		}).
		Relation("Identifiers", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("ident.confidence DESC", "ident.id ASC")
		}).
		Order("i.title ASC", "i.id ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if len(opts.IDs) > 0 {
		q = q.Where("i.id IN (?)", bun.In(opts.IDs))
	}
	if opts.Search != nil && *opts.Search != "" {
		pattern := "%" + escapeLike(*opts.Search) + "%"
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where(`i.title LIKE ? ESCAPE '\'`, pattern).
				WhereOr(`EXISTS (SELECT 1 FROM authors sa WHERE sa.item_id = i.id AND sa.name LIKE ? ESCAPE '\')`, pattern)
		})
	}
	if opts.MissingMetadata {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("NOT EXISTS (SELECT 1 FROM authors ma WHERE ma.item_id = i.id)").
				WhereOr("i.description IS NULL OR i.description = ''").
				WhereOr("NOT EXISTS (SELECT 1 FROM identifiers mi WHERE mi.item_id = i.id AND mi.type IN (?, ?))",
					models.IdentifierTypeISBN10, models.IdentifierTypeISBN13)
		})
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return items, total, nil
}

func (svc *Service) UpdateItem(ctx context.Context, item *models.Item, opts UpdateItemOptions) error {
	if len(opts.Columns) == 0 && !opts.UpdateAuthors {
		return nil
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Update updated_at.
		now := time.Now()
		item.UpdatedAt = now
		columns := append(opts.Columns, "updated_at")

		res, err := tx.
			NewUpdate().
			Model(item).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return errcodes.NotFound("Item")
		}

		if opts.UpdateAuthors {
			// Delete all previous authors and save these new ones.
			_, err := tx.
				NewDelete().
				Model((*models.Author)(nil)).
				Where("item_id = ?", item.ID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			if err := insertAuthors(ctx, tx, item); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// ReplaceAuthors replaces the item's authors with names, in order. Blank and
// repeated names are dropped.
func (svc *Service) ReplaceAuthors(ctx context.Context, itemID int, names []string) error {
	item := &models.Item{ID: itemID, Authors: authorsFromNames(names)}
	return svc.UpdateItem(ctx, item, UpdateItemOptions{UpdateAuthors: true})
}

func authorsFromNames(names []string) []*models.Author {
	authors := []*models.Author{}
	seen := map[string]struct{}{}
	for _, name := range names {
		name = strings.Join(strings.Fields(name), " ")
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		authors = append(authors, &models.Author{Name: name})
	}
	return authors
}

// ApplyMetadata fills the item's empty fields from md and adds its
// identifiers. Fields that already hold a value are never overwritten. It
// returns the names of the fields that were filled.
func (svc *Service) ApplyMetadata(ctx context.Context, itemID int, md *mediafile.ParsedMetadata, source string, confidence float64) ([]string, error) {
	item, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: &itemID})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	opts := UpdateItemOptions{Columns: []string{}}
	filled := []string{}
	fillString := func(column string, dst **string, value string) {
		value = strings.TrimSpace(value)
		if value == "" || (*dst != nil && **dst != "") {
			return
		}
		*dst = &value
		opts.Columns = append(opts.Columns, column)
		filled = append(filled, column)
	}

	if title := strings.TrimSpace(md.Title); title != "" && item.Title == "" {
		item.Title = title
		opts.Columns = append(opts.Columns, "title")
		filled = append(filled, "title")
	}
	fillString("subtitle", &item.Subtitle, md.Subtitle)
	fillString("description", &item.Description, md.Description)
	fillString("language", &item.Language, md.Language)
	fillString("series", &item.Series, md.Series)
	if item.PublishedYear == nil && md.PublishedYear != nil {
		item.PublishedYear = md.PublishedYear
		opts.Columns = append(opts.Columns, "published_year")
		filled = append(filled, "published_year")
	}
	if item.SeriesIndex == nil && md.SeriesNumber != nil {
		item.SeriesIndex = md.SeriesNumber
		opts.Columns = append(opts.Columns, "series_index")
		filled = append(filled, "series_index")
	}
	if len(item.Authors) == 0 {
		if names := md.AuthorNames(); len(names) > 0 {
			item.Authors = authorsFromNames(names)
			opts.UpdateAuthors = true
			filled = append(filled, "authors")
		}
	}

	if err := svc.UpdateItem(ctx, item, opts); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := svc.UpsertIdentifiers(ctx, itemID, md.Identifiers); err != nil {
		return nil, errors.WithStack(err)
	}

	if len(filled) > 0 {
		sources := make([]*models.FieldSource, 0, len(filled))
		for _, field := range filled {
			sources = append(sources, &models.FieldSource{Field: field, Source: source, Confidence: confidence})
		}
		if err := svc.RecordFieldSources(ctx, itemID, sources); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return filled, nil
}

// UpsertIdentifiers adds identifiers to the item. An identifier the item
// already has keeps the higher of the two confidences, along with that
// confidence's source. A provider never takes over the source of an
// identifier read from the item's files.
func (svc *Service) UpsertIdentifiers(ctx context.Context, itemID int, ids []mediafile.ParsedIdentifier) error {
	if len(ids) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*models.Identifier, 0, len(ids))
	index := map[string]int{}
	for _, id := range ids {
		if id.Type == "" || id.Value == "" {
			continue
		}
		key := id.Type + ":" + id.Value
		if i, ok := index[key]; ok {
			if id.Confidence > rows[i].Confidence {
				rows[i].Confidence = id.Confidence
				if id.Source != models.IdentifierSourceProvider || rows[i].FromProvider() {
					rows[i].Source = id.Source
				}
			}
			continue
		}
		index[key] = len(rows)
		rows = append(rows, &models.Identifier{
			CreatedAt:  now,
			ItemID:     itemID,
			Type:       id.Type,
			Value:      id.Value,
			Source:     id.Source,
			Confidence: id.Confidence,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := svc.db.
		NewInsert().
		Model(&rows).
		On("CONFLICT (item_id, type, value) DO UPDATE").
		// A provider confirming a value read from the files raises its
		// confidence but keeps the file as its source.
		Set("source = CASE WHEN EXCLUDED.confidence > confidence AND (EXCLUDED.source <> ? OR source = ?) THEN EXCLUDED.source ELSE source END",
			models.IdentifierSourceProvider, models.IdentifierSourceProvider).
		Set("confidence = MAX(confidence, EXCLUDED.confidence)").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// RecordFieldSources appends provenance rows for the item's fields.
func (svc *Service) RecordFieldSources(ctx context.Context, itemID int, sources []*models.FieldSource) error {
	if len(sources) == 0 {
		return nil
	}
	now := time.Now()
	for _, s := range sources {
		s.ItemID = itemID
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
	}
	_, err := svc.db.
		NewInsert().
		Model(&sources).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) CreateFile(ctx context.Context, file *models.File) error {
	now := time.Now()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = file.CreatedAt
	if file.Status == "" {
		file.Status = models.FileStatusActive
	}
	if file.HashAlgo == "" {
		file.HashAlgo = models.HashAlgoSHA256
	}

	_, err := svc.db.
		NewInsert().
		Model(file).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveFile(ctx context.Context, opts RetrieveFileOptions) (*models.File, error) {
	file := &models.File{}

	q := svc.db.
		NewSelect().
		Model(file).
		Relation("Item")

	if opts.ID != nil {
		q = q.Where("f.id = ?", *opts.ID)
	}
	if opts.Path != nil {
		q = q.Where("f.path = ?", *opts.Path).Order("f.id ASC").Limit(1)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("File")
		}
		return nil, errors.WithStack(err)
	}

	return file, nil
}

func (svc *Service) ListFiles(ctx context.Context, opts ListFilesOptions) ([]*models.File, error) {
	files := []*models.File{}

	q := svc.db.
		NewSelect().
		Model(&files).
		Order("f.path ASC", "f.id ASC")

	if opts.IncludeItem {
		q = q.Relation("Item")
	}
	if len(opts.IDs) > 0 {
		q = q.Where("f.id IN (?)", bun.In(opts.IDs))
	}
	if opts.ItemID != nil {
		q = q.Where("f.item_id = ?", *opts.ItemID)
	}
	if opts.SHA256 != nil {
		q = q.Where("f.sha256 = ?", *opts.SHA256)
	}
	if opts.Status != nil {
		q = q.Where("f.status = ?", *opts.Status)
	}
	if opts.Root != nil {
		root := strings.TrimSuffix(*opts.Root, "/")
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("f.path = ?", root).
				WhereOr(`f.path LIKE ? ESCAPE '\'`, escapeLike(root)+"/%")
		})
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return files, nil
}

func (svc *Service) UpdateFile(ctx context.Context, file *models.File, opts UpdateFileOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	now := time.Now()
	file.UpdatedAt = now
	columns := append(opts.Columns, "updated_at")

	res, err := svc.db.
		NewUpdate().
		Model(file).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errcodes.NotFound("File")
	}

	return nil
}

func (svc *Service) DeleteFile(ctx context.Context, id int) error {
	_, err := svc.db.
		NewDelete().
		Model((*models.File)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}

// MarkFilesMissing flips the given files to the missing status. Their items
// and identifiers are left alone so a later scan can relink them.
func (svc *Service) MarkFilesMissing(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.db.
		NewUpdate().
		Model((*models.File)(nil)).
		Set("status = ?", models.FileStatusMissing).
		Set("updated_at = ?", time.Now()).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return errors.WithStack(err)
}

// ListMissingFiles returns every file a scan could no longer find, with its
// item.
func (svc *Service) ListMissingFiles(ctx context.Context) ([]*models.File, error) {
	status := models.FileStatusMissing
	files, err := svc.ListFiles(ctx, ListFilesOptions{Status: &status, IncludeItem: true})
	return files, errors.WithStack(err)
}

// RelinkFile points a missing file at path, which the user located by hand,
// and marks it active again. The size, modification time and hash are taken
// from the new path.
func (svc *Service) RelinkFile(ctx context.Context, id int, path string) (*models.File, error) {
	file, err := svc.RetrieveFile(ctx, RetrieveFileOptions{ID: &id})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if file.Status != models.FileStatusMissing {
		return nil, errcodes.Conflict("Only missing files can be relinked.")
	}

	path = filepath.Clean(path)
	if !filepath.IsAbs(path) {
		return nil, errcodes.ValidationError("Path must be absolute.")
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errcodes.ValidationError("No file exists at that path.")
		}
		return nil, errors.WithStack(err)
	}
	if !info.Mode().IsRegular() {
		return nil, errcodes.ValidationError("Path is not a regular file.")
	}

	linked, err := svc.RetrieveFile(ctx, RetrieveFileOptions{Path: &path})
	if err != nil && !errors.Is(err, errcodes.NotFound("File")) {
		return nil, errors.WithStack(err)
	}
	if linked != nil && linked.ID != file.ID {
		return nil, errcodes.Conflict("That file is already linked to another item.")
	}

	sum, err := fileutils.HashFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	file.Path = path
	file.Filename = filepath.Base(path)
	file.Extension = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	file.SizeBytes = info.Size()
	file.ModifiedAt = info.ModTime()
	file.SHA256 = sum
	file.Status = models.FileStatusActive
	err = svc.UpdateFile(ctx, file, UpdateFileOptions{
		Columns: []string{"path", "filename", "extension", "size_bytes", "modified_at", "sha256", "status"},
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return file, nil
}

// RemoveMissingFile drops a missing file from the library. The item and its
// other files are kept.
func (svc *Service) RemoveMissingFile(ctx context.Context, id int) error {
	file, err := svc.RetrieveFile(ctx, RetrieveFileOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}
	if file.Status != models.FileStatusMissing {
		return errcodes.Conflict("Only missing files can be removed.")
	}
	return errors.WithStack(svc.DeleteFile(ctx, file.ID))
}

func (svc *Service) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now()
	}
	if issue.Severity == "" {
		issue.Severity = models.IssueSeverityWarning
	}

	_, err := svc.db.
		NewInsert().
		Model(issue).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) ListIssues(ctx context.Context, opts ListIssuesOptions) ([]*models.Issue, error) {
	i, _, err := svc.listIssuesWithTotal(ctx, opts)
	return i, errors.WithStack(err)
}

func (svc *Service) ListIssuesWithTotal(ctx context.Context, opts ListIssuesOptions) ([]*models.Issue, int, error) {
	opts.includeTotal = true
	return svc.listIssuesWithTotal(ctx, opts)
}

func (svc *Service) listIssuesWithTotal(ctx context.Context, opts ListIssuesOptions) ([]*models.Issue, int, error) {
	issues := []*models.Issue{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&issues).
		Order("iss.id ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.ItemID != nil {
		q = q.Where("iss.item_id = ?", *opts.ItemID)
	}
	if opts.SessionID != nil {
		q = q.Where("iss.session_id = ?", *opts.SessionID)
	}
	if opts.Type != nil {
		q = q.Where("iss.type = ?", *opts.Type)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return issues, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
