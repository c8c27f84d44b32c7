package organizer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/fileutils"
	"github.com/shishobooks/folio/pkg/items"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/progress"
	"github.com/uptrace/bun"
)

const (
	ModeReference = "reference"
	ModeCopy      = "copy"
	ModeMove      = "move"
)

const (
	ActionCopy = "copy"
	ActionMove = "move"
	ActionSkip = "skip"
)

// Entry states. Skipped entries never change state.
const (
	StatePlanned    = "planned"
	StateApplied    = "applied"
	StateSkipped    = "skipped"
	StateReconciled = "reconciled"
	StateMissing    = "missing"
)

type PlanOptions struct {
	Mode        string
	LibraryRoot string
	Template    string
	// ItemIDs limits the plan to these items. Empty means every item.
	ItemIDs []int
}

type Entry struct {
	FileID int    `json:"file_id"`
	ItemID int    `json:"item_id"`
	Action string `json:"action"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
	State  string `json:"state"`
}

type Plan struct {
	Mode        string   `json:"mode"`
	LibraryRoot string   `json:"library_root"`
	Template    string   `json:"template"`
	Entries     []*Entry `json:"entries"`
}

// Pending returns the number of entries that apply will execute.
func (p *Plan) Pending() int {
	n := 0
	for _, e := range p.Entries {
		if e.Action != ActionSkip && e.State == StatePlanned {
			n++
		}
	}
	return n
}

type ApplyOptions struct {
	Progress progress.Sink
}

type ApplyResult struct {
	LogPath    string `json:"log_path,omitempty"`
	Applied    int    `json:"applied"`
	Skipped    int    `json:"skipped"`
	Reconciled int    `json:"reconciled"`
	Missing    int    `json:"missing"`
	Cancelled  bool   `json:"cancelled"`
	Error      string `json:"error,omitempty"`
}

type RollbackResult struct {
	Restored int      `json:"restored"`
	Removed  int      `json:"removed"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

type Service struct {
	config *config.Config
	items  *items.Service
	now    func() time.Time
}

func NewService(db *bun.DB, cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		items:  items.NewService(db),
		now:    time.Now,
	}
}

// resolveOptions fills unset options from the configuration and validates
// them.
func (svc *Service) resolveOptions(opts PlanOptions) (PlanOptions, error) {
	if opts.Mode == "" {
		opts.Mode = svc.config.OrganizerMode
	}
	if opts.LibraryRoot == "" {
		opts.LibraryRoot = svc.config.LibraryRoot
	}
	if opts.Template == "" {
		opts.Template = svc.config.OrganizerTemplate
	}

	switch opts.Mode {
	case ModeReference:
		return opts, nil
	case ModeCopy, ModeMove:
	default:
		return opts, errcodes.ValidationError(`"mode" must be one of the following: "reference", "copy", "move"`)
	}

	if opts.LibraryRoot == "" {
		return opts, errcodes.ValidationError(`"library_root" is required`)
	}
	root, err := filepath.Abs(opts.LibraryRoot)
	if err != nil {
		return opts, errors.WithStack(err)
	}
	opts.LibraryRoot = root
	if err := ValidateTemplate(opts.Template); err != nil {
		return opts, errcodes.ValidationError(err.Error())
	}
	return opts, nil
}

// Plan renders a target path for every active file of the selected items.
// Nothing on disk changes. In reference mode every entry is skipped and only
// documents the current paths.
func (svc *Service) Plan(ctx context.Context, opts PlanOptions) (*Plan, error) {
	opts, err := svc.resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	list, err := svc.items.ListItems(ctx, items.ListItemsOptions{IDs: opts.ItemIDs})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	plan := &Plan{
		Mode:        opts.Mode,
		LibraryRoot: opts.LibraryRoot,
		Template:    opts.Template,
		Entries:     []*Entry{},
	}
	// Targets handed out earlier in this plan, so two items rendering to the
	// same path get distinct suffixes.
	reserved := map[string]struct{}{}
	taken := func(p string) bool {
		if _, ok := reserved[p]; ok {
			return true
		}
		return fileutils.Exists(p)
	}

	for _, item := range list {
		for _, file := range item.Files {
			entry := &Entry{
				FileID: file.ID,
				ItemID: item.ID,
				From:   file.Path,
				To:     file.Path,
				Action: ActionSkip,
				State:  StateSkipped,
			}
			plan.Entries = append(plan.Entries, entry)

			if opts.Mode == ModeReference {
				entry.Reason = "reference mode"
				continue
			}
			if file.Status != models.FileStatusActive {
				entry.Reason = "file is missing"
				continue
			}

			target, err := TargetPath(opts.LibraryRoot, opts.Template, ValuesFor(item, file))
			if err != nil {
				return nil, errcodes.ValidationError(err.Error())
			}
			if fileutils.IsSuffixedVariant(file.Path, target) {
				entry.Reason = "already organized"
				reserved[file.Path] = struct{}{}
				continue
			}

			target, err = fileutils.UniquePath(target, taken)
			if err != nil {
				return nil, err
			}
			reserved[target] = struct{}{}

			entry.To = target
			entry.Action = opts.Mode
			entry.State = StatePlanned
		}
	}

	return plan, nil
}

// Apply executes the plan's entries in order. Every executed operation is
// collected in a transaction log that is written once, after the last
// operation, under the library root. When an operation fails the remaining
// entries are not run and the error reports how far apply got; the log still
// covers the operations that completed.
func (svc *Service) Apply(ctx context.Context, plan *Plan, opts ApplyOptions) (*ApplyResult, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"mode": plan.Mode, "library_root": plan.LibraryRoot})
	sink := progress.OrDiscard(opts.Progress)
	result := &ApplyResult{}

	total := plan.Pending()
	var (
		txlog    []LogEntry
		done     int
		applyErr error
	)
	// Paths this apply created, on top of what is on disk.
	reserved := map[string]struct{}{}
	taken := func(p string) bool {
		if _, ok := reserved[p]; ok {
			return true
		}
		return fileutils.Exists(p)
	}

	for _, entry := range plan.Entries {
		if entry.Action == ActionSkip || entry.State != StatePlanned {
			result.Skipped++
			continue
		}
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		logEntry, err := svc.applyEntry(ctx, entry, taken)
		if err != nil {
			applyErr = err
			sink.Progress(progress.Event{Current: done, Total: total, Message: err.Error(), Status: progress.StatusError})
			break
		}
		done++

		switch entry.State {
		case StateApplied:
			result.Applied++
			reserved[entry.To] = struct{}{}
			txlog = append(txlog, *logEntry)
		case StateReconciled:
			result.Reconciled++
		case StateMissing:
			result.Missing++
		}
		sink.Progress(progress.Event{
			Current: done,
			Total:   total,
			Message: filepath.Base(entry.To),
			Status:  progress.StatusProcessing,
		})
	}

	if len(txlog) > 0 {
		logPath, err := writeLog(plan.LibraryRoot, txlog, svc.now())
		if err != nil {
			log.Err(err).Error("failed to write organizer log", logger.Data{"entries": len(txlog)})
			if applyErr == nil {
				applyErr = err
			}
		}
		result.LogPath = logPath
	}

	if applyErr != nil {
		log.Err(applyErr).Error("organize stopped", logger.Data{"completed": done, "total": total, "log_path": result.LogPath})
		result.Error = applyErr.Error()
		return result, errcodes.ApplyIncomplete(done, total, result.LogPath)
	}

	sink.Progress(progress.Event{Current: done, Total: total, Message: "Organize complete", Status: progress.StatusDone})
	log.Info("organize applied", logger.Data{
		"applied":    result.Applied,
		"reconciled": result.Reconciled,
		"missing":    result.Missing,
		"cancelled":  result.Cancelled,
		"log_path":   result.LogPath,
	})
	return result, nil
}

func (svc *Service) applyEntry(ctx context.Context, entry *Entry, taken func(string) bool) (*LogEntry, error) {
	file, err := svc.items.RetrieveFile(ctx, items.RetrieveFileOptions{ID: &entry.FileID})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if !fileutils.Exists(entry.From) {
		if entry.Action == ActionMove && fileutils.Exists(entry.To) {
			// Moved by an earlier run that never got to record it.
			if err := svc.updateFilePath(ctx, file, entry.To); err != nil {
				return nil, err
			}
			entry.State = StateReconciled
			return nil, nil
		}
		if err := svc.items.MarkFilesMissing(ctx, []int{file.ID}); err != nil {
			return nil, errors.WithStack(err)
		}
		entry.State = StateMissing
		return nil, nil
	}

	// The disk may have changed since planning.
	if fileutils.Exists(entry.To) {
		to, err := fileutils.UniquePath(entry.To, taken)
		if err != nil {
			return nil, err
		}
		entry.To = to
	}
	if err := os.MkdirAll(filepath.Dir(entry.To), 0755); err != nil {
		return nil, errors.WithStack(err)
	}

	logEntry := &LogEntry{Action: entry.Action, From: entry.From, To: entry.To, FileID: file.ID}
	switch entry.Action {
	case ActionCopy:
		if err := fileutils.CopyFile(entry.From, entry.To); err != nil {
			return nil, err
		}
		copied := &models.File{
			ItemID:     file.ItemID,
			Path:       entry.To,
			Filename:   filepath.Base(entry.To),
			Extension:  file.Extension,
			MimeType:   file.MimeType,
			SizeBytes:  file.SizeBytes,
			SHA256:     file.SHA256,
			HashAlgo:   file.HashAlgo,
			ModifiedAt: file.ModifiedAt,
		}
		if info, err := os.Stat(entry.To); err == nil {
			copied.ModifiedAt = info.ModTime()
		}
		if err := svc.items.CreateFile(ctx, copied); err != nil {
			if rmErr := os.Remove(entry.To); rmErr != nil {
				logger.FromContext(ctx).Err(rmErr).Warn("failed to remove unrecorded copy", logger.Data{"path": entry.To})
				return nil, errors.Wrapf(err, "copy left at %s", entry.To)
			}
			return nil, errors.WithStack(err)
		}
		logEntry.FileID = copied.ID
	case ActionMove:
		if err := fileutils.MoveFile(entry.From, entry.To); err != nil {
			return nil, err
		}
		if err := svc.updateFilePath(ctx, file, entry.To); err != nil {
			if rerr := fileutils.MoveFile(entry.To, entry.From); rerr != nil {
				return nil, errors.Wrapf(err, "file left at %s", entry.To)
			}
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown action %q", entry.Action)
	}

	logEntry.Timestamp = svc.now()
	entry.State = StateApplied
	return logEntry, nil
}

func (svc *Service) updateFilePath(ctx context.Context, file *models.File, path string) error {
	file.Path = path
	file.Filename = filepath.Base(path)
	file.Status = models.FileStatusActive
	err := svc.items.UpdateFile(ctx, file, items.UpdateFileOptions{Columns: []string{"path", "filename", "status"}})
	return errors.WithStack(err)
}

// Rollback undoes the operations recorded in the log at logPath, newest
// first. It keeps going past failures: copies that are already gone are
// skipped, and moves are only undone when the original path is free and the
// moved file is still where it was put. Directories left empty under the
// library root are removed afterwards.
func (svc *Service) Rollback(ctx context.Context, logPath string) (*RollbackResult, error) {
	entries, err := ReadLog(logPath)
	if err != nil {
		return nil, err
	}
	root := libraryRootForLog(logPath)
	log := logger.FromContext(ctx).Data(logger.Data{"log_path": logPath})

	result := &RollbackResult{}
	fail := func(entry LogEntry, err error) {
		log.Warn("rollback step failed", logger.Data{"action": entry.Action, "from": entry.From, "to": entry.To, "error": err.Error()})
		result.Errors = append(result.Errors, entry.To+": "+err.Error())
	}
	var dirs []string

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		switch entry.Action {
		case ActionCopy:
			err := os.Remove(entry.To)
			if err != nil && !os.IsNotExist(err) {
				fail(entry, err)
				continue
			}
			if err != nil {
				result.Skipped++
			} else {
				result.Removed++
				dirs = append(dirs, filepath.Dir(entry.To))
			}
			if err := svc.forgetCopy(ctx, entry); err != nil {
				fail(entry, err)
			}
		case ActionMove:
			if fileutils.Exists(entry.From) || !fileutils.Exists(entry.To) {
				result.Skipped++
				continue
			}
			if err := os.MkdirAll(filepath.Dir(entry.From), 0755); err != nil {
				fail(entry, err)
				continue
			}
			if err := fileutils.MoveFile(entry.To, entry.From); err != nil {
				fail(entry, err)
				continue
			}
			result.Restored++
			dirs = append(dirs, filepath.Dir(entry.To))
			if err := svc.restoreMove(ctx, entry); err != nil {
				fail(entry, err)
			}
		default:
			fail(entry, errors.Errorf("unknown action %q", entry.Action))
		}
	}

	for _, dir := range dirs {
		if isWithin(root, dir) {
			fileutils.RemoveEmptyDirs(dir, root)
		}
	}

	log.Info("rollback finished", logger.Data{
		"restored": result.Restored,
		"removed":  result.Removed,
		"skipped":  result.Skipped,
		"errors":   len(result.Errors),
	})
	return result, nil
}

// forgetCopy removes the record apply created for a copy, as long as it still
// points at the copied path.
func (svc *Service) forgetCopy(ctx context.Context, entry LogEntry) error {
	if entry.FileID == 0 {
		return nil
	}
	file, err := svc.items.RetrieveFile(ctx, items.RetrieveFileOptions{ID: &entry.FileID})
	if err != nil {
		var cerr *errcodes.Error
		if errors.As(err, &cerr) && cerr.Code == "not_found" {
			return nil
		}
		return errors.WithStack(err)
	}
	if file.Path != entry.To {
		return nil
	}
	return errors.WithStack(svc.items.DeleteFile(ctx, file.ID))
}

func (svc *Service) restoreMove(ctx context.Context, entry LogEntry) error {
	if entry.FileID == 0 {
		return nil
	}
	file, err := svc.items.RetrieveFile(ctx, items.RetrieveFileOptions{ID: &entry.FileID})
	if err != nil {
		var cerr *errcodes.Error
		if errors.As(err, &cerr) && cerr.Code == "not_found" {
			return nil
		}
		return errors.WithStack(err)
	}
	if file.Path != entry.To {
		return nil
	}
	return svc.updateFilePath(ctx, file, entry.From)
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
