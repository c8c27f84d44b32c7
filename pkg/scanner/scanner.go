package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/extractor"
	"github.com/shishobooks/folio/pkg/items"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/progress"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

const (
	entryFlushSize = 100

	filenameTitleConfidence = 0.3
)

type ScanOptions struct {
	RootPath string
	// Extensions overrides the configured allowlist when non-empty.
	Extensions []string
	Progress   progress.Sink
}

// ScanResult holds the delta counts of one scan session. Duplicates are
// included in Added.
type ScanResult struct {
	SessionID  int     `json:"session_id"`
	Status     string  `json:"status"`
	Stage      string  `json:"stage,omitempty"`
	Error      string  `json:"error,omitempty"`
	Added      int     `json:"added"`
	Updated    int     `json:"updated"`
	Moved      int     `json:"moved"`
	Unchanged  int     `json:"unchanged"`
	Missing    int     `json:"missing"`
	Duplicates int     `json:"duplicates"`
	Errors     int     `json:"errors"`
	Duration   float64 `json:"duration_seconds"`
}

type Service struct {
	config   *config.Config
	items    *items.Service
	sessions *SessionService

	// hashLocks serializes classification of files that share a content hash,
	// so two scans running at once can't both create an item for it. Hashes
	// share a fixed set of stripes so the set doesn't grow with the library.
	hashLocks [hashLockStripes]sync.Mutex
}

const hashLockStripes = 256

func NewService(db *bun.DB, cfg *config.Config) *Service {
	return &Service{
		config:   cfg,
		items:    items.NewService(db),
		sessions: NewSessionService(db),
	}
}

// run is the state of a single scan session.
type run struct {
	svc     *Service
	session *models.ScanSession
	result  *ScanResult
	root    string
	sink    progress.Sink

	existing map[string]*models.File
	seen     map[string]struct{}
	// unreadable directories keep their stored files from being marked
	// missing.
	unreadable []string
	entries    []*models.ScanEntry
}

// Scan walks RootPath, classifies every allowlisted file against the stored
// file records and records the outcome as a scan session. It is safe to run
// repeatedly: on an unchanged tree every file is classified unchanged.
//
// Per-file problems become issues and never fail the session. Only an
// unreadable root or a database failure does, in which case the session is
// marked failed with the stage it reached and an error is returned along with
// the partial result. Cancelling ctx stops the scan between files and marks
// the session cancelled.
func (svc *Service) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	log := logger.FromContext(ctx)
	started := time.Now()

	root, err := filepath.Abs(opts.RootPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	root = filepath.Clean(root)

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = svc.config.ScanExtensions
	}

	stage := models.ScanStageWalk
	r := &run{
		svc:     svc,
		session: &models.ScanSession{RootPath: root, Stage: &stage},
		root:    root,
		sink:    progress.OrDiscard(opts.Progress),
		seen:    map[string]struct{}{},
	}
	if err := svc.sessions.CreateSession(ctx, r.session); err != nil {
		return nil, errors.WithStack(err)
	}
	r.result = &ScanResult{SessionID: r.session.ID, Status: models.ScanStatusRunning}
	log = log.Data(logger.Data{"session_id": r.session.ID, "root": root})
	ctx = log.WithContext(ctx)
	log.Info("starting scan")

	defer func() {
		r.result.Duration = time.Since(started).Seconds()
	}()

	r.sink.Progress(progress.Event{Message: "Listing " + root, Status: progress.StatusPending})

	files, problems, err := walk(root, normalizeExtensions(exts))
	if err != nil {
		log.Err(err).Error("scan root is unreadable")
		return r.result, r.fail(ctx, errcodes.RootUnreadable(root), err)
	}
	for _, p := range problems {
		if err := r.recordWalkProblem(ctx, p); err != nil {
			return r.result, r.fail(ctx, err, err)
		}
	}
	log.Info("found files", logger.Data{"count": len(files)})

	existing, err := svc.items.ListFiles(ctx, items.ListFilesOptions{Root: &root})
	if err != nil {
		return r.result, r.fail(ctx, err, err)
	}
	r.existing = make(map[string]*models.File, len(existing))
	for _, f := range existing {
		if cur, ok := r.existing[f.Path]; !ok || (cur.Status != models.FileStatusActive && f.Status == models.FileStatusActive) {
			r.existing[f.Path] = f
		}
	}

	if err := r.setStage(ctx, models.ScanStageClassify); err != nil {
		return r.result, r.fail(ctx, err, err)
	}

	cancelled, err := r.classifyAll(ctx, files)
	if err != nil {
		return r.result, r.fail(ctx, err, err)
	}
	if cancelled {
		log.Info("scan cancelled", logger.Data{"processed": len(r.seen)})
		return r.result, r.finish(context.WithoutCancel(ctx), models.ScanStatusCancelled)
	}

	if err := r.setStage(ctx, models.ScanStageMissing); err != nil {
		return r.result, r.fail(ctx, err, err)
	}
	if err := r.markMissing(ctx); err != nil {
		return r.result, r.fail(ctx, err, err)
	}

	if err := r.finish(ctx, models.ScanStatusSuccess); err != nil {
		return r.result, errors.WithStack(err)
	}
	log.Info("finished scan", logger.Data{
		"added":     r.result.Added,
		"updated":   r.result.Updated,
		"moved":     r.result.Moved,
		"unchanged": r.result.Unchanged,
		"missing":   r.result.Missing,
	})
	r.sink.Progress(progress.Event{
		Current: len(files),
		Total:   len(files),
		Message: fmt.Sprintf("%d added, %d updated, %d moved, %d unchanged, %d missing",
			r.result.Added, r.result.Updated, r.result.Moved, r.result.Unchanged, r.result.Missing),
		Status: progress.StatusDone,
	})

	return r.result, nil
}

// classifyAll fingerprints files on a bounded pool and classifies them in
// discovery order as their fingerprints become ready. It reports whether the
// context was cancelled before every file was classified.
func (r *run) classifyAll(ctx context.Context, files []discoveredFile) (bool, error) {
	hashCtx, stopHashing := context.WithCancel(ctx)
	defer stopHashing()

	fingerprints := make([]fingerprint, len(files))
	unchanged := make([]bool, len(files))
	ready := make([]chan struct{}, len(files))
	for i, f := range files {
		unchanged[i] = r.isUnchanged(f)
		ready[i] = make(chan struct{})
	}

	workers := r.svc.config.ScanHashWorkers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(hashCtx)
	g.SetLimit(workers)

	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		for i, f := range files {
			i, f := i, f
			if unchanged[i] {
				close(ready[i])
				continue
			}
			g.Go(func() error {
				defer close(ready[i])
				if gctx.Err() != nil {
					fingerprints[i] = fingerprint{err: gctx.Err()}
					return nil
				}
				fingerprints[i] = fingerprintFile(f.path, strings.ToLower(filepath.Ext(f.path)))
				return nil
			})
		}
	}()
	defer func() {
		stopHashing()
		<-submitted
		_ = g.Wait()
	}()

	for i, f := range files {
		if ctx.Err() != nil {
			return true, nil
		}
		select {
		case <-ready[i]:
		case <-ctx.Done():
			return true, nil
		}

		action, err := r.classify(ctx, f, fingerprints[i], unchanged[i])
		if err != nil {
			return false, err
		}

		status := progress.StatusProcessing
		if action == models.ScanActionError {
			status = progress.StatusError
		}
		r.sink.Progress(progress.Event{
			Current: i + 1,
			Total:   len(files),
			Message: fmt.Sprintf("%s %s", action, f.path),
			Status:  status,
		})
	}

	return false, nil
}

func (r *run) isUnchanged(f discoveredFile) bool {
	existing, ok := r.existing[f.path]
	return ok &&
		existing.Status == models.FileStatusActive &&
		existing.SizeBytes == f.size &&
		sameModTime(existing.ModifiedAt, f.modTime)
}

// sameModTime compares at millisecond precision, which survives the round
// trip through the database.
func sameModTime(a, b time.Time) bool {
	return a.Truncate(time.Millisecond).Equal(b.Truncate(time.Millisecond))
}

// classify decides what happened to one discovered file and applies it. The
// returned error is only set for database failures.
func (r *run) classify(ctx context.Context, f discoveredFile, fp fingerprint, unchanged bool) (string, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"path": f.path})
	r.seen[f.path] = struct{}{}
	existing := r.existing[f.path]

	if unchanged {
		r.result.Unchanged++
		return models.ScanActionUnchanged, r.addEntry(ctx, f, existing.SHA256, models.ScanActionUnchanged, &existing.ID)
	}

	if fp.err != nil {
		log.Warn("can't read file", logger.Data{"error": fp.err.Error()})
		r.result.Errors++
		err := r.svc.items.CreateIssue(ctx, &models.Issue{
			FileID:    fileID(existing),
			SessionID: &r.session.ID,
			Type:      models.IssueTypeIOError,
			Message:   fmt.Sprintf("Unable to read %s: %s", f.path, fp.err.Error()),
			Severity:  models.IssueSeverityError,
		})
		if err != nil {
			return "", errors.WithStack(err)
		}
		return models.ScanActionError, r.addEntry(ctx, f, "", models.ScanActionError, fileID(existing))
	}
	if fp.mimeMismatch {
		log.Warn("mime type is not expected for extension", logger.Data{"mimetype": fp.mimeType})
		r.result.Errors++
		err := r.svc.items.CreateIssue(ctx, &models.Issue{
			FileID:    fileID(existing),
			SessionID: &r.session.ID,
			Type:      models.IssueTypeMimeMismatch,
			Message:   fmt.Sprintf("%s has content type %s, which doesn't match its extension.", f.path, fp.mimeType),
			Severity:  models.IssueSeverityWarning,
		})
		if err != nil {
			return "", errors.WithStack(err)
		}
		return models.ScanActionError, r.addEntry(ctx, f, "", models.ScanActionError, fileID(existing))
	}

	mu := r.svc.hashLock(fp.sha256)
	mu.Lock()
	defer mu.Unlock()

	// A record at this exact path wins over hash matches elsewhere, so two
	// records never claim one path.
	if existing != nil {
		if existing.SHA256 == fp.sha256 {
			action := models.ScanActionUnchanged
			if existing.Status != models.FileStatusActive {
				action = models.ScanActionMoved
				r.result.Moved++
			} else {
				r.result.Unchanged++
			}
			if err := r.refreshFile(ctx, existing, f, fp, false); err != nil {
				return "", err
			}
			return action, r.addEntry(ctx, f, fp.sha256, action, &existing.ID)
		}

		log.Info("file content changed", logger.Data{"file_id": existing.ID})
		if err := r.refreshFile(ctx, existing, f, fp, true); err != nil {
			return "", err
		}
		md := extractor.Extract(ctx, f.path)
		if _, err := r.svc.items.ApplyMetadata(ctx, existing.ItemID, md, models.FieldSourceEmbedded, extractor.ConfidenceEmbedded); err != nil {
			return "", errors.WithStack(err)
		}
		r.result.Updated++
		return models.ScanActionUpdated, r.addEntry(ctx, f, fp.sha256, models.ScanActionUpdated, &existing.ID)
	}

	candidates, err := r.svc.items.ListFiles(ctx, items.ListFilesOptions{SHA256: &fp.sha256})
	if err != nil {
		return "", errors.WithStack(err)
	}
	sortCandidates(candidates)

	for _, c := range candidates {
		if _, err := os.Stat(c.Path); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		log.Info("file moved", logger.Data{"file_id": c.ID, "from": c.Path})
		delete(r.existing, c.Path)
		c.Path = f.path
		if err := r.refreshFile(ctx, c, f, fp, true); err != nil {
			return "", err
		}
		r.existing[f.path] = c
		r.result.Moved++
		return models.ScanActionMoved, r.addEntry(ctx, f, fp.sha256, models.ScanActionMoved, &c.ID)
	}

	if len(candidates) > 0 {
		original := candidates[0]
		log.Info("file is a duplicate", logger.Data{"of_file_id": original.ID})
		file, err := r.createFile(ctx, original.ItemID, f, fp)
		if err != nil {
			return "", err
		}
		err = r.svc.items.CreateIssue(ctx, &models.Issue{
			ItemID:    &original.ItemID,
			FileID:    &file.ID,
			SessionID: &r.session.ID,
			Type:      models.IssueTypeDuplicate,
			Message:   fmt.Sprintf("%s has the same content as %s.", f.path, original.Path),
			Severity:  models.IssueSeverityInfo,
		})
		if err != nil {
			return "", errors.WithStack(err)
		}
		r.result.Added++
		r.result.Duplicates++
		return models.ScanActionDuplicate, r.addEntry(ctx, f, fp.sha256, models.ScanActionDuplicate, &file.ID)
	}

	file, err := r.createItem(ctx, f, fp)
	if err != nil {
		return "", err
	}
	r.result.Added++
	return models.ScanActionAdded, r.addEntry(ctx, f, fp.sha256, models.ScanActionAdded, &file.ID)
}

// sortCandidates orders hash matches active first, then by path, so the same
// record is always picked when content is duplicated.
func sortCandidates(files []*models.File) {
	sort.SliceStable(files, func(i, j int) bool {
		ai := files[i].Status == models.FileStatusActive
		aj := files[j].Status == models.FileStatusActive
		if ai != aj {
			return ai
		}
		return files[i].Path < files[j].Path
	})
}

// hashLock picks the stripe for a hex sha256 from its leading byte.
func (svc *Service) hashLock(hash string) *sync.Mutex {
	var stripe uint64
	if len(hash) >= 2 {
		stripe, _ = strconv.ParseUint(hash[:2], 16, 8)
	}
	return &svc.hashLocks[stripe%hashLockStripes]
}

// createItem creates an item seeded from the file's embedded metadata, plus
// the file record itself.
func (r *run) createItem(ctx context.Context, f discoveredFile, fp fingerprint) (*models.File, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"path": f.path})
	md := extractor.Extract(ctx, f.path)

	title := md.Title
	titleSource := models.FieldSourceEmbedded
	titleConfidence := extractor.ConfidenceEmbedded
	if title == "" {
		title = extractor.FallbackTitle(f.path)
		titleSource = models.FieldSourceFilename
		titleConfidence = filenameTitleConfidence
	}

	item := &models.Item{Title: title}
	if err := r.svc.items.CreateItem(ctx, item); err != nil {
		return nil, errors.WithStack(err)
	}
	log.Info("created item", logger.Data{"item_id": item.ID, "title": title})

	err := r.svc.items.RecordFieldSources(ctx, item.ID, []*models.FieldSource{
		{Field: "title", Source: titleSource, Confidence: titleConfidence},
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if _, err := r.svc.items.ApplyMetadata(ctx, item.ID, md, models.FieldSourceEmbedded, extractor.ConfidenceEmbedded); err != nil {
		return nil, errors.WithStack(err)
	}

	file, err := r.createFile(ctx, item.ID, f, fp)
	if err != nil {
		return nil, err
	}

	if missing := extractor.MissingFields(md); len(missing) > 0 {
		err := r.svc.items.CreateIssue(ctx, &models.Issue{
			ItemID:    &item.ID,
			FileID:    &file.ID,
			SessionID: &r.session.ID,
			Type:      models.IssueTypeMissingMetadata,
			Message:   missingMetadataMessage(missing),
			Severity:  models.IssueSeverityWarning,
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return file, nil
}

func missingMetadataMessage(fields []string) string {
	return "Missing metadata: " + strings.Join(fields, ", ") + "."
}

func (r *run) createFile(ctx context.Context, itemID int, f discoveredFile, fp fingerprint) (*models.File, error) {
	file := &models.File{
		ItemID:     itemID,
		Path:       f.path,
		Filename:   filepath.Base(f.path),
		Extension:  fileExtension(f.path),
		MimeType:   mimeType(fp),
		SizeBytes:  f.size,
		SHA256:     fp.sha256,
		HashAlgo:   models.HashAlgoSHA256,
		ModifiedAt: f.modTime,
		Status:     models.FileStatusActive,
	}
	if err := r.svc.items.CreateFile(ctx, file); err != nil {
		return nil, errors.WithStack(err)
	}
	r.existing[f.path] = file
	return file, nil
}

// refreshFile brings a stored record in line with what is on disk. The
// record's item linkage is never touched.
func (r *run) refreshFile(ctx context.Context, file *models.File, f discoveredFile, fp fingerprint, contentChanged bool) error {
	file.Path = f.path
	file.Filename = filepath.Base(f.path)
	file.Extension = fileExtension(f.path)
	file.SizeBytes = f.size
	file.ModifiedAt = f.modTime
	file.Status = models.FileStatusActive
	columns := []string{"path", "filename", "extension", "size_bytes", "modified_at", "status"}
	if contentChanged {
		file.SHA256 = fp.sha256
		file.HashAlgo = models.HashAlgoSHA256
		file.MimeType = mimeType(fp)
		columns = append(columns, "sha256", "hash_algo", "mime_type")
	}
	return errors.WithStack(r.svc.items.UpdateFile(ctx, file, items.UpdateFileOptions{Columns: columns}))
}

// markMissing flips every active record under the root that this session
// didn't see to missing.
func (r *run) markMissing(ctx context.Context) error {
	active := models.FileStatusActive
	files, err := r.svc.items.ListFiles(ctx, items.ListFilesOptions{Root: &r.root, Status: &active})
	if err != nil {
		return errors.WithStack(err)
	}

	var ids []int
	for _, file := range files {
		if _, ok := r.seen[file.Path]; ok || r.underUnreadable(file.Path) {
			continue
		}
		ids = append(ids, file.ID)
		id := file.ID
		r.entries = append(r.entries, &models.ScanEntry{
			SessionID:  r.session.ID,
			Path:       file.Path,
			ModifiedAt: &file.ModifiedAt,
			SizeBytes:  &file.SizeBytes,
			SHA256:     &file.SHA256,
			Action:     models.ScanActionMissing,
			FileID:     &id,
		})
	}
	if err := r.svc.items.MarkFilesMissing(ctx, ids); err != nil {
		return errors.WithStack(err)
	}
	r.result.Missing = len(ids)
	if len(ids) > 0 {
		logger.FromContext(ctx).Info("marked files missing", logger.Data{"count": len(ids)})
	}
	return r.flushEntries(ctx)
}

func (r *run) underUnreadable(path string) bool {
	for _, dir := range r.unreadable {
		if strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (r *run) recordWalkProblem(ctx context.Context, p walkProblem) error {
	logger.FromContext(ctx).Warn("can't read path", logger.Data{"path": p.path, "error": p.message})
	r.result.Errors++
	issueType := models.IssueTypeIOError
	if p.dir {
		issueType = models.IssueTypeUnreadableDirectory
	}
	err := r.svc.items.CreateIssue(ctx, &models.Issue{
		SessionID: &r.session.ID,
		Type:      issueType,
		Message:   fmt.Sprintf("Unable to read %s: %s", p.path, p.message),
		Severity:  models.IssueSeverityError,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if p.dir {
		r.unreadable = append(r.unreadable, p.path)
		return nil
	}
	r.seen[p.path] = struct{}{}
	return r.addEntry(ctx, discoveredFile{path: p.path}, "", models.ScanActionError, nil)
}

func (r *run) addEntry(ctx context.Context, f discoveredFile, hash, action string, fileID *int) error {
	entry := &models.ScanEntry{
		SessionID: r.session.ID,
		Path:      f.path,
		Action:    action,
		FileID:    fileID,
	}
	if !f.modTime.IsZero() {
		modTime := f.modTime
		size := f.size
		entry.ModifiedAt = &modTime
		entry.SizeBytes = &size
	}
	if hash != "" {
		entry.SHA256 = &hash
	}
	r.entries = append(r.entries, entry)
	if len(r.entries) >= entryFlushSize {
		return r.flushEntries(ctx)
	}
	return nil
}

func (r *run) flushEntries(ctx context.Context) error {
	if len(r.entries) == 0 {
		return nil
	}
	if err := r.svc.sessions.CreateEntries(ctx, r.entries); err != nil {
		return errors.WithStack(err)
	}
	r.entries = nil
	return nil
}

func (r *run) setStage(ctx context.Context, stage string) error {
	r.session.Stage = &stage
	return errors.WithStack(r.svc.sessions.UpdateSession(ctx, r.session, UpdateSessionOptions{Columns: []string{"stage"}}))
}

// finish flushes pending entries and stores the terminal status and counters.
func (r *run) finish(ctx context.Context, status string) error {
	if err := r.flushEntries(ctx); err != nil {
		return errors.WithStack(err)
	}

	now := time.Now()
	r.session.EndedAt = &now
	r.session.Status = status
	r.session.Added = r.result.Added
	r.session.Updated = r.result.Updated
	r.session.Moved = r.result.Moved
	r.session.Unchanged = r.result.Unchanged
	r.session.Missing = r.result.Missing

	r.result.Status = status
	if r.session.Stage != nil {
		r.result.Stage = *r.session.Stage
	}

	return errors.WithStack(r.svc.sessions.UpdateSession(ctx, r.session, UpdateSessionOptions{
		Columns: []string{"ended_at", "status", "stage", "error", "added", "updated", "moved", "unchanged", "missing"},
	}))
}

// fail records the session as failed at its current stage. It returns
// returnErr, which is what the caller of Scan sees, while cause is what gets
// stored on the session.
func (r *run) fail(ctx context.Context, returnErr, cause error) error {
	ctx = context.WithoutCancel(ctx)
	msg := cause.Error()
	r.session.Error = &msg
	r.result.Error = msg
	r.sink.Progress(progress.Event{Message: msg, Status: progress.StatusError})

	if err := r.finish(ctx, models.ScanStatusFailed); err != nil {
		logger.FromContext(ctx).Err(err).Error("failed to record scan failure")
	}
	return errors.WithStack(returnErr)
}

func fileID(f *models.File) *int {
	if f == nil {
		return nil
	}
	return &f.ID
}

func fileExtension(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func mimeType(fp fingerprint) *string {
	if fp.mimeType == "" {
		return nil
	}
	m := fp.mimeType
	return &m
}
