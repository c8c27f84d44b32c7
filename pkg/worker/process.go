package worker

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/enrichment"
	"github.com/shishobooks/folio/pkg/joblogs"
	"github.com/shishobooks/folio/pkg/jobs"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/organizer"
	"github.com/shishobooks/folio/pkg/progress"
	"github.com/shishobooks/folio/pkg/scanner"
)

// jobProgress mirrors engine progress into the job row and its log.
type jobProgress struct {
	ctx        context.Context
	jobService *jobs.Service
	job        *models.Job
	jl         *joblogs.JobLogger
}

func (p *jobProgress) Progress(e progress.Event) {
	p.jl.Progress(e)
	if e.Total <= 0 {
		return
	}
	pct := e.Percent()
	if pct == p.job.Progress {
		return
	}
	p.job.Progress = pct
	err := p.jobService.UpdateJob(p.ctx, p.job, jobs.UpdateJobOptions{Columns: []string{"progress"}})
	if err != nil {
		logger.FromContext(p.ctx).Err(err).Error("update job progress error")
	}
}

func (w *Worker) progressFor(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) progress.Sink {
	return &jobProgress{ctx: ctx, jobService: w.jobService, job: job, jl: jl}
}

func (w *Worker) saveData(ctx context.Context, job *models.Job) error {
	return errors.WithStack(w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{Columns: []string{"data"}}))
}

func (w *Worker) ProcessScanJob(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) error {
	data, ok := job.DataParsed.(*models.JobScanData)
	if !ok {
		return errors.Errorf("unexpected data for scan job: %T", job.DataParsed)
	}

	jl.Info("scan started", logger.Data{"root": data.RootPath})
	result, err := w.scanService.Scan(ctx, scanner.ScanOptions{
		RootPath:   data.RootPath,
		Extensions: data.Extensions,
		Progress:   w.progressFor(ctx, job, jl),
	})
	if result != nil {
		data.SessionID = &result.SessionID
		// The session id must be saved even when the run was cancelled.
		if serr := w.saveData(context.WithoutCancel(ctx), job); serr != nil {
			jl.Error("failed to save scan session id", serr, nil)
		}
	}
	if err != nil {
		return errors.WithStack(err)
	}

	jl.Info("scan finished", logger.Data{
		"session_id": result.SessionID,
		"status":     result.Status,
		"added":      result.Added,
		"updated":    result.Updated,
		"moved":      result.Moved,
		"unchanged":  result.Unchanged,
		"missing":    result.Missing,
		"errors":     result.Errors,
	})
	return nil
}

func (w *Worker) ProcessEnrichJob(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) error {
	data, ok := job.DataParsed.(*models.JobEnrichData)
	if !ok {
		return errors.Errorf("unexpected data for enrich job: %T", job.DataParsed)
	}

	jl.Info("enrichment started", logger.Data{"item_ids": len(data.ItemIDs), "only_missing": data.OnlyMissing})
	result, err := w.enrichmentService.EnrichAll(ctx, enrichment.EnrichAllOptions{
		ItemIDs:     data.ItemIDs,
		OnlyMissing: data.OnlyMissing,
		Progress:    w.progressFor(ctx, job, jl),
	})
	if result != nil {
		data.Enriched = result.Enriched
		if serr := w.saveData(context.WithoutCancel(ctx), job); serr != nil {
			jl.Error("failed to save enrichment counts", serr, nil)
		}
	}
	if err != nil {
		return errors.WithStack(err)
	}

	jl.Info("enrichment finished", logger.Data{
		"processed": result.Processed,
		"enriched":  result.Enriched,
		"no_match":  result.NoMatch,
		"failed":    result.Failed,
	})
	return nil
}

func (w *Worker) ProcessOrganizeJob(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) error {
	data, ok := job.DataParsed.(*models.JobOrganizeData)
	if !ok {
		return errors.Errorf("unexpected data for organize job: %T", job.DataParsed)
	}

	plan, err := w.organizerService.Plan(ctx, organizer.PlanOptions{
		Mode:        data.Mode,
		LibraryRoot: data.LibraryRoot,
		Template:    data.Template,
		ItemIDs:     data.ItemIDs,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	jl.Info("organize planned", logger.Data{"entries": len(plan.Entries), "pending": plan.Pending()})

	result, err := w.organizerService.Apply(ctx, plan, organizer.ApplyOptions{
		Progress: w.progressFor(ctx, job, jl),
	})
	if result != nil && result.LogPath != "" {
		data.LogPath = result.LogPath
		if serr := w.saveData(context.WithoutCancel(ctx), job); serr != nil {
			jl.Error("failed to save organizer log path", serr, nil)
		}
	}
	if err != nil {
		return errors.WithStack(err)
	}

	jl.Info("organize finished", logger.Data{
		"applied":    result.Applied,
		"reconciled": result.Reconciled,
		"missing":    result.Missing,
		"log_path":   result.LogPath,
	})
	return nil
}
