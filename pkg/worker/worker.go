package worker

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/enrichment"
	"github.com/shishobooks/folio/pkg/joblogs"
	"github.com/shishobooks/folio/pkg/jobs"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/organizer"
	"github.com/shishobooks/folio/pkg/scanner"
	"github.com/uptrace/bun"
)

var processID = randStringBytes(8)

const (
	fetchInterval       = 5 * time.Second
	cancelCheckInterval = time.Second
)

type processFunc func(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) error

type Worker struct {
	config *config.Config
	log    logger.Logger

	processFuncs map[string]processFunc

	enrichmentService *enrichment.Service
	jobService        *jobs.Service
	jobLogService     *joblogs.Service
	organizerService  *organizer.Service
	scanService       *scanner.Service

	fetchInterval       time.Duration
	cancelCheckInterval time.Duration

	queue          chan *models.Job
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config, db *bun.DB) *Worker {
	w := &Worker{
		config: cfg,
		log:    logger.New(),

		enrichmentService: enrichment.NewService(db, cfg),
		jobService:        jobs.NewService(db),
		jobLogService:     joblogs.NewService(db),
		organizerService:  organizer.NewService(db, cfg),
		scanService:       scanner.NewService(db, cfg),

		fetchInterval:       fetchInterval,
		cancelCheckInterval: cancelCheckInterval,

		queue:          make(chan *models.Job, cfg.WorkerProcesses),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneProcessing: make(chan struct{}, cfg.WorkerProcesses),
	}

	w.processFuncs = map[string]processFunc{
		models.JobTypeScan:     w.ProcessScanJob,
		models.JobTypeEnrich:   w.ProcessEnrichJob,
		models.JobTypeOrganize: w.ProcessOrganizeJob,
	}

	return w
}

func (w *Worker) Start() {
	go w.fetchJobs()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
}

func (w *Worker) fetchJobs() {
	timer := time.NewTimer(w.fetchInterval)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			j, err := w.jobService.ListJobs(context.Background(), jobs.ListJobsOptions{
				Limit:              pointerutil.Int(1),
				Statuses:           []string{models.JobStatusPending, models.JobStatusInProgress},
				ProcessIDToExclude: &processID,
			})
			if err != nil {
				w.log.Err(err).Error("list jobs error")
				timer.Reset(w.fetchInterval)
				continue
			}
			for _, job := range j {
				select {
				case w.queue <- job:
				case <-w.shutdown:
				}
			}
			timer.Reset(w.fetchInterval)
		}
	}
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			w.runJob(job)
		}
	}
}

// runJob claims job for this process, runs its process function and records
// the final status. A job cancelled through the API keeps its cancelled
// status.
func (w *Worker) runJob(job *models.Job) {
	// Prep the context to be passed down to the process function.
	id, err := uuid.NewRandom()
	if err != nil {
		w.log.Err(err).Error("new uuid error")
		return
	}
	log := w.log.ID(id.String()).Root(logger.Data{"job_id": job.ID, "type": job.Type, "process_id": processID})
	ctx := log.WithContext(context.Background())

	// It may have been cancelled, or fetched twice, while it sat in the
	// queue.
	status, err := w.jobService.RetrieveJobStatus(ctx, job.ID)
	if err != nil {
		log.Err(err).Error("retrieve job status error")
		return
	}
	if status != models.JobStatusPending && status != models.JobStatusInProgress {
		job.Status = status
		return
	}

	// Update job to be in progress and claimed by this process.
	job.Status = models.JobStatusInProgress
	job.ProcessID = &processID

	err = w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
		Columns: []string{"status", "process_id"},
	})
	if err != nil {
		log.Err(err).Error("update job error")
		return
	}

	jl := w.jobLogService.NewJobLogger(ctx, job.ID, log)

	// Find and invoke the appropriate process function.
	fn, ok := w.processFuncs[job.Type]
	if !ok {
		err = errors.Errorf("can't find process function for type %q", job.Type)
	} else {
		var cancelled atomic.Bool
		runCtx, cancel := context.WithCancel(ctx)
		go w.watchCancellation(runCtx, job.ID, cancel, &cancelled)

		err = w.invoke(runCtx, fn, job, jl)
		cancel()

		// The cancel may have landed after the last status check.
		if s, serr := w.jobService.RetrieveJobStatus(ctx, job.ID); serr == nil && s == models.JobStatusCancelled {
			cancelled.Store(true)
		}
		if cancelled.Load() {
			jl.Info("job cancelled", nil)
			job.Status = models.JobStatusCancelled
			return
		}
	}

	if err != nil {
		jl.Error("job failed", err, nil)
		job.Status = models.JobStatusFailed
	} else {
		jl.Info("job completed", nil)
		// Update job to be completed so that it's not picked up anymore.
		job.Status = models.JobStatusCompleted
		job.Progress = 100
	}

	err = w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
		Columns: []string{"status", "progress"},
	})
	if err != nil {
		log.Err(err).Error("update job error")
	}
}

// invoke runs fn and turns a panic into an error so one bad job can't take
// the worker down.
func (w *Worker) invoke(ctx context.Context, fn processFunc, job *models.Job, jl *joblogs.JobLogger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
			jl.Fatal("job panicked", err, logger.Data{"panic": fmt.Sprint(r)})
		}
	}()
	return fn(ctx, job, jl)
}

// watchCancellation polls the job's status until ctx is done, cancelling the
// run once the job has been marked cancelled.
func (w *Worker) watchCancellation(ctx context.Context, jobID int, cancel context.CancelFunc, cancelled *atomic.Bool) {
	ticker := time.NewTicker(w.cancelCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := w.jobService.RetrieveJobStatus(ctx, jobID)
			if err != nil {
				if ctx.Err() == nil {
					logger.FromContext(ctx).Err(err).Error("check job status error")
				}
				continue
			}
			if status == models.JobStatusCancelled {
				cancelled.Store(true)
				cancel()
				return
			}
		}
	}
}

func (w *Worker) Shutdown() {
	close(w.shutdown)

	<-w.doneFetching
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
