// Package jobs runs upload batches: it hands out upload grants, waits for
// the bytes to land in blob storage, and dispatches every arrived file to
// its Format Processor. A file's failure is recorded on that file only.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/naming"
	"geo-ingest-backend/internal/processors"
	"geo-ingest-backend/internal/repository"
	"geo-ingest-backend/internal/supabase"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Job event names published on the job:<id> channel.
const (
	EventJobCreated = "job_created"
	EventJobStatus  = "job_status"
	EventFileStatus = "file_status"
)

var (
	ErrNoFiles      = errors.New("at least one file is required")
	ErrMissingScope = errors.New("company_id and project_id are required")
)

// BlobStore is the part of blob storage the coordinator needs.
type BlobStore interface {
	CreateUploadGrant(objectPath string, size int64) (*supabase.Grant, error)
	Stat(objectPath string) (int64, error)
}

type EventPublisher interface {
	PublishJobEvent(jobID uuid.UUID, event string, payload map[string]interface{})
}

// Limits bound the processing of one file. Soft cancels the processor's
// context; Hard abandons the file even if the processor ignores that.
type Limits struct {
	Soft time.Duration
	Hard time.Duration
}

// DefaultLimits are the per-category processing limits. Terrain models get
// longer because they are usually the largest uploads.
func DefaultLimits() map[string]Limits {
	standard := Limits{Soft: 600 * time.Second, Hard: 600 * time.Second}
	return map[string]Limits{
		naming.CategoryVector:  standard,
		naming.CategoryRaster:  standard,
		naming.CategoryImagery: standard,
		naming.CategoryTerrain: {Soft: 900 * time.Second, Hard: 1000 * time.Second},
	}
}

type Options struct {
	PollChecks   int
	PollInterval time.Duration
	Workers      int
	Limits       map[string]Limits
}

// Coordinator owns every running job of the process. Waiting jobs hold no
// goroutine: each arrival check is a timer that re-enqueues the next one.
type Coordinator struct {
	repo    *repository.Repository
	blob    BlobStore
	events  EventPublisher
	runners map[string]processors.Runner
	opts    Options
	workers *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

// NewCoordinator builds a coordinator. runners maps a content category to
// its processor; files of a category without a runner fail.
func NewCoordinator(repo *repository.Repository, blob BlobStore, events EventPublisher, runners map[string]processors.Runner, opts Options) *Coordinator {
	if opts.PollChecks < 1 {
		opts.PollChecks = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Limits == nil {
		opts.Limits = DefaultLimits()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		repo:    repo,
		blob:    blob,
		events:  events,
		runners: runners,
		opts:    opts,
		workers: semaphore.NewWeighted(int64(opts.Workers)),
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[uuid.UUID]*time.Timer),
	}
}

// RequestUploads classifies each descriptor, issues a write grant per file
// and starts a job that waits for the uploads.
func (c *Coordinator) RequestUploads(ctx context.Context, userID string, req models.RequestUploadsRequest) (*models.RequestUploadsResponse, error) {
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}
	if strings.TrimSpace(req.CompanyID) == "" || strings.TrimSpace(req.ProjectID) == "" {
		return nil, ErrMissingScope
	}

	next := time.Now().Add(c.opts.PollInterval)
	job := &models.UploadJob{
		ID:          uuid.New(),
		CompanyID:   req.CompanyID,
		ProjectID:   req.ProjectID,
		UserID:      userID,
		Status:      models.JobWaitingForUpload,
		NextCheckAt: &next,
	}
	resp := &models.RequestUploadsResponse{JobID: job.ID}

	for _, d := range req.Files {
		if err := CheckSupported(d.Filename); err != nil {
			return nil, err
		}
	}
	for _, d := range req.Files {
		category := Classify(d.Filename, d.Category)
		key, err := NewStorageKey(d.Filename)
		if err != nil {
			return nil, err
		}
		path := StoragePath(req.CompanyID, req.ProjectID, category, key)

		grant, err := c.blob.CreateUploadGrant(path, d.Size)
		if err != nil {
			return nil, fmt.Errorf("failed to create upload grant for %s: %w", d.Filename, err)
		}

		job.Files = append(job.Files, models.JobFile{
			OriginalFilename: d.Filename,
			StorageKey:       key,
			StoragePath:      path,
			Category:         category,
			ContentType:      d.ContentType,
			Size:             d.Size,
			Title:            d.Title,
			Description:      d.Description,
			TerrainType:      d.TerrainType,
			Latitude:         d.Latitude,
			Longitude:        d.Longitude,
			Status:           models.FileWaitingForUpload,
		})
		resp.Grants = append(resp.Grants, models.UploadGrant{
			Filename:   d.Filename,
			StorageKey: key,
			Path:       path,
			Category:   category,
			UploadURL:  grant.URL,
			Token:      grant.Token,
			ExpiresAt:  grant.ExpiresAt,
		})
	}

	if err := c.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	log.Printf("Created upload job %s with %d files for project %s", job.ID, len(job.Files), job.ProjectID)
	c.events.PublishJobEvent(job.ID, EventJobCreated, supabase.JobStatusPayload(job.ID, job.Status, 0, 0))

	c.schedule(job.ID, c.opts.PollInterval)
	return resp, nil
}

// GetJobStatus reports every file with its status and error plus the
// aggregate counts.
func (c *Coordinator) GetJobStatus(ctx context.Context, id uuid.UUID) (*models.JobStatusResponse, error) {
	job, err := c.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &models.JobStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
		Files:       make([]models.FileStatus, 0, len(job.Files)),
	}
	for _, f := range job.Files {
		switch f.Status {
		case models.FileCompleted:
			resp.ProcessedFiles++
		case models.FileFailed, models.FileTimeout:
			resp.FailedFiles++
		}
		resp.Files = append(resp.Files, models.FileStatus{
			Filename: f.OriginalFilename,
			Category: f.Category,
			Status:   f.Status,
			Error:    f.Error,
			ResultID: f.ResultID,
		})
	}
	return resp, nil
}

// Resume picks up jobs left open by a previous process. Waiting jobs get
// their next check scheduled; processing jobs finish the files that had
// arrived. A file that was mid-processing is failed, since its processor
// may already have created rows.
func (c *Coordinator) Resume(ctx context.Context) error {
	open, err := c.repo.ListOpenJobs(ctx)
	if err != nil {
		return err
	}
	for i := range open {
		job := open[i]
		switch job.Status {
		case models.JobWaitingForUpload:
			delay := time.Duration(0)
			if job.NextCheckAt != nil {
				delay = time.Until(*job.NextCheckAt)
			}
			if delay < 0 {
				delay = 0
			}
			c.schedule(job.ID, delay)
		case models.JobProcessing:
			for _, f := range job.Files {
				if f.Status == models.FileProcessing {
					c.finishFile(job.ID, f, models.FileFailed, "interrupted by restart", nil)
				}
			}
			c.spawn(func() { c.process(job.ID) })
		}
	}
	log.Printf("Resumed %d open upload jobs", len(open))
	return nil
}

// Close stops pending checks and waits for running work to return.
func (c *Coordinator) Close() {
	c.cancel()
	c.mu.Lock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) spawn(fn func()) {
	if c.ctx.Err() != nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// schedule re-enqueues an arrival check after delay.
func (c *Coordinator) schedule(id uuid.UUID, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return
	}
	c.timers[id] = time.AfterFunc(delay, func() {
		c.mu.Lock()
		delete(c.timers, id)
		c.mu.Unlock()
		c.spawn(func() { c.check(id) })
	})
}
