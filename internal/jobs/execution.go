package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/naming"
	"geo-ingest-backend/internal/processors"
	"geo-ingest-backend/internal/supabase"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// check runs one arrival check. It either schedules the next one or moves
// the job on to processing once every file arrived or the checks ran out.
func (c *Coordinator) check(id uuid.UUID) {
	ctx := c.ctx
	job, err := c.repo.GetJob(ctx, id)
	if err != nil {
		log.Printf("Warning: failed to load job %s: %v", id, err)
		return
	}
	if job.Status != models.JobWaitingForUpload {
		return
	}

	waiting, arrived, rejected := 0, 0, 0
	for _, f := range job.Files {
		if f.Status != models.FileWaitingForUpload {
			arrived++
			continue
		}
		size, err := c.blob.Stat(f.StoragePath)
		if err != nil {
			if !errors.Is(err, supabase.ErrObjectNotFound) {
				log.Printf("Warning: failed to check %s for job %s: %v", f.StoragePath, id, err)
			}
			waiting++
			continue
		}
		if msg := sizeMismatch(f, size); msg != "" {
			rejected++
			c.finishFile(id, f, models.FileFailed, msg, nil)
			continue
		}
		arrived++
		if err := c.repo.UpdateJobFile(ctx, f.ID, map[string]interface{}{"status": models.FileUploaded}); err != nil {
			log.Printf("Warning: failed to mark %s uploaded: %v", f.OriginalFilename, err)
		}
		c.events.PublishJobEvent(id, EventFileStatus, supabase.FileStatusPayload(id, f.OriginalFilename, models.FileUploaded, ""))
	}

	checks := job.Checks + 1
	if waiting > 0 && checks < c.opts.PollChecks {
		next := time.Now().Add(c.opts.PollInterval)
		if err := c.repo.UpdateJob(ctx, id, map[string]interface{}{"checks": checks, "next_check_at": next}); err != nil {
			log.Printf("Warning: failed to record check %d of job %s: %v", checks, id, err)
		}
		c.schedule(id, c.opts.PollInterval)
		return
	}

	// Out of checks: whatever is still missing was never uploaded.
	if waiting > 0 {
		job, err = c.repo.GetJob(ctx, id)
		if err != nil {
			log.Printf("Warning: failed to reload job %s: %v", id, err)
			return
		}
		for _, f := range job.Files {
			if f.Status == models.FileWaitingForUpload {
				c.finishFile(id, f, models.FileFailed, models.ErrNotUploaded, nil)
			}
		}
	}

	if arrived == 0 {
		now := time.Now()
		err := c.repo.UpdateJob(ctx, id, map[string]interface{}{
			"status":       models.JobFailed,
			"checks":       checks,
			"error":        "no files were uploaded",
			"completed_at": now,
		})
		if err != nil {
			log.Printf("Warning: failed to fail job %s: %v", id, err)
		}
		log.Printf("Upload job %s failed: no files arrived after %d checks", id, checks)
		c.events.PublishJobEvent(id, EventJobStatus, supabase.JobStatusPayload(id, models.JobFailed, 0, len(job.Files)))
		return
	}

	if err := c.repo.UpdateJob(ctx, id, map[string]interface{}{"status": models.JobProcessing, "checks": checks}); err != nil {
		log.Printf("Warning: failed to start processing job %s: %v", id, err)
		return
	}
	log.Printf("Upload job %s: %d of %d files arrived, processing", id, arrived, arrived+waiting+rejected)
	c.events.PublishJobEvent(id, EventJobStatus, supabase.JobStatusPayload(id, models.JobProcessing, 0, waiting+rejected))
	c.process(id)
}

// sizeMismatch checks the stored object against the grant it was uploaded
// under. A signed URL does not bound the body, so the limit is enforced
// here.
func sizeMismatch(f models.JobFile, size int64) string {
	switch {
	case size < supabase.MinGrantSize || size > supabase.MaxGrantSize:
		return fmt.Sprintf("%s: uploaded %d bytes", models.ErrSizeMismatch, size)
	case f.Size > 0 && size != f.Size:
		return fmt.Sprintf("%s: declared %d bytes, uploaded %d", models.ErrSizeMismatch, f.Size, size)
	}
	return ""
}

// process runs every uploaded file of the job through its processor. Files
// run concurrently, bounded by the shared worker pool.
func (c *Coordinator) process(id uuid.UUID) {
	ctx := c.ctx
	job, err := c.repo.GetJob(ctx, id)
	if err != nil {
		log.Printf("Warning: failed to load job %s: %v", id, err)
		return
	}

	var g errgroup.Group
	for _, f := range job.Files {
		if f.Status != models.FileUploaded {
			continue
		}
		f := f
		g.Go(func() error {
			if err := c.workers.Acquire(ctx, 1); err != nil {
				return err
			}
			defer c.workers.Release(1)
			c.runFile(ctx, job, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// only a cancelled pool acquire ends up here; the job stays open
		// and Resume finishes it
		log.Printf("Upload job %s interrupted: %v", id, err)
		return
	}

	c.complete(id)
}

func (c *Coordinator) complete(id uuid.UUID) {
	status, err := c.GetJobStatus(c.ctx, id)
	if err != nil {
		log.Printf("Warning: failed to summarize job %s: %v", id, err)
		return
	}
	outcome := models.JobCompleted
	errMsg := ""
	if status.ProcessedFiles == 0 {
		outcome = models.JobFailed
		errMsg = "all files failed"
	}
	now := time.Now()
	err = c.repo.UpdateJob(c.ctx, id, map[string]interface{}{
		"status":       outcome,
		"error":        errMsg,
		"completed_at": now,
	})
	if err != nil {
		log.Printf("Warning: failed to complete job %s: %v", id, err)
	}
	log.Printf("Upload job %s %s: %d processed, %d failed", id, outcome, status.ProcessedFiles, status.FailedFiles)
	c.events.PublishJobEvent(id, EventJobStatus, supabase.JobStatusPayload(id, outcome, status.ProcessedFiles, status.FailedFiles))
}

type outcome struct {
	id  uuid.UUID
	err error
}

// runFile processes one file under its category's time limits and records
// the result. Nothing here returns an error to the caller.
func (c *Coordinator) runFile(ctx context.Context, job *models.UploadJob, f models.JobFile) {
	runner, ok := c.runners[f.Category]
	if !ok {
		c.finishFile(job.ID, f, models.FileFailed, fmt.Sprintf("unsupported file category %s", f.Category), nil)
		return
	}

	started := time.Now()
	if err := c.repo.UpdateJobFile(ctx, f.ID, map[string]interface{}{"status": models.FileProcessing, "started_at": started}); err != nil {
		log.Printf("Warning: failed to mark %s processing: %v", f.OriginalFilename, err)
	}
	c.events.PublishJobEvent(job.ID, EventFileStatus, supabase.FileStatusPayload(job.ID, f.OriginalFilename, models.FileProcessing, ""))

	limits := c.limitsFor(f.Category)
	fileCtx, cancel := context.WithTimeout(ctx, limits.Soft)
	defer cancel()

	// The processor may outlive this call when the hard limit fires, so it
	// is tracked on its own and Close still waits for it to return.
	done := make(chan outcome, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("processor panicked: %v", r)}
			}
		}()
		id, err := runner.Run(fileCtx, sourceFor(job, f))
		done <- outcome{id: id, err: err}
	}()

	hard := time.NewTimer(limits.Hard)
	defer hard.Stop()

	select {
	case o := <-done:
		switch {
		case o.err == nil:
			c.finishFile(job.ID, f, models.FileCompleted, "", &o.id)
		case errors.Is(fileCtx.Err(), context.DeadlineExceeded):
			c.finishFile(job.ID, f, models.FileTimeout, fmt.Sprintf("processing exceeded soft limit of %s: %v", limits.Soft, o.err), nil)
		default:
			c.finishFile(job.ID, f, models.FileFailed, o.err.Error(), nil)
		}
	case <-hard.C:
		log.Printf("Warning: abandoning %s of job %s after %s", f.OriginalFilename, job.ID, limits.Hard)
		c.finishFile(job.ID, f, models.FileTimeout, fmt.Sprintf("processing exceeded hard limit of %s", limits.Hard), nil)
	}
}

func (c *Coordinator) limitsFor(category string) Limits {
	if l, ok := c.opts.Limits[category]; ok && l.Soft > 0 && l.Hard > 0 {
		return l
	}
	if l, ok := DefaultLimits()[category]; ok {
		return l
	}
	return DefaultLimits()[naming.CategoryVector]
}

func (c *Coordinator) finishFile(jobID uuid.UUID, f models.JobFile, status, errMsg string, resultID *uuid.UUID) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"error":       errMsg,
		"finished_at": now,
	}
	if resultID != nil {
		updates["result_id"] = *resultID
	}
	// recorded even while shutting down
	if err := c.repo.UpdateJobFile(context.WithoutCancel(c.ctx), f.ID, updates); err != nil {
		log.Printf("Warning: failed to record %s of %s: %v", status, f.OriginalFilename, err)
	}
	if errMsg != "" {
		log.Printf("File %s of job %s %s: %s", f.OriginalFilename, jobID, status, errMsg)
	}
	c.events.PublishJobEvent(jobID, EventFileStatus, supabase.FileStatusPayload(jobID, f.OriginalFilename, status, errMsg))
}

func sourceFor(job *models.UploadJob, f models.JobFile) processors.Source {
	return processors.Source{
		Path:        f.StoragePath,
		StorageKey:  f.StorageKey,
		Filename:    f.OriginalFilename,
		Size:        f.Size,
		CompanyID:   job.CompanyID,
		ProjectID:   job.ProjectID,
		UserID:      job.UserID,
		Title:       f.Title,
		Description: f.Description,
		TerrainType: f.TerrainType,
		Latitude:    f.Latitude,
		Longitude:   f.Longitude,
	}
}
