package geoserver

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"geo-ingest-backend/internal/naming"
)

// Target is one layer to publish. Feature targets bind Resources.Table
// through the project datastore; coverage targets are uploaded from File.
type Target struct {
	naming.Resources
	Title    string
	Coverage bool
	File     string
	Format   string
}

// Publisher applies the workspace, store, layer and group steps in order
// and retries the whole sequence on failure. Every step is idempotent, so a
// retry after a partial success converges.
type Publisher struct {
	client   *Client
	store    DataStoreParams
	attempts int
	delay    time.Duration

	mu     sync.Mutex
	groups map[string]*sync.Mutex
}

func NewPublisher(client *Client, store DataStoreParams, attempts int, delay time.Duration) *Publisher {
	if attempts < 1 {
		attempts = 1
	}
	return &Publisher{
		client:   client,
		store:    store,
		attempts: attempts,
		delay:    delay,
		groups:   make(map[string]*sync.Mutex),
	}
}

// groupLock serializes read-modify-write cycles on one layer group within
// this process.
func (p *Publisher) groupLock(ws, group string) *sync.Mutex {
	key := ws + ":" + group
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.groups[key]
	if !ok {
		m = &sync.Mutex{}
		p.groups[key] = m
	}
	return m
}

// Publish makes the map server reflect t and returns the layer's external
// URL. The error is the last attempt's failure.
func (p *Publisher) Publish(ctx context.Context, t Target) (string, error) {
	err := Retry(ctx, p.attempts, p.delay, func() error {
		return p.publishOnce(ctx, t)
	})
	if err != nil {
		log.Printf("Warning: publishing %s gave up: %v", t.Layer, err)
		return "", err
	}
	log.Printf("Published layer %s to group %s", t.Layer, t.Group)
	return p.client.LayerURL(t.Workspace, t.Layer, t.Coverage), nil
}

func (p *Publisher) publishOnce(ctx context.Context, t Target) error {
	if err := p.client.EnsureWorkspace(ctx, t.Workspace); err != nil {
		return err
	}
	if t.Coverage {
		if err := p.client.EnsureCoverage(ctx, t.Workspace, t.Store, t.Layer, t.Title, t.Format, t.File); err != nil {
			return err
		}
	} else {
		if err := p.client.EnsureDataStore(ctx, t.Workspace, t.Store, p.store); err != nil {
			return err
		}
		if err := p.client.EnsureFeatureType(ctx, t.Workspace, t.Store, t.Layer, t.Table, t.Title); err != nil {
			return err
		}
	}

	lock := p.groupLock(t.Workspace, t.Group)
	lock.Lock()
	defer lock.Unlock()
	return p.client.EnsureGroupMember(ctx, t.Workspace, t.Group, naming.Qualified(t.Workspace, t.Layer), "")
}

// Delete removes t from every group in its workspace, then the layer, then
// a coverage's own store. Group cleanup is best effort; an absent layer
// counts as deleted.
func (p *Publisher) Delete(ctx context.Context, t Target) error {
	qualified := naming.Qualified(t.Workspace, t.Layer)
	groups, err := p.client.ListGroups(ctx, t.Workspace)
	if err != nil && !IsNotFound(err) {
		log.Printf("Warning: could not list layer groups in workspace %s: %v", t.Workspace, err)
	}
	for _, g := range groups {
		lock := p.groupLock(t.Workspace, g)
		lock.Lock()
		err := p.client.RemoveFromGroup(ctx, t.Workspace, g, qualified)
		lock.Unlock()
		if err != nil {
			log.Printf("Warning: failed to remove %s from group %s: %v", qualified, g, err)
		}
	}

	if t.Coverage {
		if err := p.client.DeleteCoverage(ctx, t.Workspace, t.Store, t.Layer); err != nil {
			return err
		}
		if err := p.client.DeleteCoverageStore(ctx, t.Workspace, t.Store); err != nil {
			return err
		}
	} else if err := p.client.DeleteFeatureType(ctx, t.Workspace, t.Store, t.Layer); err != nil {
		return err
	}
	log.Printf("Deleted layer %s from workspace %s", t.Layer, t.Workspace)
	return nil
}

// Retry calls fn up to attempts times with a fixed delay between calls,
// stopping early when ctx is done.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			log.Printf("Attempt %d/%d failed: %v", i, attempts, lastErr)
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
			if ctx.Err() != nil {
				return fmt.Errorf("retry cancelled after %d attempts: %w", i, lastErr)
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
