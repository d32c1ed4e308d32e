// Package catalog produces the displayable set of gallery images plus
// per-category counts, and supports edit and delete of individual records.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sakhistudio/gallery-service/internal/model"
)

// resolveConcurrency bounds how many signed-URL exchanges run at once.
const resolveConcurrency = 8

// RecordSource is the database contract the catalog consumes.
type RecordSource interface {
	List(ctx context.Context) ([]model.ImageRecord, error)
	Update(ctx context.Context, id string, upd model.ImageUpdate) error
	Delete(ctx context.Context, id string) error
}

// URLResolver exchanges stored locators for displayable URLs and removes
// stored objects.
type URLResolver interface {
	PresignURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
	ObjectKey(imageURL string) (string, bool)
	Remove(ctx context.Context, objectKey string) error
}

// CleanupQueue schedules retries for storage objects that could not be
// removed inline. May be nil; deletes still succeed without it.
type CleanupQueue interface {
	EnqueueCleanup(ctx context.Context, objectKey string) error
}

// Snapshot is one atomic catalog state: every record with a displayable URL,
// plus the category counters. An empty Images slice is the "no images yet"
// state, not an error.
type Snapshot struct {
	Images []model.ImageRecord    `json:"images"`
	Counts map[model.Category]int `json:"counts"`
}

// Catalog fetches, filters, edits, and deletes gallery records.
type Catalog struct {
	records RecordSource
	store   URLResolver
	cleanup CleanupQueue
	signTTL time.Duration
	log     *zap.SugaredLogger
}

// New constructs a Catalog.
func New(records RecordSource, store URLResolver, cleanup CleanupQueue, signTTL time.Duration, log *zap.SugaredLogger) *Catalog {
	if signTTL <= 0 {
		signTTL = 24 * time.Hour
	}
	return &Catalog{
		records: records,
		store:   store,
		cleanup: cleanup,
		signTTL: signTTL,
		log:     log,
	}
}

// Fetch loads all records newest first and resolves each to a displayable
// URL. Records living in the private bucket get a short-lived signed URL;
// when signing fails for one record it falls back to its stored URL rather
// than dropping out of the listing. Resolution runs concurrently but the
// results are assembled positionally into one snapshot.
func (c *Catalog) Fetch(ctx context.Context) (*Snapshot, error) {
	records, err := c.records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch images: %w", err)
	}

	resolved := make([]model.ImageRecord, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			rec.ImageURL = c.resolveURL(gctx, rec)
			resolved[i] = rec
			return nil
		})
	}
	// Workers never return errors; per-record failures fall back instead.
	_ = g.Wait()

	return &Snapshot{Images: resolved, Counts: countCategories(resolved)}, nil
}

func (c *Catalog) resolveURL(ctx context.Context, rec model.ImageRecord) string {
	key, ok := c.store.ObjectKey(rec.ImageURL)
	if !ok {
		return rec.ImageURL
	}
	signed, err := c.store.PresignURL(ctx, key, c.signTTL)
	if err != nil {
		c.log.Warnf("presign %s: %v", key, err)
		return rec.ImageURL
	}
	return signed
}

func countCategories(records []model.ImageRecord) map[model.Category]int {
	counts := map[model.Category]int{model.CategoryAll: len(records)}
	for _, rec := range records {
		counts[rec.Category]++
	}
	return counts
}

// Filter is a pure projection over an already-fetched list; it never
// re-fetches. The All sentinel returns everything.
func Filter(images []model.ImageRecord, category model.Category) []model.ImageRecord {
	if category == model.CategoryAll || category == "" {
		return images
	}
	filtered := make([]model.ImageRecord, 0, len(images))
	for _, img := range images {
		if img.Category == category {
			filtered = append(filtered, img)
		}
	}
	return filtered
}

// Update writes only the mutable fields of a record. Callers re-fetch on
// success; on failure the draft is theirs to retry.
func (c *Catalog) Update(ctx context.Context, id string, upd model.ImageUpdate) error {
	if strings.TrimSpace(upd.Title) == "" {
		return errors.New("title is required")
	}
	if !model.ValidCategory(upd.Category) {
		return fmt.Errorf("unknown category %q", upd.Category)
	}
	return c.records.Update(ctx, id, upd)
}

// Delete removes the stored object best effort, then deletes the row. Only
// the row deletion decides the outcome: a stuck storage object must not
// block cleanup, so its removal failure is logged and queued for retry.
// Confirmation is the caller's responsibility; this is irreversible.
func (c *Catalog) Delete(ctx context.Context, rec model.ImageRecord) error {
	if key, ok := c.store.ObjectKey(rec.ImageURL); ok {
		if err := c.store.Remove(ctx, key); err != nil {
			c.log.Warnf("remove object %s: %v", key, err)
			if c.cleanup != nil {
				if qerr := c.cleanup.EnqueueCleanup(ctx, key); qerr != nil {
					c.log.Warnf("enqueue cleanup for %s: %v", key, qerr)
				}
			}
		}
	}
	return c.records.Delete(ctx, rec.ID)
}
