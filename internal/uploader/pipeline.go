// Package uploader turns a batch of staged image files into persisted
// gallery records, one at a time, tolerating partial failure.
package uploader

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sakhistudio/gallery-service/internal/model"
)

var (
	// ErrNotAuthenticated aborts a batch before any network activity.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoImages means the batch was empty; nothing happened.
	ErrNoImages = errors.New("no images selected")
	// ErrOffline means connectivity was down before the batch started.
	ErrOffline = errors.New("you appear to be offline, check your connection and try again")
	// ErrConnectionLost means connectivity dropped mid-batch and the
	// remaining items were never scheduled.
	ErrConnectionLost = errors.New("connection lost, upload interrupted")
)

// ValidationError names the staged items missing a title or carrying a
// category outside the fixed set. Validation happens before any network call.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing title or invalid category for: " + strings.Join(e.Missing, ", ")
}

// Failure reasons recorded per item. Timeout is distinguishable from other
// storage errors so the report can say which uploads were merely slow.
const (
	ReasonTimeout  = "timeout"
	ReasonStorage  = "storage error"
	ReasonDatabase = "database error"
)

// ItemFailure records one failed item without aborting its siblings.
type ItemFailure struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Outcome classifies a finished batch.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// Result is the (successes, failures) fold over the batch. Retained holds
// the items the caller should keep for retry: exactly the failed ones, or
// the whole batch when everything failed or the run was interrupted.
type Result struct {
	Outcome     Outcome             `json:"outcome"`
	Total       int                 `json:"total"`
	Completed   int                 `json:"completed"`
	Progress    int                 `json:"progress"`
	Created     []model.ImageRecord `json:"created"`
	Failures    []ItemFailure       `json:"failures,omitempty"`
	Retained    []*StagedImage      `json:"-"`
	Interrupted bool                `json:"interrupted,omitempty"`
}

// FailedTitles lists the titles of every failed item, in batch order.
func (r *Result) FailedTitles() []string {
	titles := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		titles = append(titles, f.Title)
	}
	return titles
}

// Message renders the user-facing summary for the batch.
func (r *Result) Message() string {
	switch r.Outcome {
	case OutcomeSuccess:
		return fmt.Sprintf("%d image(s) uploaded successfully", r.Completed)
	case OutcomePartial:
		return "some images failed to upload: " + strings.Join(r.FailedTitles(), ", ")
	default:
		if r.hasStorageFailure() {
			return "upload failed, contact an administrator if this persists"
		}
		return "upload failed, please try again"
	}
}

func (r *Result) hasStorageFailure() bool {
	for _, f := range r.Failures {
		if f.Reason == ReasonStorage {
			return true
		}
	}
	return false
}

// ObjectStore is the storage contract the pipeline consumes.
type ObjectStore interface {
	Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	PublicURL(objectKey string) string
}

// RecordStore persists the metadata row for each stored object.
type RecordStore interface {
	Insert(ctx context.Context, rec *model.ImageRecord) error
}

// Connectivity is the live reachability flag the pipeline watches.
type Connectivity interface {
	Online() bool
	Subscribe() (<-chan bool, func())
}

// Pipeline uploads a batch strictly sequentially: item N+1 never starts
// before item N's outcome is recorded, so progress is monotonic and peak
// resource use stays bounded.
type Pipeline struct {
	store         ObjectStore
	records       RecordStore
	net           Connectivity
	uploadTimeout time.Duration
	log           *zap.SugaredLogger
}

// New constructs a Pipeline.
func New(store ObjectStore, records RecordStore, net Connectivity, uploadTimeout time.Duration, log *zap.SugaredLogger) *Pipeline {
	if uploadTimeout <= 0 {
		uploadTimeout = 60 * time.Second
	}
	return &Pipeline{
		store:         store,
		records:       records,
		net:           net,
		uploadTimeout: uploadTimeout,
		log:           log,
	}
}

// Run processes the batch for the given user. The progress callback, when
// non-nil, receives the rounded percentage after each item resolves.
// Precondition failures return before any network side effect.
func (p *Pipeline) Run(ctx context.Context, userID string, items []*StagedImage, progress func(int)) (*Result, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if len(items) == 0 {
		return nil, ErrNoImages
	}
	if !p.net.Online() {
		return nil, ErrOffline
	}
	var missing []string
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" || !model.ValidCategory(item.Category) {
			name := item.Title
			if name == "" {
				name = item.Filename
			}
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	offline, unsubscribe := p.net.Subscribe()
	defer unsubscribe()

	result := &Result{Total: len(items)}
	for i, item := range items {
		if interrupted(offline) || !p.net.Online() {
			result.Interrupted = true
			result.Retained = append(result.Retained, items[i:]...)
			classify(result)
			return result, ErrConnectionLost
		}
		if rec, failure := p.uploadOne(ctx, userID, item); failure == nil {
			result.Completed++
			result.Created = append(result.Created, *rec)
		} else {
			result.Failures = append(result.Failures, *failure)
			result.Retained = append(result.Retained, item)
		}
		result.Progress = int(math.Round(100 * float64(result.Completed) / float64(result.Total)))
		if progress != nil {
			progress(result.Progress)
		}
	}
	classify(result)
	return result, nil
}

// uploadOne performs steps 2-4 for a single item. Any failure is recorded
// and the pipeline moves on; nothing is re-raised.
func (p *Pipeline) uploadOne(ctx context.Context, userID string, item *StagedImage) (*model.ImageRecord, *ItemFailure) {
	objectKey := storageKey(item.Filename)

	uploadCtx, cancel := context.WithTimeout(ctx, p.uploadTimeout)
	defer cancel()
	err := p.store.Upload(uploadCtx, objectKey, bytes.NewReader(item.Data), int64(len(item.Data)), item.ContentType)
	if err != nil {
		reason := ReasonStorage
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(uploadCtx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		p.log.Warnf("upload %q to storage failed: %v", item.Title, err)
		return nil, &ItemFailure{Title: item.Title, Reason: reason}
	}

	rec := &model.ImageRecord{
		ImageURL:    p.store.PublicURL(objectKey),
		Title:       item.Title,
		Category:    item.Category,
		Description: item.Description,
		Tags:        model.ParseTags(item.RawTags),
		UploadedBy:  userID,
	}
	if err := p.records.Insert(ctx, rec); err != nil {
		p.log.Warnf("insert record for %q failed: %v", item.Title, err)
		return nil, &ItemFailure{Title: item.Title, Reason: ReasonDatabase}
	}
	return rec, nil
}

func classify(r *Result) {
	switch {
	case len(r.Failures) == 0 && !r.Interrupted:
		r.Outcome = OutcomeSuccess
	case r.Completed > 0:
		r.Outcome = OutcomePartial
	default:
		r.Outcome = OutcomeFailed
	}
}

// interrupted drains the connectivity channel without blocking.
func interrupted(offline <-chan bool) bool {
	for {
		select {
		case online, ok := <-offline:
			if ok && !online {
				return true
			}
			if !ok {
				return false
			}
		default:
			return false
		}
	}
}

// storageKey builds a collision-resistant key: millisecond timestamp plus a
// random suffix plus the original extension.
func storageKey(filename string) string {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16) + filepath.Ext(filename)
	}
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), hex.EncodeToString(suffix), filepath.Ext(filename))
}
