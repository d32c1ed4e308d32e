package uploader

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakhistudio/gallery-service/internal/model"
)

type fakeObjectStore struct {
	uploadFn func(objectKey string, item int) error
	calls    int
}

func (f *fakeObjectStore) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	f.calls++
	if f.uploadFn != nil {
		if err := f.uploadFn(objectKey, f.calls); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (f *fakeObjectStore) PublicURL(objectKey string) string {
	return "http://localhost:9000/gallery/" + objectKey
}

type fakeRecordStore struct {
	insertFn func(rec *model.ImageRecord, call int) error
	inserted []model.ImageRecord
}

func (f *fakeRecordStore) Insert(ctx context.Context, rec *model.ImageRecord) error {
	if f.insertFn != nil {
		if err := f.insertFn(rec, len(f.inserted)+1); err != nil {
			return err
		}
	}
	f.inserted = append(f.inserted, *rec)
	return nil
}

type fakeConnectivity struct {
	states []bool
	calls  int
	ch     chan bool
}

func (f *fakeConnectivity) Online() bool {
	if f.calls < len(f.states) {
		f.calls++
		return f.states[f.calls-1]
	}
	if len(f.states) == 0 {
		return true
	}
	return f.states[len(f.states)-1]
}

func (f *fakeConnectivity) Subscribe() (<-chan bool, func()) {
	if f.ch == nil {
		f.ch = make(chan bool, 4)
	}
	return f.ch, func() {}
}

func newPipeline(store *fakeObjectStore, records *fakeRecordStore, net *fakeConnectivity) *Pipeline {
	return New(store, records, net, time.Minute, zap.NewNop().Sugar())
}

func stagedBatch(titles ...string) []*StagedImage {
	items := make([]*StagedImage, 0, len(titles))
	for _, title := range titles {
		items = append(items, &StagedImage{
			Filename:    title + ".jpg",
			Data:        []byte{0xff, 0xd8, 0xff},
			ContentType: "image/jpeg",
			Title:       title,
			Category:    model.CategoryGowns,
		})
	}
	return items
}

func TestRunRequiresAuthenticatedUser(t *testing.T) {
	p := newPipeline(&fakeObjectStore{}, &fakeRecordStore{}, &fakeConnectivity{})

	_, err := p.Run(context.Background(), "", stagedBatch("a"), nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestRunRequiresImages(t *testing.T) {
	p := newPipeline(&fakeObjectStore{}, &fakeRecordStore{}, &fakeConnectivity{})

	_, err := p.Run(context.Background(), "user-1", nil, nil)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestRunRejectsWhenOffline(t *testing.T) {
	store := &fakeObjectStore{}
	p := newPipeline(store, &fakeRecordStore{}, &fakeConnectivity{states: []bool{false}})

	_, err := p.Run(context.Background(), "user-1", stagedBatch("a"), nil)
	assert.ErrorIs(t, err, ErrOffline)
	assert.Zero(t, store.calls)
}

func TestRunValidatesMetadataBeforeUploading(t *testing.T) {
	store := &fakeObjectStore{}
	p := newPipeline(store, &fakeRecordStore{}, &fakeConnectivity{})

	items := stagedBatch("First", "Second", "Third")
	items[0].Title = ""
	items[2].Category = ""

	_, err := p.Run(context.Background(), "user-1", items, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"First.jpg", "Third"}, verr.Missing)
	assert.Zero(t, store.calls, "no upload may start before validation passes")
}

func TestRunRejectsCategoryOutsideEnum(t *testing.T) {
	store := &fakeObjectStore{}
	records := &fakeRecordStore{}
	p := newPipeline(store, records, &fakeConnectivity{})

	items := stagedBatch("First", "Second")
	items[1].Category = "NotARealCategory"

	_, err := p.Run(context.Background(), "user-1", items, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Second"}, verr.Missing)
	assert.Zero(t, store.calls)
	assert.Empty(t, records.inserted, "an out-of-enum category must never persist")
}

func TestRunUploadsSequentiallyWithRoundedProgress(t *testing.T) {
	store := &fakeObjectStore{}
	records := &fakeRecordStore{}
	p := newPipeline(store, records, &fakeConnectivity{})

	var ticks []int
	res, err := p.Run(context.Background(), "user-1", stagedBatch("One", "Two", "Three"), func(pct int) {
		ticks = append(ticks, pct)
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 3, res.Completed)
	assert.Equal(t, []int{33, 67, 100}, ticks)
	assert.Empty(t, res.Retained)
	require.Len(t, records.inserted, 3)
	assert.Equal(t, "One", records.inserted[0].Title)
	assert.Equal(t, "Three", records.inserted[2].Title)
	assert.Equal(t, "user-1", records.inserted[0].UploadedBy)
	assert.Contains(t, res.Message(), "3 image(s) uploaded")
}

func TestRunPartialFailureRetainsOnlyFailedItems(t *testing.T) {
	store := &fakeObjectStore{
		uploadFn: func(_ string, call int) error {
			if call == 2 {
				return errors.New("bucket unavailable")
			}
			return nil
		},
	}
	records := &fakeRecordStore{}
	p := newPipeline(store, records, &fakeConnectivity{})

	items := stagedBatch("One", "Two", "Three")
	res, err := p.Run(context.Background(), "user-1", items, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.Equal(t, 2, res.Completed)
	assert.Equal(t, []string{"Two"}, res.FailedTitles())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, ReasonStorage, res.Failures[0].Reason)
	require.Len(t, res.Retained, 1)
	assert.Same(t, items[1], res.Retained[0])
	assert.Contains(t, res.Message(), "Two")
}

func TestRunDatabaseFailureAfterStoredObject(t *testing.T) {
	records := &fakeRecordStore{
		insertFn: func(_ *model.ImageRecord, _ int) error {
			return errors.New("connection refused")
		},
	}
	p := newPipeline(&fakeObjectStore{}, records, &fakeConnectivity{})

	res, err := p.Run(context.Background(), "user-1", stagedBatch("Solo"), nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, ReasonDatabase, res.Failures[0].Reason)
	assert.Equal(t, "upload failed, please try again", res.Message())
}

func TestRunStorageFailureMessageEscalates(t *testing.T) {
	store := &fakeObjectStore{
		uploadFn: func(string, int) error { return errors.New("access denied") },
	}
	p := newPipeline(store, &fakeRecordStore{}, &fakeConnectivity{})

	res, err := p.Run(context.Background(), "user-1", stagedBatch("Solo"), nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Message(), "administrator")
}

func TestRunSlowUploadRecordedAsTimeout(t *testing.T) {
	store := &fakeObjectStore{
		uploadFn: func(string, int) error {
			time.Sleep(20 * time.Millisecond)
			return nil
		},
	}
	p := New(store, &fakeRecordStore{}, &fakeConnectivity{}, 5*time.Millisecond, zap.NewNop().Sugar())

	res, err := p.Run(context.Background(), "user-1", stagedBatch("Slow"), nil)
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, ReasonTimeout, res.Failures[0].Reason)
}

func TestRunAbortsWhenConnectionDropsMidBatch(t *testing.T) {
	// Online is consulted once up front and once per item; dropping on the
	// third call interrupts the batch after the first item resolves.
	net := &fakeConnectivity{states: []bool{true, true, false}}
	store := &fakeObjectStore{}
	records := &fakeRecordStore{}
	p := newPipeline(store, records, net)

	items := stagedBatch("One", "Two", "Three")
	res, err := p.Run(context.Background(), "user-1", items, nil)
	require.ErrorIs(t, err, ErrConnectionLost)

	assert.True(t, res.Interrupted)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, OutcomePartial, res.Outcome)
	require.Len(t, res.Retained, 2)
	assert.Same(t, items[1], res.Retained[0])
	assert.Same(t, items[2], res.Retained[1])
	assert.Equal(t, 1, store.calls, "no further upload may start once offline")
}

func TestRunDrainsOfflineSignalFromSubscription(t *testing.T) {
	net := &fakeConnectivity{ch: make(chan bool, 1)}
	net.ch <- false
	p := newPipeline(&fakeObjectStore{}, &fakeRecordStore{}, net)

	res, err := p.Run(context.Background(), "user-1", stagedBatch("One"), nil)
	require.ErrorIs(t, err, ErrConnectionLost)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Len(t, res.Retained, 1)
}

func TestStorageKeyKeepsExtension(t *testing.T) {
	key := storageKey("bridal set.png")
	assert.True(t, len(key) > len(".png"))
	assert.Equal(t, ".png", key[len(key)-4:])
}
