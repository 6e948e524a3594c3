package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"catalog-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyIndex fails ApplyIfNewer a configured number of times before
// delegating to an in-memory version map.
type flakyIndex struct {
	mu        sync.Mutex
	failures  int
	applies   int
	tombstone int
	versions  map[string]int64
}

func newFlakyIndex(failures int) *flakyIndex {
	return &flakyIndex{failures: failures, versions: make(map[string]int64)}
}

func (f *flakyIndex) ApplyIfNewer(_ context.Context, doc *models.SearchDocument) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		return false, errors.New("index unavailable")
	}
	f.applies++
	if doc.SourceVersion <= f.versions[doc.ID] {
		return false, nil
	}
	f.versions[doc.ID] = doc.SourceVersion
	return true, nil
}

func (f *flakyIndex) Tombstone(_ context.Context, id string, version int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		return false, errors.New("index unavailable")
	}
	f.tombstone++
	if version <= f.versions[id] {
		return false, nil
	}
	f.versions[id] = version
	return true, nil
}

type memDeadLetters struct {
	mu      sync.Mutex
	letters []models.DeadLetter
}

func (m *memDeadLetters) InsertDeadLetter(_ context.Context, eventID, productID string, payload []byte, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters = append(m.letters, models.DeadLetter{
		EventID:   eventID,
		ProductID: productID,
		Payload:   payload,
		Reason:    reason,
	})
	return nil
}

func changeMessage(t *testing.T, event *models.ChangeEvent) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(event.ProductID), Value: payload}
}

func updateEvent(productID string, version int64) *models.ChangeEvent {
	return &models.ChangeEvent{
		EventID:    "ev-" + productID,
		ProductID:  productID,
		Operation:  models.OpUpdated,
		Version:    version,
		OccurredAt: time.Now().UTC(),
		Product: &models.SearchDocument{
			ID:            productID,
			Name:          "thing",
			PriceMinor:    100,
			Category:      models.CategoryBooks,
			Tags:          []string{"t"},
			SourceVersion: version,
		},
	}
}

func TestHandleMessageAppliesEvent(t *testing.T) {
	index := newFlakyIndex(0)
	letters := &memDeadLetters{}
	ix := NewIndexer(nil, index, letters, 3)

	err := ix.HandleMessage(context.Background(), changeMessage(t, updateEvent("p1", 2)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), index.versions["p1"])
	assert.Empty(t, letters.letters)
}

func TestHandleMessageRetriesTransientFailures(t *testing.T) {
	index := newFlakyIndex(2)
	letters := &memDeadLetters{}
	ix := NewIndexer(nil, index, letters, 5)

	err := ix.HandleMessage(context.Background(), changeMessage(t, updateEvent("p1", 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), index.versions["p1"])
	assert.Empty(t, letters.letters)
}

func TestHandleMessageDeadLettersAfterRetryBudget(t *testing.T) {
	index := newFlakyIndex(100)
	letters := &memDeadLetters{}
	ix := NewIndexer(nil, index, letters, 3)

	err := ix.HandleMessage(context.Background(), changeMessage(t, updateEvent("p1", 1)))
	require.Error(t, err)

	require.Len(t, letters.letters, 1)
	assert.Equal(t, "ev-p1", letters.letters[0].EventID)
	assert.Equal(t, "p1", letters.letters[0].ProductID)
	assert.Zero(t, index.versions["p1"])
}

func TestHandleMessageRoutesDeletesToTombstone(t *testing.T) {
	index := newFlakyIndex(0)
	letters := &memDeadLetters{}
	ix := NewIndexer(nil, index, letters, 3)

	event := &models.ChangeEvent{
		EventID:    "ev-del",
		ProductID:  "p1",
		Operation:  models.OpDeleted,
		Version:    3,
		OccurredAt: time.Now().UTC(),
	}

	err := ix.HandleMessage(context.Background(), changeMessage(t, event))
	require.NoError(t, err)
	assert.Equal(t, 1, index.tombstone)
	assert.Equal(t, int64(3), index.versions["p1"])
}

func TestHandleMessageStaleEventIsNoRetryNoError(t *testing.T) {
	index := newFlakyIndex(0)
	letters := &memDeadLetters{}
	ix := NewIndexer(nil, index, letters, 3)

	require.NoError(t, ix.HandleMessage(context.Background(), changeMessage(t, updateEvent("p1", 2))))

	// redelivery of an older version applies nothing and raises nothing
	require.NoError(t, ix.HandleMessage(context.Background(), changeMessage(t, updateEvent("p1", 1))))
	assert.Equal(t, int64(2), index.versions["p1"])
	assert.Empty(t, letters.letters)
}

func TestHandleMessageDeadLettersMalformedPayload(t *testing.T) {
	index := newFlakyIndex(0)
	letters := &memDeadLetters{}
	ix := NewIndexer(nil, index, letters, 3)

	msg := kafka.Message{Key: []byte("p1"), Value: []byte("{not json")}
	err := ix.HandleMessage(context.Background(), msg)
	require.Error(t, err)
	require.Len(t, letters.letters, 1)
	assert.Equal(t, "p1", letters.letters[0].ProductID)
}

func TestHandleMessageMissingSnapshotIsPermanent(t *testing.T) {
	index := newFlakyIndex(0)
	letters := &memDeadLetters{}
	ix := NewIndexer(nil, index, letters, 5)

	event := updateEvent("p1", 1)
	event.Product = nil

	start := time.Now()
	err := ix.HandleMessage(context.Background(), changeMessage(t, event))
	require.Error(t, err)

	// permanent failures skip the backoff schedule
	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, letters.letters, 1)
}
