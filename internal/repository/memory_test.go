package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room_link/internal/domain"
)

func newTestRoom(id string) *domain.RoomRecord {
	return &domain.RoomRecord{
		RoomID:      id,
		CreatorName: "alice",
		CreatedAt:   time.Now().UTC(),
		IsActive:    true,
		Participants: []domain.Participant{
			{UserID: "u1", Name: "alice", IsAdmin: true},
		},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.PutRoom(ctx, newTestRoom("r1"), time.Minute))

	got, err := store.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RoomID)
	assert.True(t, got.IsActive)
	assert.Len(t, got.Participants, 1)

	_, err = store.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoRoom)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.PutRoom(ctx, newTestRoom("r1"), 30*time.Millisecond))
	require.NoError(t, store.AppendMessage(ctx, "r1", &domain.Message{Text: "hi"}))

	time.Sleep(60 * time.Millisecond)

	_, err := store.GetRoom(ctx, "r1")
	assert.ErrorIs(t, err, ErrNoRoom)

	_, err = store.ListMessages(ctx, "r1")
	assert.ErrorIs(t, err, ErrNoRoom)

	_, err = store.UpdateRoom(ctx, "r1", func(r *domain.RoomRecord) error { return nil })
	assert.ErrorIs(t, err, ErrNoRoom)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.PutRoom(ctx, newTestRoom("r1"), time.Minute))

	first, err := store.GetRoom(ctx, "r1")
	require.NoError(t, err)
	first.Participants[0].Name = "mallory"
	first.IsActive = false

	second, err := store.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "alice", second.Participants[0].Name)
	assert.True(t, second.IsActive)
}

func TestMemoryStoreUpdateRoomAtomic(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.PutRoom(ctx, newTestRoom("r1"), time.Minute))

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.UpdateRoom(ctx, "r1", func(r *domain.RoomRecord) error {
				r.Participants = append(r.Participants, domain.Participant{
					UserID: fmt.Sprintf("w%d", i),
					Name:   fmt.Sprintf("writer-%d", i),
				})
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := store.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got.Participants, writers+1)
}

func TestMemoryStoreUpdateRoomRollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.PutRoom(ctx, newTestRoom("r1"), time.Minute))

	boom := fmt.Errorf("boom")
	_, err := store.UpdateRoom(ctx, "r1", func(r *domain.RoomRecord) error {
		r.Participants = nil
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got.Participants, 1)
}

func TestMemoryStoreMessageOrder(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.PutRoom(ctx, newTestRoom("r1"), time.Minute))

	for i := 0; i < 10; i++ {
		msg := &domain.Message{Text: fmt.Sprintf("msg-%d", i), Timestamp: time.Now().UTC()}
		require.NoError(t, store.AppendMessage(ctx, "r1", msg))
	}

	messages, err := store.ListMessages(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, messages, 10)
	for i, msg := range messages {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Text)
	}
}

func TestMemoryStoreAppendToMissingRoom(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	err := store.AppendMessage(context.Background(), "nope", &domain.Message{Text: "hi"})
	assert.ErrorIs(t, err, ErrNoRoom)
}

func TestMemoryStoreDeleteRoomIdempotent(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.PutRoom(ctx, newTestRoom("r1"), time.Minute))
	require.NoError(t, store.AddActiveRoom(ctx, "r1"))

	require.NoError(t, store.DeleteRoom(ctx, "r1"))
	require.NoError(t, store.DeleteRoom(ctx, "r1"))

	_, err := store.GetRoom(ctx, "r1")
	assert.ErrorIs(t, err, ErrNoRoom)

	active, err := store.ActiveRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestMemoryStoreActiveRooms(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.AddActiveRoom(ctx, "a"))
	require.NoError(t, store.AddActiveRoom(ctx, "b"))
	require.NoError(t, store.RemoveActiveRoom(ctx, "a"))

	active, err := store.ActiveRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, active)
}
