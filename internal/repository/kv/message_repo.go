package kv

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/pebble"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/repository"
)

type MessageRepo struct {
	store *Store
}

func NewMessageRepo(store *Store) *MessageRepo {
	return &MessageRepo{store: store}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	b := r.store.db.NewBatch()
	defer b.Close()
	if err := b.Set(messageKey(msg.RoomID, msg.ID), data, nil); err != nil {
		return err
	}
	if err := b.Set(indexKey(msg.RoomID, msg.Timestamp, msg.ID), nil, nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (r *MessageRepo) GetByID(ctx context.Context, roomID, id string) (*domain.Message, error) {
	var msg domain.Message
	found, err := r.store.getJSON(messageKey(roomID, id), &msg)
	if err != nil || !found {
		return nil, err
	}
	return &msg, nil
}

// ListPage walks the ordering index backwards from the bound so the page is
// the newest slice below it.
func (r *MessageRepo) ListPage(ctx context.Context, roomID string, limit int, olderThan *int64) ([]domain.Message, error) {
	prefix := indexPrefix(roomID)
	upper := prefixEnd(prefix)
	if olderThan != nil {
		upper = indexBound(roomID, *olderThan)
	}

	iter, err := r.store.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var ids []string
	for iter.Last(); iter.Valid() && len(ids) < limit; iter.Prev() {
		if id := messageIDFromIndex(roomID, iter.Key()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		msg, err := r.GetByID(ctx, roomID, ids[i])
		if err != nil {
			return nil, err
		}
		if msg != nil {
			messages = append(messages, *msg)
		}
	}
	return messages, nil
}

// Update rewrites the mutable content. Timestamp and sender stay as stored.
func (r *MessageRepo) Update(ctx context.Context, msg *domain.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var current domain.Message
	found, err := r.store.getJSON(messageKey(msg.RoomID, msg.ID), &current)
	if err != nil {
		return err
	}
	if !found {
		return repository.ErrNotFound
	}
	current.Text = msg.Text
	current.ImageURL = msg.ImageURL
	return r.store.setJSON(messageKey(msg.RoomID, msg.ID), &current)
}

func (r *MessageRepo) Delete(ctx context.Context, roomID, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var current domain.Message
	found, err := r.store.getJSON(messageKey(roomID, id), &current)
	if err != nil {
		return err
	}
	if !found {
		return repository.ErrNotFound
	}

	b := r.store.db.NewBatch()
	defer b.Close()
	if err := b.Delete(messageKey(roomID, id), nil); err != nil {
		return err
	}
	if err := b.Delete(indexKey(roomID, current.Timestamp, id), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}
