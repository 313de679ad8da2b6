package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/repository"
)

type RoomRepo struct {
	store *Store
}

func NewRoomRepo(store *Store) *RoomRepo {
	return &RoomRepo{store: store}
}

func (r *RoomRepo) Create(ctx context.Context, room *domain.Room) error {
	return r.store.setJSON(roomKey(room.ID), room)
}

func (r *RoomRepo) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	found, err := r.store.getJSON(roomKey(id), &room)
	if err != nil || !found {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepo) List(ctx context.Context) ([]domain.Room, error) {
	iter, err := r.store.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(roomsPrefix),
		UpperBound: prefixEnd(roomsPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	rooms := []domain.Room{}
	for iter.First(); iter.Valid(); iter.Next() {
		var room domain.Room
		if err := json.Unmarshal(iter.Value(), &room); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", iter.Key(), err)
		}
		rooms = append(rooms, room)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].LastMessageTimestamp > rooms[j].LastMessageTimestamp
	})
	return rooms, nil
}

func (r *RoomRepo) TouchLastMessage(ctx context.Context, id string, ts int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var room domain.Room
	found, err := r.store.getJSON(roomKey(id), &room)
	if err != nil {
		return err
	}
	if !found {
		return repository.ErrNotFound
	}
	room.LastMessageTimestamp = ts
	return r.store.setJSON(roomKey(id), &room)
}
