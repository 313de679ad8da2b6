package kv

import (
	"context"

	"github.com/pentia/chatcore/internal/domain"
)

type SettingRepo struct {
	store *Store
}

func NewSettingRepo(store *Store) *SettingRepo {
	return &SettingRepo{store: store}
}

func (r *SettingRepo) Get(ctx context.Context, userID, roomID string) (domain.RoomSetting, error) {
	s := domain.RoomSetting{UserID: userID, RoomID: roomID}
	if _, err := r.store.getJSON(settingKey(userID, roomID), &s); err != nil {
		return domain.RoomSetting{}, err
	}
	return s, nil
}

func (r *SettingRepo) Patch(ctx context.Context, userID, roomID string, patch domain.SettingPatch) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	s := domain.RoomSetting{UserID: userID, RoomID: roomID}
	if _, err := r.store.getJSON(settingKey(userID, roomID), &s); err != nil {
		return err
	}
	patch.Apply(&s)
	return r.store.setJSON(settingKey(userID, roomID), &s)
}
