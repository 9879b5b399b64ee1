package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type memStore struct {
	settings map[int64]map[string]json.RawMessage
	groups   map[int64][]int64
	writes   int
}

func newMemStore() *memStore {
	return &memStore{
		settings: make(map[int64]map[string]json.RawMessage),
		groups:   map[int64][]int64{1: {7, 3, 5}, 2: {}},
	}
}

func (m *memStore) Setting(_ context.Context, userID int64, key string) (json.RawMessage, error) {
	return m.settings[userID][key], nil
}

func (m *memStore) UpdateSetting(_ context.Context, userID int64, key string, value json.RawMessage) error {
	m.writes++
	if m.settings[userID] == nil {
		m.settings[userID] = make(map[string]json.RawMessage)
	}
	m.settings[userID][key] = value
	return nil
}

func (m *memStore) GroupIDsForUser(_ context.Context, userID int64) ([]int64, error) {
	return m.groups[userID], nil
}

func TestSelectedGroupsDefaultsToFirstGroup(t *testing.T) {
	svc := NewService(newMemStore(), nil)
	got, err := svc.SelectedGroups(context.Background(), 1)
	if err != nil {
		t.Fatalf("SelectedGroups: %v", err)
	}
	if diff := cmp.Diff([]int64{7}, got); diff != "" {
		t.Fatalf("default mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectedGroupsWithoutGroups(t *testing.T) {
	svc := NewService(newMemStore(), nil)
	got, err := svc.SelectedGroups(context.Background(), 2)
	if err != nil || len(got) != 0 {
		t.Fatalf("SelectedGroups = %v, %v", got, err)
	}
}

func TestSetSelectedGroups(t *testing.T) {
	store := newMemStore()
	store.settings[1] = map[string]json.RawMessage{"theme": json.RawMessage(`"dark"`)}
	svc := NewService(store, nil)
	ctx := context.Background()

	saved, err := svc.SetSelectedGroups(ctx, 1, []int64{5, 3, 5})
	if err != nil {
		t.Fatalf("SetSelectedGroups: %v", err)
	}
	if diff := cmp.Diff([]int64{3, 5}, saved); diff != "" {
		t.Fatalf("saved mismatch (-want +got):\n%s", diff)
	}

	got, err := svc.SelectedGroups(ctx, 1)
	if err != nil {
		t.Fatalf("SelectedGroups: %v", err)
	}
	if diff := cmp.Diff([]int64{3, 5}, got); diff != "" {
		t.Fatalf("read back mismatch (-want +got):\n%s", diff)
	}
	if string(store.settings[1]["theme"]) != `"dark"` {
		t.Fatalf("other settings were not preserved: %v", store.settings[1])
	}

	if _, err := svc.SetSelectedGroups(ctx, 1, []int64{3, 5}); err != nil {
		t.Fatalf("SetSelectedGroups: %v", err)
	}
	if store.writes != 1 {
		t.Fatalf("idempotent set wrote %d times", store.writes)
	}
}

func TestSetSelectedGroupsEmptyIsStored(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	if _, err := svc.SetSelectedGroups(ctx, 1, nil); err != nil {
		t.Fatalf("SetSelectedGroups: %v", err)
	}
	got, err := svc.SelectedGroups(ctx, 1)
	if err != nil || len(got) != 0 {
		t.Fatalf("explicit empty selection: %v, %v", got, err)
	}
}

func TestSetSelectedGroupsRejectsForeignGroup(t *testing.T) {
	svc := NewService(newMemStore(), nil)
	if _, err := svc.SetSelectedGroups(context.Background(), 1, []int64{3, 99}); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}
