// Package preferences persists per-user dashboard settings.
package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"groupspend/internal/log"
)

// SelectedGroupsKey is the settings key holding the dashboard selection.
const SelectedGroupsKey = "dashboard_selected_groups"

// ErrNotMember is returned when a selection names a group the user is not in.
var ErrNotMember = errors.New("user is not a member of the selected group")

// Store is the per-user settings blob plus the membership lookup.
type Store interface {
	// Setting returns the raw JSON value of key, or nil when unset.
	Setting(ctx context.Context, userID int64, key string) (json.RawMessage, error)
	// UpdateSetting writes key and leaves every other key untouched.
	UpdateSetting(ctx context.Context, userID int64, key string, value json.RawMessage) error
	// GroupIDsForUser lists the user's groups in membership order.
	GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error)
}

// Service reads and writes the selected-groups preference.
type Service struct {
	store  Store
	logger *log.Logger
}

func NewService(store Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{store: store, logger: logger.WithComponent(log.ComponentPreference)}
}

// SelectedGroups returns the stored selection, or the user's first group
// when nothing is stored. A user without groups gets an empty selection.
func (s *Service) SelectedGroups(ctx context.Context, userID int64) ([]int64, error) {
	raw, err := s.store.Setting(ctx, userID, SelectedGroupsKey)
	if err != nil {
		return nil, fmt.Errorf("read setting: %w", err)
	}
	if len(raw) > 0 && string(raw) != "null" {
		var ids []int64
		if err := json.Unmarshal(raw, &ids); err != nil {
			s.logger.WarnContext(ctx, "Ignoring malformed group selection",
				log.FieldUserID, userID, log.FieldError, err)
		} else {
			return normalize(ids), nil
		}
	}

	groups, err := s.store.GroupIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	if len(groups) == 0 {
		return []int64{}, nil
	}
	return []int64{groups[0]}, nil
}

// SetSelectedGroups stores ids after checking membership. Storing the
// same selection twice is a no-op.
func (s *Service) SetSelectedGroups(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	ids = normalize(ids)

	member, err := s.store.GroupIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	for _, id := range ids {
		if !slices.Contains(member, id) {
			return nil, fmt.Errorf("%w: group %d", ErrNotMember, id)
		}
	}

	current, err := s.store.Setting(ctx, userID, SelectedGroupsKey)
	if err != nil {
		return nil, fmt.Errorf("read setting: %w", err)
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal selection: %w", err)
	}
	if string(current) == string(raw) {
		return ids, nil
	}
	if err := s.store.UpdateSetting(ctx, userID, SelectedGroupsKey, raw); err != nil {
		return nil, fmt.Errorf("update setting: %w", err)
	}
	s.logger.InfoContext(ctx, "Dashboard group selection saved",
		log.FieldUserID, userID, log.FieldGroupIDs, ids)
	return ids, nil
}

func normalize(ids []int64) []int64 {
	out := slices.Clone(ids)
	if out == nil {
		out = []int64{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
