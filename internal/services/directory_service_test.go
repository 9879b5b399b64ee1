package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"groupspend/internal/core"
	"groupspend/internal/storage"
)

func TestDirectoryService_Onboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if f.ada.Group.Name != PersonalGroupName {
		t.Fatalf("personal group = %+v", f.ada.Group)
	}
	m, err := f.store.Membership(ctx, f.ada.Group.ID, f.ada.User.ID)
	if err != nil || m.Role != core.RoleOwner {
		t.Fatalf("owner membership = %+v, %v", m, err)
	}

	var names []string
	for _, c := range f.ada.Categories {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff(DefaultCategories, names); diff != "" {
		t.Fatalf("seeded categories mismatch (-want +got):\n%s", diff)
	}

	if _, err := f.dir.Onboard(ctx, "Ada again", "ADA@example.com"); !errors.Is(err, storage.ErrDuplicateEmail) {
		t.Fatalf("duplicate email: got %v", err)
	}
	if _, err := f.dir.Onboard(ctx, " ", "x@example.com"); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("empty name: got %v", err)
	}
}

func TestDirectoryService_Groups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	groups, err := f.dir.Groups(ctx, f.ada.User.ID)
	if err != nil {
		t.Fatalf("Groups: %v", err)
	}
	if diff := cmp.Diff([]core.Group{f.ada.Group, f.shared}, groups); diff != "" {
		t.Fatalf("groups mismatch (-want +got):\n%s", diff)
	}

	m, err := f.store.Membership(ctx, f.shared.ID, f.ada.User.ID)
	if err != nil || m.Role != core.RoleAdmin {
		t.Fatalf("creator membership = %+v, %v", m, err)
	}

	if _, err := f.dir.CreateGroup(ctx, 999, "Ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("unknown creator: got %v", err)
	}
}

func TestDirectoryService_AddMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.dir.AddMember(ctx, f.ada.User.ID, f.shared.ID, f.bob.User.ID, core.RoleMember); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	tests := []struct {
		name    string
		actor   int64
		group   int64
		user    int64
		role    core.Role
		wantErr error
	}{
		{"member cannot add", f.bob.User.ID, f.shared.ID, f.ada.User.ID, core.RoleMember, ErrInsufficientRole},
		{"outsider cannot add", f.bob.User.ID, f.ada.Group.ID, f.bob.User.ID, core.RoleMember, ErrNotMember},
		{"invalid role", f.ada.User.ID, f.shared.ID, f.bob.User.ID, core.Role("boss"), core.ErrInvalidRole},
		{"already a member", f.ada.User.ID, f.shared.ID, f.bob.User.ID, core.RoleAdmin, storage.ErrDuplicateMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.dir.AddMember(ctx, tt.actor, tt.group, tt.user, tt.role); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDirectoryService_Categories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.dir.CreateCategory(ctx, f.ada.User.ID, f.shared.ID, " Hotels ")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if c.Name != "Hotels" || c.GroupID != f.shared.ID {
		t.Fatalf("category = %+v", c)
	}

	if _, err := f.dir.CreateCategory(ctx, f.ada.User.ID, f.shared.ID, "Hotels"); !errors.Is(err, storage.ErrDuplicateCategory) {
		t.Fatalf("duplicate: got %v", err)
	}
	if _, err := f.dir.CreateCategory(ctx, f.bob.User.ID, f.shared.ID, "Fuel"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("outsider: got %v", err)
	}
	if _, err := f.dir.CreateCategory(ctx, f.ada.User.ID, f.shared.ID, longName()); !errors.Is(err, core.ErrNameTooLong) {
		t.Fatalf("long name: got %v", err)
	}

	list, err := f.dir.Categories(ctx, f.ada.User.ID, f.shared.ID)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if diff := cmp.Diff([]core.Category{c}, list); diff != "" {
		t.Fatalf("categories mismatch (-want +got):\n%s", diff)
	}
	if _, err := f.dir.Categories(ctx, f.bob.User.ID, f.shared.ID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("outsider list: got %v", err)
	}
}

func longName() string {
	b := make([]byte, core.MaxTextLength+1)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
