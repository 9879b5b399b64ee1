package services

import (
	"context"
	"fmt"
	"strings"

	"groupspend/internal/core"
	"groupspend/internal/log"
)

// PersonalGroupName is the group every new user starts with.
const PersonalGroupName = "Personal"

// DefaultCategories are seeded into the personal group on onboarding.
var DefaultCategories = []string{"Food and Drinks", "Vehicle Maintenance", "Gas", "Other"}

// DirectoryStore is the slice of storage behind users, groups and categories.
type DirectoryStore interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	CreateGroup(ctx context.Context, g core.Group) (core.Group, error)
	AddMember(ctx context.Context, m core.Membership) error
	Membership(ctx context.Context, groupID, userID int64) (core.Membership, error)
	GroupsForUser(ctx context.Context, userID int64) ([]core.Group, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	ListCategories(ctx context.Context, groupID int64) ([]core.Category, error)
}

type DirectoryService struct {
	store  DirectoryStore
	logger *log.Logger
}

func NewDirectoryService(store DirectoryStore, logger *log.Logger) *DirectoryService {
	if logger == nil {
		logger = log.Nop()
	}
	return &DirectoryService{store: store, logger: logger.WithComponent(log.ComponentDirectory)}
}

// Onboarding is what a new user starts with.
type Onboarding struct {
	User       core.User       `json:"user"`
	Group      core.Group      `json:"group"`
	Categories []core.Category `json:"categories"`
}

// Onboard creates a user, their personal group (as Owner) and its
// default categories.
func (s *DirectoryService) Onboard(ctx context.Context, name, email string) (Onboarding, error) {
	u := core.User{Name: strings.TrimSpace(name), Email: strings.TrimSpace(strings.ToLower(email))}
	if err := u.Validate(); err != nil {
		return Onboarding{}, err
	}

	user, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return Onboarding{}, fmt.Errorf("create user: %w", err)
	}
	group, err := s.store.CreateGroup(ctx, core.Group{Name: PersonalGroupName})
	if err != nil {
		return Onboarding{}, fmt.Errorf("create personal group: %w", err)
	}
	if err := s.store.AddMember(ctx, core.Membership{GroupID: group.ID, UserID: user.ID, Role: core.RoleOwner}); err != nil {
		return Onboarding{}, fmt.Errorf("attach owner: %w", err)
	}

	out := Onboarding{User: user, Group: group, Categories: make([]core.Category, 0, len(DefaultCategories))}
	for _, name := range DefaultCategories {
		c, err := s.store.CreateCategory(ctx, core.Category{GroupID: group.ID, Name: name})
		if err != nil {
			return Onboarding{}, fmt.Errorf("seed category %q: %w", name, err)
		}
		out.Categories = append(out.Categories, c)
	}

	s.logger.InfoContext(ctx, "User onboarded",
		log.FieldUserID, user.ID, log.FieldGroupID, group.ID)
	return out, nil
}

// CreateGroup creates a group and attaches the creator as Admin.
func (s *DirectoryService) CreateGroup(ctx context.Context, actorID int64, name string) (core.Group, error) {
	g := core.Group{Name: strings.TrimSpace(name)}
	if err := g.Validate(); err != nil {
		return core.Group{}, err
	}
	if _, err := s.store.GetUser(ctx, actorID); err != nil {
		return core.Group{}, fmt.Errorf("get user: %w", err)
	}

	group, err := s.store.CreateGroup(ctx, g)
	if err != nil {
		return core.Group{}, fmt.Errorf("create group: %w", err)
	}
	if err := s.store.AddMember(ctx, core.Membership{GroupID: group.ID, UserID: actorID, Role: core.RoleAdmin}); err != nil {
		return core.Group{}, fmt.Errorf("attach creator: %w", err)
	}

	s.logger.InfoContext(ctx, "Group created", log.FieldUserID, actorID, log.FieldGroupID, group.ID)
	return group, nil
}

// AddMember adds userID to groupID. Only Owners and Admins may add members.
func (s *DirectoryService) AddMember(ctx context.Context, actorID, groupID, userID int64, role core.Role) (core.Membership, error) {
	if err := role.Validate(); err != nil {
		return core.Membership{}, err
	}
	actor, err := membership(ctx, s.store, groupID, actorID)
	if err != nil {
		return core.Membership{}, err
	}
	if actor.Role != core.RoleOwner && actor.Role != core.RoleAdmin {
		return core.Membership{}, fmt.Errorf("%w: %s cannot add members", ErrInsufficientRole, actor.Role)
	}

	m := core.Membership{GroupID: groupID, UserID: userID, Role: role}
	if err := s.store.AddMember(ctx, m); err != nil {
		return core.Membership{}, fmt.Errorf("add member: %w", err)
	}
	return m, nil
}

// Groups lists the user's groups in membership order.
func (s *DirectoryService) Groups(ctx context.Context, userID int64) ([]core.Group, error) {
	groups, err := s.store.GroupsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// CreateCategory adds a category to a group the actor belongs to.
func (s *DirectoryService) CreateCategory(ctx context.Context, actorID, groupID int64, name string) (core.Category, error) {
	c := core.Category{GroupID: groupID, Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := requireMember(ctx, s.store, groupID, actorID); err != nil {
		return core.Category{}, err
	}

	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

func (s *DirectoryService) Categories(ctx context.Context, actorID, groupID int64) ([]core.Category, error) {
	if err := requireMember(ctx, s.store, groupID, actorID); err != nil {
		return nil, err
	}
	cats, err := s.store.ListCategories(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}
