// Package storagetest holds the behavioural suite every storage.Repository
// implementation must pass.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"groupspend/internal/core"
	"groupspend/internal/report"
	"groupspend/internal/storage"
)

// Factory returns an empty repository. Cleanup is registered on t.
type Factory func(t *testing.T) storage.Repository

// Run executes the suite against repositories produced by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newRepo(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, newRepo(t)) })
	t.Run("Memberships", func(t *testing.T) { testMemberships(t, newRepo(t)) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, newRepo(t)) })
	t.Run("Ledger", func(t *testing.T) { testLedger(t, newRepo(t)) })
	t.Run("Directory", func(t *testing.T) { testDirectory(t, newRepo(t)) })
	t.Run("ListExpenses", func(t *testing.T) { testListExpenses(t, newRepo(t)) })
}

func mustUser(t *testing.T, repo storage.Repository, name, email string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), core.User{Name: name, Email: email})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func mustGroup(t *testing.T, repo storage.Repository, name string, members ...int64) core.Group {
	t.Helper()
	ctx := context.Background()
	g, err := repo.CreateGroup(ctx, core.Group{Name: name})
	if err != nil {
		t.Fatalf("CreateGroup(%s): %v", name, err)
	}
	for _, uid := range members {
		if err := repo.AddMember(ctx, core.Membership{GroupID: g.ID, UserID: uid, Role: core.RoleMember}); err != nil {
			t.Fatalf("AddMember(%d, %d): %v", g.ID, uid, err)
		}
	}
	return g
}

func mustCategory(t *testing.T, repo storage.Repository, groupID int64, name string) core.Category {
	t.Helper()
	c, err := repo.CreateCategory(context.Background(), core.Category{GroupID: groupID, Name: name})
	if err != nil {
		t.Fatalf("CreateCategory(%s): %v", name, err)
	}
	return c
}

func mustExpense(t *testing.T, repo storage.Repository, e core.Expense) core.Expense {
	t.Helper()
	if e.Currency == "" {
		e.Currency = core.USD
	}
	saved, err := repo.CreateExpense(context.Background(), e)
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	return saved
}

func at(y int, m time.Month, d, hour, minute int) time.Time {
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC)
}

func testUsers(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	u := mustUser(t, repo, "Ada", "ada@example.com")
	if u.ID == 0 {
		t.Fatal("expected an assigned id")
	}

	if _, err := repo.CreateUser(ctx, core.User{Name: "Other", Email: "ada@example.com"}); !errors.Is(err, storage.ErrDuplicateEmail) {
		t.Fatalf("duplicate email: got %v", err)
	}

	got, err := repo.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Name != "Ada" || got.Email != "ada@example.com" {
		t.Fatalf("GetUser = %+v", got)
	}

	if _, err := repo.GetUser(ctx, u.ID+100); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing user: got %v", err)
	}
}

func testSettings(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	u := mustUser(t, repo, "Ada", "ada@example.com")

	v, err := repo.Setting(ctx, u.ID, "theme")
	if err != nil || v != nil {
		t.Fatalf("unset setting = %s, %v", v, err)
	}

	if err := repo.UpdateSetting(ctx, u.ID, "theme", json.RawMessage(`"dark"`)); err != nil {
		t.Fatalf("UpdateSetting theme: %v", err)
	}
	if err := repo.UpdateSetting(ctx, u.ID, "groups", json.RawMessage(`[1,2]`)); err != nil {
		t.Fatalf("UpdateSetting groups: %v", err)
	}

	got, err := repo.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	want := map[string]string{"theme": `"dark"`, "groups": `[1,2]`}
	gotStr := map[string]string{}
	for k, v := range got.Settings {
		gotStr[k] = string(v)
	}
	if diff := cmp.Diff(want, gotStr); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}

	if err := repo.UpdateSetting(ctx, u.ID, "theme", json.RawMessage(`{bad`)); err == nil {
		t.Fatal("expected invalid JSON to be rejected")
	}
	if err := repo.UpdateSetting(ctx, u.ID+100, "theme", json.RawMessage(`1`)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing user: got %v", err)
	}
}

func testMemberships(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	ada := mustUser(t, repo, "Ada", "ada@example.com")
	bob := mustUser(t, repo, "Bob", "bob@example.com")

	trip := mustGroup(t, repo, "Trip", bob.ID)
	home := mustGroup(t, repo, "Home", ada.ID)
	if err := repo.AddMember(ctx, core.Membership{GroupID: trip.ID, UserID: ada.ID, Role: core.RoleAdmin}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	ids, err := repo.GroupIDsForUser(ctx, ada.ID)
	if err != nil {
		t.Fatalf("GroupIDsForUser: %v", err)
	}
	if diff := cmp.Diff([]int64{home.ID, trip.ID}, ids); diff != "" {
		t.Fatalf("membership order mismatch (-want +got):\n%s", diff)
	}

	groups, err := repo.GroupsForUser(ctx, ada.ID)
	if err != nil {
		t.Fatalf("GroupsForUser: %v", err)
	}
	if diff := cmp.Diff([]core.Group{home, trip}, groups); diff != "" {
		t.Fatalf("groups mismatch (-want +got):\n%s", diff)
	}

	m, err := repo.Membership(ctx, trip.ID, ada.ID)
	if err != nil || m.Role != core.RoleAdmin {
		t.Fatalf("Membership = %+v, %v", m, err)
	}
	if _, err := repo.Membership(ctx, home.ID, bob.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("non-member: got %v", err)
	}

	if err := repo.AddMember(ctx, core.Membership{GroupID: trip.ID, UserID: ada.ID, Role: core.RoleMember}); !errors.Is(err, storage.ErrDuplicateMember) {
		t.Fatalf("duplicate member: got %v", err)
	}
	if err := repo.AddMember(ctx, core.Membership{GroupID: trip.ID + 100, UserID: ada.ID, Role: core.RoleMember}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing group: got %v", err)
	}

	none, err := repo.GroupIDsForUser(ctx, ada.ID+100)
	if err != nil || len(none) != 0 {
		t.Fatalf("unknown user groups = %v, %v", none, err)
	}
}

func testCategories(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	ada := mustUser(t, repo, "Ada", "ada@example.com")
	home := mustGroup(t, repo, "Home", ada.ID)
	trip := mustGroup(t, repo, "Trip", ada.ID)

	gas := mustCategory(t, repo, home.ID, "Gas")
	food := mustCategory(t, repo, home.ID, "Food")
	mustCategory(t, repo, trip.ID, "Gas")

	if _, err := repo.CreateCategory(ctx, core.Category{GroupID: home.ID, Name: "Gas"}); !errors.Is(err, storage.ErrDuplicateCategory) {
		t.Fatalf("duplicate category: got %v", err)
	}
	if _, err := repo.CreateCategory(ctx, core.Category{GroupID: home.ID + 100, Name: "Gas"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing group: got %v", err)
	}

	list, err := repo.ListCategories(ctx, home.ID)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if diff := cmp.Diff([]core.Category{food, gas}, list); diff != "" {
		t.Fatalf("categories mismatch (-want +got):\n%s", diff)
	}

	got, err := repo.GetCategory(ctx, gas.ID)
	if err != nil || got != gas {
		t.Fatalf("GetCategory = %+v, %v", got, err)
	}
	if _, err := repo.GetCategory(ctx, gas.ID+100); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing category: got %v", err)
	}
}

func testLedger(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	ada := mustUser(t, repo, "Ada", "ada@example.com")
	bob := mustUser(t, repo, "Bob", "bob@example.com")
	g1 := mustGroup(t, repo, "G1", ada.ID, bob.ID)
	g2 := mustGroup(t, repo, "G2", ada.ID)
	g3 := mustGroup(t, repo, "G3", ada.ID)
	food := mustCategory(t, repo, g1.ID, "Food")

	mustExpense(t, repo, core.Expense{GroupID: g1.ID, UserID: ada.ID, CategoryID: &food.ID, Amount: core.Money{Cents: 1000}, CreatedAt: at(2024, 3, 1, 0, 0)})
	mustExpense(t, repo, core.Expense{GroupID: g1.ID, UserID: bob.ID, CategoryID: &food.ID, Amount: core.Money{Cents: 500}, CreatedAt: at(2024, 3, 1, 18, 30)})
	mustExpense(t, repo, core.Expense{GroupID: g1.ID, UserID: ada.ID, Amount: core.Money{Cents: 250}, CreatedAt: at(2024, 3, 3, 23, 59)})
	mustExpense(t, repo, core.Expense{GroupID: g2.ID, UserID: ada.ID, Amount: core.Money{Cents: 700}, Currency: core.EUR, CreatedAt: at(2024, 3, 2, 9, 0)})
	// Outside the range or the selection.
	mustExpense(t, repo, core.Expense{GroupID: g1.ID, UserID: ada.ID, Amount: core.Money{Cents: 9999}, CreatedAt: at(2024, 3, 4, 0, 0)})
	mustExpense(t, repo, core.Expense{GroupID: g1.ID, UserID: ada.ID, Amount: core.Money{Cents: 9999}, CreatedAt: at(2024, 2, 29, 23, 59)})
	mustExpense(t, repo, core.Expense{GroupID: g3.ID, UserID: ada.ID, Amount: core.Money{Cents: 9999}, CreatedAt: at(2024, 3, 2, 0, 0)})

	dates, err := core.NewDateRange(core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 3))
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}
	groups := []int64{g1.ID, g2.ID}

	days, err := repo.SumByDay(ctx, groups, dates)
	if err != nil {
		t.Fatalf("SumByDay: %v", err)
	}
	wantDays := []report.DayTotal{
		{Date: core.NewDate(2024, 3, 1), Total: 1500, Currency: core.USD},
		{Date: core.NewDate(2024, 3, 2), Total: 700, Currency: core.EUR},
		{Date: core.NewDate(2024, 3, 3), Total: 250, Currency: core.USD},
	}
	if diff := cmp.Diff(wantDays, days); diff != "" {
		t.Fatalf("SumByDay mismatch (-want +got):\n%s", diff)
	}

	cats, err := repo.SumByCategory(ctx, groups, dates)
	if err != nil {
		t.Fatalf("SumByCategory: %v", err)
	}
	wantCats := []report.CategoryTotal{
		{CategoryID: nil, Total: 700, Currency: core.EUR},
		{CategoryID: nil, Total: 250, Currency: core.USD},
		{CategoryID: &food.ID, Total: 1500, Currency: core.USD},
	}
	if diff := cmp.Diff(wantCats, cats); diff != "" {
		t.Fatalf("SumByCategory mismatch (-want +got):\n%s", diff)
	}

	byGroup, err := repo.SumByGroupAndUser(ctx, groups, dates)
	if err != nil {
		t.Fatalf("SumByGroupAndUser: %v", err)
	}
	wantGroups := []report.GroupUserTotal{
		{GroupID: g1.ID, UserID: ada.ID, Total: 1250, Currency: core.USD},
		{GroupID: g1.ID, UserID: bob.ID, Total: 500, Currency: core.USD},
		{GroupID: g2.ID, UserID: ada.ID, Total: 700, Currency: core.EUR},
	}
	if diff := cmp.Diff(wantGroups, byGroup); diff != "" {
		t.Fatalf("SumByGroupAndUser mismatch (-want +got):\n%s", diff)
	}

	empty, err := repo.SumByDay(ctx, nil, dates)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty selection = %v, %v", empty, err)
	}
}

func testDirectory(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	ada := mustUser(t, repo, "Ada", "ada@example.com")
	home := mustGroup(t, repo, "Home", ada.ID)
	gas := mustCategory(t, repo, home.ID, "Gas")

	users, err := repo.UserNames(ctx, []int64{ada.ID, ada.ID + 100})
	if err != nil {
		t.Fatalf("UserNames: %v", err)
	}
	if diff := cmp.Diff(map[int64]string{ada.ID: "Ada"}, users); diff != "" {
		t.Fatalf("UserNames mismatch (-want +got):\n%s", diff)
	}

	groups, err := repo.GroupNames(ctx, []int64{home.ID})
	if err != nil || groups[home.ID] != "Home" {
		t.Fatalf("GroupNames = %v, %v", groups, err)
	}

	cats, err := repo.CategoryNames(ctx, []int64{gas.ID})
	if err != nil || cats[gas.ID] != "Gas" {
		t.Fatalf("CategoryNames = %v, %v", cats, err)
	}

	none, err := repo.CategoryNames(ctx, nil)
	if err != nil || len(none) != 0 {
		t.Fatalf("CategoryNames(nil) = %v, %v", none, err)
	}
}

func testListExpenses(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	ada := mustUser(t, repo, "Ada", "ada@example.com")
	bob := mustUser(t, repo, "Bob", "bob@example.com")
	home := mustGroup(t, repo, "Home", ada.ID, bob.ID)

	var ids []int64
	for i, cents := range []int64{300, 100, 200} {
		e := mustExpense(t, repo, core.Expense{GroupID: home.ID, UserID: ada.ID, Amount: core.Money{Cents: cents}, Note: "n", CreatedAt: at(2024, 5, i+1, 12, 0)})
		ids = append(ids, e.ID)
	}
	mustExpense(t, repo, core.Expense{GroupID: home.ID, UserID: bob.ID, Amount: core.Money{Cents: 50}, CreatedAt: at(2024, 5, 9, 12, 0)})

	idsOf := func(p storage.ExpensePage) []int64 {
		out := []int64{}
		for _, e := range p.Expenses {
			out = append(out, e.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		query    storage.ExpenseQuery
		want     []int64
		hasNext  bool
		wantSize int
	}{
		{"default newest first", storage.ExpenseQuery{UserID: ada.ID, Desc: true}, []int64{ids[2], ids[1], ids[0]}, false, 10},
		{"created asc", storage.ExpenseQuery{UserID: ada.ID, Sort: storage.SortCreatedAt}, []int64{ids[0], ids[1], ids[2]}, false, 10},
		{"amount desc", storage.ExpenseQuery{UserID: ada.ID, Sort: storage.SortAmount, Desc: true}, []int64{ids[0], ids[2], ids[1]}, false, 10},
		{"first page", storage.ExpenseQuery{UserID: ada.ID, Sort: storage.SortAmount, PageSize: 2}, []int64{ids[1], ids[2]}, true, 2},
		{"second page", storage.ExpenseQuery{UserID: ada.ID, Sort: storage.SortAmount, PageSize: 2, Page: 2}, []int64{ids[0]}, false, 2},
		{"past the end", storage.ExpenseQuery{UserID: ada.ID, Page: 5}, []int64{}, false, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.ListExpenses(ctx, tt.query)
			if err != nil {
				t.Fatalf("ListExpenses: %v", err)
			}
			if diff := cmp.Diff(tt.want, idsOf(page)); diff != "" {
				t.Fatalf("ids mismatch (-want +got):\n%s", diff)
			}
			if page.Total != 3 || page.HasNext() != tt.hasNext || page.PageSize != tt.wantSize {
				t.Fatalf("page = total %d, next %v, size %d", page.Total, page.HasNext(), page.PageSize)
			}
		})
	}

	page, err := repo.ListExpenses(ctx, storage.ExpenseQuery{UserID: ada.ID, Desc: true, PageSize: 1})
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	got := page.Expenses[0]
	if !got.CreatedAt.Equal(at(2024, 5, 3, 12, 0)) || got.Amount.Cents != 200 || got.Currency != core.USD || got.CategoryID != nil {
		t.Fatalf("round-tripped expense = %+v", got)
	}
}
