package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MrEthical07/warden/rbac"
)

const testHash = "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := Open(context.Background(), OpenConfig{
		DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestStore(t *testing.T) (*GormStore, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewGormStore(db, StoreConfig{RetryDelay: time.Millisecond}), db
}

func mustCreate(t *testing.T, s Store, name string, role rbac.Role) Account {
	t.Helper()
	acct, err := s.Create(context.Background(), NewAccount{
		Name:         name,
		Email:        name + "@x.com",
		PasswordHash: testHash,
		Role:         role,
	})
	require.NoError(t, err)
	return acct
}

func TestCreateAndFind(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, NewAccount{
		Name:         " alice ",
		Email:        "Alice@X.com",
		PasswordHash: testHash,
		Role:         rbac.RoleMember,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alice", created.Name)
	assert.Equal(t, "alice@x.com", created.Email)
	assert.Equal(t, rbac.RoleMember, created.Role)
	assert.True(t, created.Active)

	byName, err := s.FindByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.Equal(t, testHash, byName.PasswordHash)
	assert.True(t, byName.Active)

	byID, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Name)

	_, err = s.FindByName(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountJSONOmitsPasswordHash(t *testing.T) {
	s, _ := newTestStore(t)
	acct := mustCreate(t, s, "alice", rbac.RoleMember)

	data, err := json.Marshal(acct)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "argon2id")
	assert.NotContains(t, string(data), "password")
}

func TestCreateRejectsDuplicates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "alice", rbac.RoleMember)

	_, err := s.Create(ctx, NewAccount{Name: "alice", Email: "other@x.com", PasswordHash: testHash, Role: rbac.RoleMember})
	assert.ErrorIs(t, err, ErrDuplicateAccount)

	_, err = s.Create(ctx, NewAccount{Name: "alice2", Email: "ALICE@x.com", PasswordHash: testHash, Role: rbac.RoleMember})
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	cases := map[string]NewAccount{
		"empty name":    {Name: " ", Email: "a@x.com", PasswordHash: testHash, Role: rbac.RoleMember},
		"long name":     {Name: strings.Repeat("a", 65), Email: "a@x.com", PasswordHash: testHash, Role: rbac.RoleMember},
		"control char":  {Name: "al\x00ice", Email: "a@x.com", PasswordHash: testHash, Role: rbac.RoleMember},
		"bad email":     {Name: "alice", Email: "not-an-email", PasswordHash: testHash, Role: rbac.RoleMember},
		"display email": {Name: "alice", Email: "Alice <a@x.com>", PasswordHash: testHash, Role: rbac.RoleMember},
		"empty hash":    {Name: "alice", Email: "a@x.com", Role: rbac.RoleMember},
		"invalid role":  {Name: "alice", Email: "a@x.com", PasswordHash: testHash, Role: rbac.Role("root")},
	}
	for name, in := range cases {
		_, err := s.Create(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidAccount, name)
	}
}

func TestConcurrentCreateSameName(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		dupes     atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Create(ctx, NewAccount{
				Name:         "alice",
				Email:        fmt.Sprintf("alice%d@x.com", i),
				PasswordHash: testHash,
				Role:         rbac.RoleMember,
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrDuplicateAccount):
				dupes.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(workers-1), dupes.Load())

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSelfModificationGuard(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	admin := mustCreate(t, s, "admin", rbac.RoleAdmin)

	var queries atomic.Int32
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:count", func(*gorm.DB) {
		queries.Add(1)
	}))

	for _, role := range []rbac.Role{rbac.RoleMember, rbac.RoleAdmin} {
		_, err := s.UpdateRole(ctx, admin.ID, admin.ID, role)
		assert.ErrorIs(t, err, ErrSelfModification)
	}
	_, err := s.SetActive(ctx, admin.ID, admin.ID, false)
	assert.ErrorIs(t, err, ErrSelfModification)
	assert.ErrorIs(t, s.Delete(ctx, admin.ID, admin.ID), ErrSelfModification)

	_, err = s.UpdateRole(ctx, "ghost", "ghost", rbac.RoleAdmin)
	assert.ErrorIs(t, err, ErrSelfModification, "guard applies before existence is checked")

	assert.Zero(t, queries.Load(), "guard must reject before any I/O")

	current, err := s.FindByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, current.Role)
	assert.True(t, current.Active)
}

func TestUpdateRoleSetActiveDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	admin := mustCreate(t, s, "admin", rbac.RoleAdmin)
	alice := mustCreate(t, s, "alice", rbac.RoleMember)

	updated, err := s.UpdateRole(ctx, admin.ID, alice.ID, rbac.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, updated.Role)
	assert.False(t, updated.UpdatedAt.Before(alice.UpdatedAt))

	_, err = s.UpdateRole(ctx, admin.ID, alice.ID, rbac.Role("owner"))
	assert.ErrorIs(t, err, ErrInvalidAccount)

	disabled, err := s.SetActive(ctx, admin.ID, alice.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.Active)

	stored, err := s.FindByName(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, rbac.RoleAdmin, stored.Role)

	require.NoError(t, s.Delete(ctx, admin.ID, alice.ID))
	_, err = s.FindByID(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMutationsOnMissingAccount(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	admin := mustCreate(t, s, "admin", rbac.RoleAdmin)

	_, err := s.UpdateRole(ctx, admin.ID, "missing", rbac.RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.SetActive(ctx, admin.ID, "missing", false)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, admin.ID, "missing"), ErrNotFound)
}

func TestListOrderedByCreation(t *testing.T) {
	s, _ := newTestStore(t)
	names := []string{"carol", "alice", "bob"}
	for _, name := range names {
		mustCreate(t, s, name, rbac.RoleMember)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, acct := range all {
		assert.Equal(t, names[i], acct.Name)
		assert.NotEmpty(t, acct.PasswordHash, "hash is loaded for internal use")
	}
}

func TestTransientFailureRetriedOnce(t *testing.T) {
	s, db := newTestStore(t)

	var attempts atomic.Int32
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:flaky", func(tx *gorm.DB) {
		if attempts.Add(1) == 1 {
			_ = tx.AddError(errors.New("connection reset by peer"))
		}
	}))

	acct := mustCreate(t, s, "alice", rbac.RoleMember)
	assert.Equal(t, int32(2), attempts.Load())

	found, err := s.FindByID(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Name)
}

func TestPersistentFailureSurfacesUnavailable(t *testing.T) {
	s, db := newTestStore(t)

	var attempts atomic.Int32
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:broken", func(tx *gorm.DB) {
		attempts.Add(1)
		_ = tx.AddError(errors.New("connection reset by peer"))
	}))

	_, err := s.Create(context.Background(), NewAccount{Name: "alice", Email: "alice@x.com", PasswordHash: testHash, Role: rbac.RoleMember})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), attempts.Load(), "at most one retry")
}

func TestDomainErrorsAreNotRetried(t *testing.T) {
	s, db := newTestStore(t)
	mustCreate(t, s, "alice", rbac.RoleMember)

	var counts atomic.Int32
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:count", func(*gorm.DB) {
		counts.Add(1)
	}))

	_, err := s.Create(context.Background(), NewAccount{Name: "alice", Email: "alice@x.com", PasswordHash: testHash, Role: rbac.RoleMember})
	assert.ErrorIs(t, err, ErrDuplicateAccount)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), counts.Load())
}

func TestCanceledContextIsNotRetried(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FindByName(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), OpenConfig{})
	assert.Error(t, err)
	assert.True(t, IsPostgres("postgres://u:p@localhost:5432/db"))
	assert.True(t, IsPostgres("postgresql://localhost/db"))
	assert.False(t, IsPostgres("file:warden.db"))
}
