package users

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/unkn0wn-root/usercache"
	"github.com/unkn0wn-root/usercache/codec"
	"github.com/unkn0wn-root/usercache/internal/store"
	"github.com/unkn0wn-root/usercache/provider/memory"
)

// countingStore counts reads that reach the data source.
type countingStore struct {
	store.Store
	lists atomic.Int64
	gets  atomic.Int64
	fail  error
}

func (c *countingStore) List(ctx context.Context) ([]store.User, error) {
	c.lists.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Store.List(ctx)
}

func (c *countingStore) Get(ctx context.Context, id int64) (store.User, error) {
	c.gets.Add(1)
	if c.fail != nil {
		return store.User{}, c.fail
	}
	return c.Store.Get(ctx, id)
}

type fixture struct {
	db    *gorm.DB
	svc   *Service
	store *countingStore
	mem   *memory.Provider
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := store.Open("sqlite", filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(db) })

	mem := memory.New()
	res, err := usercache.NewResource[store.User](usercache.ResourceOptions[store.User]{
		Keyspace:  usercache.Keyspace{Prefix: "user"},
		Provider:  mem,
		ListCodec: codec.JSON[[]store.User]{},
		ItemCodec: codec.JSON[store.User]{},
		ID:        func(u store.User) int64 { return u.ID },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Close(context.Background()) })

	cs := &countingStore{Store: store.New(db)}
	return fixture{db: db, svc: New(cs, res, nil), store: cs, mem: mem}
}

func ada() Input {
	return Input{Username: "ada", Email: "ada@example.com", FirstName: "Ada"}
}

func TestListAndGetAreCached(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	u, err := f.svc.Create(ctx, ada())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		list, err := f.svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		got, err := f.svc.Get(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "ada", got.Username)
	}
	assert.Equal(t, int64(1), f.store.lists.Load())
	assert.Equal(t, int64(1), f.store.gets.Load())
}

func TestCreateInvalidatesListOnly(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	first, err := f.svc.Create(ctx, ada())
	require.NoError(t, err)
	_, _ = f.svc.List(ctx)
	_, _ = f.svc.Get(ctx, first.ID)

	_, err = f.svc.Create(ctx, Input{Username: "grace", Email: "grace@example.com"})
	require.NoError(t, err)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, int64(2), f.store.lists.Load())

	_, err = f.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.store.gets.Load(), "item key survives a create")
}

func TestUpdateIsVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	u, err := f.svc.Create(ctx, ada())
	require.NoError(t, err)
	_, _ = f.svc.List(ctx)
	_, _ = f.svc.Get(ctx, u.ID)

	in := ada()
	in.LastName = "Lovelace"
	updated, err := f.svc.Update(ctx, u.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", updated.LastName)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", list[0].LastName)
	got, err := f.svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", got.LastName)
	assert.Equal(t, int64(2), f.store.lists.Load())
	assert.Equal(t, int64(2), f.store.gets.Load())
}

func TestDeleteMakesItemNotFound(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	u, err := f.svc.Create(ctx, ada())
	require.NoError(t, err)
	_, _ = f.svc.Get(ctx, u.ID)
	_, _ = f.svc.List(ctx)

	require.NoError(t, f.svc.Delete(ctx, u.ID))

	_, err = f.svc.Get(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.False(t, f.mem.Len() > 1, "not-found must not be cached")
}

func TestMutationsOfMissingUser(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	_, err := f.svc.Update(ctx, 42, ada())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, 42), store.ErrNotFound)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Create(ctx, Input{Email: "not-an-email"})
	require.ErrorIs(t, err, ErrValidation)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "required", ve.Fields["username"])
	assert.Equal(t, "email", ve.Fields["email"])

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "invalid input never reaches the store")
}

func TestDataSourceErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	boom := errors.New("disk I/O error")
	f.store.fail = boom

	_, err := f.svc.List(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = f.svc.Get(ctx, 1)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, f.mem.Len())

	f.store.fail = nil
	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWarmAndStats(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	rep, err := f.svc.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Items)
	st := f.svc.Stats(ctx)
	assert.Equal(t, 1, st.KeyCount)
	assert.Equal(t, []string{"user_list"}, st.Keys)

	for _, n := range []string{"ada", "grace"} {
		_, err := f.svc.Create(ctx, Input{Username: n, Email: n + "@example.com"})
		require.NoError(t, err)
	}
	rep, err = f.svc.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Items)
	assert.True(t, rep.Collection)
	assert.Equal(t, 3, f.svc.Stats(ctx).KeyCount)

	_, err = f.svc.Get(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, f.store.gets.Load(), "warmed item is served from cache")
}

func TestWarmPropagatesDataSourceError(t *testing.T) {
	f := setup(t)
	f.store.fail = errors.New("database is locked")
	_, err := f.svc.Warm(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

// failAfter registers a gorm callback that fails statements of one kind
// while fail is set. Registered after the commit step, it reports an error
// for a write that is already durable.
func failAfter(t *testing.T, db *gorm.DB, register func(*gorm.DB, func(*gorm.DB)) error, fail *atomic.Bool, cause error) {
	t.Helper()
	require.NoError(t, register(db, func(tx *gorm.DB) {
		if fail.Load() {
			_ = tx.AddError(cause)
		}
	}))
}

func TestUpdateInvalidatesWhenReloadFailsAfterCommit(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	u, err := f.svc.Create(ctx, ada())
	require.NoError(t, err)
	_, _ = f.svc.List(ctx)
	_, _ = f.svc.Get(ctx, u.ID)

	var failReads atomic.Bool
	reset := errors.New("connection reset")
	failAfter(t, f.db, func(db *gorm.DB, fn func(*gorm.DB)) error {
		return db.Callback().Query().Before("gorm:query").Register("test:fail_reads", fn)
	}, &failReads, reset)

	in := ada()
	in.Email = "new@example.com"
	failReads.Store(true)
	_, err = f.svc.Update(ctx, u.ID, in)
	failReads.Store(false)
	require.ErrorIs(t, err, reset)

	got, err := f.svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email, "committed update must not be hidden by the cache")

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new@example.com", list[0].Email)
}

func TestDeleteInvalidatesWhenErrorFollowsCommit(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	u, err := f.svc.Create(ctx, ada())
	require.NoError(t, err)
	_, _ = f.svc.List(ctx)
	_, _ = f.svc.Get(ctx, u.ID)

	var failDeletes atomic.Bool
	lost := errors.New("commit acknowledgement lost")
	failAfter(t, f.db, func(db *gorm.DB, fn func(*gorm.DB)) error {
		return db.Callback().Delete().After("gorm:commit_or_rollback_transaction").Register("test:fail_deletes", fn)
	}, &failDeletes, lost)

	failDeletes.Store(true)
	err = f.svc.Delete(ctx, u.ID)
	failDeletes.Store(false)
	require.ErrorIs(t, err, lost)

	_, err = f.svc.Get(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMissingUserLeavesCacheAlone(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	_, err := f.svc.Create(ctx, ada())
	require.NoError(t, err)
	_, _ = f.svc.List(ctx)

	_, err = f.svc.Update(ctx, 99, ada())
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, f.svc.Delete(ctx, 99), store.ErrNotFound)

	_, _ = f.svc.List(ctx)
	assert.Equal(t, int64(1), f.store.lists.Load(), "no row touched, collection stays cached")
}
