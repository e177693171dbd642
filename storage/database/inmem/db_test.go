package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
)

func TestDB_RunInTx(t *testing.T) {
	ctx := context.Background()
	db := Open()
	courses := NewCatalogRepository(db)
	carts := NewCommerceRepository(db)
	for _, id := range []string{"go", "rust"} {
		_, err := courses.CreateCourse(ctx, catalog.Course{ID: id, Title: id})
		require.NoError(t, err)
	}

	t.Run("commit", func(t *testing.T) {
		err := db.RunInTx(ctx, func(exec core.DBExecutor) error {
			_, err := carts.AddCartItem(ctx, "ann", "go", exec)
			return err
		})
		require.NoError(t, err)
		ids, err := carts.QueryCartCourseIDs(ctx, "ann")
		require.NoError(t, err)
		assert.Equal(t, []string{"go"}, ids)
	})

	t.Run("rollback keeps concurrent writes", func(t *testing.T) {
		started, release := make(chan struct{}), make(chan struct{})
		txDone := make(chan error, 1)
		go func() {
			txDone <- db.RunInTx(ctx, func(exec core.DBExecutor) error {
				if _, err := carts.RemoveCartItem(ctx, "ann", "go", exec); err != nil {
					return err
				}
				if _, err := carts.AddCartItem(ctx, "bob", "go", exec); err != nil {
					return err
				}
				close(started)
				<-release
				return errors.New("boom")
			})
		}()
		<-started

		writeDone := make(chan error, 1)
		go func() {
			_, err := carts.AddCartItem(ctx, "ann", "rust")
			writeDone <- err
		}()

		select {
		case <-writeDone:
			t.Fatal("write outside the transaction did not wait for it")
		case <-time.After(20 * time.Millisecond):
		}
		close(release)

		assert.EqualError(t, <-txDone, "boom")
		require.NoError(t, <-writeDone)

		ids, err := carts.QueryCartCourseIDs(ctx, "ann")
		require.NoError(t, err)
		assert.Equal(t, []string{"rust", "go"}, ids)
		ids, err = carts.QueryCartCourseIDs(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		called := false
		err := db.RunInTx(cctx, func(core.DBExecutor) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}
