package postgres

import (
	"context"
	"errors"
	"testing"

	dErrors "sanctuary/pkg/domain-errors"
	txcontext "sanctuary/pkg/platform/tx"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactorCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	err = NewTransactor(db).RunInTx(context.Background(), func(ctx context.Context) error {
		_, ok := txcontext.From(ctx)
		assert.True(t, ok, "transaction should be carried in context")
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("not oracle")
	err = NewTransactor(db).RunInTx(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorJoinsExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	outer := txcontext.WithTx(context.Background(), tx)

	calls := 0
	err = NewTransactor(db).RunInTx(outer, func(ctx context.Context) error {
		calls++
		inner, _ := txcontext.From(ctx)
		assert.Same(t, tx, inner)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorCancelledContext(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = NewTransactor(db).RunInTx(ctx, func(context.Context) error { return nil })
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}
