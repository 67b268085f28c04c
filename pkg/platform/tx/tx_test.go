package tx

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTxRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	sqlTx, err := db.Begin()
	require.NoError(t, err)

	ctx := WithTx(context.Background(), sqlTx)
	got, ok := From(ctx)
	assert.True(t, ok)
	assert.Same(t, sqlTx, got)
}

func TestWithNilTxLeavesContextUntouched(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTx(ctx, nil))
	_, ok := From(ctx)
	assert.False(t, ok)
}

func TestOrPrefersContextTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.Same(t, db, Or(context.Background(), db))

	mock.ExpectBegin()
	sqlTx, err := db.Begin()
	require.NoError(t, err)
	assert.Same(t, sqlTx, Or(WithTx(context.Background(), sqlTx), db))
}
