package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "datasets", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"datasets"}, []string{"iso_a3", "pop"}).WillReturnResult(3)

	rows := [][]any{{"FRA", 67000000.0}, {"DEU", 83000000.0}, {"MCO", nil}}
	n, err := CopyFrom(context.Background(), mock, "datasets", []string{"iso_a3", "pop"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"datasets"}, []string{"a", "b"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{1, "x"}}
	_, err = CopyFrom(context.Background(), mock, "datasets", []string{"a", "b"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO datasets")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"atlas", "layer_features"}, []string{"key", "bucket"}).WillReturnResult(5)

	rows := [][]any{{"FRA", 0}, {"DEU", 1}, {"ITA", 2}, {"ESP", 1}, {"PRT", 0}}
	n, err := CopyFrom(context.Background(), mock, "atlas.layer_features", []string{"key", "bucket"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableIdentifier(t *testing.T) {
	assert.Equal(t, pgx.Identifier{"dataset_rows"}, tableIdentifier("dataset_rows"))
	assert.Equal(t, pgx.Identifier{"atlas", "layer_features"}, tableIdentifier("atlas.layer_features"))
}
