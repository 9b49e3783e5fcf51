package database

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"bookswap/pkg/logging"
	"bookswap/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOpenSQLiteMigrates(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	for _, table := range []string{"users", "ratings", "books", "exchange_transactions"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.NoError(t, Ping(context.Background(), db))
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	assert.NoError(t, Migrate(db))
}

func TestSingleHolderIndex(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	first := models.Transaction{ID: "t1", BookID: "b1", OwnerID: "o1", BorrowerID: "u1", Status: models.StatusApproved}
	require.NoError(t, db.Create(&first).Error)

	second := models.Transaction{ID: "t2", BookID: "b1", OwnerID: "o1", BorrowerID: "u2", Status: models.StatusActive}
	err = db.Create(&second).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)

	requested := models.Transaction{ID: "t3", BookID: "b1", OwnerID: "o1", BorrowerID: "u3", Status: models.StatusRequested}
	assert.NoError(t, db.Create(&requested).Error)
}

func TestOpenRequestIndex(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Transaction{ID: "t1", BookID: "b1", OwnerID: "o1", BorrowerID: "u1", Status: models.StatusRequested}).Error)
	err = db.Create(&models.Transaction{ID: "t2", BookID: "b1", OwnerID: "o1", BorrowerID: "u1", Status: models.StatusRequested}).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)

	require.NoError(t, db.Model(&models.Transaction{}).Where("id = ?", "t1").Update("status", models.StatusCancelled).Error)
	assert.NoError(t, db.Create(&models.Transaction{ID: "t3", BookID: "b1", OwnerID: "o1", BorrowerID: "u1", Status: models.StatusRequested}).Error)
}

func TestPartiesMustDiffer(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	err = db.Create(&models.Transaction{ID: "t1", BookID: "b1", OwnerID: "u1", BorrowerID: "u1", Status: models.StatusRequested}).Error
	assert.Error(t, err)
}

func TestQueryLogIsStructured(t *testing.T) {
	var logs bytes.Buffer
	db, err := OpenSQLiteWithLogger(":memory:", logging.NewWithWriter(&logs, "test", "debug"))
	require.NoError(t, err)
	logs.Reset()

	err = db.First(&models.Book{}, "id = ?", "missing").Error
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.Empty(t, logs.String())

	err = db.Exec("SELECT * FROM no_such_table").Error
	require.Error(t, err)
	assert.Contains(t, logs.String(), `"level":"WARN"`)
	assert.Contains(t, logs.String(), `"service":"test"`)
	assert.Contains(t, logs.String(), "no_such_table")
	assert.NotContains(t, logs.String(), `\u001b[`)
}
