package catalog

import (
	"context"
	"testing"

	"bookswap/pkg/apperr"
	"bookswap/pkg/database"
	"bookswap/pkg/models"
	"bookswap/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*Service, *store.Store, *models.User) {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	st := store.New(db)

	owner := &models.User{Name: "Owner", Email: "owner@example.com", PasswordHash: "x", Mobile: "1", Role: models.RoleOwner}
	require.NoError(t, st.CreateUser(context.Background(), owner))
	return NewService(st), st, owner
}

func validInput() BookInput {
	return BookInput{Title: "Dune", Author: "Frank Herbert", Genre: "scifi", Location: "Berlin"}
}

func TestCreateBook(t *testing.T) {
	ctx := context.Background()
	svc, _, owner := setupService(t)

	book, err := svc.CreateBook(ctx, owner.ID, validInput())
	require.NoError(t, err)
	assert.Equal(t, models.BookAvailable, book.Status)
	assert.Equal(t, owner.ID, book.OwnerID)

	missing := validInput()
	missing.Title = ""
	_, err = svc.CreateBook(ctx, owner.ID, missing)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	_, err = svc.CreateBook(ctx, "ghost", validInput())
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestUpdateBookOwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc, _, owner := setupService(t)
	book, err := svc.CreateBook(ctx, owner.ID, validInput())
	require.NoError(t, err)

	in := validInput()
	in.Title = "Dune Messiah"
	_, err = svc.UpdateBook(ctx, "someone-else", book.ID, in)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	updated, err := svc.UpdateBook(ctx, owner.ID, book.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.Equal(t, models.BookAvailable, updated.Status)
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	svc, st, owner := setupService(t)
	book, err := svc.CreateBook(ctx, owner.ID, validInput())
	require.NoError(t, err)

	got, err := svc.SetStatus(ctx, owner.ID, book.ID, models.BookUnavailable)
	require.NoError(t, err)
	assert.Equal(t, models.BookUnavailable, got.Status)

	_, err = svc.SetStatus(ctx, owner.ID, book.ID, models.BookRented)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	_, err = svc.SetStatus(ctx, "someone-else", book.ID, models.BookAvailable)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	got, err = svc.SetStatus(ctx, owner.ID, book.ID, models.BookAvailable)
	require.NoError(t, err)
	assert.Equal(t, models.BookAvailable, got.Status)

	require.NoError(t, st.CreateTransaction(ctx, &models.Transaction{BookID: book.ID, OwnerID: owner.ID, BorrowerID: "b", Status: models.StatusActive}))
	_, err = svc.SetStatus(ctx, owner.ID, book.ID, models.BookUnavailable)
	assert.True(t, apperr.Is(err, apperr.InvalidState), "got %v", err)
}

func TestDeleteBook(t *testing.T) {
	ctx := context.Background()
	svc, st, owner := setupService(t)
	book, err := svc.CreateBook(ctx, owner.ID, validInput())
	require.NoError(t, err)

	tx := &models.Transaction{BookID: book.ID, OwnerID: owner.ID, BorrowerID: "b", Status: models.StatusRequested}
	require.NoError(t, st.CreateTransaction(ctx, tx))

	assert.True(t, apperr.Is(svc.DeleteBook(ctx, "someone-else", book.ID), apperr.Forbidden))
	assert.True(t, apperr.Is(svc.DeleteBook(ctx, owner.ID, book.ID), apperr.InvalidState))

	tx.Status = models.StatusRejected
	ok, err := st.UpdateTransactionStatus(ctx, tx, models.StatusRequested)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.DeleteBook(ctx, owner.ID, book.ID))
	_, err = svc.GetBook(ctx, book.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestListBooks(t *testing.T) {
	ctx := context.Background()
	svc, _, owner := setupService(t)
	_, err := svc.CreateBook(ctx, owner.ID, validInput())
	require.NoError(t, err)

	books, err := svc.ListBooks(ctx, store.BookFilter{Genre: "scifi"})
	require.NoError(t, err)
	assert.Len(t, books, 1)

	_, err = svc.ListBooks(ctx, store.BookFilter{Status: "lost"})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	mine, err := svc.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
