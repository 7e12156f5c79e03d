package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"myblog/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_CreateDoesNotUpsertAuthor(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db, nil)
	ctx := context.Background()

	author := &models.User{ID: 5, Username: "bob"}
	post := &models.Post{Title: "Test Post", Content: "Content", Author: author}

	// Only the posts insert; no INSERT INTO "users" ... ON CONFLICT.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts" ("title","content","author_id","created_at")`)).
		WithArgs("Test Post", "Content", 5, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(ctx, post))
	assert.Equal(t, uint(1), post.ID)
	assert.Equal(t, uint(5), post.AuthorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByAuthorOrdering(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db, nil)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "content", "author_id", "created_at"}).
		AddRow(1, "P1", "a", 2, now).
		AddRow(2, "P2", "b", 2, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE author_id = $1 ORDER BY id ASC`)).
		WithArgs(2).
		WillReturnRows(rows)

	posts, err := repo.GetByAuthor(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "P1", posts[0].Title)
	assert.Equal(t, "P2", posts[1].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByIDNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE "posts"."id" = $1 ORDER BY "posts"."id" LIMIT $2`)).
		WithArgs(9, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	post, err := repo.GetByID(context.Background(), 9)
	assert.Nil(t, post)
	assert.True(t, models.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
