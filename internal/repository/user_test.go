package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"myblog/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	tests := []struct {
		name          string
		userID        uint
		mockBehavior  func()
		expectedUser  *models.User
		expectedError error
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "email", "role"}).
					AddRow(1, "testuser", "test@example.com", "user")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			expectedUser: &models.User{ID: 1, Username: "testuser", Email: "test@example.com"},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedError: models.ErrNotFound,
		},
		{
			name:   "Database Error",
			userID: 3,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
					WithArgs(3, 1).
					WillReturnError(errors.New("connection timeout"))
			},
			expectedError: &models.AppError{Code: models.CodeInternal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
			} else if assert.NotNil(t, user) {
				assert.Equal(t, tt.expectedUser.Username, user.Username)
				assert.Equal(t, models.RoleUser, user.Role)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByUsername(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "username"}).AddRow(2, "bob")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE username = $1 ORDER BY "users"."id" LIMIT $2`)).
			WithArgs("bob", 1).
			WillReturnRows(rows)

		user, err := repo.GetByUsername(ctx, "bob")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, uint(2), user.ID)
	})

	t.Run("Missing returns nil, nil", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE username = $1`)).
			WithArgs("ghost", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		user, err := repo.GetByUsername(ctx, "ghost")
		assert.NoError(t, err)
		assert.Nil(t, user)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		user := &models.User{Username: "alice", Email: "alice@example.com", Password: "hash"}

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		require.NoError(t, repo.Create(ctx, user))
		assert.Equal(t, uint(1), user.ID)
		assert.Equal(t, models.RoleUser, user.Role)
	})

	t.Run("Duplicate username", func(t *testing.T) {
		user := &models.User{Username: "alice", Email: "other@example.com", Password: "hash"}

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
			WillReturnError(&pgconn.PgError{
				Code:           "23505",
				Message:        `duplicate key value violates unique constraint "idx_users_username"`,
				TableName:      "users",
				ConstraintName: "idx_users_username",
			})
		mock.ExpectRollback()

		err := repo.Create(ctx, user)
		require.True(t, models.IsConstraintViolation(err))
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "username", appErr.Field)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_DeleteRestrictedByPosts(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "users" WHERE "users"."id" = $1`)).
		WithArgs(7).
		WillReturnError(&pgconn.PgError{
			Code:           "23503",
			TableName:      "posts",
			ConstraintName: "fk_posts_author",
		})
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 7)
	require.True(t, models.IsConstraintViolation(err))
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "posts", appErr.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateRoleNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "role"=$1,"updated_at"=$2 WHERE id = $3`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateRole(context.Background(), 42, models.RoleAdmin)
	assert.True(t, models.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
