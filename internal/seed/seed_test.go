package seed

import (
	"context"
	"testing"

	"myblog/internal/auth"
	"myblog/internal/repository"
	"myblog/internal/service"
	"myblog/internal/testutil"
	"myblog/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestFactory_ProducesValidInput(t *testing.T) {
	f := NewFactory(7)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		u := f.User()
		require.NoError(t, validation.ValidateUsername(u.Username), u.Username)
		require.NoError(t, validation.ValidateEmail(u.Email), u.Email)
		require.NoError(t, validation.ValidatePassword(u.Password))
		assert.False(t, seen[u.Username], "duplicate username %s", u.Username)
		seen[u.Username] = true

		p := f.Post()
		require.NoError(t, validation.ValidateTitle(p.Title))
		require.NoError(t, validation.ValidateContent(p.Content))
	}
}

func TestFactory_Deterministic(t *testing.T) {
	a, b := NewFactory(42), NewFactory(42)
	assert.Equal(t, a.User(), b.User())
	assert.Equal(t, a.Post(), b.Post())
}

func TestSeed(t *testing.T) {
	store := repository.NewStore(testutil.NewSQLiteDB(t), nil)
	creds := auth.NewCredentials(auth.BcryptHasher{Cost: bcrypt.MinCost})
	users := service.NewUserService(store, creds)
	ctx := context.Background()

	res, err := Seed(ctx, store, users, Options{NumUsers: 4, MaxPostsPerUser: 3, Seed: 1})
	require.NoError(t, err)
	assert.Len(t, res.Users, 4)

	n, err := store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	posts, err := store.Posts().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(res.Posts), posts)

	first := res.Users[0]
	assert.True(t, creds.VerifyCredential(&first, res.Credentials[first.Username]))

	res, err = Seed(ctx, store, users, Options{NumUsers: 2, Seed: 2, ShouldClean: true})
	require.NoError(t, err)
	n, err = store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	posts, err = store.Posts().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, posts)
	assert.Zero(t, res.Posts)
}
