package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginForm_Validate(t *testing.T) {
	t.Parallel()

	f := &LoginForm{Username: "  bob ", Password: "pw"}
	errs := f.Validate()
	assert.True(t, errs.Valid())
	assert.Equal(t, "bob", f.Username)

	errs = (&LoginForm{}).Validate()
	require.False(t, errs.Valid())
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "password")
}

func TestRegisterForm_Validate(t *testing.T) {
	t.Parallel()

	valid := RegisterForm{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "wonderland",
		ConfirmPassword: "wonderland",
	}
	f := valid
	assert.True(t, f.Validate().Valid())

	f = valid
	f.ConfirmPassword = "elsewhere1"
	errs := f.Validate()
	assert.Equal(t, "passwords must match", errs["confirm_password"])

	f = valid
	f.Email = "nope"
	f.Password = "short"
	f.ConfirmPassword = "short"
	errs = f.Validate()
	assert.Len(t, errs, 2)
	field, _ := errs.First()
	assert.Equal(t, "email", field)
	assert.Contains(t, errs.Error(), "invalid email format")
}

func TestPostForm_Validate(t *testing.T) {
	t.Parallel()

	f := &PostForm{Title: " First ", Content: "hello"}
	assert.True(t, f.Validate().Valid())
	assert.Equal(t, "First", f.Title)

	errs := (&PostForm{}).Validate()
	assert.Len(t, errs, 2)
}
