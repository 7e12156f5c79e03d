package validation

import (
	"sort"
	"strings"
)

// FormErrors maps a form field name to the first problem found with it.
type FormErrors map[string]string

func (e FormErrors) add(field string, err error) {
	if err == nil {
		return
	}
	if _, exists := e[field]; !exists {
		e[field] = err.Error()
	}
}

// Valid reports whether no field failed.
func (e FormErrors) Valid() bool {
	return len(e) == 0
}

// Error joins the messages in field order so the output is stable.
func (e FormErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, e[f])
	}
	return strings.Join(msgs, "; ")
}

// First returns the field and message of the first error in field order.
func (e FormErrors) First() (string, string) {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return "", ""
	}
	sort.Strings(fields)
	return fields[0], e[fields[0]]
}

// LoginForm is submitted by /user/login and /api/auth/token.
type LoginForm struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate checks that both credentials are present. Content is not
// checked further so a failed login cannot reveal the password policy.
func (f *LoginForm) Validate() FormErrors {
	errs := FormErrors{}
	f.Username = strings.TrimSpace(f.Username)
	errs.add("username", ValidateUsername(f.Username))
	if f.Password == "" {
		errs["password"] = "password is required"
	}
	return errs
}

// RegisterForm is submitted by /user/register.
type RegisterForm struct {
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

func (f *RegisterForm) Validate() FormErrors {
	errs := FormErrors{}
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
	errs.add("username", ValidateUsername(f.Username))
	errs.add("email", ValidateEmail(f.Email))
	errs.add("password", ValidatePassword(f.Password))
	if f.ConfirmPassword == "" {
		errs["confirm_password"] = "please confirm the password"
	} else if f.ConfirmPassword != f.Password {
		errs["confirm_password"] = "passwords must match"
	}
	return errs
}

// PostForm is submitted by /user/posts/new and POST /api/posts.
type PostForm struct {
	Title   string `form:"title" json:"title"`
	Content string `form:"content" json:"content"`
}

func (f *PostForm) Validate() FormErrors {
	errs := FormErrors{}
	f.Title = strings.TrimSpace(f.Title)
	errs.add("title", ValidateTitle(f.Title))
	errs.add("content", ValidateContent(f.Content))
	return errs
}
