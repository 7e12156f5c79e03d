package seed

import (
	"fmt"
	"strings"

	"myblog/internal/service"
	"myblog/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
)

// Factory builds service inputs filled with fake but valid data. The same
// seed always yields the same sequence.
type Factory struct {
	faker *gofakeit.Faker
	next  int
}

// NewFactory returns a factory. A zero seed picks a random one.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// User returns a new account input with a unique username and email.
func (f *Factory) User() service.CreateUserInput {
	f.next++
	base := strings.ToLower(f.faker.Username())
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base)
	if base == "" {
		base = "user"
	}
	if len(base) > validation.MaxUsernameLength-8 {
		base = base[:validation.MaxUsernameLength-8]
	}
	username := fmt.Sprintf("%s%d", base, f.next)

	return service.CreateUserInput{
		Username: username,
		Email:    fmt.Sprintf("%s@%s", username, f.faker.DomainName()),
		Password: f.faker.Password(true, true, true, false, false, 16),
	}
}

// Post returns a new post input. AuthorID is left for the caller.
func (f *Factory) Post() service.CreatePostInput {
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), ".")
	if len([]rune(title)) > validation.MaxTitleLength {
		title = string([]rune(title)[:validation.MaxTitleLength])
	}
	return service.CreatePostInput{
		Title:   title,
		Content: f.faker.Paragraph(f.faker.Number(1, 3), 4, 12, "\n\n"),
	}
}
