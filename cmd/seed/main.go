// Command seed fills the database with fake users and posts.
package main

import (
	"context"
	"flag"
	"log"
	"sort"

	"myblog/internal/auth"
	"myblog/internal/bootstrap"
	"myblog/internal/config"
	"myblog/internal/seed"
	"myblog/internal/service"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	postsPerUser := flag.Int("posts-per-user", 5, "Maximum posts per user")
	seedValue := flag.Int64("seed", 0, "Random seed (0 picks one)")
	shouldClean := flag.Bool("clean", false, "Delete existing users and posts first")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = rt.Close() }()

	hasher, err := auth.NewHasher(cfg.PasswordHasher)
	if err != nil {
		log.Fatalf("Invalid password hasher: %v", err)
	}
	users := service.NewUserService(rt.Store(), auth.NewCredentials(hasher))

	res, err := seed.Seed(ctx, rt.Store(), users, seed.Options{
		NumUsers:        *numUsers,
		MaxPostsPerUser: *postsPerUser,
		Seed:            *seedValue,
		ShouldClean:     *shouldClean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	names := make([]string, 0, len(res.Credentials))
	for name := range res.Credentials {
		names = append(names, name)
	}
	sort.Strings(names)
	log.Println("Seeded accounts:")
	for _, name := range names {
		log.Printf("  %s / %s", name, res.Credentials[name])
	}
}
