// Package main provides admin management utilities for myblog.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"myblog/internal/auth"
	"myblog/internal/bootstrap"
	"myblog/internal/config"
	"myblog/internal/models"
	"myblog/internal/service"
)

const usage = `Usage:
  admin promote <user id|username>                 - Promote user to admin
  admin demote <user id|username>                  - Demote user from admin
  admin list-admins                                - List all admins
  admin create-admin <username> <email>            - Create an admin (password from ADMIN_PASSWORD)`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
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

	if err := run(ctx, users, os.Args[1:], os.Getenv("ADMIN_PASSWORD"), os.Stdout); err != nil {
		log.Fatal(err)
	}
}

var errUsage = errors.New(usage)

func run(ctx context.Context, users *service.UserService, args []string, password string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "promote", "demote":
		if len(args) < 2 {
			return errUsage
		}
		role := models.RoleAdmin
		if args[0] == "demote" {
			role = models.RoleUser
		}
		return setRole(ctx, users, args[1], role, out)

	case "list-admins":
		return listAdmins(ctx, users, out)

	case "create-admin":
		if len(args) < 3 {
			return errUsage
		}
		if password == "" {
			return errors.New("ADMIN_PASSWORD must be set")
		}
		user, err := users.CreateUser(ctx, service.CreateUserInput{
			Username: args[1],
			Email:    args[2],
			Password: password,
			Role:     models.RoleAdmin,
		})
		if err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
		fmt.Fprintf(out, "Created admin %s (ID: %d)\n", user.Username, user.ID)
		return nil

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func lookup(ctx context.Context, users *service.UserService, ref string) (*models.User, error) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return users.GetUserByID(ctx, uint(id))
	}
	return users.GetUserByUsername(ctx, ref)
}

func setRole(ctx context.Context, users *service.UserService, ref string, role models.Role, out io.Writer) error {
	user, err := lookup(ctx, users, ref)
	if err != nil {
		return err
	}
	if user.Role == role {
		fmt.Fprintf(out, "User %s (ID: %d) is already %s\n", user.Username, user.ID, role)
		return nil
	}
	if _, err := users.SetRole(ctx, 0, user.ID, role); err != nil {
		return fmt.Errorf("failed to change role: %w", err)
	}
	fmt.Fprintf(out, "%s (ID: %d) is now %s\n", user.Username, user.ID, role)
	return nil
}

func listAdmins(ctx context.Context, users *service.UserService, out io.Writer) error {
	admins, err := users.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch admins: %w", err)
	}
	if len(admins) == 0 {
		fmt.Fprintln(out, "No admins found")
		return nil
	}
	fmt.Fprintln(out, "Current admins:")
	for _, admin := range admins {
		fmt.Fprintf(out, "ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
	return nil
}
