package repository

import (
	"errors"
	"fmt"
	"strings"

	"myblog/internal/models"
	"myblog/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Postgres SQLSTATE codes for integrity violations.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
)

type violationKind int

const (
	violationNone violationKind = iota
	violationUnique
	violationForeignKey
	violationRequired
)

// translateWriteError turns a driver integrity error into a ConstraintViolation
// naming the offending field. Other errors become internal errors.
func translateWriteError(table string, err error) error {
	if err == nil {
		return nil
	}

	kind, field := classify(table, err)
	switch kind {
	case violationUnique:
		observability.ConstraintViolations.WithLabelValues(table, field).Inc()
		return models.NewConstraintViolation(field, fmt.Sprintf("%s already taken", field), err)
	case violationForeignKey:
		observability.ConstraintViolations.WithLabelValues(table, field).Inc()
		return models.NewConstraintViolation(field, "referenced record does not exist or is still in use", err)
	case violationRequired:
		observability.ConstraintViolations.WithLabelValues(table, field).Inc()
		return models.NewConstraintViolation(field, fmt.Sprintf("%s is required", field), err)
	default:
		return models.NewInternalError(err)
	}
}

func classify(table string, err error) (violationKind, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		field := pgErr.ColumnName
		if field == "" {
			field = fieldFromConstraint(pgErr.TableName, pgErr.ConstraintName)
		}
		switch pgErr.Code {
		case pgUniqueViolation:
			return violationUnique, field
		case pgForeignKeyViolation:
			return violationForeignKey, foreignKeyField(table, field)
		case pgNotNullViolation, pgCheckViolation:
			return violationRequired, field
		}
		return violationNone, ""
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		field := fieldFromSQLiteMessage(table, err.Error())
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return violationUnique, field
		case sqlite3.ErrConstraintForeignKey:
			return violationForeignKey, foreignKeyField(table, field)
		case sqlite3.ErrConstraintNotNull, sqlite3.ErrConstraintCheck:
			return violationRequired, field
		}
	}

	// Drivers wrapped by something else still carry recognizable text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint"):
		return violationUnique, fieldFromText(table, err.Error())
	case strings.Contains(msg, "foreign key constraint"):
		return violationForeignKey, foreignKeyField(table, "")
	}
	return violationNone, ""
}

// fieldFromConstraint strips the GORM naming prefixes: idx_users_username,
// chk_users_email and fk_posts_author all name their column after the table.
func fieldFromConstraint(table, constraint string) string {
	for _, prefix := range []string{"idx_", "chk_", "fk_", "uni_"} {
		if !strings.HasPrefix(constraint, prefix) {
			continue
		}
		rest := strings.TrimPrefix(constraint, prefix)
		if table != "" && strings.HasPrefix(rest, table+"_") {
			return strings.TrimPrefix(rest, table+"_")
		}
		if i := strings.Index(rest, "_"); i >= 0 {
			return rest[i+1:]
		}
		return rest
	}
	return constraint
}

// fieldFromSQLiteMessage parses "UNIQUE constraint failed: users.username"
// and "CHECK constraint failed: chk_users_username".
func fieldFromSQLiteMessage(table, msg string) string {
	i := strings.LastIndex(msg, ":")
	if i < 0 {
		return ""
	}
	target := strings.TrimSpace(msg[i+1:])
	if j := strings.Index(target, ","); j >= 0 {
		target = target[:j]
	}
	if dot := strings.Index(target, "."); dot >= 0 {
		return target[dot+1:]
	}
	return fieldFromConstraint(table, target)
}

// fieldFromText prefers a quoted constraint name, as in Postgres messages.
func fieldFromText(table, msg string) string {
	if end := strings.LastIndex(msg, `"`); end > 0 {
		if start := strings.LastIndex(msg[:end], `"`); start >= 0 {
			return fieldFromConstraint(table, msg[start+1:end])
		}
	}
	return fieldFromSQLiteMessage(table, msg)
}

// foreignKeyField names the side of the relationship a FK failure refers to.
// SQLite never says which key failed.
func foreignKeyField(table, field string) string {
	switch {
	case table == "posts":
		return "author_id"
	case table == "users":
		return "posts"
	case field == "author":
		return "author_id"
	}
	return field
}
