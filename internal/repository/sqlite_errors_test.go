package repository

import (
	"github.com/mattn/go-sqlite3"
)

// sqliteErr fabricates the driver error mattn/go-sqlite3 returns for a
// failed constraint. Its message field is unexported, so the text is carried
// by a wrapper that still unwraps to the driver value.
func sqliteErr(code sqlite3.ErrNoExtended, msg string) error {
	return &sqliteMsgErr{
		msg: msg,
		err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: code},
	}
}

type sqliteMsgErr struct {
	msg string
	err sqlite3.Error
}

func (e *sqliteMsgErr) Error() string { return e.msg }

func (e *sqliteMsgErr) Unwrap() error { return e.err }
