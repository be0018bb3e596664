package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATE
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// 一意制約名。どの値が重複したかをサービス層で判定するために公開する。
const (
	ConstraintLocationKey  = "locations_key_key"
	ConstraintUserEmail    = "users_email_key"
	ConstraintUserUsername = "users_username_lower_idx"
	ConstraintRecipeTitle  = "recipes_author_id_title_key"
)

// ErrDuplicateKey は一意制約違反を表す。
var ErrDuplicateKey = errors.New("duplicate key")

// DuplicateKeyError は違反した制約名を保持する一意制約違反エラー。
// errors.Is(err, ErrDuplicateKey) を満たす。
type DuplicateKeyError struct {
	Constraint string
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key (%s): %v", e.Constraint, e.Err)
}

// Is はErrDuplicateKeyとの比較を可能にする。
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// Unwrap は元のドライバエラーを返す。
func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

// translateError はドライバのエラーをリポジトリ層のエラーに変換する。
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return &DuplicateKeyError{Constraint: pqErr.Constraint, Err: err}
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

// nullString は空文字をNULLとして扱うsql.NullStringを返す。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
