package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classify maps driver errors onto domain kinds.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrNotFound, operation, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return domain.WrapError(domain.ErrConflict, operation, fmt.Errorf("%s: %w", pgErr.ConstraintName, err))
		case pgForeignKeyViolation:
			return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("%s: %w", pgErr.ConstraintName, err))
		}
	}
	return domain.WrapError(domain.ErrStorage, operation, err)
}

func notFound(operation, entity, id string) error {
	return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("%s id=%s", entity, id))
}

func expectAffected(res sql.Result, operation, entity, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(domain.ErrStorage, operation, err)
	}
	if affected == 0 {
		return notFound(operation, entity, id)
	}
	return nil
}
