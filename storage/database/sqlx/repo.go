package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// repo holds the default executor; services pass a transaction as exec to override it.
type repo struct {
	exec core.DBExecutor
}

func (r repo) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return r.exec
}

func (r repo) get(ctx context.Context, exec []core.DBExecutor, dest interface{}, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return r.getExec(exec).GetContext(ctx, dest, q, args...)
}

func (r repo) selectAll(ctx context.Context, exec []core.DBExecutor, dest interface{}, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return r.getExec(exec).SelectContext(ctx, dest, q, args...)
}

// execute returns the number of affected rows.
func (r repo) execute(ctx context.Context, exec []core.DBExecutor, b sq.Sqlizer) (int, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := r.getExec(exec).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "reading affected rows")
	}
	return int(n), nil
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// isForeignKeyViolation reports a missing referenced row.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// validUUIDs drops the ids postgres would reject as uuid.
func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func orderBy(ordering []core.DBOrdering, fallback ...string) []string {
	if len(ordering) == 0 {
		return fallback
	}
	clauses := make([]string, 0, len(ordering)+len(fallback))
	for _, ord := range ordering {
		clauses = append(clauses, ord.String())
	}
	return append(clauses, fallback...)
}
