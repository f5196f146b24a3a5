package trigger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"comfy-worker/internal/entity"
)

// postgresTrigger writes the job output into a row of an external
// table, optionally flipping a status column. One short-lived
// connection per firing; the trigger runs at most once per job.
type postgresTrigger struct {
	spec *entity.TriggerSpec
	dsn  string
	log  zerolog.Logger
}

func (t *postgresTrigger) Fire(ctx context.Context, output string) error {
	conn, err := pgx.Connect(ctx, t.dsn)
	if err != nil {
		return fmt.Errorf("postgres trigger: connect: %w", err)
	}
	defer conn.Close(ctx)

	var (
		q    string
		args []any
	)
	table := pgx.Identifier{t.spec.Table}.Sanitize()
	outputCol := pgx.Identifier{t.spec.OutputField}.Sanitize()
	idCol := pgx.Identifier{t.spec.IDField}.Sanitize()

	if t.spec.StatusField != "" && t.spec.Status != "" {
		statusCol := pgx.Identifier{t.spec.StatusField}.Sanitize()
		q = fmt.Sprintf(`UPDATE %s SET %s=$1, %s=$2 WHERE %s=$3;`, table, outputCol, statusCol, idCol)
		args = []any{output, t.spec.Status, t.spec.ID}
	} else {
		q = fmt.Sprintf(`UPDATE %s SET %s=$1 WHERE %s=$2;`, table, outputCol, idCol)
		args = []any{output, t.spec.ID}
	}

	tag, err := conn.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("postgres trigger: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres trigger: no row with %s=%s in %s", t.spec.IDField, t.spec.ID, t.spec.Table)
	}

	t.log.Info().Str("table", t.spec.Table).Str("id", t.spec.ID).Msg("trigger row updated")
	return nil
}
