package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Run applies command ("up", "down", "reset" or "status") to the postgres
// schema and returns one line per migration touched or listed.
func Run(ctx context.Context, db *sql.DB, dir string, command string) ([]string, error) {
	p, err := newProvider(db, dir)
	if err != nil {
		return nil, err
	}
	switch command {
	case "up":
		return describe(p.Up(ctx))
	case "down":
		res, err := p.Down(ctx)
		if res == nil {
			return nil, wrapGoose(command, err)
		}
		return describe([]*goose.MigrationResult{res}, err)
	case "reset":
		return describe(p.DownTo(ctx, 0))
	case "status":
		statuses, err := p.Status(ctx)
		if err != nil {
			return nil, wrapGoose(command, err)
		}
		lines := make([]string, 0, len(statuses))
		for _, st := range statuses {
			line := fmt.Sprintf("%-8s %s", st.State, filepath.Base(st.Source.Path))
			if st.State == goose.StateApplied {
				line += "  " + st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			lines = append(lines, line)
		}
		return lines, nil
	default:
		return nil, fmt.Errorf("unknown migrate command %q", command)
	}
}

// MigrateToVersion moves the schema up or down until targetVersion is the
// newest applied migration.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) ([]string, error) {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil || target < 0 {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", targetVersion)
	}
	p, err := newProvider(db, dir)
	if err != nil {
		return nil, err
	}
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return nil, wrapGoose("version", err)
	}
	switch {
	case current < target:
		return describe(p.UpTo(ctx, target))
	case current > target:
		return describe(p.DownTo(ctx, target))
	}
	return nil, nil
}

func newProvider(db *sql.DB, dir string) (*goose.Provider, error) {
	switch {
	case db == nil:
		return nil, errors.New("db is required")
	case dir == "":
		return nil, errors.New("dir is required")
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("load migrations from %s: %w", dir, err)
	}
	return p, nil
}

func describe(results []*goose.MigrationResult, err error) ([]string, error) {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("%-4s %s (%s)", r.Direction, filepath.Base(r.Source.Path), r.Duration.Round(time.Millisecond)))
	}
	if err != nil {
		return lines, wrapGoose("migrate", err)
	}
	return lines, nil
}

func wrapGoose(op string, err error) error {
	if err == nil {
		return nil
	}
	var partial *goose.PartialError
	if errors.As(err, &partial) && partial.Failed != nil {
		return fmt.Errorf("goose %s stopped at %s: %w", op, filepath.Base(partial.Failed.Source.Path), partial.Err)
	}
	return fmt.Errorf("goose %s: %w", op, err)
}
