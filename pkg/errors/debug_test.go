package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpWalksChainAndReadsPgx(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_configuration_submissions_idempotency_key", TableName: "configuration_submissions"}
	err := Wrap(CodeDependency, fmt.Errorf("insert submission: %w", pgErr), "save configuration")

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if len(d.Chain) < 3 {
		t.Fatalf("expected full chain, got %v", d.Chain)
	}
	if d.PGCode != "23505" || d.PGConstraint != "ux_configuration_submissions_idempotency_key" {
		t.Fatalf("unexpected pg fields %+v", d)
	}

	fields := d.Fields()
	if fields["pg_table"] != "configuration_submissions" || fields["error_code"] != string(CodeDependency) {
		t.Fatalf("unexpected log fields %v", fields)
	}
}

func TestDumpReadsLibPQ(t *testing.T) {
	d := Dump(fmt.Errorf("wrap: %w", &pq.Error{Code: "23503", Table: "features"}))
	if d.PGCode != "23503" || d.PGTable != "features" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if d.Code != "" {
		t.Fatalf("untyped error should have no code, got %s", d.Code)
	}
	if _, ok := d.Fields()["error_code"]; ok {
		t.Fatal("error_code should be omitted for untyped errors")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
