package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("create attempt: %w", &pgconn.PgError{Code: "23505"})
	if !isUniqueViolation(wrapped) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestNoRowsAndNullable(t *testing.T) {
	if !isNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Fatalf("expected wrapped ErrNoRows detected")
	}
	if nullable("") != nil {
		t.Fatalf("empty string should map to NULL")
	}
	if got := deref(nullable("t1")); got != "t1" {
		t.Fatalf("round trip through nullable: %q", got)
	}
	amount, err := parseAmount("499.00")
	if err != nil || amount.String() != "499" {
		t.Fatalf("parse amount: %v %v", amount, err)
	}
}
