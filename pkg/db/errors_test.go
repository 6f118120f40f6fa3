package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

type opaqueErr struct{ cause error }

func (e opaqueErr) Error() string { return "insert order" }
func (e opaqueErr) Unwrap() error { return e.cause }

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pgx unique", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "pgx serialization", err: fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), want: true},
		{name: "pq deadlock", err: &pq.Error{Code: "40P01"}, want: true},
		{name: "pgx check violation", err: &pgconn.PgError{Code: "23514"}, want: false},
		{name: "sqlite unique", err: errors.New("UNIQUE constraint failed: orders.order_id"), want: true},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "stale write", err: fmt.Errorf("save product: %w", ErrStaleWrite), want: true},
		{name: "sqlite unique behind opaque wrapper", err: opaqueErr{cause: errors.New("UNIQUE constraint failed: orders.order_id")}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_id_key", Message: "duplicate key value violates unique constraint \"orders_order_id_key\""}
	if !IsUniqueViolation(err, "orders_order_id_key") {
		t.Fatal("expected unique violation on constraint")
	}
	if IsUniqueViolation(err, "orders_cart_id_key") {
		t.Fatal("expected constraint mismatch")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "40001"}, "") {
		t.Fatal("serialization failure is not a unique violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: orders.cart_id"), "") {
		t.Fatal("expected sqlite unique violation")
	}
}
