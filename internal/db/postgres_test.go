package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "appointments_doctor_slot_active"}

	if !IsUniqueViolation(dup, "") {
		t.Fatalf("expected any-constraint match")
	}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", dup), "appointments_doctor_slot_active") {
		t.Fatalf("expected wrapped match on constraint name")
	}
	if IsUniqueViolation(dup, "queue_entries_pkey") {
		t.Fatalf("expected mismatch on a different constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !IsForeignKeyViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"})) {
		t.Fatalf("expected wrapped foreign key match")
	}
	if IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violation is not a foreign key violation")
	}
}

func TestForeignKeyConstraint(t *testing.T) {
	name, ok := ForeignKeyConstraint(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503", ConstraintName: "checkins_appointment_id_fkey"}))
	if !ok || name != "checkins_appointment_id_fkey" {
		t.Fatalf("got %q %t, want checkins_appointment_id_fkey", name, ok)
	}
	if _, ok := ForeignKeyConstraint(&pgconn.PgError{Code: "23505", ConstraintName: "x"}); ok {
		t.Fatalf("unique violation is not a foreign key violation")
	}
}
