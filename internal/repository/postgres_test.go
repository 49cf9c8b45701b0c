package repository

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/printhub/internal/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, want: apperr.ErrConflict},
		{name: "deadlock", err: fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), want: apperr.ErrConflict},
		{name: "unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "photographers_email_key"}, want: apperr.ErrAlreadyExists},
		{name: "connection reset", err: fmt.Errorf("query: %w", &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}), want: apperr.ErrConflict},
		{name: "connection refused", err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, want: apperr.ErrConflict},
		{name: "check violation", err: &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "manual_adjustments_amount_check"}, want: apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	for _, plain := range []error{errors.New("syntax error"), errors.New("read tcp: connection reset by peer")} {
		if got := classify(plain); got != plain {
			t.Fatalf("unclassified errors must pass through, got %v", got)
		}
	}
	if classify(nil) != nil {
		t.Fatalf("classify(nil) must be nil")
	}
}

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "300", "-100", "100.01", "0.5", "-12345.67"} {
		d := decimal.RequireFromString(s)
		if got := fromNumeric(toNumeric(d)); !got.Equal(d) {
			t.Fatalf("round trip of %s gave %s", s, got)
		}
	}
}
