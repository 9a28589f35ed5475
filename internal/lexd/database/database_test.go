package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	werrors "github.com/wrale/wrale-lexdesk/internal/lexd/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantIs   error
	}{
		{
			name:     "unique violation",
			err:      &pq.Error{Code: "23505"},
			wantCode: "CONFLICT",
			wantIs:   werrors.ErrConflict,
		},
		{
			name:     "foreign key violation",
			err:      &pq.Error{Code: "23503"},
			wantCode: "NOT_FOUND",
			wantIs:   werrors.ErrNotFound,
		},
		{
			name:     "check violation",
			err:      &pq.Error{Code: "23514", Message: "bad error_type"},
			wantCode: "INVALID_INPUT",
			wantIs:   werrors.ErrInvalidInput,
		},
		{
			name:     "connection exception",
			err:      &pq.Error{Code: "08006"},
			wantCode: "UNAVAILABLE",
			wantIs:   werrors.ErrUnavailable,
		},
		{
			name:     "too many connections",
			err:      &pq.Error{Code: "53300"},
			wantCode: "UNAVAILABLE",
			wantIs:   werrors.ErrUnavailable,
		},
		{
			name:     "connection refused",
			err:      fmt.Errorf("error starting transaction: %w", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}),
			wantCode: "UNAVAILABLE",
			wantIs:   werrors.ErrUnavailable,
		},
		{
			name:     "bad connection",
			err:      driver.ErrBadConn,
			wantCode: "UNAVAILABLE",
			wantIs:   werrors.ErrUnavailable,
		},
		{
			name:     "no rows",
			err:      sql.ErrNoRows,
			wantCode: "NOT_FOUND",
			wantIs:   werrors.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapError(tt.err, "TestOp")

			var domainErr *werrors.Error
			assert.True(t, errors.As(err, &domainErr))
			assert.Equal(t, tt.wantCode, domainErr.Code)
			assert.Equal(t, "TestOp", domainErr.Op)
			assert.ErrorIs(t, err, tt.wantIs)
		})
	}
}

func TestMapError_PassThrough(t *testing.T) {
	assert.NoError(t, MapError(nil, "op"))

	mapped := werrors.NewError("NOT_FOUND", "session not found", "inner", werrors.ErrNotFound)
	assert.Same(t, mapped, MapError(mapped, "outer"))

	internal := MapError(errors.New("connection reset"), "op")
	var domainErr *werrors.Error
	assert.True(t, errors.As(internal, &domainErr))
	assert.Equal(t, "INTERNAL", domainErr.Code)
}

func TestGenerateInsertQuery(t *testing.T) {
	q := GenerateInsertQuery("analytics_events", []string{"id", "session_id", "event_name"})
	assert.Equal(t, "INSERT INTO analytics_events (id, session_id, event_name) VALUES ($1, $2, $3)", q)
}
