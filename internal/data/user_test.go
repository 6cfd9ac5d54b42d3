package data

import (
	"errors"
	"testing"

	"infopics/internal/biz/model"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslateUniqueViolation(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		field string
	}{
		{
			name:  "username constraint",
			err:   &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"},
			field: "username",
		},
		{
			name:  "email constraint",
			err:   &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"},
			field: "email",
		},
		{
			name:  "google id constraint",
			err:   &pgconn.PgError{Code: "23505", ConstraintName: "users_google_id_key"},
			field: "google_id",
		},
		{
			name:  "pending email constraint",
			err:   &pgconn.PgError{Code: "23505", ConstraintName: "pending_signups_email_key"},
			field: "email",
		},
		{
			name:  "unknown constraint keeps its name",
			err:   &pgconn.PgError{Code: "23505", ConstraintName: "users_something_key"},
			field: "users_something_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflict := translateUniqueViolation(tt.err)
			assert.NotNil(t, conflict)
			assert.Equal(t, tt.field, conflict.Field)
			assert.True(t, model.IsConflict(conflict))
		})
	}
}

func TestTranslateUniqueViolation_IgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, translateUniqueViolation(nil))
	assert.Nil(t, translateUniqueViolation(errors.New("connection refused")))
	// 其它 SQLSTATE 不转译
	assert.Nil(t, translateUniqueViolation(&pgconn.PgError{Code: "23503", ConstraintName: "users_username_key"}))
}
