package outcome

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFoundError("Selected backup file does not exist."))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestErrorMessageIncludesDetail(t *testing.T) {
	err := BackupError("Backup failed.", "Access denied for user 'root'", errors.New("exit status 2"))

	assert.Equal(t, "Backup failed.: Access denied for user 'root': exit status 2", err.Error())
	assert.True(t, errors.Is(err, ErrBackup))
}

func TestKindOfDeadline(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{
			name: "nil",
			err:  nil,
			want: Outcome{Status: StatusSuccess},
		},
		{
			name: "classified",
			err:  RestoreError("Restore failed. Check your credentials or backup file.", "ERROR 1064", nil),
			want: Outcome{
				Status:  StatusError,
				Message: "Restore failed. Check your credentials or backup file.",
				Kind:    KindRestore,
				Detail:  "ERROR 1064",
			},
		},
		{
			name: "deadline",
			err:  fmt.Errorf("dump: %w", context.DeadlineExceeded),
			want: Outcome{Status: StatusError, Message: "Operation timed out.", Kind: KindTimeout},
		},
		{
			name: "unclassified",
			err:  errors.New("boom"),
			want: Outcome{Status: StatusError, Message: "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromError(tt.err))
		})
	}
}

func TestSuccess(t *testing.T) {
	o := Success("Database restored successfully to '%s'.", "archive")
	assert.Equal(t, StatusSuccess, o.Status)
	assert.Equal(t, "Database restored successfully to 'archive'.", o.Message)
}
