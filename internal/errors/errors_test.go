package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(SnapshotUnreadable, "cannot read needs.json", cause)

	if err.Code != SnapshotUnreadable {
		t.Errorf("Code = %v, want %v", err.Code, SnapshotUnreadable)
	}
	if err.Message != "cannot read needs.json" {
		t.Errorf("Message = %q, want %q", err.Message, "cannot read needs.json")
	}
}

func TestNeedsError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      SnapshotInvalid,
			message:   "bad json",
			cause:     errors.New("unexpected EOF"),
			wantParts: []string{"SNAPSHOT_INVALID", "bad json", "unexpected EOF"},
		},
		{
			name:      "without cause",
			code:      NeedNotFound,
			message:   "need 'REQ_9' not found",
			cause:     nil,
			wantParts: []string{"NEED_NOT_FOUND", "need 'REQ_9' not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.code, tt.message, tt.cause).Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestNeedsError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(InternalError, "something went wrong", cause)
	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if New(ParentCycle, "loop", nil).Unwrap() != nil {
		t.Error("Unwrap() on error without cause should return nil")
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", Newf(ParentCycle, "cycle at %s", "REQ_1"))

	if got := CodeOf(wrapped); got != ParentCycle {
		t.Errorf("CodeOf(wrapped) = %v, want %v", got, ParentCycle)
	}
	if got := CodeOf(errors.New("plain")); got != InternalError {
		t.Errorf("CodeOf(plain) = %v, want %v", got, InternalError)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %v, want empty", got)
	}
	if !Is(wrapped, ParentCycle) {
		t.Error("Is(wrapped, ParentCycle) = false")
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want Level
	}{
		{SnapshotMissing, LevelWarning},
		{SnapshotInvalid, LevelError},
		{NeedsEmpty, LevelInfo},
		{ParentCycle, LevelError},
		{ErrorCode("SOMETHING_ELSE"), LevelError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := Severity(tt.code); got != tt.want {
				t.Errorf("Severity(%s) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}
