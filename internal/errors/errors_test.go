package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestIsMatchesThroughWrapping(t *testing.T) {
	base := New(ErrTransient, "http 503")
	wrapped := fmt.Errorf("dispatch failed: %w", base)

	if !Is(wrapped, ErrTransient) {
		t.Error("expected wrapped error to match its code")
	}
	if Is(wrapped, ErrSyncConflict) {
		t.Error("unexpected code match")
	}
	if Is(stderrors.New("plain"), ErrTransient) {
		t.Error("plain errors carry no code")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(ErrTransient, "remote call failed", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected Unwrap to reach the cause")
	}
	if CodeOf(err) != ErrTransient {
		t.Errorf("CodeOf = %s, want %s", CodeOf(err), ErrTransient)
	}
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	if CodeOf(stderrors.New("anything")) != ErrInternal {
		t.Error("uncoded errors default to ErrInternal")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want bool
	}{
		{ErrTransient, true},
		{ErrDependencyNotReady, true},
		{ErrSyncValidation, false},
		{ErrSyncConflict, false},
		{ErrRetryExhausted, false},
	}
	for _, c := range cases {
		if got := IsRetryable(New(c.code, "x")); got != c.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", c.code, got, c.want)
		}
	}
}
