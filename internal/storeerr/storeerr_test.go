package storeerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStoreError_ErrorIncludesOpKindAndKey(t *testing.T) {
	err := IntegrityErr("StoreTrigger", "group/name", "job does not exist")
	msg := err.Error()
	for _, want := range []string{"StoreTrigger", "INTEGRITY", "group/name", "job does not exist"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error message %q to contain %q", msg, want)
		}
	}
}

func TestStoreError_ErrorOmitsKeyWhenEmpty(t *testing.T) {
	err := CancelledErr("AcquireNextTriggers", errors.New("context canceled"))
	msg := err.Error()
	if strings.Contains(msg, "()") {
		t.Errorf("expected no empty key parens in %q", msg)
	}
}

func TestKindOf_RecognizesWrappedStoreError(t *testing.T) {
	base := PersistenceErr("Insert", "reports/daily", errors.New("connection reset"))
	wrapped := fmt.Errorf("while storing job: %w", base)

	kind, ok := KindOf(wrapped)
	if !ok {
		t.Fatal("expected KindOf to find the wrapped StoreError")
	}
	if kind != Persistence {
		t.Errorf("expected Persistence, got %s", kind)
	}
}

func TestKindOf_FalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain failure"))
	if ok {
		t.Error("expected KindOf to report false for a non-StoreError")
	}
}

func TestStoreError_IsMatchesOnKindOnly(t *testing.T) {
	a := AlreadyExistsErr("StoreJob", "reports/daily")
	b := AlreadyExistsErr("StoreTrigger", "reports/other")

	if !errors.Is(a, &StoreError{Kind: AlreadyExists}) {
		t.Error("expected errors.Is to match on Kind alone")
	}
	if !errors.Is(b, &StoreError{Kind: AlreadyExists}) {
		t.Error("expected errors.Is to match on Kind alone for a different op/key")
	}
	if errors.Is(a, &StoreError{Kind: Integrity}) {
		t.Error("expected errors.Is to reject a mismatched Kind")
	}
}

func TestNotImplementedErr_HasNotImplementedKind(t *testing.T) {
	err := NotImplementedErr("IntrospectPauseState")
	kind, ok := KindOf(err)
	if !ok || kind != NotImplemented {
		t.Errorf("expected NotImplemented kind, got %s, ok=%v", kind, ok)
	}
}
