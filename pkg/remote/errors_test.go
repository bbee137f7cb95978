package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	unavailable := Unavailable("delivery", "CreateDelivery", errors.New("connection refused"))
	rejected := Rejected("package", "CreatePackage", errors.New("overweight"))
	notFound := NotFound("account", "GetAccount", errors.New("no such account"))
	internal := Internal("drone", "IdleDrone", errors.New("panic"))

	if !IsUnavailable(unavailable) || !IsTransient(unavailable) {
		t.Fatal("unavailable not classified")
	}
	if !IsRejected(rejected) || IsTransient(rejected) {
		t.Fatal("rejected misclassified")
	}
	if !IsNotFound(notFound) || IsTransient(notFound) {
		t.Fatal("not found misclassified")
	}
	if KindOf(internal) != KindInternal {
		t.Fatal("internal misclassified")
	}
}

func TestErrorClassificationThroughWrapping(t *testing.T) {
	cause := Unavailable("delivery", "CreateDelivery", errors.New("connection refused"))
	wrapped := fmt.Errorf("step create-delivery: %w", cause)
	if !IsUnavailable(wrapped) {
		t.Fatal("classification lost through wrapping")
	}
}

func TestErrorMessageNamesServiceAndOp(t *testing.T) {
	err := Rejected("package", "CreatePackage", errors.New("overweight"))
	msg := err.Error()
	for _, want := range []string{"package", "CreatePackage", "rejected", "overweight"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatal("plain errors should classify as internal")
	}
	if IsTransient(errors.New("plain")) {
		t.Fatal("plain errors are not transient")
	}
}

func TestIdempotencyKeyContext(t *testing.T) {
	ctx := WithIdempotencyKey(context.Background(), "saga-1:create-delivery")
	key, ok := IdempotencyKeyFromContext(ctx)
	if !ok || key != "saga-1:create-delivery" {
		t.Fatalf("key = %q ok = %v", key, ok)
	}
	if _, ok := IdempotencyKeyFromContext(context.Background()); ok {
		t.Fatal("empty context should have no key")
	}
}
