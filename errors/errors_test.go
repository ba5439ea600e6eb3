package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"no connection", ErrNoConnection, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"duplicate query name", ErrDuplicateQueryName, false},
		{"event type conflict", ErrEventTypeConflict, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"network error", fmt.Errorf("network unreachable"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"event type conflict", ErrEventTypeConflict, true},
		{"supertype unavailable", ErrSupertypeUnavailable, true},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"invalid data", ErrInvalidData, false},
		{"fatal in message", fmt.Errorf("fatal system error occurred"), true},
		{"panic in message", fmt.Errorf("panic: system failure"), true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"duplicate query name", ErrDuplicateQueryName, true},
		{"target already open", ErrTargetAlreadyOpen, true},
		{"invalid data", ErrInvalidData, true},
		{"parsing failed", ErrParsingFailed, true},
		{"empty fieldset", ErrEmptyFieldSet, true},
		{"unknown field type", ErrUnknownFieldType, true},
		{"connection lost", ErrConnectionLost, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"target not open", ErrTargetNotOpen, true},
		{"query not found", ErrQueryNotFound, true},
		{"fieldset not found", ErrFieldSetNotFound, true},
		{"wrapped query not found", fmt.Errorf("deregister: %w", ErrQueryNotFound), true},
		{"duplicate query name", ErrDuplicateQueryName, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsNotFound(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestWrapHelpers(t *testing.T) {
	base := errors.New("boom")

	t.Run("nil passthrough", func(t *testing.T) {
		if Wrap(nil, "Engine", "Open", "x") != nil {
			t.Error("Wrap(nil) should be nil")
		}
		if WrapInvalid(nil, "Engine", "Open", "x") != nil {
			t.Error("WrapInvalid(nil) should be nil")
		}
		if WrapFatal(nil, "Engine", "Open", "x") != nil {
			t.Error("WrapFatal(nil) should be nil")
		}
		if WrapTransient(nil, "Engine", "Open", "x") != nil {
			t.Error("WrapTransient(nil) should be nil")
		}
	})

	t.Run("wrap format", func(t *testing.T) {
		err := Wrap(base, "Engine", "Register", "query compilation")
		expected := "Engine.Register: query compilation failed: boom"
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
		if !errors.Is(err, base) {
			t.Error("wrapped error should match base via errors.Is")
		}
	})

	t.Run("classification preserved", func(t *testing.T) {
		if !IsInvalid(WrapInvalid(base, "Engine", "Register", "duplicate check")) {
			t.Error("WrapInvalid should classify as invalid")
		}
		if !IsFatal(WrapFatal(base, "Engine", "Send", "event type registration")) {
			t.Error("WrapFatal should classify as fatal")
		}
		if !IsTransient(WrapTransient(base, "Gateway", "Publish", "nats publish")) {
			t.Error("WrapTransient should classify as transient")
		}
	})

	t.Run("unwrap chain", func(t *testing.T) {
		err := WrapFatal(ErrEventTypeConflict, "Engine", "Send", "data fieldset registration")
		if !errors.Is(err, ErrEventTypeConflict) {
			t.Error("sentinel should survive classification wrapping")
		}
		var ce *ClassifiedError
		if !errors.As(err, &ce) {
			t.Fatal("expected ClassifiedError in chain")
		}
		if ce.Component != "Engine" || ce.Operation != "Send" {
			t.Errorf("unexpected component/operation: %s/%s", ce.Component, ce.Operation)
		}
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"fatal wins", ErrEventTypeConflict, ErrorFatal},
		{"invalid", ErrDuplicateQueryName, ErrorInvalid},
		{"unknown defaults transient", errors.New("mystery"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}
