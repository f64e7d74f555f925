package models

import (
	"errors"
	"testing"
)

func TestValueRefError_Unwrap(t *testing.T) {
	err := &ValueRefError{Path: "inputs.amount", Err: ErrValueRefMissing}

	if !errors.Is(err, ErrValueRefMissing) {
		t.Error("expected errors.Is to match wrapped sentinel")
	}
	if err.Error() == "" {
		t.Error("expected non-empty error message")
	}
}

func TestCELError_Unwrap(t *testing.T) {
	err := &CELError{Expr: "a + b", Err: ErrCELEval}

	if !errors.Is(err, ErrCELEval) {
		t.Error("expected errors.Is to match wrapped sentinel")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var empty ValidationErrors
	if empty.Error() != "validation failed" {
		t.Errorf("unexpected message for empty ValidationErrors: %q", empty.Error())
	}

	errs := ValidationErrors{{Field: "chain", Message: "required"}}
	if errs.Error() != "chain: required" {
		t.Errorf("unexpected message: %q", errs.Error())
	}
}
