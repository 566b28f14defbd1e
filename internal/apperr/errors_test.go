package apperr

import (
	"errors"
	"io"
	"testing"
)

func TestDimensionMismatchIs(t *testing.T) {
	var err error = &DimensionMismatchError{Expected: 3, Got: 4}
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatal("expected errors.Is to match ErrDimensionMismatch")
	}
	if errors.Is(err, ErrEmbedding) {
		t.Fatal("dimension mismatch must not be a plain embedding failure")
	}
	if err.Error() != "embedding dimension mismatch: expected 3, got 4" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestStoreIOWrap(t *testing.T) {
	err := StoreIO("contentstore: put", io.ErrUnexpectedEOF)
	if !errors.Is(err, ErrStoreIO) {
		t.Error("expected ErrStoreIO")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected backend error to stay reachable")
	}
	if StoreIO("x", nil) != nil {
		t.Error("nil error must stay nil")
	}
}
