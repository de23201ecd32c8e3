package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/bomtool/internal/bom"
	"github.com/JonMunkholm/bomtool/internal/source"
	"github.com/JonMunkholm/bomtool/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"header not found", &bom.HeaderNotFoundError{Scanned: 20, BestScore: 1}, "HDR001"},
		{"no valid rows", ErrNoValidRows, "HDR002"},
		{"body too large", errors.New("http: request body too large"), "FILE001"},
		{"bad workbook", fmt.Errorf("read xlsx: open workbook: %w", errors.New("zip: not a valid zip file")), "FILE002"},
		{"pdf failure", errors.New("read pdf: extract text: bad xref"), "FILE003"},
		{"empty file", source.ErrEmptyFile, "FILE005"},
		{"unsupported format", fmt.Errorf("%w: .doc", source.ErrUnsupportedFormat), "FILE006"},
		{"no sheets", source.ErrNoSheetsSelected, "FILE007"},
		{"nothing extracted", source.ErrNoData, "FILE008"},
		{"too many uploads", ErrTooManyUploads, "UPL002"},
		{"cancelled", context.Canceled, "UPL004"},
		{"deadline", context.DeadlineExceeded, "UPL005"},
		{"run not found", store.ErrRunNotFound, "RUN001"},
		{"history disabled", ErrHistoryDisabled, "RUN002"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB004"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"case insensitive", errors.New("HEADER NOT FOUND"), "HDR001"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(source.ErrNoSheetsSelected)
	want := "No worksheets were selected (Code: FILE007). Select at least one sheet to process"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrNoValidRows, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	userErr := NewUserError(source.ErrEmptyFile)
	if userErr.Error() != "The uploaded file is empty" {
		t.Errorf("Error() = %q, want user message", userErr.Error())
	}
	if !errors.Is(userErr, source.ErrEmptyFile) {
		t.Error("Unwrap() should return original error")
	}
}
