package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/mediascribe/errors"
)

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestRegularFile(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		path := writeFile(t, "a.mp4", 10)
		size, v := New().RegularFile("source", path)
		if v.HasErrors() || size != 10 {
			t.Errorf("unexpected result size=%d errors=%v", size, v.Errors())
		}
	})
	t.Run("missing", func(t *testing.T) {
		_, v := New().RegularFile("source", filepath.Join(t.TempDir(), "nope.mp4"))
		if !v.HasErrors() || v.Errors()[0].Message != "file does not exist" {
			t.Errorf("unexpected errors %v", v.Errors())
		}
	})
	t.Run("empty", func(t *testing.T) {
		_, v := New().RegularFile("source", writeFile(t, "e.mp4", 0))
		if !v.HasErrors() || v.Errors()[0].Message != "file is empty" {
			t.Errorf("unexpected errors %v", v.Errors())
		}
	})
	t.Run("directory", func(t *testing.T) {
		_, v := New().RegularFile("source", t.TempDir())
		if !v.HasErrors() || v.Errors()[0].Message != "is not a regular file" {
			t.Errorf("unexpected errors %v", v.Errors())
		}
	})
	t.Run("blank path", func(t *testing.T) {
		_, v := New().RegularFile("source", " ")
		if !v.HasErrors() {
			t.Error("expected error for blank path")
		}
	})
}

func TestExtension(t *testing.T) {
	allowed := []string{".mp4", ".wav"}
	if New().Extension("source", "/x/A.MP4", allowed).HasErrors() {
		t.Error("extension match should be case-insensitive")
	}
	if !New().Extension("source", "/x/a.txt", allowed).HasErrors() {
		t.Error("expected error for .txt")
	}
	if New().Extension("source", "/x/a.txt", nil).HasErrors() {
		t.Error("empty allow list should accept anything")
	}
}

func TestMaxBytesAndRanges(t *testing.T) {
	v := New().
		MaxBytes("source", 11<<30, 10<<30).
		FloatRange("temperature", 1.5, 0, 1).
		OneOf("quality", "ultra", []string{"low", "medium", "high"}).
		Custom(false, "engine", "unknown engine")
	if len(v.Errors()) != 4 {
		t.Fatalf("expected 4 errors, got %v", v.Errors())
	}
	appErr := v.Validate()
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
	if !strings.Contains(appErr.Message, "temperature: must be between 0 and 1") {
		t.Errorf("unexpected message %q", appErr.Message)
	}
	if New().MaxBytes("source", 5, 0).HasErrors() {
		t.Error("zero limit should disable the check")
	}
}

func TestValidatorValidateNoErrors(t *testing.T) {
	if New().Required("x", "y").Validate() != nil {
		t.Error("expected nil AppError")
	}
}

type sampleOptions struct {
	Language string  `json:"language" validate:"oneof=auto en zh"`
	BeamSize int     `json:"beam_size" validate:"gte=1,lte=10"`
	Temp     float64 `json:"temperature" validate:"gte=0,lte=1"`
	Engine   string  `json:"engine" validate:"required"`
}

func TestStructValidateValid(t *testing.T) {
	err := Validate(sampleOptions{Language: "en", BeamSize: 5, Engine: "sherpa"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	err := Validate(sampleOptions{Language: "xx", BeamSize: 11, Temp: 2})
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	fields := appErr.Details["fields"].([]FieldError)
	if len(fields) != 4 {
		t.Fatalf("expected 4 field errors, got %v", fields)
	}
	names := map[string]string{}
	for _, f := range fields {
		names[f.Field] = f.Message
	}
	if names["beam_size"] != "must be at most 10" {
		t.Errorf("unexpected beam_size message %q", names["beam_size"])
	}
	if names["engine"] != "is required" {
		t.Errorf("unexpected engine message %q", names["engine"])
	}
	if !strings.HasPrefix(names["language"], "must be one of") {
		t.Errorf("unexpected language message %q", names["language"])
	}
}

func TestValidateUUID(t *testing.T) {
	if _, err := ValidateUUID("id", "2f1c3b9e-4a34-4e0b-9a53-0c51f0b5d0a1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ValidateUUID("id", "nope"); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
	if _, err := ValidateUUID("id", ""); err == nil {
		t.Error("expected error for empty id")
	}
}
