package util

import (
	"strings"
	"testing"
)

func TestValidateUUID(t *testing.T) {
	const id = "550e8400-e29b-41d4-a716-446655440000"
	tests := []struct {
		name    string
		value   string
		wantErr string
	}{
		{"valid", id, ""},
		{"padded", "  " + id + " ", ""},
		{"empty", "", "cannot be empty"},
		{"blank", "   ", "cannot be empty"},
		{"malformed", "job-1", "invalid UUID"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateUUID("id", tc.value)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.String() != id {
					t.Errorf("got %s, want %s", got, id)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}
