package dto

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestParseDueDateUpdate(t *testing.T) {
	tests := []struct {
		name      string
		raw       *string
		wantNil   bool
		wantClear bool
		want      time.Time
		wantErr   bool
	}{
		{name: "absent", raw: nil, wantNil: true},
		{name: "empty clears", raw: strPtr(""), wantClear: true},
		{name: "blank clears", raw: strPtr("  "), wantClear: true},
		{name: "date", raw: strPtr("2026-11-01"), want: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339 truncated to day", raw: strPtr("2026-11-01T15:04:05Z"), want: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)},
		{name: "garbage", raw: strPtr("next week"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDueDateUpdate(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDueDateUpdate() error = %v", err)
			}
			switch {
			case tt.wantNil:
				if got != nil {
					t.Errorf("got %v, want nil", *got)
				}
			case tt.wantClear:
				if got == nil || !got.IsZero() {
					t.Errorf("got %v, want zero time", got)
				}
			default:
				if got == nil || !got.Equal(tt.want) {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestParseDueDate_EmptyIsNil(t *testing.T) {
	got, err := ParseDueDate(strPtr(""))
	if err != nil || got != nil {
		t.Errorf("ParseDueDate(\"\") = %v, %v; want nil, nil", got, err)
	}
}
