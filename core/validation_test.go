package core

import (
	"errors"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   *Email
		wantErr error
	}{
		{
			name:    "valid email",
			email:   &Email{ID: "m1", FromEmail: "alice@example.com", ToEmail: "bob@example.com"},
			wantErr: nil,
		},
		{
			name:    "valid email without recipient",
			email:   &Email{ID: "m1", FromEmail: "alice@example.com"},
			wantErr: nil,
		},
		{
			name:    "valid email with empty addresses",
			email:   &Email{ID: "m1"},
			wantErr: nil,
		},
		{
			name:    "nil email",
			email:   nil,
			wantErr: ErrInvalidEmail,
		},
		{
			name:    "missing id",
			email:   &Email{FromEmail: "alice@example.com"},
			wantErr: ErrEmptyID,
		},
		{
			name:    "malformed sender",
			email:   &Email{ID: "m1", FromEmail: "alice"},
			wantErr: ErrMalformedAddress,
		},
		{
			name:    "malformed recipient",
			email:   &Email{ID: "m1", FromEmail: "alice@example.com", ToEmail: "bob.example.com"},
			wantErr: ErrMalformedAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateEmail() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEmail() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidEmail) {
				t.Errorf("ValidateEmail() error = %v, want wrapped %v", err, ErrInvalidEmail)
			}
		})
	}
}

func TestValidateTransition(t *testing.T) {
	if err := ValidateTransition(JobStatusRunning, JobStatusCompleted); err != nil {
		t.Errorf("ValidateTransition() unexpected error = %v", err)
	}
	if err := ValidateTransition(JobStatusCompleted, JobStatusFailed); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ValidateTransition() error = %v, want %v", err, ErrInvalidTransition)
	}
}
