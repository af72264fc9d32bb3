// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// ValidateEmail validates an Email according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - FromEmail and ToEmail must contain "@" when set
//
// NOT validated:
//   - Subject and Body (may be empty)
//   - Date and ThreadID (optional)
func ValidateEmail(email *Email) error {
	if email == nil {
		return fmt.Errorf("%w: email is nil", ErrInvalidEmail)
	}

	if email.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEmail, ErrEmptyID)
	}

	if err := ValidateAddress(email.FromEmail); err != nil {
		return fmt.Errorf("%w: from: %w", ErrInvalidEmail, err)
	}

	if err := ValidateAddress(email.ToEmail); err != nil {
		return fmt.Errorf("%w: to: %w", ErrInvalidEmail, err)
	}

	return nil
}

// ValidateAddress accepts an empty address or one containing "@".
func ValidateAddress(address string) error {
	if address != "" && !strings.Contains(address, "@") {
		return fmt.Errorf("%w: %q", ErrMalformedAddress, address)
	}
	return nil
}

// ValidateTransition returns ErrInvalidTransition when from cannot move to to.
func ValidateTransition(from, to JobStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
