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

import "errors"

// Domain validation errors
var (
	// ErrInvalidEmail indicates an Email failed validation.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrEmptyID indicates the provider id is missing.
	ErrEmptyID = errors.New("email id cannot be empty")

	// ErrMalformedAddress indicates an address without an "@".
	ErrMalformedAddress = errors.New("malformed email address")

	// ErrInvalidTransition indicates a job status change that is not allowed.
	ErrInvalidTransition = errors.New("invalid job status transition")
)
