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


// Package tools exposes the assistant's email capabilities as callable tools
// for a function-calling language model.
//
// Each tool has a name, a description and a JSON Schema for its arguments.
// Registry.Call validates the raw arguments against the schema, runs the
// tool and returns text ready to hand back to the model, or a SendOutcome for
// send_email. Search failures never reach the caller; they produce
// "No emails found." instead.
package tools
