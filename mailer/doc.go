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


// Package mailer sends email on behalf of the assistant.
//
// A Transport delivers one message. SMTPTransport targets a local Mailpit
// instance for testing and development; ProviderTransport sends through the
// mail provider's API. SelectTransport picks one once at startup from the
// configured mode, and Service turns the assistant's plain-text messages
// into HTML before handing them to the transport.
package mailer
