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


package mailer

import "log/slog"

// Email modes.
const (
	ModeTest        = "test"
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// SelectTransport picks the transport for mode. Test and development modes
// use smtp. Production uses provider when it is non-nil and otherwise falls
// back to smtp with a warning. Unknown modes are treated as development.
func SelectTransport(mode string, smtp *SMTPTransport, provider *ProviderTransport, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}

	switch mode {
	case ModeTest, ModeDevelopment:
	case ModeProduction:
		if provider != nil {
			logger.Info("email transport selected", "mode", mode, "transport", provider.Name())
			return provider
		}
		logger.Warn("production mode but no provider transport configured, using smtp", "addr", smtp.Addr())
		return smtp
	default:
		logger.Warn("unknown email mode, using smtp", "mode", mode)
	}

	logger.Info("email transport selected", "mode", mode, "transport", smtp.Name(), "addr", smtp.Addr())
	return smtp
}
