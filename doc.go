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


// Package mailrecall is the backend of a voice email assistant.
//
// It syncs a mailbox from the mail provider into a PostgreSQL record store
// and a semantic search index, answers search tools over them, and sends
// email. Assistant wires the pieces together:
//
//	cfg, _ := config.Load("")
//	a, err := mailrecall.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	fetcher, _ := a.NewFetcher()
//	pipeline, _ := a.NewPipeline(fetcher)
//	result, err := pipeline.Run(ctx, cfg.Provider.GrantID)
package mailrecall
