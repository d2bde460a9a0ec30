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

// Package ai defines the embedding service used to compare documents with a
// query.
//
// The pipeline depends only on the Embedder interface. Two implementations
// live in sub-packages:
//
//   - ai/openai: any OpenAI-compatible embeddings endpoint (OpenAI, Ollama,
//     LocalAI, vLLM)
//   - ai/mock: deterministic vectors for tests
//
// Embedders are positional. EmbedTexts returns one vector per input text in
// input order, and the pipeline relies on that to pair the query (always the
// last text) with its vector.
//
// # Usage
//
//	cfg := ai.NewConfig(ai.WithEmbeddingModel("text-embedding-3-small"))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, []string{doc, query})
package ai
