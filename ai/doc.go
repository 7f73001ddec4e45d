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


// Package ai provides abstractions for the model services used by mnemo.
//
// Two capabilities are modelled:
//   - Embedder: turns text into fixed-dimension vectors
//   - ChatModel: produces a reply from an assembled prompt
//
// An Embedder is either a vector model or the unavailable variant. The choice
// is made once at startup and never changes for the life of the process;
// consumers branch on the returned error rather than probing for a backend.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible endpoints via langchaingo
//   - ai/onnx: on-device sentence embeddings via ONNX Runtime (build tag onnx)
//   - ai/unavailable: the embedder used when no backend could be initialized
//   - ai/mock: test doubles
//
// # Constructor Return Type Pattern
//
// Public constructors return interface types (ai.Embedder, ai.ChatModel).
// Test constructors in ai/mock return concrete types so tests can inject
// behavior and assert on call counts.
//
//	embedder, err := openai.NewEmbedder(config)  // returns ai.Embedder
//	mockEmbed := mock.NewMockEmbedder()         // returns *mock.MockEmbedder
package ai
