// Package mock provides test double implementations of ai service interfaces.
//
// # Usage in Tests
//
//	// Deterministic vectors from a text hash
//	embedder := mock.NewMockEmbedder()
//
//	// Words sharing a topic axis embed close together
//	embedder := mock.NewMockEmbedder().WithTopics(map[string]int{
//	    "tea": 0, "coffee": 0, "beverages": 0,
//	    "weather": 1,
//	})
//
//	// Scripted replies
//	chat := mock.NewMockChatModel("first reply", "second reply")
//
// # Default Behavior
//
//   - MockEmbedder: unit vectors derived from an FNV hash of the text, 384 dimensions
//   - MockChatModel: replays scripted replies, then echoes the last user message
package mock
