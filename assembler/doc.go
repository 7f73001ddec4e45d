// Package assembler composes the bounded context for one conversational turn.
//
// A Context has three layers in fixed order:
//
//  1. Identity: the instruction block, constant for the process. Never trimmed.
//  2. Memories: the top search results for the user input, rendered as short
//     attributed snippets. Lowest-ranked entries are dropped first.
//  3. Recent turns: the latest conversation turns. Oldest turns are dropped first.
//
// Each layer has its own token budget and the layers together stay within a
// ceiling. On overflow the recent layer is trimmed before the memory layer.
// The Assembler keeps no state between calls.
package assembler
