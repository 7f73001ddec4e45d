// Package agent runs conversational turns and the built-in memory commands
// on top of the store, retriever, assembler and ingestor.
//
// A turn assembles the bounded context, asks the chat model, then stores the
// user turn, the assistant turn and one searchable exchange memory. Replies
// may carry [SAVE_NOTE: project]...[/SAVE_NOTE] directives; each is saved as
// a note and removed from the text shown to the user.
package agent
