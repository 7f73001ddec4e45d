package core

import (
	"errors"
	"testing"
)

func TestValidateMemoryRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  *MemoryRecord
		wantErr error
	}{
		{
			name:    "valid note",
			record:  &MemoryRecord{Content: "I like tea", Role: RoleNote, Source: "note:general"},
			wantErr: nil,
		},
		{
			name:    "valid record without embedding",
			record:  &MemoryRecord{Content: "chunk", Role: RoleDocument, Embedding: nil},
			wantErr: nil,
		},
		{
			name:    "nil record",
			record:  nil,
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "empty content",
			record:  &MemoryRecord{Content: "", Role: RoleUser},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "whitespace content",
			record:  &MemoryRecord{Content: " \n\t", Role: RoleUser},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "invalid role",
			record:  &MemoryRecord{Content: "hello", Role: Role(99)},
			wantErr: ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMemoryRecord(tt.record)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateMemoryRecord() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateMemoryRecord() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConversationTurn(t *testing.T) {
	tests := []struct {
		name    string
		turn    *ConversationTurn
		wantErr error
	}{
		{
			name: "user turn",
			turn: &ConversationTurn{Role: RoleUser, Content: "hi"},
		},
		{
			name: "assistant turn",
			turn: &ConversationTurn{Role: RoleAssistant, Content: "hello"},
		},
		{
			name:    "note role rejected",
			turn:    &ConversationTurn{Role: RoleNote, Content: "hi"},
			wantErr: ErrInvalidRole,
		},
		{
			name:    "empty content",
			turn:    &ConversationTurn{Role: RoleUser},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "nil turn",
			wantErr: ErrInvalidRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConversationTurn(tt.turn)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateConversationTurn() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateConversationTurn() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
