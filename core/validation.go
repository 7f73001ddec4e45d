package core

import (
	"fmt"
	"strings"
)

// ValidateMemoryRecord validates a MemoryRecord according to domain rules.
//
// Validation rules:
//   - Content must not be blank
//   - Role must be one of user, assistant, note, document
//
// NOT validated (assigned by the store):
//   - ID
//   - Timestamp
func ValidateMemoryRecord(record *MemoryRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if strings.TrimSpace(record.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyContent)
	}

	if err := ValidateRole(record.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	return nil
}

// ValidateConversationTurn validates a ConversationTurn.
// Turns only carry user or assistant roles.
func ValidateConversationTurn(turn *ConversationTurn) error {
	if turn == nil {
		return fmt.Errorf("%w: turn is nil", ErrInvalidRecord)
	}

	if strings.TrimSpace(turn.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyContent)
	}

	if turn.Role != RoleUser && turn.Role != RoleAssistant {
		return fmt.Errorf("%w: %w: turn role %d", ErrInvalidRecord, ErrInvalidRole, turn.Role)
	}

	return nil
}

// ValidateRole validates that a Role has a valid value.
func ValidateRole(role Role) error {
	if _, ok := roleNames[role]; !ok {
		return fmt.Errorf("%w: value %d", ErrInvalidRole, role)
	}
	return nil
}
