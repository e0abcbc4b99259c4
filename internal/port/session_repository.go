package port

import "context"

// SessionRepository is the durable key-value slot that holds the signed-in user.
type SessionRepository interface {
	// Save replaces the slot content
	Save(ctx context.Context, data []byte) error

	// Load returns nil data and no error when the slot is empty
	Load(ctx context.Context) ([]byte, error)

	// Delete clears the slot; clearing an empty slot is not an error
	Delete(ctx context.Context) error
}
