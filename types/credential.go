package types

import (
	"encoding/json"
	"time"
)

// Credential is a password login managed by the built-in identity provider.
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	Metadata     json.RawMessage
	CreatedAt    time.Time
}
