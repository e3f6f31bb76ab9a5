// Package pagination encodes keyset cursors as opaque page tokens.
package pagination

import (
	"encoding/base64"
	"encoding/json"
)

// Cursor marks the position of the last row of a page. Listings that page by
// snowflake ID leave CreatedAt empty.
type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// EncodeCursor renders the cursor as a base64 token safe to hand to clients.
func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeCursor parses a token produced by EncodeCursor. Callers still
// validate the cursor fields; the token is client input.
func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}
