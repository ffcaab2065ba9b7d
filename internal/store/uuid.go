package store

import "github.com/google/uuid"

// uuidV7String returns a new UUIDv7 as a string. It is kept in its own
// file, apart from the SQL in store.go.
func uuidV7String() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
