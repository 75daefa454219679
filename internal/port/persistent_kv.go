package port

import "context"

type PersistentKV interface {
	// Read returns the stored value and false when the key is absent
	Read(ctx context.Context, key string) (string, bool, error)

	// Write replaces the value stored under key
	Write(ctx context.Context, key, value string) error
}
