// Sets of string flags attached to a key, such as a content ID or an account.
//
// Flags are unordered; implementations return them sorted.
package flagstore

import (
	"context"
)

type FlagStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Add(ctx context.Context, key string, flags []string) error
	// Does not error if flags are not in the set.
	Remove(ctx context.Context, key string, flags []string) error
}
