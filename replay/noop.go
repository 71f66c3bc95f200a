package replay

import "context"

// NoopStore never reports a replay. It exists solely so that explicitly
// unsafe or development configurations have something to plug in; it must
// never be used where replay protection matters.
type NoopStore struct{}

// Seen implements Store and always returns false.
func (NoopStore) Seen(context.Context, Context) (bool, error) {
	return false, nil
}
