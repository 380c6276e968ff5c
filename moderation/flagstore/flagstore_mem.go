package flagstore

import (
	"context"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
)

type MemFlagStore struct {
	Data *xsync.MapOf[string, []string]
}

var _ FlagStore = (*MemFlagStore)(nil)

func NewMemFlagStore() *MemFlagStore {
	return &MemFlagStore{
		Data: xsync.NewMapOf[string, []string](),
	}
}

func (s *MemFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	v, ok := s.Data.Load(key)
	if !ok {
		return []string{}, nil
	}
	return slices.Clone(v), nil
}

func (s *MemFlagStore) Add(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	s.Data.Compute(key, func(old []string, loaded bool) ([]string, bool) {
		out := append(slices.Clone(old), flags...)
		slices.Sort(out)
		return slices.Compact(out), false
	})
	return nil
}

func (s *MemFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	s.Data.Compute(key, func(old []string, loaded bool) ([]string, bool) {
		out := slices.DeleteFunc(slices.Clone(old), func(f string) bool {
			return slices.Contains(flags, f)
		})
		return out, len(out) == 0
	})
	return nil
}
