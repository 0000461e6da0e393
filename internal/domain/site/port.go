package site

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("site not found")
	ErrConflict     = errors.New("url already registered")
	ErrInvalidInput = errors.New("invalid input")
)

// Store is the single source of truth for the site registry. Every
// write is an atomic whole-snapshot read-modify-write; implementations
// serialize writers so no accepted update is lost.
type Store interface {
	List(ctx context.Context) ([]*Site, error)
	GetByID(ctx context.Context, id string) (*Site, error)
	Create(ctx context.Context, n NewSite) (*Site, error)
	Update(ctx context.Context, id string, upd Update) (*Site, error)
	Delete(ctx context.Context, id string) error

	// Mutate applies fn to the current record under the registry's
	// write exclusion and persists the result. Used for check results.
	Mutate(ctx context.Context, id string, fn func(*Site) error) (*Site, error)
}
