package repositories

import (
	"context"

	domain "github.com/tiendacaps/pos-api/internal/domain"
)

// RepositoryError wraps low-level storage failures with the categorisation
// services switch on.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository holds the register-scoped carts. Carts are ephemeral: they
// live for the duration of a register session and are never persisted across
// process restarts.
type CartRepository interface {
	// GetCart returns the cart owned by a register, or a not-found error.
	GetCart(ctx context.Context, registerID string) (domain.Cart, error)
	// SaveCart stores the cart, replacing any previous state for the register.
	SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	// DeleteCart drops the register's cart entirely. Deleting an absent cart
	// is not an error.
	DeleteCart(ctx context.Context, registerID string) error
}
