package memory

import (
	"context"
	"strings"
	"sync"

	domain "github.com/tiendacaps/pos-api/internal/domain"
	"github.com/tiendacaps/pos-api/internal/repositories"
)

// CartRepository keeps register carts in process memory. One cart per
// register; carts vanish with the process, which matches the session-scoped
// lifecycle the POS expects.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

// NewCartRepository constructs an empty in-memory cart store.
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]domain.Cart)}
}

// GetCart returns a deep copy of the register's cart.
func (r *CartRepository) GetCart(_ context.Context, registerID string) (domain.Cart, error) {
	id := strings.TrimSpace(registerID)
	if id == "" {
		return domain.Cart{}, repositories.NewCartError(repositories.CartErrorInvalidRegister, "register id is required", nil)
	}

	r.mu.RLock()
	cart, ok := r.carts[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Cart{}, repositories.NewCartError(repositories.CartErrorNotFound, "no cart for register "+id, nil)
	}
	return cart.Clone(), nil
}

// SaveCart stores a copy of the cart keyed by its register id.
func (r *CartRepository) SaveCart(_ context.Context, cart domain.Cart) (domain.Cart, error) {
	id := strings.TrimSpace(cart.RegisterID)
	if id == "" {
		return domain.Cart{}, repositories.NewCartError(repositories.CartErrorInvalidRegister, "register id is required", nil)
	}

	cart.RegisterID = id
	stored := cart.Clone()

	r.mu.Lock()
	r.carts[id] = stored
	r.mu.Unlock()

	return stored.Clone(), nil
}

// DeleteCart removes the register's cart. Absent carts are a no-op.
func (r *CartRepository) DeleteCart(_ context.Context, registerID string) error {
	id := strings.TrimSpace(registerID)
	if id == "" {
		return repositories.NewCartError(repositories.CartErrorInvalidRegister, "register id is required", nil)
	}

	r.mu.Lock()
	delete(r.carts, id)
	r.mu.Unlock()
	return nil
}
