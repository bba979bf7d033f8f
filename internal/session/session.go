package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mkovalev/webstore/internal/cart"
)

const (
	CookieName = "cart_session"

	cartKey = "session_cart"
	idKey   = "session_id"
)

const cookieTTL = 30 * 24 * time.Hour

// Store holds the ephemeral carts keyed by session id. Carts are copied out
// at request start and copied back at request end by the middleware, so
// handlers work on a request-scoped value instead of a shared session bag.
type Store struct {
	mu    sync.Mutex
	carts map[string]cart.Cart
}

func NewStore() *Store {
	return &Store{carts: make(map[string]cart.Cart)}
}

// Load returns a copy of the session's cart, creating a well-formed empty
// one if the session has none yet. It never fails.
func (s *Store) Load(id string) cart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[id]
	if !ok {
		return *cart.New()
	}
	c.Lines = append([]cart.Line(nil), c.Lines...)
	return c
}

func (s *Store) Save(id string, c cart.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Lines = append([]cart.Line(nil), c.Lines...)
	s.carts[id] = c
}

// Drop destroys the session's cart, e.g. on logout.
func (s *Store) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
}

// Middleware loads the session cart into the echo context before the
// handler runs and persists it back afterwards, even when the handler
// errored. A missing session cookie gets minted here.
func Middleware(store *Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if ck, err := c.Cookie(CookieName); err == nil {
				id = ck.Value
			}
			if id == "" {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     CookieName,
					Value:    id,
					Path:     "/",
					Expires:  time.Now().Add(cookieTTL),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			crt := store.Load(id)
			c.Set(idKey, id)
			SetCart(c, &crt)

			err := next(c)
			store.Save(id, crt)
			return err
		}
	}
}

// SetCart binds a cart to the request context. The middleware does this on
// every request; tests use it to hand a handler a prepared cart.
func SetCart(c echo.Context, crt *cart.Cart) {
	c.Set(cartKey, crt)
}

// CartFrom returns the request's cart. Outside the middleware it hands out
// a fresh empty cart rather than failing.
func CartFrom(c echo.Context) *cart.Cart {
	if v, ok := c.Get(cartKey).(*cart.Cart); ok && v != nil {
		return v
	}
	return cart.New()
}

// ID returns the session id of the request, empty outside the middleware.
func ID(c echo.Context) string {
	if v, ok := c.Get(idKey).(string); ok {
		return v
	}
	return ""
}
