package owner

import (
	"fmt"
)

// Kind discriminates the polymorphic principal that holds a cart or
// places an order.
type Kind string

const (
	KindUser   Kind = "user"
	KindVendor Kind = "vendor"
)

// Owner identifies a buyer-user or a vendor acting as a buyer. It is
// threaded explicitly through every cart, checkout and order operation.
type Owner struct {
	Kind Kind `json:"kind"`
	ID   uint `json:"id"`
}

func (o Owner) String() string {
	return fmt.Sprintf("%s:%d", o.Kind, o.ID)
}

// Resolver holds the closed set of owner discriminators. The set is
// declared once at startup, an unknown kind at resolve time is a
// configuration error, never a silent fallback.
type Resolver struct {
	kinds map[Kind]struct{}
}

func NewResolver(kinds ...Kind) (*Resolver, error) {
	if len(kinds) == 0 {
		return nil, fmt.Errorf("owner: resolver needs at least one kind")
	}
	set := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		if k == "" {
			return nil, fmt.Errorf("owner: empty kind")
		}
		if _, dup := set[k]; dup {
			return nil, fmt.Errorf("owner: duplicate kind %q", k)
		}
		set[k] = struct{}{}
	}
	return &Resolver{kinds: set}, nil
}

// DefaultResolver declares the discriminators this system ships with.
func DefaultResolver() *Resolver {
	r, err := NewResolver(KindUser, KindVendor)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve maps an authenticated principal to its Owner. The same
// (id, role) pair always resolves to the same Owner.
func (r *Resolver) Resolve(id uint, role string) (Owner, error) {
	k := Kind(role)
	if _, ok := r.kinds[k]; !ok {
		return Owner{}, fmt.Errorf("owner: unknown kind %q", role)
	}
	return Owner{Kind: k, ID: id}, nil
}

func (r *Resolver) Known(k Kind) bool {
	_, ok := r.kinds[k]
	return ok
}
