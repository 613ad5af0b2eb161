package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/servicecrm/backend/domain"
)

// Linker keeps Product.OwnerID/DealerID and Customer.ProductIDs mutually
// consistent for the duration of one command. It observes every aggregate the
// command touches and reacts to emissions by mutating the counterpart
// aggregate through the same session, so the whole chain lands in one commit.
//
// Termination is structural: role-swap events carry IsChangingRole and only
// propagate the removal of a holder displaced from both slots, and every
// other chain dies on a silent no-op (adding a product a customer already
// holds emits nothing).
type Linker struct {
	session *Session
	logger  *zap.Logger

	customers map[domain.CustomerID]bool
	products  map[domain.ProductID]bool
}

func NewLinker(session *Session, logger *zap.Logger) *Linker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Linker{
		session:   session,
		logger:    logger,
		customers: make(map[domain.CustomerID]bool),
		products:  make(map[domain.ProductID]bool),
	}
}

// WatchCustomer attaches the customer-side reactions. Watching twice is a
// no-op, so reaction handlers can watch freely before mutating.
func (l *Linker) WatchCustomer(ctx context.Context, c *domain.Customer) {
	if l.customers[c.ID] {
		return
	}
	l.customers[c.ID] = true
	c.Observe(func(event domain.CustomerEvent) error {
		return l.onCustomerEvent(ctx, c, event)
	})
}

// WatchProduct attaches the product-side reactions.
func (l *Linker) WatchProduct(ctx context.Context, p *domain.Product) {
	if l.products[p.ID] {
		return
	}
	l.products[p.ID] = true
	p.Observe(func(event domain.ProductEvent) error {
		return l.onProductEvent(ctx, p, event)
	})
}

// TrackNewCustomer registers a freshly created aggregate with the session and
// pushes its creation event through the reactions, so declared ProductIDs
// claim their products exactly like a later AddProduct would.
func (l *Linker) TrackNewCustomer(ctx context.Context, c *domain.Customer) error {
	l.session.AddCustomer(c)
	l.customers[c.ID] = true
	c.Observe(func(event domain.CustomerEvent) error {
		return l.onCustomerEvent(ctx, c, event)
	})
	for _, event := range c.Pending() {
		if err := l.onCustomerEvent(ctx, c, event); err != nil {
			return err
		}
	}
	return nil
}

// TrackNewProduct mirrors TrackNewCustomer for products.
func (l *Linker) TrackNewProduct(ctx context.Context, p *domain.Product) error {
	l.session.AddProduct(p)
	l.products[p.ID] = true
	p.Observe(func(event domain.ProductEvent) error {
		return l.onProductEvent(ctx, p, event)
	})
	for _, event := range p.Pending() {
		if err := l.onProductEvent(ctx, p, event); err != nil {
			return err
		}
	}
	return nil
}

func (l *Linker) customer(ctx context.Context, id domain.CustomerID) (*domain.Customer, error) {
	c, err := l.session.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	l.WatchCustomer(ctx, c)
	return c, nil
}

func (l *Linker) product(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	p, err := l.session.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	l.WatchProduct(ctx, p)
	return p, nil
}

func (l *Linker) onCustomerEvent(ctx context.Context, c *domain.Customer, event domain.CustomerEvent) error {
	switch e := event.(type) {
	case *domain.CustomerCreated:
		for _, id := range e.ProductIDs.Values() {
			if err := l.claimProduct(ctx, c, id, e.Actor()); err != nil {
				return err
			}
		}
	case *domain.CustomerProductAdded:
		return l.claimProduct(ctx, c, e.ProductID, e.Actor())
	case *domain.CustomerProductRemoved:
		return l.releaseProduct(ctx, c, e.ProductID, e.Actor())
	}
	return nil
}

// claimProduct points the product's owner or dealer slot, per the customer's
// role, at the customer.
func (l *Linker) claimProduct(ctx context.Context, c *domain.Customer, id domain.ProductID, by domain.AppUserID) error {
	p, err := l.product(ctx, id)
	if err != nil {
		return err
	}
	if c.Role == domain.RoleDealer {
		return p.UpdateDealer(by, c.ID)
	}
	return p.UpdateOwner(by, c.ID)
}

// releaseProduct clears the product's slot only while it still points at this
// customer; a slot already reassigned elsewhere is left alone.
func (l *Linker) releaseProduct(ctx context.Context, c *domain.Customer, id domain.ProductID, by domain.AppUserID) error {
	p, err := l.product(ctx, id)
	if err != nil {
		return err
	}
	if p.OwnerID == c.ID {
		return p.UpdateOwner(by, "")
	}
	if p.DealerID == c.ID {
		return p.UpdateDealer(by, "")
	}
	return nil
}

func (l *Linker) onProductEvent(ctx context.Context, p *domain.Product, event domain.ProductEvent) error {
	switch e := event.(type) {
	case *domain.ProductCreated:
		if !e.OwnerID.IsZero() {
			if err := l.attach(ctx, p.ID, e.OwnerID, e.Actor()); err != nil {
				return err
			}
		}
		if !e.DealerID.IsZero() {
			if err := l.attach(ctx, p.ID, e.DealerID, e.Actor()); err != nil {
				return err
			}
		}
	case *domain.ProductOwnerChanged:
		if e.IsChangingRole {
			return l.releaseFormerHolder(ctx, p, e.Previous, e.Actor())
		}
		return l.reassign(ctx, p.ID, e.Previous, e.Next, e.Actor())
	case *domain.ProductDealerChanged:
		if e.IsChangingRole {
			return l.releaseFormerHolder(ctx, p, e.Previous, e.Actor())
		}
		return l.reassign(ctx, p.ID, e.Previous, e.Next, e.Actor())
	}
	return nil
}

// releaseFormerHolder handles the displaced side of a role swap. The customer
// moving between the slots keeps its membership, but a previous holder left
// with neither slot must still lose the product. The removal cannot restart
// the chain: releaseProduct sees the slot pointing elsewhere and leaves it.
func (l *Linker) releaseFormerHolder(ctx context.Context, p *domain.Product, previous domain.CustomerID, by domain.AppUserID) error {
	if previous.IsZero() || p.OwnerID == previous || p.DealerID == previous {
		return nil
	}
	c, err := l.customer(ctx, previous)
	if err != nil {
		return err
	}
	return c.RemoveProduct(by, p.ID)
}

func (l *Linker) attach(ctx context.Context, productID domain.ProductID, customerID domain.CustomerID, by domain.AppUserID) error {
	c, err := l.customer(ctx, customerID)
	if err != nil {
		return err
	}
	return c.AddProduct(by, productID)
}

// reassign moves the product between the two customers' membership sets.
// Either side may be empty.
func (l *Linker) reassign(ctx context.Context, productID domain.ProductID, previous, next domain.CustomerID, by domain.AppUserID) error {
	if !previous.IsZero() {
		c, err := l.customer(ctx, previous)
		if err != nil {
			return err
		}
		if err := c.RemoveProduct(by, productID); err != nil {
			return err
		}
	}
	if !next.IsZero() {
		c, err := l.customer(ctx, next)
		if err != nil {
			return err
		}
		if err := c.AddProduct(by, productID); err != nil {
			return err
		}
	}
	return nil
}
