package store

import (
	"context"
	"fmt"

	"github.com/lithammer/shortuuid/v4"
)

// Customer is the object representing a chat contact. A customer is
// created lazily on the first inbound message from an unknown phone.
type Customer struct {
	ID        int32
	UID       string
	CreatedTs int64
	// Phone is the WhatsApp contact handle, unique per customer.
	Phone string
	Name  string
}

// FindCustomer is the find condition for customer.
type FindCustomer struct {
	ID    *int32
	UID   *string
	Phone *string

	Limit *int
}

// DeleteCustomer is the delete request for customer.
type DeleteCustomer struct {
	ID int32
}

// CreateCustomer creates a new customer.
func (s *Store) CreateCustomer(ctx context.Context, create *Customer) (*Customer, error) {
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	if create.Name == "" {
		create.Name = fmt.Sprintf("Cliente %s", create.Phone)
	}
	customer, err := s.driver.CreateCustomer(ctx, create)
	if err != nil {
		return nil, err
	}
	s.customerCache.Set(customer.Phone, customer)
	return customer, nil
}

// ListCustomers lists customers with filter.
func (s *Store) ListCustomers(ctx context.Context, find *FindCustomer) ([]*Customer, error) {
	return s.driver.ListCustomers(ctx, find)
}

// GetCustomer gets a single customer with filter.
func (s *Store) GetCustomer(ctx context.Context, find *FindCustomer) (*Customer, error) {
	limit := 1
	find.Limit = &limit
	list, err := s.driver.ListCustomers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// FindOrCreateCustomer looks a customer up by phone, inserting a new row
// with a defaulted name when none exists yet.
func (s *Store) FindOrCreateCustomer(ctx context.Context, phone string) (*Customer, error) {
	if cached, ok := s.customerCache.Get(phone); ok {
		if customer, ok := cached.(*Customer); ok {
			return customer, nil
		}
	}

	// Serialized so two concurrent first messages from the same phone
	// cannot both insert.
	s.customerMu.Lock()
	defer s.customerMu.Unlock()

	customer, err := s.GetCustomer(ctx, &FindCustomer{Phone: &phone})
	if err != nil {
		return nil, err
	}
	if customer != nil {
		s.customerCache.Set(phone, customer)
		return customer, nil
	}

	return s.CreateCustomer(ctx, &Customer{Phone: phone})
}

// DeleteCustomer deletes a customer. Events cascade at the database level.
func (s *Store) DeleteCustomer(ctx context.Context, delete *DeleteCustomer) error {
	s.customerCache.Clear()
	return s.driver.DeleteCustomer(ctx, delete)
}
