package cart

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/internal/repo"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/google/uuid"
)

type Service struct {
	Repo *repo.GormRepo
}

func New(r *repo.GormRepo) *Service {
	return &Service{Repo: r}
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*transport.CartResponse, error) {
	cart, err := s.Repo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &transport.CartResponse{Cart: cart, Subtotal: cart.Subtotal()}, nil
}

// AddItem adds quantity units of a product, merging with an existing line.
func (s *Service) AddItem(ctx context.Context, userID uuid.UUID, req transport.CartItemRequest) (*transport.CartResponse, error) {
	if req.ProductID == uuid.Nil {
		return nil, fmt.Errorf("%w: productId required", domain.ErrValidation)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", domain.ErrValidation)
	}

	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		p, err := sellable(ctx, tx, req.ProductID)
		if err != nil {
			return err
		}

		inCart := 0
		for _, it := range cart.Items {
			if it.ProductID == p.ID {
				inCart = it.Quantity
			}
		}
		if inCart+req.Quantity > p.Quantity {
			return fmt.Errorf("%w: %s only has %d left", domain.ErrConflict, p.Title, p.Quantity)
		}

		item := snapshot(cart.ID, p, req.Quantity)
		return tx.UpsertCartItem(ctx, &item)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// SetItem replaces the quantity of a line. A zero quantity removes it.
func (s *Service) SetItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*transport.CartResponse, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must be >= 0", domain.ErrValidation)
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		p, err := sellable(ctx, tx, productID)
		if err != nil {
			return err
		}
		if quantity > p.Quantity {
			return fmt.Errorf("%w: %s only has %d left", domain.ErrConflict, p.Title, p.Quantity)
		}

		item := snapshot(cart.ID, p, quantity)
		return tx.SetCartItem(ctx, &item)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*transport.CartResponse, error) {
	cart, err := s.Repo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.RemoveCartItem(ctx, cart.ID, productID); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.Repo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return err
	}
	return s.Repo.ClearCart(ctx, cart.ID)
}

func sellable(ctx context.Context, r *repo.GormRepo, id uuid.UUID) (*models.Product, error) {
	p, err := r.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProductStatusActive || p.Quantity <= 0 {
		return nil, fmt.Errorf("%w: %s is sold out", domain.ErrConflict, p.Title)
	}
	return p, nil
}

func snapshot(cartID uuid.UUID, p *models.Product, quantity int) models.CartItem {
	return models.CartItem{
		CartID:    cartID,
		ProductID: p.ID,
		Name:      p.Title,
		Price:     p.Price,
		Image:     p.Image,
		Material:  p.Material,
		Quantity:  quantity,
	}
}
