package coupon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/internal/repo"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
)

// ComputeDiscount returns the discount a coupon grants on subtotal, always within [0, subtotal].
func ComputeDiscount(c *models.Coupon, subtotal int64) int64 {
	if c == nil || subtotal <= 0 {
		return 0
	}

	var base float64
	switch c.Type {
	case models.CouponPercent:
		base = c.Value / 100 * float64(subtotal)
	case models.CouponFixed:
		base = c.Value
	default:
		return 0
	}

	discount := int64(math.Round(base))
	if c.MaxDiscount > 0 && discount > c.MaxDiscount {
		discount = c.MaxDiscount
	}
	return min(max(discount, 0), subtotal)
}

// Validate checks that the coupon can be applied to an order of subtotal at now.
func Validate(c *models.Coupon, subtotal int64, now time.Time) error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: coupon not found", domain.ErrNotFound)
	case !c.Active:
		return fmt.Errorf("%w: coupon %s is inactive", domain.ErrConflict, c.Code)
	case c.StartDate != nil && now.Before(*c.StartDate):
		return fmt.Errorf("%w: coupon %s is not active yet", domain.ErrConflict, c.Code)
	case c.EndDate != nil && now.After(*c.EndDate):
		return fmt.Errorf("%w: coupon %s has expired", domain.ErrConflict, c.Code)
	case c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit:
		return fmt.Errorf("%w: coupon %s usage limit reached", domain.ErrConflict, c.Code)
	case subtotal < c.MinOrder:
		return fmt.Errorf("%w: order must be at least %d to use coupon %s", domain.ErrConflict, c.MinOrder, c.Code)
	}
	return nil
}

type Service struct {
	Repo *repo.GormRepo
	Now  func() time.Time
}

func New(r *repo.GormRepo) *Service {
	return &Service{Repo: r, Now: time.Now}
}

// Quote validates a code against a subtotal without consuming it.
func (s *Service) Quote(ctx context.Context, code string, subtotal int64) (*transport.CouponQuote, error) {
	if repo.NormalizeCode(code) == "" {
		return nil, fmt.Errorf("%w: code required", domain.ErrValidation)
	}
	if subtotal < 0 {
		return nil, fmt.Errorf("%w: subtotal must be >= 0", domain.ErrValidation)
	}

	c, err := s.Repo.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := Validate(c, subtotal, s.Now().UTC()); err != nil {
		return nil, err
	}

	discount := ComputeDiscount(c, subtotal)
	return &transport.CouponQuote{
		Coupon:     c,
		Discount:   discount,
		FinalTotal: subtotal - discount,
	}, nil
}

func (s *Service) Create(ctx context.Context, req transport.CreateCouponRequest) (*models.Coupon, error) {
	l := logging.FromContext(ctx).With("svc", "coupon.create")

	code := repo.NormalizeCode(req.Code)
	switch {
	case code == "":
		return nil, fmt.Errorf("%w: code required", domain.ErrValidation)
	case req.Type != models.CouponPercent && req.Type != models.CouponFixed:
		return nil, fmt.Errorf("%w: type must be percent or fixed", domain.ErrValidation)
	case req.Value < 0:
		return nil, fmt.Errorf("%w: value must be >= 0", domain.ErrValidation)
	case req.Type == models.CouponPercent && req.Value > 100:
		return nil, fmt.Errorf("%w: percent value must be <= 100", domain.ErrValidation)
	case req.MinOrder < 0 || req.MaxDiscount < 0 || req.UsageLimit < 0:
		return nil, fmt.Errorf("%w: minOrder, maxDiscount and usageLimit must be >= 0", domain.ErrValidation)
	case req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate):
		return nil, fmt.Errorf("%w: endDate must be after startDate", domain.ErrValidation)
	}

	if _, err := s.Repo.GetCouponByCode(ctx, code); err == nil {
		return nil, fmt.Errorf("%w: coupon %s already exists", domain.ErrConflict, code)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	c := &models.Coupon{
		Code:        code,
		Type:        req.Type,
		Value:       req.Value,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		MinOrder:    req.MinOrder,
		MaxDiscount: req.MaxDiscount,
		UsageLimit:  req.UsageLimit,
		Active:      active,
	}
	if err := s.Repo.CreateCoupon(ctx, c); err != nil {
		return nil, err
	}

	l.Info("coupon_created", "code", c.Code)
	return c, nil
}

func (s *Service) List(ctx context.Context, p repo.Page) ([]models.Coupon, int64, error) {
	return s.Repo.ListCoupons(ctx, p)
}
