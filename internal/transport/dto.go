package transport

import (
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/google/uuid"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        *models.User `json:"user"`
}

type CartItemRequest struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

type CartResponse struct {
	*models.Cart
	Subtotal int64 `json:"subtotal"`
}

type CreateOrderRequest struct {
	Shipping      models.Shipping `json:"shipping"`
	PaymentMethod string          `json:"paymentMethod"`
	CouponCode    string          `json:"couponCode"`
}

type POSItem struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

type POSOrderRequest struct {
	CustomerID    uuid.UUID       `json:"customerId"`
	Items         []POSItem       `json:"items"`
	Shipping      models.Shipping `json:"shipping"`
	PaymentMethod string          `json:"paymentMethod"`
	ShippingFee   int64           `json:"shippingFee"`
}

type OrderResponse struct {
	*models.Order
	PaymentURL string `json:"paymentUrl,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type ValidateCouponRequest struct {
	Code     string `json:"code"`
	Subtotal int64  `json:"subtotal"`
}

type CouponQuote struct {
	Coupon     *models.Coupon `json:"coupon"`
	Discount   int64          `json:"discount"`
	FinalTotal int64          `json:"finalTotal"`
}

type CreateCouponRequest struct {
	Code        string     `json:"code"`
	Type        string     `json:"type"`
	Value       float64    `json:"value"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	MinOrder    int64      `json:"minOrder"`
	MaxDiscount int64      `json:"maxDiscount"`
	UsageLimit  int        `json:"usageLimit"`
	Active      *bool      `json:"active"`
}

type CreatePaymentRequest struct {
	OrderID uuid.UUID `json:"orderId"`
}

type PaymentURLResponse struct {
	PaymentURL string `json:"paymentUrl"`
}

// IPNResponse is the body the gateway expects from the server-to-server notification.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

type SendMessageRequest struct {
	ConversationID uuid.UUID `json:"conversationId"`
	ToUserID       uuid.UUID `json:"toUserId"`
	Content        string    `json:"content"`
}

type AppendResult struct {
	Conversation *models.Conversation `json:"conversation"`
	Message      *models.Message      `json:"message"`
}

type PageResponse[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}
