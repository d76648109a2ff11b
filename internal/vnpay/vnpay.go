// Package vnpay builds and verifies VNPAY signed redirects (API version 2.1.0).
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Version       = "2.1.0"
	dateLayout    = "20060102150405"
	expireAfter   = 15 * time.Minute
	SuccessCode   = "00"
	hashParam     = "vnp_SecureHash"
	hashTypeParam = "vnp_SecureHashType"
)

// the gateway reads and writes dates in Vietnam local time
var ict = time.FixedZone("ICT", 7*60*60)

var ErrNotConfigured = errors.New("vnpay is not configured")

type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

type Client struct {
	cfg Config
	Now func() time.Time
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg, Now: time.Now}
}

func (c *Client) Configured() bool {
	return c.cfg.TmnCode != "" && c.cfg.HashSecret != "" && c.cfg.PayURL != "" && c.cfg.ReturnURL != ""
}

type PaymentRequest struct {
	OrderID   uuid.UUID
	Amount    int64
	OrderInfo string
	IPAddr    string
}

// BuildPaymentURL returns the redirect URL and the parameters that were signed.
func (c *Client) BuildPaymentURL(req PaymentRequest) (string, url.Values, error) {
	if !c.Configured() {
		return "", nil, ErrNotConfigured
	}
	if req.Amount <= 0 {
		return "", nil, fmt.Errorf("amount must be positive, got %d", req.Amount)
	}

	now := c.Now().In(ict)
	ip := req.IPAddr
	if ip == "" {
		ip = "127.0.0.1"
	}
	info := req.OrderInfo
	if info == "" {
		info = "Thanh toan don hang " + req.OrderID.String()
	}

	params := url.Values{}
	params.Set("vnp_Version", Version)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", c.cfg.TmnCode)
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", TxnRef(req.OrderID, now))
	params.Set("vnp_OrderInfo", info)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_ReturnUrl", c.cfg.ReturnURL)
	params.Set("vnp_IpAddr", ip)
	params.Set("vnp_CreateDate", now.Format(dateLayout))
	params.Set("vnp_ExpireDate", now.Add(expireAfter).Format(dateLayout))

	sig := Sign(c.cfg.HashSecret, params)
	return c.cfg.PayURL + "?" + canonical(params) + "&" + hashParam + "=" + sig, params, nil
}

// TxnRef is the order id without dashes followed by a unix millisecond stamp,
// so a retried payment gets a fresh reference.
func TxnRef(orderID uuid.UUID, at time.Time) string {
	return strings.ReplaceAll(orderID.String(), "-", "") + strconv.FormatInt(at.UnixMilli(), 10)
}

// OrderIDFromTxnRef recovers the order id encoded by TxnRef.
func OrderIDFromTxnRef(ref string) (uuid.UUID, error) {
	if len(ref) < 32 {
		return uuid.Nil, fmt.Errorf("txn ref too short: %q", ref)
	}
	return uuid.Parse(ref[:32])
}

// Sign computes the hex HMAC-SHA512 of the sorted, url-encoded parameters.
func Sign(secret string, params url.Values) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(canonical(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

func canonical(params url.Values) string {
	clean := url.Values{}
	for k, vs := range params {
		if k == hashParam || k == hashTypeParam || len(vs) == 0 || vs[0] == "" {
			continue
		}
		clean.Set(k, vs[0])
	}
	// Encode sorts by key and escapes like the gateway's reference code
	return clean.Encode()
}

// Verify recomputes the signature of a callback and compares it with vnp_SecureHash.
func (c *Client) Verify(params url.Values) bool {
	got := strings.ToLower(params.Get(hashParam))
	if got == "" || c.cfg.HashSecret == "" {
		return false
	}
	want := Sign(c.cfg.HashSecret, params)
	return hmac.Equal([]byte(got), []byte(want))
}

type Result struct {
	OrderID           uuid.UUID
	TxnRef            string
	Amount            int64
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	ValidSignature    bool
}

// Success is true only for a correctly signed callback carrying response code 00.
func (r Result) Success() bool {
	return r.ValidSignature && r.ResponseCode == SuccessCode &&
		(r.TransactionStatus == "" || r.TransactionStatus == SuccessCode)
}

// ParseCallback reads a return or IPN query. OrderID is uuid.Nil when the reference is unreadable
// and Amount is -1 when vnp_Amount is missing or not a whole number of dong.
func (c *Client) ParseCallback(params url.Values) Result {
	res := Result{
		TxnRef:            params.Get("vnp_TxnRef"),
		ResponseCode:      params.Get("vnp_ResponseCode"),
		TransactionStatus: params.Get("vnp_TransactionStatus"),
		TransactionNo:     params.Get("vnp_TransactionNo"),
		BankCode:          params.Get("vnp_BankCode"),
		ValidSignature:    c.Verify(params),
	}
	if id, err := OrderIDFromTxnRef(res.TxnRef); err == nil {
		res.OrderID = id
	}
	res.Amount = -1
	if amt, err := strconv.ParseInt(params.Get("vnp_Amount"), 10, 64); err == nil && amt%100 == 0 {
		res.Amount = amt / 100
	}
	return res
}
