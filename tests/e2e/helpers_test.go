package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

type TestClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewTestClient(t *testing.T) *TestClient {
	t.Helper()

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &TestClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// 在庫込みで投入済みの商品IDを環境変数から読む。
// カタログ登録APIは無いので、`go run ./cmd/seed` で投入してIDを渡す。
func seededProductID(t *testing.T) int64 {
	t.Helper()
	raw := os.Getenv("E2E_PRODUCT_ID")
	if raw == "" {
		t.Skip("E2E_PRODUCT_ID not set; run cmd/seed and set the logged product_id")
	}
	var id int64
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil || id <= 0 {
		t.Fatalf("invalid E2E_PRODUCT_ID %q", raw)
	}
	return id
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type UserDTO struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

type JwtAccessToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type AuthLoginResponse struct {
	User  UserDTO        `json:"user"`
	Token JwtAccessToken `json:"token"`
}

type OrderAddressDTO struct {
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
}

type OrderItemDTO struct {
	ProductID  int64  `json:"product_id"`
	VariantID  string `json:"variant_id"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	UnitPrice  string `json:"unit_price"`
	Quantity   int64  `json:"quantity"`
	TotalPrice string `json:"total_price"`
}

type OrderDTO struct {
	ID                int64           `json:"id"`
	OrderNumber       string          `json:"order_number"`
	CustomerID        int64           `json:"customer_id"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"payment_status"`
	PaymentMethod     string          `json:"payment_method"`
	Subtotal          string          `json:"subtotal"`
	Tax               string          `json:"tax"`
	ShippingFee       string          `json:"shipping_fee"`
	Discount          string          `json:"discount"`
	Total             string          `json:"total"`
	Items             []OrderItemDTO  `json:"items"`
	ShippingAddress   OrderAddressDTO `json:"shipping_address"`
	BillingAddress    OrderAddressDTO `json:"billing_address"`
	ConfirmationError string          `json:"confirmation_error"`
}

type OrderListResponse struct {
	Items []OrderDTO `json:"items"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

func (c *TestClient) doJSON(
	ctx context.Context,
	t *testing.T,
	method string,
	path string,
	bearer string,
	body interface{},
) (*http.Response, []byte) {
	t.Helper()

	var reqBody io.Reader
	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal failed: %v", err)
		}
		bodyBytes = b
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("http.NewRequest failed: %v", err)
	}
	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		t.Fatalf("HTTP.Do failed: %v", err)
	}

	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return resp, data
}

// registerとloginを済ませてaccess_tokenを返す
func (c *TestClient) registerAndLogin(ctx context.Context, t *testing.T) string {
	t.Helper()

	email := fmt.Sprintf("e2e_%d@test.com", time.Now().UnixNano())
	password := "CorrectPW123!"

	resp, body := c.doJSON(ctx, t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status=%d body=%s", resp.StatusCode, body)
	}

	resp, body = c.doJSON(ctx, t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status=%d body=%s", resp.StatusCode, body)
	}

	var lr AuthLoginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		t.Fatalf("login unmarshal failed: %v body=%s", err, body)
	}
	if lr.Token.AccessToken == "" {
		t.Fatalf("access_token is empty")
	}
	return lr.Token.AccessToken
}

func testShippingAddress() OrderAddressDTO {
	return OrderAddressDTO{
		Name:       "E2E太郎",
		PostalCode: "5300001",
		Prefecture: "大阪府",
		City:       "大阪市北区",
		Line1:      "梅田1-1-1",
	}
}
