// Package backend talks to the purchasing REST API that owns purchase orders
// and goods receipts.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/receiving/internal/receiving"
)

// ErrEndpointRequired indicates a client built without a base URL.
var ErrEndpointRequired = errors.New("backend: endpoint required")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend response %d: %s", e.Status, e.Body)
}

// Client implements receiving.Backend over HTTP.
type Client struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

// New builds a client with its own timeout.
func New(endpoint, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		Endpoint: endpoint,
		Token:    token,
		Client:   &http.Client{Timeout: timeout},
	}
}

var _ receiving.Backend = (*Client)(nil)

// Ping checks that the purchasing API answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/health", nil, "", nil); err != nil {
		return fmt.Errorf("backend health: %w", err)
	}
	return nil
}

type purchaseOrderDTO struct {
	ID           string `json:"id"`
	PONumber     string `json:"poNumber"`
	SupplierName string `json:"supplierName"`
	Items        []struct {
		ID          string          `json:"id"`
		ProductID   string          `json:"productId"`
		ProductName string          `json:"productName"`
		ColorName   string          `json:"colorName"`
		SizeName    string          `json:"sizeName"`
		Quantity    json.RawMessage `json:"quantity"`
		UnitPrice   json.RawMessage `json:"unitPrice"`
	} `json:"items"`
}

// FetchPurchaseOrder loads a purchase order with its lines.
func (c *Client) FetchPurchaseOrder(ctx context.Context, id string) (receiving.PurchaseOrder, error) {
	var dto purchaseOrderDTO
	if err := c.do(ctx, http.MethodGet, "/purchase-orders/"+url.PathEscape(id), nil, "", &dto); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return receiving.PurchaseOrder{}, fmt.Errorf("%w: %s", receiving.ErrPurchaseOrderNotFound, id)
		}
		return receiving.PurchaseOrder{}, fmt.Errorf("fetch purchase order %s: %w", id, err)
	}
	po := receiving.PurchaseOrder{
		ID:           dto.ID,
		Number:       dto.PONumber,
		SupplierName: dto.SupplierName,
		Lines:        make([]receiving.PurchaseOrderLine, 0, len(dto.Items)),
	}
	for _, item := range dto.Items {
		po.Lines = append(po.Lines, receiving.PurchaseOrderLine{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ColorName:   item.ColorName,
			SizeName:    item.SizeName,
			OrderedQty:  rawAmount(item.Quantity),
			UnitPrice:   rawAmount(item.UnitPrice),
		})
	}
	return po, nil
}

type remainingDTO struct {
	LineItemID        string          `json:"lineItemId"`
	RemainingQuantity json.RawMessage `json:"remainingQuantity"`
}

// FetchRemainingReceivable loads the receivable quantity left per PO line.
func (c *Client) FetchRemainingReceivable(ctx context.Context, poID string) ([]receiving.RemainingQuantity, error) {
	var dto []remainingDTO
	if err := c.do(ctx, http.MethodGet, "/purchase-orders/"+url.PathEscape(poID)+"/remaining-receivable", nil, "", &dto); err != nil {
		return nil, fmt.Errorf("fetch remaining receivable %s: %w", poID, err)
	}
	out := make([]receiving.RemainingQuantity, 0, len(dto))
	for _, d := range dto {
		out = append(out, receiving.RemainingQuantity{LineItemID: d.LineItemID, Remaining: rawAmount(d.RemainingQuantity)})
	}
	return out, nil
}

// SubmitGoodsReceipt creates a goods receipt. The idempotency key is sent so
// that a retried request does not create a second receipt.
func (c *Client) SubmitGoodsReceipt(ctx context.Context, payload receiving.SubmissionPayload, idempotencyKey string) (receiving.SubmitResult, error) {
	var result receiving.SubmitResult
	if err := c.do(ctx, http.MethodPost, "/goods-receipts", payload, idempotencyKey, &result); err != nil {
		return receiving.SubmitResult{}, fmt.Errorf("submit goods receipt: %w", err)
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, idempotencyKey string, dest any) error {
	if c == nil {
		return fmt.Errorf("backend client not initialized")
	}
	endpoint := strings.TrimRight(c.Endpoint, "/")
	if endpoint == "" {
		return ErrEndpointRequired
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// rawAmount accepts JSON numbers and the decimal strings the API returns for
// money columns. Anything else goes through the spreadsheet parser.
func rawAmount(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return receiving.ParseAmount(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return receiving.ParseAmount(f)
	}
	return receiving.ParseAmount(s)
}
