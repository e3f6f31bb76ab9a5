package billplz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/kadkita/kadkita/internal/billplz/domain"
	"github.com/kadkita/kadkita/internal/config"
)

type ClientParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// Client talks to the Billplz v3 bill API. The API key is sent as the basic
// auth username with an empty password.
type Client struct {
	cfg  config.BillplzConfig
	http *http.Client
	log  *zap.Logger
}

func NewClient(p ClientParams) domain.Client {
	return &Client{
		cfg: p.Config.Billplz,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: p.Log.Named("billplz.client"),
	}
}

func (c *Client) Configured() bool { return c.cfg.Configured() }

// CreateBill opens a hosted payment session. The decimal amount is converted
// to integer sen only here, at the provider boundary.
func (c *Client) CreateBill(ctx context.Context, req domain.CreateBillRequest) (*domain.Bill, error) {
	if !c.cfg.Configured() {
		return nil, domain.ErrNotConfigured
	}

	form := url.Values{}
	form.Set("collection_id", c.cfg.CollectionID)
	form.Set("email", req.Email)
	form.Set("name", req.Name)
	form.Set("amount", strconv.FormatInt(toMinorUnits(req.Amount), 10))
	form.Set("description", req.Description)
	form.Set("callback_url", req.CallbackURL)
	form.Set("reference_1_label", "Order ID")
	form.Set("reference_1", req.Reference1)
	if req.RedirectURL != "" {
		form.Set("redirect_url", req.RedirectURL)
	}
	if req.Mobile != "" {
		form.Set("mobile", req.Mobile)
	}

	endpoint := strings.TrimRight(c.cfg.Endpoint, "/") + "/v3/bills"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(c.cfg.APIKey, "")
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("billplz create bill: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("create bill rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("reference_1", req.Reference1),
			zap.ByteString("body", body),
		)
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayRejected, resp.StatusCode)
	}

	var bill domain.Bill
	if err := json.Unmarshal(body, &bill); err != nil {
		return nil, fmt.Errorf("billplz response decode: %w", err)
	}
	if bill.ID == "" {
		return nil, fmt.Errorf("%w: empty bill id", domain.ErrGatewayRejected)
	}

	c.log.Info("bill created",
		zap.String("bill_id", bill.ID),
		zap.String("reference_1", req.Reference1),
	)
	return &bill, nil
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
