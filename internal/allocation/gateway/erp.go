// Package gateway implements the commit sink against the upstream ERP
// order service. The commit semantics (FEFO validation, stock transactions,
// concurrency control) live entirely on the other side; from here it is one
// opaque POST per save attempt.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hanifmhd/erp-allocation-service/config"
	"github.com/hanifmhd/erp-allocation-service/internal/allocation"
	"github.com/hanifmhd/erp-allocation-service/internal/model"
	"github.com/hanifmhd/erp-allocation-service/pkg/logger"
)

type OrderServiceGateway struct {
	baseURL string
	client  *http.Client
	logger  logger.ZapLogger
}

func NewOrderServiceGateway(cfg *config.OrderServiceConfig, log logger.ZapLogger) *OrderServiceGateway {
	return &OrderServiceGateway{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: log,
	}
}

type commitPayload struct {
	Entries     []model.AllocationEntry `json:"entries"`
	CommittedBy string                  `json:"committed_by,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (g *OrderServiceGateway) CommitAllocations(ctx context.Context, line *model.OrderLine, entries []model.AllocationEntry, committedBy string) error {
	payload, err := json.Marshal(commitPayload{Entries: entries, CommittedBy: committedBy})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/internal/v1/order-lines/%s/allocations", g.baseURL, line.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Merchant-Id", line.MerchantID)

	res, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("commit allocations: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	g.logger.Warn("order service rejected allocation commit",
		zap.String("order_line_id", line.ID),
		zap.Int("status", res.StatusCode),
		zap.String("code", eb.Code),
	)

	// 409 is the upstream's answer to a stale freeQty: stock moved under
	// us between candidate fetch and commit.
	if res.StatusCode == http.StatusConflict {
		if eb.Message != "" {
			return fmt.Errorf("%w: %s", allocation.ErrStockConflict, eb.Message)
		}
		return allocation.ErrStockConflict
	}

	if eb.Message != "" {
		return fmt.Errorf("order service rejected commit (status %d): %s", res.StatusCode, eb.Message)
	}
	return fmt.Errorf("order service rejected commit (status %d)", res.StatusCode)
}
