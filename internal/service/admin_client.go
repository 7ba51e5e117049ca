package service

import (
	"context"
	"fmt"
	"time"

	"chart-revisor/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// AdminClient pushes approved configs live. The admin HTTP API is a
// collaborator boundary; the engine itself never calls it.
type AdminClient interface {
	UpdateChart(ctx context.Context, chartID int64, cfg *models.ChartConfig) error
}

// HTTPAdminClient talks to the grapher admin API with session-cookie auth.
type HTTPAdminClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewAdminClient(baseURL, sessionCookie string, logger *zap.Logger) *HTTPAdminClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Cookie", "sessionid="+sessionCookie)

	return &HTTPAdminClient{httpClient: client, logger: logger}
}

func (c *HTTPAdminClient) UpdateChart(ctx context.Context, chartID int64, cfg *models.ChartConfig) error {
	c.logger.Info("Pushing approved config live", zap.Int64("chart_id", chartID))

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(cfg).
		Put(fmt.Sprintf("/admin/api/charts/%d", chartID))
	if err != nil {
		return fmt.Errorf("update chart %d: %w", chartID, err)
	}
	if resp.StatusCode() != 200 {
		c.logger.Error("Admin API rejected chart update",
			zap.Int64("chart_id", chartID),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return fmt.Errorf("update chart %d: admin API returned %d", chartID, resp.StatusCode())
	}
	return nil
}
