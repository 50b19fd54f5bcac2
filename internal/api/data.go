package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/tsfeed/internal/model"
)

// Endpoint paths.
const (
	FrequencyPath  = "/api/v1/data/frequency"
	TimeSeriesPath = "/api/v1/data/timeseries"
	LatestPath     = "/api/v1/data/latest"
)

// GetFrequency fetches the current frequency summary.
func (c *Client) GetFrequency(ctx context.Context) ([]model.FrequencyPoint, error) {
	var points []model.FrequencyPoint
	if err := c.get(ctx, FrequencyPath, nil, &points); err != nil {
		return nil, fmt.Errorf("get frequency: %w", err)
	}
	return points, nil
}

// GetTimeSeries fetches a batch of samples. A points value <= 0 lets the
// server pick its default.
func (c *Client) GetTimeSeries(ctx context.Context, points int) ([]model.Sample, error) {
	var query url.Values
	if points > 0 {
		query = url.Values{"points": []string{strconv.Itoa(points)}}
	}

	var samples []model.Sample
	if err := c.get(ctx, TimeSeriesPath, query, &samples); err != nil {
		return nil, fmt.Errorf("get timeseries: %w", err)
	}
	return samples, nil
}

// GetLatest fetches the most recent sample.
func (c *Client) GetLatest(ctx context.Context) (model.Sample, error) {
	var sample model.Sample
	if err := c.get(ctx, LatestPath, nil, &sample); err != nil {
		return model.Sample{}, fmt.Errorf("get latest: %w", err)
	}
	return sample, nil
}
