package predict

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prefetchml/internal/bitfield"
	"prefetchml/internal/window"

	"github.com/pkg/errors"
)

// ServingModel calls a model server that speaks the TensorFlow Serving REST predict API:
// POST {URL}/v1/models/{Name}:predict with {"instances": [...]}.
type ServingModel struct {
	URL    string
	Name   string
	Client *http.Client
}

// NewServingModel returns a ServingModel with its own HTTP client
func NewServingModel(baseURL string, name string, timeout time.Duration) (*ServingModel, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid model url: %q", baseURL)
	}
	if name == "" {
		return nil, fmt.Errorf("model name must not be empty")
	}
	return &ServingModel{
		URL:    strings.TrimSuffix(baseURL, "/"),
		Name:   name,
		Client: &http.Client{Timeout: timeout},
	}, nil
}

type predictRequest struct {
	Instances []window.Tensor `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
	Error       string      `json:"error"`
}

func (m *ServingModel) endpoint() string {
	return fmt.Sprintf("%s/v1/models/%s:predict", m.URL, url.PathEscape(m.Name))
}

// Predict sends the batch in one request
func (m *ServingModel) Predict(ctx context.Context, batch []window.Tensor) ([][]float32, error) {
	body, err := json.Marshal(predictRequest{Instances: batch})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "model request failed")
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read model response")
	}
	var parsed predictResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrapf(err, "failed to parse model response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || parsed.Error != "" {
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, parsed.Error)
	}
	if len(parsed.Predictions) != len(batch) {
		return nil, errors.Wrapf(bitfield.ErrShapeMismatch, "model returned %d predictions for %d windows", len(parsed.Predictions), len(batch))
	}
	slog.Debug("model prediction", slog.String("endpoint", m.endpoint()), slog.Int("batch", len(batch)))
	return parsed.Predictions, nil
}
