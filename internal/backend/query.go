// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// StartQuery posts { sql, explain_plan } to the start endpoint of the transaction.
// A response with data.status=false is not an error: the server rejected the SQL and
// the caller reports data.result.
func (h *HTTP) StartQuery(ctx context.Context, transID string, req StartRequest) (*StartResponse, error) {
	var out StartResponse
	if err := h.doJSON(ctx, http.MethodPost, h.path(h.endpoints.Start, transID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Poll fetches the execution status of the transaction.
func (h *HTTP) Poll(ctx context.Context, transID string) (*PollResponse, error) {
	var out PollResponse
	if err := h.doJSON(ctx, http.MethodGet, h.path(h.endpoints.Poll, transID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelTransaction asks the server to cancel the running statement of the transaction.
func (h *HTTP) CancelTransaction(ctx context.Context, transID string) error {
	var out struct {
		Data struct {
			Status bool   `json:"status"`
			Result string `json:"result"`
		} `json:"data"`
	}
	if err := h.doJSON(ctx, http.MethodPost, h.path(h.endpoints.Cancel, transID), nil, &out); err != nil {
		return err
	}
	if !out.Data.Status && out.Data.Result != "" {
		return fmt.Errorf("cancel failed: %s", out.Data.Result)
	}
	return nil
}

// InitializeQueryTool posts to /initialize/query_tool/{sgid}/{sid}/{did} and returns the
// new transaction id from data.gridTransId.
func (h *HTTP) InitializeQueryTool(ctx context.Context, target Target) (string, error) {
	u := h.baseURL + h.endpoints.Initialize +
		"/" + strconv.Itoa(target.ServerGroupID) +
		"/" + strconv.Itoa(target.ServerID) +
		"/" + strconv.Itoa(target.DatabaseID)

	var out struct {
		Data struct {
			GridTransID any `json:"gridTransId"`
		} `json:"data"`
	}
	if err := h.doJSON(ctx, http.MethodPost, u, map[string]any{}, &out); err != nil {
		return "", err
	}

	// The id is numeric on some servers and a string on others.
	switch v := out.Data.GridTransID.(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	}
	return "", errors.New("initialize: empty transaction id")
}
