// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"encoding/json"
	"strings"
)

// PollStatus is the execution state reported by the poll endpoint.
type PollStatus string

const (
	StatusSuccess      PollStatus = "Success"
	StatusBusy         PollStatus = "Busy"
	StatusCancel       PollStatus = "Cancel"
	StatusNotConnected PollStatus = "NotConnected"
)

// Server error info markers carried in the "info" field of error bodies.
const (
	InfoLoginRequired       = "PGADMIN_LOGIN_REQUIRED"
	InfoTransactionRequired = "DATAGRID_TRANSACTION_REQUIRED"
	InfoConnectionLost      = "CONNECTION_LOST"
)

// StartRequest is the body of a start-execution call.
type StartRequest struct {
	SQL         string `json:"sql"`
	ExplainPlan bool   `json:"explain_plan"`
}

// StartResponse is the envelope returned by the start endpoint.
type StartResponse struct {
	Data StartData `json:"data"`
}

// StartData reports whether the statement was accepted and the grid capabilities
// the server derived from it.
type StartData struct {
	Status              bool   `json:"status"`
	Result              string `json:"result,omitempty"`
	CanEdit             bool   `json:"can_edit"`
	CanFilter           bool   `json:"can_filter"`
	InfoNotifierTimeout int    `json:"info_notifier_timeout"`
}

// PollResponse is the envelope returned by the poll endpoint.
type PollResponse struct {
	Data PollData `json:"data"`
}

// ColumnInfo describes one result column.
type ColumnInfo struct {
	Name     string `json:"name"`
	TypeCode int    `json:"type_code,omitempty"`
	TypeName string `json:"type_name,omitempty"`
}

// PollData carries the status and, depending on it, rows, a partial message or error text.
// Result is kept raw: it is a string for Busy/NotConnected and a row list for Success.
type PollData struct {
	Status             PollStatus      `json:"status"`
	Result             json.RawMessage `json:"result,omitempty"`
	ColInfo            []ColumnInfo    `json:"colinfo,omitempty"`
	RowsAffected       int64           `json:"rows_affected,omitempty"`
	AdditionalMessages string          `json:"additional_messages,omitempty"`
	HasMoreRows        bool            `json:"has_more_rows,omitempty"`
	TransactionStatus  int             `json:"transaction_status,omitempty"`
}

// Message returns Result decoded as a string. Empty when Result is absent, null or not a string.
func (d PollData) Message() string {
	if len(d.Result) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(d.Result, &s); err != nil {
		return ""
	}
	return s
}

// Rows returns Result decoded as a list of rows.
// Rows encoded as objects are flattened in ColInfo order when column info is present.
func (d PollData) Rows() ([][]any, error) {
	trimmed := strings.TrimSpace(string(d.Result))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(d.Result, &raw); err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(raw))
	for _, r := range raw {
		var arr []any
		if err := json.Unmarshal(r, &arr); err == nil {
			rows = append(rows, arr)
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(r, &obj); err != nil {
			return nil, err
		}
		row := make([]any, len(d.ColInfo))
		for i, c := range d.ColInfo {
			row[i] = obj[c.Name]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Target identifies the database a query tool transaction is opened against.
type Target struct {
	ServerGroupID int `json:"server_group_id" koanf:"server_group_id"`
	ServerID      int `json:"server_id" koanf:"server_id"`
	DatabaseID    int `json:"database_id" koanf:"database_id"`
}

// Endpoints contains REST API endpoint paths. Paths containing {trans_id} are expanded per call.
type Endpoints struct {
	Start      string `json:"start"`      // e.g., "/sqleditor/query_tool/start/{trans_id}"
	Poll       string `json:"poll"`       // e.g., "/sqleditor/poll/{trans_id}"
	Cancel     string `json:"cancel"`     // e.g., "/datagrid/cancel/{trans_id}"
	Initialize string `json:"initialize"` // e.g., "/datagrid/initialize/query_tool"
	LoginPage  string `json:"login_page"` // e.g., "/login"
	Login      string `json:"login"`      // e.g., "/authenticate/login"
	Version    string `json:"version"`    // e.g., "/misc/ping"
}

// DefaultEndpoints returns the paths served by the query tool backend.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Start:      "/sqleditor/query_tool/start/{trans_id}",
		Poll:       "/sqleditor/poll/{trans_id}",
		Cancel:     "/datagrid/cancel/{trans_id}",
		Initialize: "/datagrid/initialize/query_tool",
		LoginPage:  "/login",
		Login:      "/authenticate/login",
		Version:    "/misc/ping",
	}
}
