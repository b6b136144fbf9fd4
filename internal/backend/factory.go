// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import "time"

// New creates a backend API implementation for the server at baseURL.
// Returns HTTP client (real backend).
func New(baseURL string, endpoints Endpoints, timeout time.Duration) (*HTTP, error) {
	return newHTTP(baseURL, endpoints, timeout)
}
