// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"

	"pgquery/cli/internal/errors"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	if e, ok := err.(*errors.E); ok && e.Message != "" {
		return fmt.Sprintf("%s: %s", context, Mask(e.Message))
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}
