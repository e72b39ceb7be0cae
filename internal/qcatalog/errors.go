// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package qcatalog

import "fmt"

// ErrInvalidQuestionPayload is the sentinel wrapped by every validator
// failure, so callers can errors.Is against it regardless of which field
// or question type tripped the check.
var ErrInvalidQuestionPayload = fmt.Errorf("invalid question payload")
