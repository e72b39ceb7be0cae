// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package branchstate

import "fmt"

// Sentinel errors.
var (
	ErrSessionNotFound      = fmt.Errorf("session not found")
	ErrSessionAlreadyExists = fmt.Errorf("session already exists")
	ErrBranchNotFound       = fmt.Errorf("branch not found")
	ErrBranchAlreadyDone    = fmt.Errorf("branch already done")
)
