// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package staticui embeds the minimal question-renderer bundle served at
// GET /. The core treats the bundle as opaque; the real
// rendering UI is an external collaborator.
package staticui

import _ "embed"

//go:embed index.html
var Index []byte
