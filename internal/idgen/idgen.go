// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package idgen generates the short opaque identifiers used throughout
// the data model: "ses_"-prefixed session ids and "q_"-prefixed
// question ids, each an 8-character lowercase-alphanumeric suffix.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// Session generates a fresh session id, e.g. "ses_4f0a9c21".
func Session() string {
	return "ses_" + suffix()
}

// Question generates a fresh question id, e.g. "q_1b7e0df4".
func Question() string {
	return "q_" + suffix()
}

// suffix returns 8 lowercase hex characters (crypto/rand bytes,
// hex-encoded).
func suffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is not a condition this service can
		// meaningfully recover from; the caller would immediately fail
		// on an empty id anyway.
		panic("idgen: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
