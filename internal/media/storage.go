/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media resolves stored audio and cover assets to client-facing
// locators. The playback core never touches it; catalog rendering does.
package media

import "context"

// Storage abstracts asset locator resolution over a storage backend.
type Storage interface {
	// URL returns a client-fetchable locator for the stored object.
	URL(ctx context.Context, key string) (string, error)
	// Exists reports whether the object is present in the backend.
	Exists(ctx context.Context, key string) (bool, error)
}
