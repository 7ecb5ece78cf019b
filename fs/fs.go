// Package fs exposes embedded static assets: goose migrations and email templates.
package fs

import "embed"

//go:embed migrations all:templates
var FS embed.FS
