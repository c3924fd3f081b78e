// Package schema embeds the goose migrations so the server binary can apply
// them without the source tree on disk.
package schema

import "embed"

//go:embed *.sql
var FS embed.FS
