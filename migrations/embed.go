// Package migrations embeds the SQL migrations of the forum, one
// directory per database driver.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
