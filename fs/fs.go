// Package appfs embeds the files the binaries need at runtime: SQL migrations and assets.
package appfs

import "embed"

//go:embed migrations/*.sql assets/templates/email/* assets/common-passwords.txt.gz
var FS embed.FS
