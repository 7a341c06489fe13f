package migrations

import "embed"

// Migrations holds the golang-migrate *.up.sql / *.down.sql files.
//
//go:embed *.sql
var Migrations embed.FS
