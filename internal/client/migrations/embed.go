// Package migrations embeds the goose migrations for the local cache schema.
// Migrations are additive-only: a version bump may create collections and
// indexes but must never drop existing ones.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
