// Package migrations содержит SQL-миграции хранилища уведомлений (goose)
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
