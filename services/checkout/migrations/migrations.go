// Package migrations содержит SQL-миграции checkout (goose), встроенные в бинарник
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
