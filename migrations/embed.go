// Package migrations embeds the launch journal schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/sim8085-launcher/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
