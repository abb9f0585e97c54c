package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Full migration runs need a live database; these cover the argument
// handling around it.
func TestRunMigrations_InputValidation(t *testing.T) {
	t.Run("EmptyDatabaseURL", func(t *testing.T) {
		err := RunMigrations("", "./migrations/postgres")
		assert.EqualError(t, err, "database URL cannot be empty")
	})

	t.Run("EmptyMigrationsPath", func(t *testing.T) {
		err := RunMigrations("postgres://localhost/collectline", "")
		assert.EqualError(t, err, "migrations path cannot be empty")
	})

	t.Run("UnreadableSource", func(t *testing.T) {
		err := RunMigrations("postgres://localhost/collectline", "file:///nonexistent/migrations")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open migration source")
	})
}
