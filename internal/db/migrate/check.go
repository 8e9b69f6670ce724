package dbmigrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// EnsureCurrent verifies the schema is up to date before the pipeline
// starts. With autoMigrate set it applies pending migrations; otherwise it
// refuses to start and names them. The migrations directory comes from the
// caller's configuration; there is no baked-in default here.
func EnsureCurrent(ctx context.Context, bunDB *bun.DB, dir string, autoMigrate bool) error {
	if dir == "" {
		return errors.New("migrations directory is not configured")
	}

	manager, err := NewManager(bunDB, dir)
	if err != nil {
		return err
	}

	if err := manager.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		return fmt.Errorf("fetch migration status: %w", err)
	}

	pending := pendingNames(status)
	if len(pending) == 0 {
		return nil
	}

	if !autoMigrate {
		return fmt.Errorf("schema is behind by %d migration(s): %s. Run 'dbctl migrate up' to apply them",
			len(pending), strings.Join(pending, ", "))
	}

	if err := manager.MigrateUp(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

func pendingNames(status migrate.MigrationSlice) []string {
	var pending []string
	for _, mig := range status {
		if !mig.IsApplied() {
			pending = append(pending, fmt.Sprintf("%s_%s", mig.Name, mig.Comment))
		}
	}
	return pending
}
