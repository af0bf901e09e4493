package db

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrMigrateUsage is returned for a missing or unknown migrate action.
var ErrMigrateUsage = errors.New("usage: autobrake migrate up|down|status|force <version>")

// RunMigrateCommand handles the 'migrate' subcommand against the event
// database at dbPath, writing a human-readable summary to out.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		return ErrMigrateUsage
	}

	// OpenDB, not NewDB: the migrations are what this command manages.
	database, err := OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()
	migrations := Migrations()

	switch args[0] {
	case "up":
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
	case "down":
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
	case "status":
	case "force":
		if len(args) < 2 {
			return ErrMigrateUsage
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number %q: %w", args[1], err)
		}
		if err := database.MigrateForce(migrations, v); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown migrate action %q: %w", args[0], ErrMigrateUsage)
	}

	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(out, "Current version: %d\nDirty: %v\n", version, dirty)
	if dirty {
		fmt.Fprintln(out, "WARNING: a migration failed mid-way; inspect the database, then run: autobrake migrate force <version>")
	}
	return nil
}
