package db

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// RunMigrateCommand handles `helm migrate <action>`: up, down, status or
// force <version>.
func RunMigrateCommand(out io.Writer, args []string, dbPath string) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return errors.New("missing migrate action")
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	migrations := MigrationsFS()

	switch args[0] {
	case "up":
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
	case "down":
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		fmt.Fprintln(out, "rolled back one migration")
	case "status":
		version, dirty, err := database.MigrateVersion(migrations)
		if err != nil {
			return err
		}
		latest, err := LatestMigrationVersion(migrations)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "current version: %d\nlatest version:  %d\ndirty:           %t\n", version, latest, dirty)
	case "force":
		if len(args) < 2 {
			return errors.New("usage: helm migrate force <version>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.MigrateForce(migrations, v); err != nil {
			return err
		}
		fmt.Fprintf(out, "forced version %d\n", v)
	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", args[0])
	}
	return nil
}

func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: helm migrate <action>

Actions:
  up                apply all pending migrations
  down              roll back the most recent migration
  status            show the current and latest schema versions
  force <version>   record a version without running it (dirty recovery)
`)
}
