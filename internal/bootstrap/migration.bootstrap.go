package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"path"

	"github.com/guregu/null/v6"
	"github.com/krobus00/bracket-bot/internal/config"
	"github.com/krobus00/bracket-bot/internal/constant"
	"github.com/krobus00/bracket-bot/internal/util"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

func StartMigrate(cmd *cobra.Command, args []string) {
	databaseName, _ := cmd.Flags().GetString("databaseName")
	actionType, _ := cmd.Flags().GetString("action")
	migrationName, _ := cmd.Flags().GetString("name")
	version, _ := cmd.Flags().GetInt64("version")

	if databaseName == "" {
		databaseName = constant.BracketJournalDatabase
	}

	dbConfig, ok := config.Env.Database[databaseName]
	if !ok || dbConfig.DSN == "" {
		util.ContinueOrFatalf(errors.New("database is not configured"), "cannot migrate %s", databaseName)
	}

	db, err := sql.Open("postgres", dbConfig.DSN)
	util.ContinueOrFatal(err)
	defer db.Close()

	util.ContinueOrFatal(goose.SetDialect("postgres"))

	migrationDir := path.Join("migration/postgresql", databaseName)
	err = runMigration(db, migrationDir, actionType, migrationName, null.IntFrom(version))
	util.ContinueOrFatalf(err, "migration %s on %s failed", actionType, databaseName)
}

func runMigration(db *sql.DB, dir, action, name string, version null.Int) error {
	switch action {
	case "create":
		return goose.Create(db, dir, name, "sql")
	case "up":
		return goose.Up(db, dir, goose.WithAllowMissing())
	case "up-by-one":
		return goose.UpByOne(db, dir, goose.WithAllowMissing())
	case "up-to":
		return goose.UpTo(db, dir, version.Int64, goose.WithAllowMissing())
	case "down":
		return goose.Down(db, dir, goose.WithAllowMissing())
	case "down-to":
		return goose.DownTo(db, dir, version.Int64, goose.WithAllowMissing())
	case "status":
		return goose.Status(db, dir)
	case "reset":
		if err := goose.Reset(db, dir, goose.WithAllowMissing()); err != nil {
			return err
		}
		return goose.Up(db, dir, goose.WithAllowMissing())
	default:
		return fmt.Errorf("invalid migration action %q", action)
	}
}
