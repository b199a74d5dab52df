package migrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/cmd/setup"
	"github.com/mpapenbr/zenride/pkg/config"
	"github.com/mpapenbr/zenride/pkg/db/migrate"
	"github.com/mpapenbr/zenride/pkg/utils"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "creates or updates the tables of the postgres storage backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup.Logger(); err != nil {
				return err
			}
			return startMigration()
		},
	}
	return cmd
}

func startMigration() error {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	postgresAddr := utils.ExtractFromDBURL(config.DB)
	if postgresAddr == "" {
		return fmt.Errorf("cannot extract database address from %q", config.DB)
	}
	if err = utils.WaitForTCP(postgresAddr, timeout); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	log.Info("Migrating database", log.String("addr", postgresAddr))
	return migrate.MigrateDB(prepareURLForDB(config.DB))
}

func prepareURLForDB(url string) string {
	options := "sslmode=disable"
	if strings.Contains(url, "sslmode=") {
		return url
	}
	if strings.Contains(url, "?") {
		return fmt.Sprintf("%s&%s", url, options)
	}
	return fmt.Sprintf("%s?%s", url, options)
}
