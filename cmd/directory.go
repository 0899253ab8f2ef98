package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/frahmantamala/redteam-collab/internal/auth"
	authPostgres "github.com/frahmantamala/redteam-collab/internal/auth/postgres"
	"github.com/frahmantamala/redteam-collab/pkg/logger"
	"github.com/spf13/cobra"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Directory (LDAP/AD) tools",
}

var directoryTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Check directory connectivity and the service account bind",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.Init(cfg.Env, cfg.Observability.Logging.Level)
		log := logger.LoggerWrapper()

		if !cfg.Directory.Enabled {
			return errors.New("directory is disabled; set directory.enabled or LDAP_ENABLED")
		}

		db, gdb, err := openDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer db.Close()

		dialer := auth.NewLDAPDialer(cfg.Directory.URL, cfg.Directory.Timeout)
		strategy := auth.NewDirectoryStrategy(cfg.Directory, dialer, authPostgres.NewRepository(gdb), log)

		result := strategy.Test(cmd.Context())
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		if !result.Connected {
			return errors.New("directory test failed")
		}
		return nil
	},
}

func init() {
	directoryCmd.AddCommand(directoryTestCmd)
}
