package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/frahmantamala/redteam-collab/internal"
	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	userPostgres "github.com/frahmantamala/redteam-collab/internal/user/postgres"
	"github.com/frahmantamala/redteam-collab/pkg/cryptox"
	"github.com/frahmantamala/redteam-collab/pkg/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	seedUsername  string
	seedPassword  string
	seedEmail     string
	seedFirstName string
	seedLastName  string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the bootstrap administrator",
	Long:  `Create an active local administrator so the first login can approve everyone else. Existing usernames are left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seedUsername = strings.TrimSpace(seedUsername)
		if seedUsername == "" || seedPassword == "" {
			return errors.New("--username and --password are required")
		}

		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.Init(cfg.Env, cfg.Observability.Logging.Level)
		log := logger.LoggerWrapper()

		db, gdb, err := openDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer db.Close()

		ctx := cmd.Context()
		if cfg.Database.Driver == "sqlite" {
			if err := autoMigrate(ctx, gdb, log); err != nil {
				return err
			}
		}

		repo := userPostgres.NewUserRepository(gdb)
		if existing, err := repo.GetByUsername(ctx, seedUsername); err == nil {
			log.Info("bootstrap admin already exists", "user_id", existing.ID, "username", seedUsername)
			return nil
		} else if !errors.Is(err, internal.ErrUserNotFound) {
			return fmt.Errorf("lookup %s: %w", seedUsername, err)
		}

		hasher := cryptox.NewScryptHasher(cryptox.ScryptParams{N: cfg.Security.ScryptCost})
		hash, err := hasher.Hash(seedPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		username := seedUsername
		admin := &userdm.User{
			ID:           uuid.NewString(),
			Username:     &username,
			PasswordHash: &hash,
			Email:        seedEmail,
			FirstName:    seedFirstName,
			LastName:     seedLastName,
			Role:         string(coreuser.RoleAdmin),
			Status:       string(coreuser.StatusActive),
			AuthSource:   string(coreuser.SourceLocal),
		}
		if err := repo.Create(ctx, admin); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}

		log.Info("seeded bootstrap admin", "user_id", admin.ID, "username", username)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedUsername, "username", "admin", "admin username")
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "admin password")
	seedCmd.Flags().StringVar(&seedEmail, "email", "", "admin email")
	seedCmd.Flags().StringVar(&seedFirstName, "first-name", "", "admin first name")
	seedCmd.Flags().StringVar(&seedLastName, "last-name", "", "admin last name")
}
