package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/oncetrange/memcard/internal/cards"
	"github.com/oncetrange/memcard/internal/config"
	"github.com/oncetrange/memcard/internal/database"
	"github.com/oncetrange/memcard/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "memcard",
		Short: "Spaced-repetition flashcards in the terminal",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	setupFlags(rootCmd)

	rootCmd.AddCommand(
		newAddCommand(),
		newEditCommand(),
		newDeleteCommand(),
		newListCommand(),
		newImportCommand(),
		newReviewCommand(),
		newSyncCommand(),
	)
	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "Optional KEY=VALUE file loaded into the environment")
	flags.String("store-path", defaults.GetString("store.path"), "SQLite card store path")
	flags.String("account", defaults.GetString("store.account"), "Local account whose cards are used")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("remote-url", "", "Base URL of the sync backend")
	flags.String("remote-username", "", "Sync backend username")
	flags.String("remote-password", "", "Sync backend password")
	flags.Int("batch-limit", defaults.GetInt("review.batch_limit"), "Maximum cards per review session")
	flags.Int("minimum-due", defaults.GetInt("review.minimum_due"), "Minimum due cards needed to start a session")

	bindFlag(cmd, "store.path", "store-path")
	bindFlag(cmd, "store.account", "account")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "remote.url", "remote-url")
	bindFlag(cmd, "remote.username", "remote-username")
	bindFlag(cmd, "remote.password", "remote-password")
	bindFlag(cmd, "review.batch_limit", "batch-limit")
	bindFlag(cmd, "review.minimum_due", "minimum-due")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// workspace is the opened local card store of one account.
type workspace struct {
	config config.ClientConfig
	logger *zap.Logger
	db     *gorm.DB
	store  *cards.Store
}

func openWorkspace(ctx context.Context) (*workspace, error) {
	clientConfig, err := config.LoadClient(viper.GetViper())
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewConsoleLogger(clientConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(clientConfig.StorePath, logger, database.CardSchema...)
	if err != nil {
		return nil, err
	}
	repository, err := cards.NewRepository(cards.RepositoryConfig{Database: db, Logger: logger})
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	store, err := cards.NewStore(cards.StoreConfig{
		Persistence: repository.ForAccount(clientConfig.Account),
		IDProvider:  cards.NewUUIDProvider(),
		Logger:      logger,
	})
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	if err := store.Load(ctx); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	return &workspace{config: clientConfig, logger: logger, db: db, store: store}, nil
}

// Close retries any pending write before releasing the database.
func (w *workspace) Close(ctx context.Context) error {
	var flushErr error
	if w.store.Dirty() {
		flushErr = w.store.Flush(ctx)
	}
	closeErr := database.Close(w.db)
	_ = w.logger.Sync()
	return errors.Join(flushErr, closeErr)
}

// withWorkspace opens the store, runs fn and closes the store again.
func withWorkspace(cmd *cobra.Command, fn func(ctx context.Context, w *workspace) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, w.Close(ctx))
	}()
	return fn(ctx, w)
}
