// Package common provides shared dependency construction for commands.
package common

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/storesync/internal/config"
	"github.com/jonesrussell/storesync/internal/database"
	"github.com/jonesrussell/storesync/internal/logger"
)

var (
	cfgFile *string
	debug   *bool
)

// Bind registers the root command's persistent flag targets so that
// NewCommandDeps can read them after flag parsing.
func Bind(configFlag *string, debugFlag *bool) {
	cfgFile = configFlag
	debug = debugFlag
}

// CommandDeps holds the dependencies every command starts from.
type CommandDeps struct {
	Config *config.Config
	Logger logger.Interface
}

// NewCommandDeps loads configuration and constructs the logger.
func NewCommandDeps() (*CommandDeps, error) {
	path := ""
	if cfgFile != nil {
		path = *cfgFile
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if debug != nil && *debug {
		cfg.Log.Level = logger.DebugLevel
		cfg.Log.Development = true
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &CommandDeps{
		Config: cfg,
		Logger: log,
	}, nil
}

// OpenDatabase opens the postgres connection from the loaded configuration.
func (d *CommandDeps) OpenDatabase() (*sqlx.DB, error) {
	db, err := database.NewPostgresConnection(database.Config{
		Host:     d.Config.Database.Host,
		Port:     d.Config.Database.Port,
		User:     d.Config.Database.User,
		Password: d.Config.Database.Password,
		DBName:   d.Config.Database.DBName,
		SSLMode:  d.Config.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
