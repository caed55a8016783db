package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"google.golang.org/adk/session"
	sessiondb "google.golang.org/adk/session/database"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/moolen/telcoagent/internal/logging"
)

// NewSessionService returns an in-memory session service, or a SQLite-backed
// one when dbPath is set so conversations survive restarts.
func NewSessionService(dbPath string) (session.Service, error) {
	log := logging.GetLogger("harness")
	if dbPath == "" {
		log.Debug("Using in-memory sessions")
		return session.InMemoryService(), nil
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	svc, err := sessiondb.NewSessionService(
		sqlite.Open(dbPath),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database %q: %w", dbPath, err)
	}
	if err := sessiondb.AutoMigrate(svc); err != nil {
		return nil, fmt.Errorf("failed to migrate session database: %w", err)
	}
	log.Info("Session persistence: %s", dbPath)
	return svc, nil
}
