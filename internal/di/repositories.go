// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/modules/assessment"
	"github.com/aristath/bastion/internal/modules/history"
	"github.com/aristath/bastion/internal/modules/portfolio"
	"github.com/aristath/bastion/internal/modules/settings"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Settings repository (needs configDB)
	container.SettingsRepo = settings.NewRepository(
		container.ConfigDB.Conn(),
		log,
	)

	// Asset profile repository (needs configDB)
	container.ProfileRepo = portfolio.NewProfileRepository(
		container.ConfigDB.Conn(),
		log,
	)

	// Snapshot repository (needs historyDB, snapshots live next to the bars)
	container.SnapshotRepo = portfolio.NewSnapshotRepository(
		container.HistoryDB.Conn(),
		log,
	)

	// History repository uses the dedicated mattn handle for bar storage
	container.HistoryRepo = history.NewRepository(
		container.HistoryBarsConn,
		log,
	)

	// Assessment repository (needs assessmentsDB)
	container.AssessmentRepo = assessment.NewRepository(
		container.AssessmentsDB.Conn(),
		log,
	)

	log.Info().Msg("All repositories initialized")

	return nil
}
