package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/croplabs/farmd/internal/database/postgres"
	"github.com/croplabs/farmd/internal/repository"
)

// Repositories holds all repository implementations used by the application.
// This provides a centralized location for repository initialization and
// makes dependency injection clearer.
type Repositories struct {
	Farm       repository.Farm
	Settlement repository.Settlement
}

// InitializeRepositories creates all repository implementations
func InitializeRepositories(dbPool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Farm:       postgres.NewFarmRepository(dbPool),
		Settlement: postgres.NewSettlementRepository(dbPool),
	}
}
