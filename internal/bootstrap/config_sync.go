package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/croplabs/farmd/internal/config"
	"github.com/croplabs/farmd/internal/domain"
	"github.com/croplabs/farmd/internal/registry"
	"github.com/croplabs/farmd/internal/repository"
)

// SyncFarmConfig loads and validates the farm definition JSON and creates
// the farm row if it does not exist yet. The definition is authoritative
// only at creation: a farm that already exists in the database keeps its
// persisted state, so a config edit cannot silently rewrite a live
// emission schedule.
// Returns the farm as persisted.
func SyncFarmConfig(ctx context.Context, cfg *config.Config, farmRepo repository.Farm) (*domain.Farm, error) {
	slog.Info(LogMsgSyncingFarm, "path", cfg.FarmConfigPath)

	definition, err := config.LoadFarmDefinition(cfg.FarmConfigPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedLoadFarm, err)
	}

	farm, err := definition.ToFarm()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedLoadFarm, err)
	}

	persisted, err := farmRepo.CreateFarm(ctx, farm)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedCreateFarm, err)
	}

	if persisted.CreatedAt.Equal(persisted.UpdatedAt) {
		slog.Info(LogMsgFarmCreated,
			"farm_id", persisted.ID,
			"mode", string(persisted.Mode),
			"reward_tokens", len(persisted.RewardTokens))
	} else {
		slog.Info(LogMsgFarmExists, "farm_id", persisted.ID)
	}

	return persisted, nil
}

// BuildRegistryClients wires an HTTP registry client for every token and
// collection the farm settles against. Reward tokens and the fungible stake
// token go to the token registry; stake and boost collections go to the
// item registry.
func BuildRegistryClients(cfg *config.Config, farm *domain.Farm) *registry.Clients {
	clients := &registry.Clients{
		Tokens:      make(map[string]registry.TokenClient),
		Collections: make(map[string]registry.ItemClient),
	}

	for _, rt := range farm.RewardTokens {
		clients.Tokens[rt.Symbol] = registry.NewHTTPClient(cfg.TokenRegistryURL, cfg.RegistryAPIKey, cfg.RegistryTimeout)
	}
	if farm.StakeToken != "" {
		clients.Tokens[farm.StakeToken] = registry.NewHTTPClient(cfg.TokenRegistryURL, cfg.RegistryAPIKey, cfg.RegistryTimeout)
	}
	for _, c := range farm.Collections {
		clients.Collections[c.Collection] = registry.NewHTTPClient(cfg.ItemRegistryURL, cfg.RegistryAPIKey, cfg.RegistryTimeout)
	}
	for _, c := range farm.BoostCollections {
		clients.Collections[c.Collection] = registry.NewHTTPClient(cfg.ItemRegistryURL, cfg.RegistryAPIKey, cfg.RegistryTimeout)
	}

	slog.Info(LogMsgRegistryWiring,
		"tokens", len(clients.Tokens),
		"collections", len(clients.Collections))

	return clients
}
