// Command bootstrap writes a demo profile for a fixed identity so a fresh
// index has something to show. It always exits 0; failures are only logged.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"selfid/internal/auth"
	"selfid/internal/did"
	"selfid/internal/idx"
	"selfid/internal/idx/setup"
	"selfid/internal/platform/config"
	"selfid/internal/platform/logger"
	"selfid/internal/profile"
	"selfid/pkg/domain"
)

func demoProfile() profile.BasicProfile {
	return profile.BasicProfile{
		Name:             profile.String("Bob Ceramic"),
		Emoji:            profile.String("👻"),
		Description:      profile.String("Curabitur vel aliquet mauris, ac varius dolor. Pellentesque habitant morbi tristique senectus et netus et malesuada fames ac turpis egestas. Vestibulum feugiat massa vel odio molestie posuere. Praesent aliquam velit dui. Vestibulum ante ipsum primis in faucibus orci luctus et ultrices posuere cubilia curae; Curabitur accumsan eros et pulvinar auctor. Nunc sapien lorem, ultricies id mauris a, bibendum accumsan sapien."),
		Background:       profile.String("http://localhost:3000/temp/test-background.jpg"),
		Image:            profile.String("http://localhost:3000/temp/test-avatar.jpg"),
		HomeLocation:     profile.String("New York City"),
		ResidenceCountry: profile.String("US"),
		URL:              profile.String("https://ceramic.network"),
	}
}

func main() {
	log := logger.New(os.Getenv("LOG_LEVEL"))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		return
	}
	// An in-process memory store would vanish on exit; write to the node instead.
	if cfg.Index.Backend == config.BackendMemory {
		cfg.Index.Backend = config.BackendRemote
	}

	seed := os.Getenv("SELFID_BOOTSTRAP_SEED")
	if seed == "" {
		seed = config.DefaultSeed
	}

	id, err := run(ctx, cfg, seed, log)
	if err != nil {
		log.Error("bootstrap failed", "did", id.String(), "error", err)
		return
	}
	log.Info("DID with profile", "did", id.String())
}

// run authenticates with seed and writes the demo profile for its identity.
func run(ctx context.Context, cfg config.Server, seed string, log *slog.Logger) (domain.DID, error) {
	keyring, err := did.NewKeyringFromHex([]string{seed})
	if err != nil {
		return "", fmt.Errorf("invalid bootstrap seed: %w", err)
	}
	provider := auth.NewKeyringProvider(keyring, auth.NewTokenService(cfg.Auth.TokenAudience, cfg.Auth.TokenTTL), log)

	index, err := setup.Build(ctx, cfg, provider, nil, log)
	if err != nil {
		return "", fmt.Errorf("open index: %w", err)
	}
	defer index.Close()

	id, err := provider.Login(ctx)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}

	repo := profile.NewRepository(idx.NewClient(index.Store, provider, log))
	if err := repo.Save(ctx, demoProfile()); err != nil {
		return id, fmt.Errorf("write profile: %w", err)
	}
	return id, nil
}
