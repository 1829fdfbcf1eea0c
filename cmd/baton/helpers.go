package main

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/batonlabs/baton"
	"github.com/batonlabs/baton/internal/logging"
	"github.com/batonlabs/baton/pkg/adapters/memory"
	"github.com/batonlabs/baton/pkg/adapters/redis"
	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/persistence/middleware"
	"github.com/batonlabs/baton/pkg/ports"
	"github.com/batonlabs/baton/pkg/registry"
	"github.com/batonlabs/baton/pkg/session"
)

func getLogger(cmd *cobra.Command) *slog.Logger {
	levelStr, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}
	return logging.New(level)
}

// EnvStateKey holds a base64-encoded 32-byte AES key. When set, session
// state is encrypted at rest.
const EnvStateKey = "BATON_STATE_KEY"

// getStore selects the persistence backend from the --redis flag.
// The returned cleanup closes the backend connection when there is one.
func getStore(cmd *cobra.Command) (ports.StateStore, ports.DistributedLocker, func(), error) {
	var store ports.StateStore
	var locker ports.DistributedLocker
	cleanup := func() {}

	addr, _ := cmd.Flags().GetString("redis")
	if addr == "" {
		store = memory.NewStore()
	} else {
		client := goredis.NewClient(&goredis.Options{Addr: addr})
		store = redis.NewFromClient(client)
		locker = redis.NewLocker(client, "baton:lock:")
		cleanup = func() { _ = client.Close() }
	}

	if encoded := os.Getenv(EnvStateKey); encoded != "" {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(key) != 32 {
			cleanup()
			return nil, nil, nil, fmt.Errorf("%s must be a base64-encoded 32-byte key", EnvStateKey)
		}
		store = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(store)
	}

	return store, locker, cleanup, nil
}

// getSessionManager wires the store (and distributed locker, when Redis
// backs the sessions) into a session manager.
func getSessionManager(cmd *cobra.Command, logger *slog.Logger) (*session.Manager, func(), error) {
	store, locker, cleanup, err := getStore(cmd)
	if err != nil {
		return nil, nil, err
	}

	opts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		opts = append(opts, session.WithLocker(locker))
	}
	return session.NewManager(store, opts...), cleanup, nil
}

// loadOrchestrator loads the flock file and assembles the engine.
func loadOrchestrator(cmd *cobra.Command, opts ...baton.Option) (*baton.Orchestrator, *config.Components, error) {
	path, _ := cmd.Flags().GetString("flock")

	file, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	components, err := file.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid flock %q: %w", path, err)
	}

	opts = append(opts,
		baton.WithLogger(getLogger(cmd)),
		baton.WithToolExecutor(registry.NewWithBuiltins()),
	)
	orch, err := baton.NewFromComponents(components, nil, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid flock %q: %w", path, err)
	}
	return orch, components, nil
}
