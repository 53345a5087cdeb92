package commands

import (
	"errors"
	"fmt"

	"github.com/wonny/rfqnorm/backend/internal/external/hz"
	"github.com/wonny/rfqnorm/backend/pkg/config"
	"github.com/wonny/rfqnorm/backend/pkg/logger"
	"github.com/wonny/rfqnorm/backend/pkg/redis"
)

// errHZNotConfigured is returned by commands that need the HZ platform
var errHZNotConfigured = errors.New("HZ is not configured (set HZ_ADDRESS, HZ_USERNAME and HZ_PASSWORD)")

// connectHZ builds the HZ client, sharing the redis limiter when redis is enabled.
// The returned redis client must be closed by the caller.
func connectHZ(cfg *config.Config, log *logger.Logger) (*hz.Client, *redis.Client, error) {
	if !cfg.HZ.Enabled() {
		return nil, nil, errHZNotConfigured
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	client, err := hz.NewFromConfig(cfg, rdb, log)
	if err != nil {
		rdb.Close()
		return nil, nil, err
	}
	return client, rdb, nil
}
