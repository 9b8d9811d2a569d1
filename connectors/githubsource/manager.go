package githubsource

import (
	"sync"

	"github.com/R3E-Network/syncengine/infrastructure/metrics"
	"github.com/R3E-Network/syncengine/internal/synctoken"
	"github.com/R3E-Network/syncengine/pkg/config"
)

var (
	managerOnce sync.Once
	manager     *synctoken.Manager
)

// defaultManager lazily builds the one token manager every Source instance
// shares: the underlying rate limiter and circuit breaker are meant to track
// GitHub's API limit process-wide, not per-repository.
func defaultManager() *synctoken.Manager {
	managerOnce.Do(func() {
		manager = synctoken.NewManager(config.TokenConfig{
			RefreshSkewSeconds: 60,
			HTTPRatePerSecond:  5,
			HTTPBurst:          10,
			HTTPMaxRetries:     3,
		}, synctoken.NewMemoryCache(), nil)
		manager.Metrics = metrics.Global()
	})
	return manager
}
