package sharepointsource

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

// defaultManager lazily builds the token manager every Source instance
// shares: Graph's throttling is tracked per app registration, not per site.
func defaultManager() *synctoken.Manager {
	managerOnce.Do(func() {
		manager = synctoken.NewManager(config.TokenConfig{
			RefreshSkewSeconds: 300,
			HTTPRatePerSecond:  10,
			HTTPBurst:          20,
			HTTPMaxRetries:     4,
		}, synctoken.NewMemoryCache(), nil)
		manager.Metrics = metrics.Global()
	})
	return manager
}
