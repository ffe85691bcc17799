package provider

import (
	"fmt"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/config"
	"github.com/wonny/tickerflow/pkg/httputil"
	"github.com/wonny/tickerflow/pkg/logger"
	"github.com/wonny/tickerflow/pkg/redis"
)

// New builds the provider selected by PROVIDER, wrapped with the redis cache
// ⭐ SSOT: provider 선택은 여기서만
func New(cfg *config.Config, rdb *redis.Client, log *logger.Logger) (contracts.Provider, error) {
	httpClient := httputil.New(cfg.Provider, log)

	var p contracts.Provider
	switch cfg.Provider.Name {
	case "yahoo":
		p = NewYahooProvider(httpClient, cfg.Provider.BaseURL, log)
	case "naver":
		p = NewNaverProvider(httpClient, cfg.Provider.BaseURL, log)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}

	if rdb != nil && rdb.Enabled() {
		p = NewCachedProvider(p, redis.NewCache(rdb, "tickerflow"), cfg.Provider.CacheTTL, log)
	}
	return p, nil
}
