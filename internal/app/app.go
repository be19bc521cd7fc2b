package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"groupfeed/internal/assetprice"
	"groupfeed/internal/cache"
	"groupfeed/internal/config"
	"groupfeed/internal/crossbar"
	"groupfeed/internal/ledger"
	"groupfeed/internal/logging"
	"groupfeed/internal/oracle"
	"groupfeed/internal/scheduler"
	"groupfeed/internal/service"
	"groupfeed/internal/stakepool"
	"groupfeed/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newLedgerClient() *ledger.Client {
	return ledger.NewClient(ledger.Options{
		RPCURL:  a.Config.Ledger.RPCURL,
		Timeout: a.Config.Ledger.RequestTimeout,
	}, a.Logger)
}

func (a *App) newStaleFeedResolver() *crossbar.Resolver {
	primary := crossbar.NewClient(crossbar.Options{
		BaseURL: a.Config.Crossbar.BaseURL,
		Timeout: a.Config.Crossbar.RequestTimeout,
	}, a.Logger)

	var fallback crossbar.Simulator
	if a.Config.Crossbar.Fallback.BaseURL != "" {
		fallback = crossbar.NewClient(crossbar.Options{
			BaseURL:  a.Config.Crossbar.Fallback.BaseURL,
			Username: a.Config.Crossbar.Fallback.Username,
			Bearer:   a.Config.Crossbar.Fallback.Bearer,
			Timeout:  a.Config.Crossbar.RequestTimeout,
		}, a.Logger)
	}

	var assets crossbar.AssetPriceFetcher
	if a.Config.AssetPrice.BaseURL != "" {
		assets = assetprice.NewClient(assetprice.Options{
			BaseURL:   a.Config.AssetPrice.BaseURL,
			Timeout:   a.Config.AssetPrice.RequestTimeout,
			UserAgent: a.Config.AssetPrice.UserAgent,
		}, a.Logger)
	}

	return crossbar.NewResolver(primary, fallback, assets, a.Config.AssetPrice.FeedOverrides, a.Logger)
}

func (a *App) newStakedAdjuster(reader ledger.AccountReader) *stakepool.Adjuster {
	metadata := stakepool.NewHTTPMetadataLoader(stakepool.HTTPMetadataOptions{
		URL:     a.Config.StakePools.MetadataURL,
		Timeout: a.Config.StakePools.RequestTimeout,
	}, a.Logger)
	return stakepool.NewAdjuster(metadata, reader, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) openCache() (*cache.RedisCache, func(), error) {
	if a.Config.Cache.RedisURL == "" {
		return nil, nil, nil
	}
	c, err := cache.NewRedisCache(a.Config.Cache.RedisURL, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		_ = c.Close()
	}
	return c, closer, nil
}

// newService wires the full pipeline. The returned cleanup releases store
// and cache resources.
func (a *App) newService(ctx context.Context) (*service.Service, *storage.Store, *cache.RedisCache, func(), error) {
	program, err := a.Config.Ledger.Program()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	redisCache, closeCache, err := a.openCache()
	if err != nil {
		if closeStore != nil {
			closeStore()
		}
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		if closeCache != nil {
			closeCache()
		}
		if closeStore != nil {
			closeStore()
		}
	}

	client := a.newLedgerClient()

	var runs storage.RefreshRunStore
	if store != nil {
		runs = store
	}
	var publisher cache.Publisher
	if redisCache != nil {
		publisher = redisCache
	}

	svc := service.New(service.Options{
		Program:          program,
		FeedMapExclusion: oracle.Exclusion(a.Config.FeedMap.ExcludeSubstrings),
	}, client, client, a.newStaleFeedResolver(), a.newStakedAdjuster(client), publisher, runs, a.Logger)

	return svc, store, redisCache, cleanup, nil
}

func (a *App) resolveGroup(override string) (solana.PublicKey, error) {
	raw := override
	if raw == "" {
		raw = a.Config.Ledger.GroupAddress
	}
	if raw == "" {
		return solana.PublicKey{}, errors.New("group address required: set ledger.group_address or pass --group")
	}
	return solana.PublicKeyFromBase58(raw)
}

func parseAllowlist(addresses []string) ([]solana.PublicKey, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	out := make([]solana.PublicKey, 0, len(addresses))
	for _, raw := range addresses {
		pk, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bank address %q: %w", raw, err)
		}
		out = append(out, pk)
	}
	return out, nil
}

// Run executes the long-running refresh loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	group, err := a.resolveGroup("")
	if err != nil {
		return err
	}

	svc, store, redisCache, cleanup, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; run journal disabled")
	}
	if redisCache == nil {
		a.Logger.Warn().Msg("cache.redis_url not configured; snapshots will not be published")
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Refresh.Interval,
		AlignToStart: a.Config.Refresh.AlignToBucket,
		StartupDelay: a.Config.Refresh.StartupDelay,
	}, a.Logger)

	lockKey := a.Config.Refresh.AdvisoryLockKey
	logger := logging.ForGroup(a.Logger, group.String())

	logger.Info().Dur("interval", a.Config.Refresh.Interval).Msg("starting refresh loop")
	err = sched.Run(ctx, func(ctx context.Context, tick time.Time) error {
		if store != nil && lockKey != 0 {
			unlock, acquired, lockErr := store.TryAdvisoryLock(ctx, lockKey)
			if lockErr != nil {
				return fmt.Errorf("acquire advisory lock: %w", lockErr)
			}
			if !acquired {
				logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
				return nil
			}
			defer unlock()
		}

		_, refreshErr := svc.RefreshGroup(ctx, group, nil)
		return refreshErr
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("refresh loop terminated with error")
		return err
	}

	logger.Info().Msg("refresh loop stopped")
	return nil
}

// RefreshOptions configure a one-shot refresh.
type RefreshOptions struct {
	Group     string
	Allowlist []string
}

// RefreshOnce runs a single refresh cycle.
func (a *App) RefreshOnce(ctx context.Context, opts RefreshOptions) error {
	group, err := a.resolveGroup(opts.Group)
	if err != nil {
		return err
	}
	allowlist, err := parseAllowlist(opts.Allowlist)
	if err != nil {
		return err
	}

	svc, _, _, cleanup, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, err := svc.RefreshGroup(ctx, group, allowlist)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("group", group.String()).
		Int("banks", len(snap.Banks)).
		Msg("refresh complete")
	return nil
}
