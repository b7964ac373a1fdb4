package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chhz0/superv/core"
	"github.com/chhz0/superv/metrics"
	"github.com/chhz0/superv/router"
	"github.com/chhz0/superv/server"
	"github.com/chhz0/superv/storage"
	"github.com/chhz0/superv/transport"
)

var (
	httpAddr string

	strategy          string
	heartbeatInterval time.Duration
	missedHeartbeats  int
	taskTimeout       time.Duration
	maxRetries        int
	maxQueueSize      int
	assignInterval    time.Duration

	resultStore   string
	redisAddr     string
	redisPassword string
	redisDB       int
	resultTTL     time.Duration
	dbPath        string

	publishEvents bool
)

func main() {
	root := &cobra.Command{
		Use:   "supervd",
		Short: "Supervisor control plane for a distributed worker fleet",
		Long: "supervd accepts task submissions, tracks worker membership via " +
			"heartbeats, routes tasks to eligible workers and exposes the " +
			"JSON control plane.",
		SilenceUsage: true,
		RunE:         run,
	}

	flags := root.Flags()
	flags.StringVar(&httpAddr, "addr", ":8080", "HTTP listen address")
	flags.StringVar(&strategy, "strategy", string(router.LeastLoaded),
		"routing strategy: round-robin, least-loaded, capability-match, random")
	flags.DurationVar(&heartbeatInterval, "heartbeat-interval", 30*time.Second,
		"expected worker heartbeat interval")
	flags.IntVar(&missedHeartbeats, "missed-heartbeats", 3,
		"silent intervals before a worker is marked offline")
	flags.DurationVar(&taskTimeout, "task-timeout", 60*time.Second,
		"default task timeout")
	flags.IntVar(&maxRetries, "max-retries", 2, "default task retry budget")
	flags.IntVar(&maxQueueSize, "max-queue", 1000, "pending queue capacity")
	flags.DurationVar(&assignInterval, "assign-interval", time.Second,
		"assignment tick period")
	flags.StringVar(&resultStore, "result-store", "memory",
		"result store backend: memory, redis, sqlite, bolt")
	flags.StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address")
	flags.StringVar(&redisPassword, "redis-password", "", "redis password")
	flags.IntVar(&redisDB, "redis-db", 0, "redis database")
	flags.DurationVar(&resultTTL, "result-ttl", 24*time.Hour,
		"result retention for the redis store")
	flags.StringVar(&dbPath, "db-path", "superv.db",
		"database file for the sqlite and bolt stores")
	flags.BoolVar(&publishEvents, "publish-events", false,
		"broadcast lifecycle events over redis pub/sub")

	if err := root.Execute(); err != nil {
		log.Printf("supervd: %v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if !router.ValidStrategy(router.Strategy(strategy)) {
		return fmt.Errorf("unknown routing strategy %q", strategy)
	}

	store, err := buildStore()
	if err != nil {
		return fmt.Errorf("result store: %w", err)
	}
	defer store.Close()

	cfg := core.DefaultConfig()
	cfg.RoutingStrategy = router.Strategy(strategy)
	cfg.HeartbeatInterval = heartbeatInterval
	cfg.MissedHeartbeats = missedHeartbeats
	cfg.DefaultTaskTimeout = taskTimeout
	cfg.DefaultMaxRetries = maxRetries
	cfg.MaxQueueSize = maxQueueSize
	cfg.AssignInterval = assignInterval

	observers := core.MultiEvents{metrics.NewObserver()}

	var pubsub *transport.RedisPubSub
	if publishEvents {
		pubsub, err = transport.NewRedisPubSub(redisAddr, redisPassword, redisDB)
		if err != nil {
			return fmt.Errorf("event transport: %w", err)
		}
		defer pubsub.Close()
		observers = append(observers, pubsub)
	}

	orch := core.New(cfg, store, observers)
	metrics.RegisterQueueGauges(
		func() float64 { return float64(orch.Stats().Tasks.Queued) },
		func() float64 { return float64(orch.Stats().Tasks.Active) },
	)

	srv := server.New(server.Config{HTTPAddr: httpAddr}, orch, pubsub)

	banner := color.New(color.FgCyan, color.Bold)
	banner.Fprintf(os.Stderr, "supervd %s strategy=%s store=%s\n",
		httpAddr, strategy, resultStore)

	return srv.Start()
}

func buildStore() (storage.ResultStore, error) {
	switch resultStore {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "redis":
		return storage.NewRedisStore(redisAddr, redisPassword, redisDB, resultTTL)
	case "sqlite":
		return storage.NewSQLiteStore(dbPath)
	case "bolt":
		return storage.NewBoltStore(dbPath)
	default:
		return nil, fmt.Errorf("unknown backend %q", resultStore)
	}
}
