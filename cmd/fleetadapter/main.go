package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Tractonomy/free-fleet-ros2/config"
	"github.com/Tractonomy/free-fleet-ros2/engine"
	"github.com/Tractonomy/free-fleet-ros2/messaging"
	"github.com/Tractonomy/free-fleet-ros2/navgraph"
	"github.com/Tractonomy/free-fleet-ros2/protocol"
	"github.com/Tractonomy/free-fleet-ros2/robotstate"
	"github.com/Tractonomy/free-fleet-ros2/store"
	"github.com/Tractonomy/free-fleet-ros2/www"
)

var Version = "dev"

func main() {
	flagSet := pflag.NewFlagSet("fleetadapter", pflag.ExitOnError)
	showVersion := flagSet.Bool("version", false, "print version and exit")
	configPath := flagSet.StringP("config", "c", "fleetadapter.yaml", "path to config file")
	envFile := flagSet.String("env-file", ".env", "optional KEY=VALUE file applied before FLEET_* overrides")
	flagSet.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println("fleetadapter", Version)
		return
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatalf("load env file: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.Log.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
		}
		defer rotator.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	}

	// Navigation graph
	graph, err := navgraph.LoadFile(cfg.Fleet.NavGraphFile)
	if err != nil {
		log.Fatalf("load nav graph: %v", err)
	}
	log.Printf("fleetadapter: nav graph %s loaded: %d waypoints, %d lanes, fingerprint %s",
		cfg.Fleet.NavGraphFile, graph.WaypointCount(), graph.LaneCount(), graph.Fingerprint())
	log.Printf("fleetadapter: named waypoints %v", graph.Keys())

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("fleetadapter: database open (%s)", cfg.Database.Driver)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	var cache robotstate.Cache
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("fleetadapter: redis not available (%v), running without cache", err)
	} else {
		log.Printf("fleetadapter: redis connected (%s)", cfg.Redis.Address)
		cache = robotstate.NewRedisStore(redisClient, cfg.Fleet.Name)
	}
	cancel()
	defer redisClient.Close()

	robots := robotstate.NewManager(db, cache, cfg.Fleet.Name, cfg.RobotState.PersistInterval)

	// Messaging client
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("fleetadapter: messaging connect failed (%v)", err)
	} else {
		log.Printf("fleetadapter: messaging connected (%s)", cfg.Messaging.Backend)
	}
	defer msgClient.Close()

	publisher := messaging.NewCommandPublisher(msgClient, db, &cfg.Messaging)

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		Graph:      graph,
		DB:         db,
		RobotState: robots,
		MsgClient:  msgClient,
		Notifier:   publisher,
	})
	eng.Start()
	defer eng.Stop()

	// Protocol ingestor (fleet state and lane requests)
	ingestor := protocol.NewIngestor(messaging.NewFleetHandler(eng, eng), messaging.AdapterFilter(cfg.Messaging.NodeID))
	consumer := messaging.NewConsumer(msgClient, ingestor, cfg.Messaging.FleetStateTopic, cfg.Messaging.LaneRequestTopic)
	if err := consumer.Start(); err != nil {
		log.Printf("fleetadapter: protocol ingestor subscribe failed: %v", err)
	} else {
		log.Printf("fleetadapter: protocol ingestor listening on %s, %s",
			cfg.Messaging.FleetStateTopic, cfg.Messaging.LaneRequestTopic)
	}

	// Outbox drainer (notifications that failed to publish)
	drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
	drainer.Start()
	defer drainer.Stop()

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("fleetadapter: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("fleetadapter: fleet [%s] ready", cfg.Fleet.Name)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("fleetadapter: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("fleetadapter: stopped")
}
