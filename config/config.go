package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Fleet      FleetConfig      `yaml:"fleet"`
	Vehicle    VehicleConfig    `yaml:"vehicle"`
	Command    CommandConfig    `yaml:"command"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	RobotState RobotStateConfig `yaml:"robot_state"`
	Web        WebConfig        `yaml:"web"`
	Messaging  MessagingConfig  `yaml:"messaging"`
	Log        LogConfig        `yaml:"log"`
}

type FleetConfig struct {
	Name         string `yaml:"name"`
	NavGraphFile string `yaml:"nav_graph_file"`
	// Schedule enables publishing docking routes to the traffic schedule.
	Schedule bool `yaml:"schedule"`
}

type VehicleConfig struct {
	LinearVelocity  float64 `yaml:"linear_velocity"`
	AngularVelocity float64 `yaml:"angular_velocity"`
}

type CommandConfig struct {
	ResendInterval   time.Duration `yaml:"resend_interval"`
	ScheduleRefresh  time.Duration `yaml:"schedule_refresh"`
	WaypointSnap     float64       `yaml:"waypoint_snap"`
	LaneSnap         float64       `yaml:"lane_snap"`
	ArrivalTolerance float64       `yaml:"arrival_tolerance"`
	// DockRule is "first" (lowest lane index wins) or "unique".
	DockRule string `yaml:"dock_rule"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RobotStateConfig struct {
	// PersistInterval throttles SQL snapshots per robot; Redis is written on
	// every update.
	PersistInterval time.Duration `yaml:"persist_interval"`
}

type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "mqtt" or "kafka"
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	FleetStateTopic     string        `yaml:"fleet_state_topic"`
	PathRequestTopic    string        `yaml:"path_request_topic"`
	ModeRequestTopic    string        `yaml:"mode_request_topic"`
	LaneRequestTopic    string        `yaml:"lane_request_topic"`
	ClosedLanesTopic    string        `yaml:"closed_lanes_topic"`
	EventsTopic         string        `yaml:"events_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	NodeID              string        `yaml:"node_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type LogConfig struct {
	// File enables rotation into the named file; empty logs to stderr.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func Defaults() *Config {
	return &Config{
		Fleet: FleetConfig{
			Name:         "",
			NavGraphFile: "",
			Schedule:     true,
		},
		Vehicle: VehicleConfig{
			LinearVelocity:  0.7,
			AngularVelocity: 0.3,
		},
		Command: CommandConfig{
			ResendInterval:   200 * time.Millisecond,
			ScheduleRefresh:  time.Second,
			WaypointSnap:     0.5,
			LaneSnap:         1.0,
			ArrivalTolerance: 2.0,
			DockRule:         "first",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "fleetadapter.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "fleetadapter",
				User:     "fleetadapter",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		RobotState: RobotStateConfig{
			PersistInterval: 5 * time.Second,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8085,
			SessionSecret: "change-me-in-production",
		},
		Messaging: MessagingConfig{
			Backend: "mqtt",
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "fleetadapter",
			},
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "fleetadapter",
			},
			FleetStateTopic:     "fleet/state",
			PathRequestTopic:    "fleet/path_request",
			ModeRequestTopic:    "fleet/mode_request",
			LaneRequestTopic:    "fleet/lane_request",
			ClosedLanesTopic:    "fleet/closed_lanes",
			EventsTopic:         "fleet/events",
			OutboxDrainInterval: 5 * time.Second,
			NodeID:              "fleetadapter",
		},
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the adapter cannot start without.
func (c *Config) Validate() error {
	if c.Fleet.Name == "" {
		return fmt.Errorf("fleet.name is required")
	}
	if c.Fleet.NavGraphFile == "" {
		return fmt.Errorf("fleet.nav_graph_file is required")
	}
	if c.Vehicle.LinearVelocity <= 0 || c.Vehicle.AngularVelocity <= 0 {
		return fmt.Errorf("vehicle velocities must be positive")
	}
	switch c.Messaging.Backend {
	case "mqtt", "kafka":
	default:
		return fmt.Errorf("unknown messaging backend %q", c.Messaging.Backend)
	}
	switch c.Command.DockRule {
	case "", "first", "unique":
	default:
		return fmt.Errorf("command.dock_rule must be first or unique, got %q", c.Command.DockRule)
	}
	return nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnv overrides settings from FLEET_* environment variables.
func (c *Config) ApplyEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()
	setString(&c.Fleet.Name, "FLEET_NAME")
	setString(&c.Fleet.NavGraphFile, "FLEET_NAV_GRAPH_FILE")
	setString(&c.Database.Driver, "FLEET_DB_DRIVER")
	setString(&c.Database.SQLite.Path, "FLEET_SQLITE_PATH")
	setString(&c.Database.Postgres.Host, "FLEET_POSTGRES_HOST")
	setString(&c.Database.Postgres.Password, "FLEET_POSTGRES_PASSWORD")
	setString(&c.Redis.Address, "FLEET_REDIS_ADDRESS")
	setString(&c.Redis.Password, "FLEET_REDIS_PASSWORD")
	setString(&c.Web.SessionSecret, "FLEET_SESSION_SECRET")
	setString(&c.Messaging.Backend, "FLEET_MESSAGING_BACKEND")
	setString(&c.Messaging.MQTT.Broker, "FLEET_MQTT_BROKER")
	setInt(&c.Messaging.MQTT.Port, "FLEET_MQTT_PORT")
	setInt(&c.Web.Port, "FLEET_WEB_PORT")
	setString(&c.Log.File, "FLEET_LOG_FILE")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()   { c.mu.Lock() }
func (c *Config) Unlock() { c.mu.Unlock() }
