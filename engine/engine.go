package engine

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tractonomy/free-fleet-ros2/command"
	"github.com/Tractonomy/free-fleet-ros2/config"
	"github.com/Tractonomy/free-fleet-ros2/fleet"
	"github.com/Tractonomy/free-fleet-ros2/navgraph"
	"github.com/Tractonomy/free-fleet-ros2/plan"
	"github.com/Tractonomy/free-fleet-ros2/protocol"
	"github.com/Tractonomy/free-fleet-ros2/robotstate"
	"github.com/Tractonomy/free-fleet-ros2/store"
)

type LogFunc func(format string, args ...any)

// Notifier delivers commands and adapter notifications.
// *messaging.CommandPublisher implements it.
type Notifier interface {
	command.Dispatcher
	fleet.ClosedLanesPublisher
	PublishRobotEvent(ev protocol.RobotEvent) error
}

// MessagingClient is the connection the engine monitors.
// *messaging.Client implements it.
type MessagingClient interface {
	IsConnected() bool
	Reconfigure(cfg *config.MessagingConfig) error
}

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	Graph      *navgraph.Graph
	DB         *store.DB
	RobotState *robotstate.Manager
	MsgClient  MessagingClient
	Notifier   Notifier
	LogFunc    LogFunc
	Now        func() time.Time
}

type Engine struct {
	cfg        *config.Config
	configPath string
	graph      *navgraph.Graph
	traits     plan.VehicleTraits
	db         *store.DB
	robots     *robotstate.Manager
	msgClient  MessagingClient
	notifier   Notifier
	fleet      *fleet.Fleet
	planner    *planner
	Events     *EventBus
	logFn      LogFunc
	now        func() time.Time

	stopChan     chan struct{}
	stopOnce     sync.Once
	msgConnected atomic.Bool

	unplacedMu sync.Mutex
	unplaced   map[string]string
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		graph:      c.Graph,
		db:         c.DB,
		robots:     c.RobotState,
		msgClient:  c.MsgClient,
		notifier:   c.Notifier,
		Events:     NewEventBus(),
		logFn:      logFn,
		now:        now,
		stopChan:   make(chan struct{}),
		unplaced:   make(map[string]string),
	}
	e.traits = plan.VehicleTraits{
		LinearVelocity:  e.cfg.Vehicle.LinearVelocity,
		AngularVelocity: e.cfg.Vehicle.AngularVelocity,
	}
	e.planner = newPlanner(e)

	dockRule, err := command.ParseDockRule(e.cfg.Command.DockRule)
	if err != nil {
		logFn("engine: %v, using first match", err)
	}
	var publisher fleet.ClosedLanesPublisher
	if c.Notifier != nil {
		publisher = c.Notifier
	}
	e.fleet = fleet.New(fleet.Config{
		Name:       e.cfg.Fleet.Name,
		Graph:      c.Graph,
		Traits:     e.traits,
		Dispatcher: c.Notifier,
		Planner:    e.planner,
		Publisher:  publisher,
		Timing: command.Timing{
			ResendInterval:  e.cfg.Command.ResendInterval,
			ScheduleRefresh: e.cfg.Command.ScheduleRefresh,
		},
		Tolerances: command.Tolerances{
			WaypointSnap:     e.cfg.Command.WaypointSnap,
			LaneSnap:         e.cfg.Command.LaneSnap,
			ArrivalTolerance: e.cfg.Command.ArrivalTolerance,
		},
		DockRule: dockRule,
		Now:      now,
		LogFunc:  command.LogFunc(logFn),
		OnUnplaceable: func(robot, hint string) {
			e.Events.Emit(Event{Type: EventRobotUnplaceable, Payload: RobotUnplaceableEvent{Robot: robot, Hint: hint}})
		},
	})
	return e
}

func (e *Engine) Start() {
	e.wireEventHandlers()
	e.restoreState()

	// Emit initial connection status
	e.checkConnectionStatus()
	go e.connectionHealthLoop()

	e.logFn("engine: started for fleet [%s]", e.cfg.Fleet.Name)
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                   { return e.db }
func (e *Engine) AppConfig() *config.Config       { return e.cfg }
func (e *Engine) ConfigPath() string              { return e.configPath }
func (e *Engine) Graph() *navgraph.Graph          { return e.graph }
func (e *Engine) Fleet() *fleet.Fleet             { return e.fleet }
func (e *Engine) RobotState() *robotstate.Manager { return e.robots }
func (e *Engine) MessagingConnected() bool        { return e.msgConnected.Load() }
func (e *Engine) MsgClient() MessagingClient      { return e.msgClient }
func (e *Engine) Traits() plan.VehicleTraits      { return e.traits }

func (e *Engine) restoreState() {
	if e.robots != nil {
		if err := e.robots.SyncFromSQL(); err != nil {
			e.logFn("engine: restore robot snapshots: %v", err)
		}
	}
	if e.db == nil {
		return
	}
	lanes, err := e.db.ListClosedLanes(e.cfg.Fleet.Name)
	if err != nil {
		e.logFn("engine: load closed lanes: %v", err)
		return
	}
	if len(lanes) > 0 {
		e.fleet.RestoreClosedLanes(lanes)
	}
}

func (e *Engine) checkConnectionStatus() {
	if e.msgClient == nil {
		return
	}
	if e.msgClient.IsConnected() {
		if !e.msgConnected.Swap(true) {
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else {
		if e.msgConnected.Swap(false) {
			e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
		}
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

// ReconfigureMessaging reconnects messaging with current config.
func (e *Engine) ReconfigureMessaging() {
	if e.msgClient == nil {
		return
	}
	if err := e.msgClient.Reconfigure(&e.cfg.Messaging); err != nil {
		e.logFn("engine: messaging reconfigure error: %v", err)
	} else {
		e.logFn("engine: messaging reconfigured")
	}
	e.checkConnectionStatus()
}

func (e *Engine) commandID(robot string) uint64 {
	h, err := e.fleet.Robot(robot)
	if err != nil {
		return 0
	}
	return h.Snapshot().CommandID
}
