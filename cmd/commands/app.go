package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/autodev/internal/agent"
	"github.com/dohr-michael/autodev/internal/callbacks"
	"github.com/dohr-michael/autodev/internal/config"
	"github.com/dohr-michael/autodev/internal/events"
	"github.com/dohr-michael/autodev/internal/interpreter"
	"github.com/dohr-michael/autodev/internal/models"
	"github.com/dohr-michael/autodev/internal/rename"
	"github.com/dohr-michael/autodev/internal/sessions"
	"github.com/dohr-michael/autodev/internal/storage"
)

// historyWindow is the number of stored messages replayed into a turn.
const historyWindow = 20

// fallbackAgent is registered when the configuration declares none.
const fallbackAgent = "assistant"

// app holds the components shared by the commands that run agents locally.
type app struct {
	cfg        *config.Config
	configPath string
	level      *slog.LevelVar

	bus       *events.Bus
	models    *models.Registry
	agents    *agent.Registry
	store     *sessions.FileStore
	tracker   *agent.Tracker
	processor *agent.ChatProcessor
	renamer   *rename.Suggester
	costs     *storage.CostTracker
	eventLog  *storage.EventLogger
}

// loadConfig reads --config, falling back to defaults when the file is absent.
func loadConfig(cmd *cli.Command) (*config.Config, string) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		slog.Debug("config not found, using defaults", "path", path, "error", err)
		cfg = config.Default()
	}
	return cfg, path
}

// setupLogging installs the default slog logger on w. --debug wins over
// log.level from the config.
func setupLogging(cmd *cli.Command, cfg *config.Config, w io.Writer) *slog.LevelVar {
	level := new(slog.LevelVar)
	applyLevel(level, cfg.Log.Level)
	if cmd.Bool("debug") {
		level.Set(slog.LevelDebug)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return level
}

func applyLevel(level *slog.LevelVar, name string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		slog.Warn("invalid log level, keeping current", "level", name)
		return
	}
	level.Set(l)
}

// newApp wires the local agent stack from the loaded configuration.
func newApp(cmd *cli.Command, logTo io.Writer) (*app, error) {
	cfg, path := loadConfig(cmd)
	level := setupLogging(cmd, cfg, logTo)

	agents, err := agent.NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	if len(agents.List()) == 0 {
		agents.Register(agent.AgentConfig{
			Name:     fallbackAgent,
			Mode:     agent.ModeStreamed,
			Language: cfg.Interpreter.Language,
		})
	}

	bus := events.NewBus(cfg.Events.BufferSize)
	bridge, err := interpreter.NewRegistryFromConfig(cfg.Interpreter, bus)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("setup interpreter: %w", err)
	}

	reg := models.NewRegistry(cfg.Models)
	store := sessions.NewFileStore(config.SessionsPath())
	tracker := agent.NewTracker()
	handler := callbacks.NewEventBusHandler(bus, events.SourceAgent)

	a := &app{
		cfg:        cfg,
		configPath: path,
		level:      level,
		bus:        bus,
		models:     reg,
		agents:     agents,
		store:      store,
		tracker:    tracker,
		processor: agent.NewChatProcessor(agent.ProcessorConfig{
			Agents:   agents,
			Executor: agent.NewModelExecutor(reg, handler),
			Bridge:   bridge,
			History:  sessions.NewRecorder(store, historyWindow),
			Bus:      bus,
			Tracker:  tracker,
		}),
		renamer:  rename.NewSuggester(cfg.Rename, reg, bus, callbacks.NewEventBusHandler(bus, events.SourceRename)),
		costs:    storage.NewCostTracker(bus, store),
		eventLog: storage.NewEventLogger(cfg.Events.LogDir, bus),
	}
	return a, nil
}

// reload applies a new configuration to the running stack: log level,
// agent definitions and the default agent. Removing an agent requires a
// restart.
func (a *app) reload(cfg *config.Config) {
	applyLevel(a.level, cfg.Log.Level)

	n, err := a.agents.Reload(cfg)
	if err != nil {
		slog.Warn("reload agents", "error", err)
		return
	}
	slog.Info("agents reloaded", "count", n, "default", cfg.Agents.Default)
}

func (a *app) agentNames() []string {
	list := a.agents.List()
	names := make([]string, 0, len(list))
	for _, ac := range list {
		names = append(names, ac.Name)
	}
	return names
}

func (a *app) Close() {
	a.eventLog.Close()
	a.costs.Close()
	a.bus.Close()
}
