package sim

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"riposte/server/internal/logging"
	"riposte/server/internal/telemetry"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to
	// per-actor queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is
	// saturated.
	CommandRejectQueueFull = "queue_full"

	metricCommandDrops = "sim_command_drops_total"
	metricTickDuration = "sim_tick_duration_micros"
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
}

// LoopHooks observe the loop from the outside without touching engine state.
type LoopHooks struct {
	AfterStep func(result LoopStepResult)
}

// LoopStepResult summarizes one completed simulation step.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Snapshot     Snapshot
	Commands     []Command
	Duration     time.Duration
	ClampedDelta bool
}

// Loop coordinates command ingestion and the fixed-timestep simulation
// runner.
type Loop struct {
	core    EngineCore
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	logger  *zap.Logger
	metrics telemetry.Metrics

	queueMu       sync.Mutex
	perActorCount map[string]int
	scheduled     []func()
	tick          uint64
}

// NewLoop wraps the provided engine core with a ring-buffer queue and loop.
func NewLoop(core EngineCore, cfg LoopConfig, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	deps := core.Deps()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	return &Loop{
		core:          core,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, metrics),
		hooks:         hooks,
		config:        cfg,
		logger:        logger,
		metrics:       metrics,
		perActorCount: make(map[string]int),
	}
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages a command, enforcing per-actor throttling and capacity
// limits. The rejection reason is returned alongside a false result.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		if l.perActorCount[cmd.ActorID] >= l.config.PerActorLimit {
			l.queueMu.Unlock()
			l.reportDrop(CommandRejectQueueLimit, cmd)
			return false, CommandRejectQueueLimit
		}
		l.perActorCount[cmd.ActorID]++
	}
	ok := l.buffer.Push(cmd)
	l.queueMu.Unlock()
	if !ok {
		l.reportDrop(CommandRejectQueueFull, cmd)
		return false, CommandRejectQueueFull
	}
	return true, ""
}

// Schedule queues fn to run on the simulation goroutine at the start of
// the next step, before that step's commands. Used for roster mutations
// such as joins and disconnects.
func (l *Loop) Schedule(fn func()) {
	if l == nil || fn == nil {
		return
	}
	l.queueMu.Lock()
	l.scheduled = append(l.scheduled, fn)
	l.queueMu.Unlock()
}

// Advance executes a single simulation step using the staged commands.
func (l *Loop) Advance(ctx TickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	l.queueMu.Lock()
	scheduled := l.scheduled
	l.scheduled = nil
	l.queueMu.Unlock()
	for _, fn := range scheduled {
		fn()
	}
	commands := l.drainCommands()
	if err := l.core.Apply(commands); err != nil {
		l.logger.Error("command application failed", zap.Error(err))
	}
	l.core.Step(ctx)
	return LoopStepResult{
		Tick:     ctx.Tick,
		Now:      ctx.Now,
		Delta:    ctx.Delta,
		Snapshot: l.core.Snapshot(),
		Commands: commands,
	}
}

// Run drives the fixed-timestep loop until the stop channel closes.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	if tickRate <= 0 {
		tickRate = 15
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	clock := l.core.Deps().Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	last := clock.Now()
	budgetSeconds := 1.0 / float64(tickRate)
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			l.tick++
			start := clock.Now()
			result := l.Advance(TickContext{Tick: l.tick, Now: now, Delta: dt})
			result.Duration = clock.Now().Sub(start)
			result.ClampedDelta = clamped
			l.metrics.Store(metricTickDuration, uint64(result.Duration.Microseconds()))

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) reportDrop(reason string, cmd Command) {
	l.metrics.Add(metricCommandDrops, 1)
	l.logger.Warn("dropping command",
		zap.String("reason", reason),
		zap.String("actor", cmd.ActorID),
		zap.String("type", string(cmd.Type)))
}
