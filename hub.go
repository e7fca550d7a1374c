package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"riposte/server/internal/config"
	"riposte/server/internal/geom"
	"riposte/server/internal/logging"
	"riposte/server/internal/sim"
	"riposte/server/internal/world"
)

const (
	writeWait   = 10 * time.Second
	joinTimeout = 2 * time.Second
)

var errJoinTimeout = errors.New("join timed out waiting for the simulation")

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

type session struct {
	actorID       string
	lastHeartbeat time.Time
	lastRTT       time.Duration
}

type diagnosticsSession struct {
	ID            string `json:"id"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
}

// Hub bridges websocket clients and the authoritative loop. All simulation
// mutations go through loop.Schedule or loop.Enqueue; the hub itself only
// tracks connections and liveness.
type Hub struct {
	logger *zap.Logger
	loop   *sim.Loop
	world  *world.World
	server config.ServerConfig
	arena  config.ArenaConfig

	mu          sync.Mutex
	sessions    map[string]*session
	subscribers map[string]*subscriber
	lastState   sim.Snapshot
}

func newHub(logger *zap.Logger, loop *sim.Loop, w *world.World, server config.ServerConfig, arena config.ArenaConfig) *Hub {
	return &Hub{
		logger:      logger,
		loop:        loop,
		world:       w,
		server:      server,
		arena:       arena,
		sessions:    make(map[string]*session),
		subscribers: make(map[string]*subscriber),
	}
}

// Join spawns an actor on the simulation goroutine and registers a session
// for it. Blocks until the next tick picks the spawn up.
func (h *Hub) Join(req joinRequest) (joinResponse, error) {
	weapon := req.Weapon
	if weapon == "" {
		weapon = "fists"
	}

	type spawnResult struct {
		actor *world.Actor
		err   error
	}
	done := make(chan spawnResult, 1)
	h.loop.Schedule(func() {
		deps := h.world.Deps()
		pos := randomSpawnPosition(deps, h.arena)
		actor, err := h.world.SpawnActor(world.SpawnConfig{
			Faction:  req.Faction,
			Kind:     logging.EntityKindPlayer,
			Position: pos,
			WeaponID: weapon,
		})
		done <- spawnResult{actor: actor, err: err}
	})

	var res spawnResult
	select {
	case res = <-done:
	case <-time.After(joinTimeout):
		return joinResponse{}, errJoinTimeout
	}
	if res.err != nil {
		return joinResponse{}, res.err
	}

	h.mu.Lock()
	h.sessions[res.actor.ID] = &session{actorID: res.actor.ID, lastHeartbeat: time.Now()}
	state := h.lastState
	h.mu.Unlock()

	h.logger.Info("actor joined",
		zap.String("actor", res.actor.ID),
		zap.String("weapon", weapon),
		zap.String("faction", req.Faction))
	return joinResponse{ID: res.actor.ID, State: state}, nil
}

// Subscribe binds a websocket connection to a joined actor. An existing
// connection for the same actor is replaced.
func (h *Hub) Subscribe(actorID string, conn *websocket.Conn) (*subscriber, sim.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.sessions[actorID]
	if !ok {
		return nil, sim.Snapshot{}, false
	}
	state.lastHeartbeat = time.Now()

	if existing, ok := h.subscribers[actorID]; ok {
		existing.conn.Close()
	}
	sub := &subscriber{conn: conn}
	h.subscribers[actorID] = sub
	return sub, h.lastState, true
}

// Disconnect tears down the session and schedules the actor's removal from
// the simulation.
func (h *Hub) Disconnect(actorID string) {
	h.mu.Lock()
	sub, subOK := h.subscribers[actorID]
	if subOK {
		delete(h.subscribers, actorID)
	}
	_, sessionOK := h.sessions[actorID]
	if sessionOK {
		delete(h.sessions, actorID)
	}
	h.mu.Unlock()

	if subOK {
		sub.conn.Close()
	}
	if sessionOK {
		h.loop.Schedule(func() { h.world.RemoveActor(actorID) })
		h.logger.Info("actor disconnected", zap.String("actor", actorID))
	}
}

// HandleMessage decodes one client envelope and routes it into the command
// queue. Heartbeats are acknowledged inline.
func (h *Hub) HandleMessage(actorID string, sub *subscriber, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Debug("discarding malformed message",
			zap.String("actor", actorID), zap.Error(err))
		return
	}

	now := time.Now()
	switch msg.Type {
	case "input":
		h.enqueue(actorID, sub, sim.Command{
			ActorID:  actorID,
			Type:     sim.CommandMove,
			IssuedAt: now,
			Move:     &sim.MoveCommand{DX: msg.DX, DY: msg.DY},
		})
	case "skill":
		cmdType, ok := skillCommandType(msg.Action)
		if !ok {
			h.logger.Debug("unknown skill action",
				zap.String("actor", actorID), zap.String("action", msg.Action))
			return
		}
		h.enqueue(actorID, sub, sim.Command{
			ActorID:  actorID,
			Type:     cmdType,
			IssuedAt: now,
			Skill:    &sim.SkillCommand{SkillID: msg.Skill, TargetID: msg.Target},
		})
	case "heartbeat":
		h.acknowledgeHeartbeat(actorID, sub, now, msg.SentAt)
	default:
		h.logger.Debug("unknown message type",
			zap.String("actor", actorID), zap.String("messageType", msg.Type))
	}
}

func skillCommandType(action string) (sim.CommandType, bool) {
	switch action {
	case "start":
		return sim.CommandSkillStart, true
	case "execute":
		return sim.CommandSkillExecute, true
	case "cancel":
		return sim.CommandSkillCancel, true
	default:
		return "", false
	}
}

func randomSpawnPosition(deps sim.Deps, arena config.ArenaConfig) geom.Vec2 {
	half := arena.ActorHalf
	if deps.RNG == nil {
		return geom.Vec2{X: arena.Width / 2, Y: arena.Height / 2}
	}
	return geom.Vec2{
		X: half + deps.RNG.Float64()*(arena.Width-2*half),
		Y: half + deps.RNG.Float64()*(arena.Height-2*half),
	}
}

func (h *Hub) enqueue(actorID string, sub *subscriber, cmd sim.Command) {
	if ok, reason := h.loop.Enqueue(cmd); !ok {
		data, err := json.Marshal(errorMessage{Type: "error", Reason: reason})
		if err != nil {
			return
		}
		if err := sub.write(data); err != nil {
			h.Disconnect(actorID)
		}
	}
}

func (h *Hub) acknowledgeHeartbeat(actorID string, sub *subscriber, receivedAt time.Time, clientSent int64) {
	h.mu.Lock()
	state, ok := h.sessions[actorID]
	if !ok {
		h.mu.Unlock()
		return
	}
	state.lastHeartbeat = receivedAt
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			state.lastRTT = rtt
		}
	}
	rtt := state.lastRTT
	h.mu.Unlock()

	ack := heartbeatMessage{
		Type:       "heartbeat",
		ServerTime: receivedAt.UnixMilli(),
		ClientTime: clientSent,
		RTTMillis:  rtt.Milliseconds(),
	}
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if err := sub.write(data); err != nil {
		h.Disconnect(actorID)
	}
}

// BroadcastState runs as the loop's after-step hook. It prunes sessions
// whose heartbeats went stale and fans the fresh snapshot out.
func (h *Hub) BroadcastState(res sim.LoopStepResult) {
	now := res.Now
	disconnectAfter := h.server.DisconnectAfter

	h.mu.Lock()
	h.lastState = res.Snapshot
	var stale []string
	for id, state := range h.sessions {
		if disconnectAfter > 0 && now.Sub(state.lastHeartbeat) > disconnectAfter {
			stale = append(stale, id)
		}
	}
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	for _, id := range stale {
		h.logger.Warn("disconnecting after heartbeat timeout", zap.String("actor", id))
		h.Disconnect(id)
		delete(subs, id)
	}

	data, err := json.Marshal(stateMessage{Type: "state", Snapshot: res.Snapshot})
	if err != nil {
		h.logger.Error("state marshal failed", zap.Error(err))
		return
	}
	for id, sub := range subs {
		if err := sub.write(data); err != nil {
			h.logger.Debug("state write failed", zap.String("actor", id), zap.Error(err))
			h.Disconnect(id)
		}
	}
}

// Publish implements logging.Publisher so the hub can sit on the gameplay
// feed. Combat events are forwarded to every connected client.
func (h *Hub) Publish(_ context.Context, event logging.Event) {
	if event.Category != logging.CategoryCombat {
		return
	}
	data, err := json.Marshal(eventMessage{Type: "event", Event: event})
	if err != nil {
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.write(data); err != nil {
			h.logger.Debug("event write failed", zap.Error(err))
		}
	}
}

// DiagnosticsSnapshot reports connection liveness for the diagnostics
// endpoint.
func (h *Hub) DiagnosticsSnapshot() []diagnosticsSession {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions := make([]diagnosticsSession, 0, len(h.sessions))
	for _, state := range h.sessions {
		sessions = append(sessions, diagnosticsSession{
			ID:            state.actorID,
			LastHeartbeat: state.lastHeartbeat.UnixMilli(),
			RTTMillis:     state.lastRTT.Milliseconds(),
		})
	}
	return sessions
}
