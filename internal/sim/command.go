package sim

import "time"

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandMove         CommandType = "Move"
	CommandSkillStart   CommandType = "SkillStart"
	CommandSkillExecute CommandType = "SkillExecute"
	CommandSkillCancel  CommandType = "SkillCancel"
	CommandHeartbeat    CommandType = "Heartbeat"
)

// MoveCommand carries the desired movement intent vector. A zero vector
// releases the actor's input claim.
type MoveCommand struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// SkillCommand identifies a skill start, with an optional explicit target.
type SkillCommand struct {
	SkillID  string `json:"skillId"`
	TargetID string `json:"targetId,omitempty"`
}

// HeartbeatCommand updates connectivity metadata for an actor.
type HeartbeatCommand struct {
	ReceivedAt time.Time     `json:"receivedAt"`
	ClientSent int64         `json:"clientSent"`
	RTT        time.Duration `json:"rtt"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64            `json:"originTick"`
	ActorID    string            `json:"actorId"`
	Type       CommandType       `json:"type"`
	IssuedAt   time.Time         `json:"issuedAt"`
	Move       *MoveCommand      `json:"move,omitempty"`
	Skill      *SkillCommand     `json:"skill,omitempty"`
	Heartbeat  *HeartbeatCommand `json:"heartbeat,omitempty"`
}
