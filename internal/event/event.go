// Package event holds the shared event model produced by the line
// classifier and consumed by the tracker, the stats reducer and storage.
package event

import "time"

// Type is the closed set of event kinds the classifier can emit.
type Type string

const (
	TypeEntered            Type = "entered"
	TypeSlain              Type = "slain"
	TypeLevel              Type = "level"
	TypeNote               Type = "note"
	TypeChat               Type = "chat"
	TypeAbnormalDisconnect Type = "abnormalDisconnect"
	TypeAllocated          Type = "allocated"
	TypeUnallocated        Type = "unallocated"
	TypeShrine             Type = "shrine"
	TypeMaster             Type = "master"
	TypeConqueror          Type = "conqueror"
	TypeLeagueNPC          Type = "leagueNPC"
	TypeMapBoss            Type = "mapBoss"
	TypeGeneratedArea      Type = "generatedArea"

	// TypeInstanceServer is internal to the tracker: it carries the
	// "Connecting to instance server" address and is never persisted.
	TypeInstanceServer Type = "instanceServer"
	// TypeEndSignal is the manual run-termination marker raised by a
	// self-addressed chat message containing exactly "end". It triggers
	// finalization directly and is not stored.
	TypeEndSignal Type = "endSignal"
	// TypeAFKToggle carries the AFK on/off flag to the tracker. Never
	// persisted, never treated as a regular event.
	TypeAFKToggle Type = "afkToggle"
)

// Raw is one line as read from the client log, split into its timestamp
// prefix and the remaining content. Lines that fail the split never make
// it into a Raw value.
type Raw struct {
	Timestamp time.Time
	Content   string
}

// Event is a classified log line. Immutable once created.
type Event struct {
	Type      Type
	Text      string
	Timestamp time.Time
	// Server is the instance server address the event happened on, when
	// known. Filled in by the tracker from the latest instanceServer line.
	Server string
}

// Persisted reports whether events of this type are written to the event
// table. Scheduler-internal markers stay in memory only.
func (t Type) Persisted() bool {
	switch t {
	case TypeInstanceServer, TypeEndSignal, TypeAFKToggle:
		return false
	}
	return true
}
