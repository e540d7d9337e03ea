// Package stats reduces a run's ordered event window into the nested
// run_info object persisted with each run.
package stats

import "time"

// RunInfo is the narrative summary of one run. It is stored as JSON in
// the runs table and shipped to the shell as-is.
type RunInfo struct {
	// Ignored marks a run that produced no items, no kills and no XP.
	// Such runs are persisted for history but excluded from player-facing
	// aggregates and never notified.
	Ignored bool `json:"ignored,omitempty"`

	Deaths      int `json:"deaths,omitempty"`
	Disconnects int `json:"disconnects,omitempty"`

	LevelUps  []LevelUp `json:"levelUps,omitempty"`
	Allocated []string  `json:"allocated,omitempty"`

	// Shrines counts activations per shrine kind.
	Shrines map[string]int `json:"shrines,omitempty"`

	Masters    map[string]*MasterInfo `json:"masters,omitempty"`
	Conquerors map[string]*BossFight  `json:"conquerors,omitempty"`
	MapBosses  map[string]*BossFight  `json:"mapBosses,omitempty"`

	// BossBattle is the per-run roll-up derived after reduction: the
	// earliest recorded battle start and the latest recorded kill across
	// primary and sub-areas, plus deaths inside that window.
	BossBattle *BossBattle `json:"bossBattle,omitempty"`

	Trial      *TrialInfo     `json:"trial,omitempty"`
	Harvest    *HarvestInfo   `json:"harvest,omitempty"`
	Delirium   *DeliriumInfo  `json:"delirium,omitempty"`
	Metamorph  *MetamorphInfo `json:"metamorph,omitempty"`
	Maven      *MavenInfo     `json:"maven,omitempty"`
	EnvoyWords int            `json:"envoyWords,omitempty"`
}

type LevelUp struct {
	Character string    `json:"character"`
	Level     int       `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// MasterInfo accumulates one master's activity inside a run.
type MasterInfo struct {
	Encounters int `json:"encounters"`

	// Einhar
	RedBeasts    int `json:"redBeasts,omitempty"`
	YellowBeasts int `json:"yellowBeasts,omitempty"`

	// Alva
	Incursions int  `json:"incursions,omitempty"`
	Temple     bool `json:"temple,omitempty"`

	// Niko
	Sulphite int `json:"sulphite,omitempty"`

	// Jun
	SafehouseLeader string `json:"safehouseLeader,omitempty"`

	// Cassia
	BlightLanes int `json:"blightLanes,omitempty"`

	MissionComplete bool `json:"missionComplete,omitempty"`
}

// BossFight is one boss encounter window. BattleStart keeps the
// earliest recorded start; Defeated keeps the latest recorded kill, so
// multi-phase bosses with several kill lines resolve to the final one.
type BossFight struct {
	BattleStart time.Time `json:"battleStart,omitempty"`
	Defeated    time.Time `json:"defeated,omitempty"`
	// Drops lists faction currency attributed to this defeat (fixup).
	Drops []string `json:"drops,omitempty"`
}

func (b *BossFight) started() bool  { return !b.BattleStart.IsZero() }
func (b *BossFight) defeated() bool { return !b.Defeated.IsZero() }

// BossBattle is the flattened per-run boss summary.
type BossBattle struct {
	Time   int64 `json:"time"` // seconds from earliest start to latest kill
	Deaths int   `json:"deaths,omitempty"`
}

// TrialInfo tracks a trial encounter: the sequence of round modifiers
// and the outcome.
type TrialInfo struct {
	Rounds      []TrialRound `json:"rounds,omitempty"`
	Won         bool         `json:"won,omitempty"`
	Lost        bool         `json:"lost,omitempty"`
	TookRewards bool         `json:"tookRewards,omitempty"`
}

// TrialRound is one round of the encounter. Ambiguous is set while the
// round modifier is still one of two candidate identities; resolution
// clears it (see resolveTrialRounds).
type TrialRound struct {
	Mod       string `json:"mod"`
	Ambiguous bool   `json:"-"`
}

type HarvestInfo struct {
	Encounters int        `json:"encounters"`
	BossFight  *BossFight `json:"bossFight,omitempty"`
}

type DeliriumInfo struct {
	Mirrors int `json:"mirrors"`
}

type MetamorphInfo struct {
	Encounters int `json:"encounters"`
}

type MavenInfo struct {
	Witnessed bool       `json:"witnessed,omitempty"`
	Crucible  *BossFight `json:"crucible,omitempty"`
}

func (ri *RunInfo) master(name string) *MasterInfo {
	if ri.Masters == nil {
		ri.Masters = make(map[string]*MasterInfo)
	}
	m, ok := ri.Masters[name]
	if !ok {
		m = &MasterInfo{}
		ri.Masters[name] = m
	}
	return m
}

func (ri *RunInfo) conqueror(name string) *BossFight {
	if ri.Conquerors == nil {
		ri.Conquerors = make(map[string]*BossFight)
	}
	f, ok := ri.Conquerors[name]
	if !ok {
		f = &BossFight{}
		ri.Conquerors[name] = f
	}
	return f
}

func (ri *RunInfo) mapBoss(name string) *BossFight {
	if ri.MapBosses == nil {
		ri.MapBosses = make(map[string]*BossFight)
	}
	f, ok := ri.MapBosses[name]
	if !ok {
		f = &BossFight{}
		ri.MapBosses[name] = f
	}
	return f
}
