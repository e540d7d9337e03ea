package stats

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/exiletools/runtracker/internal/classify"
	"github.com/exiletools/runtracker/internal/event"
	"github.com/exiletools/runtracker/internal/storage"
)

// Extractor reduces a run's event window into a RunInfo. It is a pure
// left-to-right fold: each event feeds exactly one accumulation rule,
// and rules only interact through the accumulator.
type Extractor struct {
	logger *slog.Logger
	// character filters slain/level lines down to the player's own.
	character string
}

func NewExtractor(logger *slog.Logger, character string) *Extractor {
	return &Extractor{logger: logger, character: character}
}

// Extract walks the ordered events of one run and returns the nested
// statistics object. Items are only consulted by the currency
// attribution fixup; loot valuation happens elsewhere.
func (x *Extractor) Extract(events []storage.StoredEvent, items []storage.Item) RunInfo {
	var info RunInfo
	acc := &accumulator{info: &info}

	for i := range events {
		x.reduce(acc, &events[i])
	}

	x.fixupBeastColours(acc)
	x.fixupTrialRounds(acc)
	x.fixupCurrencyDrops(acc, items)
	x.fixupBossBattle(acc)

	return info
}

// accumulator carries reduction-local scratch state that does not
// belong in the persisted RunInfo.
type accumulator struct {
	info            *RunInfo
	deathTimes      []time.Time
	genericCaptures int
}

func (x *Extractor) reduce(acc *accumulator, ev *storage.StoredEvent) {
	info := acc.info
	switch ev.Type {
	case event.TypeSlain:
		if x.character == "" || ev.Text == x.character {
			info.Deaths++
			acc.deathTimes = append(acc.deathTimes, ev.Timestamp)
		}

	case event.TypeLevel:
		parts := strings.SplitN(ev.Text, "|", 3)
		if len(parts) != 3 {
			return
		}
		if x.character != "" && parts[0] != x.character {
			return
		}
		lvl, err := strconv.Atoi(parts[2])
		if err != nil {
			return
		}
		info.LevelUps = append(info.LevelUps, LevelUp{Character: parts[0], Level: lvl, Timestamp: ev.Timestamp})

	case event.TypeAllocated:
		info.Allocated = append(info.Allocated, ev.Text)

	case event.TypeShrine:
		if info.Shrines == nil {
			info.Shrines = make(map[string]int)
		}
		info.Shrines[ev.Text]++

	case event.TypeAbnormalDisconnect:
		info.Disconnects++

	case event.TypeMaster:
		speaker, dialogue := classify.SplitSpeaker(ev.Text)
		x.reduceMaster(acc, speaker, dialogue)

	case event.TypeConqueror:
		speaker, dialogue := classify.SplitSpeaker(ev.Text)
		reduceBossDialogue(info.conqueror(speaker), speaker, dialogue, ev.Timestamp,
			conquerorBattleStart, conquerorDefeated)

	case event.TypeMapBoss:
		speaker, dialogue := classify.SplitSpeaker(ev.Text)
		reduceBossDialogue(info.mapBoss(speaker), speaker, dialogue, ev.Timestamp,
			mapBossBattleStart, mapBossKill)

	case event.TypeLeagueNPC:
		speaker, dialogue := classify.SplitSpeaker(ev.Text)
		x.reduceLeagueNPC(acc, speaker, dialogue, ev.Timestamp)
	}
}

func (x *Extractor) reduceMaster(acc *accumulator, speaker, dialogue string) {
	m := acc.info.master(speaker)
	if m.Encounters == 0 {
		m.Encounters = 1
	}
	if anyPrefix(dialogue, masterMissionDone) {
		m.MissionComplete = true
	}

	switch speaker {
	case "Einhar, Beastmaster":
		switch {
		case anyPrefix(dialogue, einharRedCapture):
			m.RedBeasts++
		case anyPrefix(dialogue, einharYellowCapture):
			m.YellowBeasts++
		case anyPrefix(dialogue, einharGenericCapture):
			acc.genericCaptures++
		}
	case "Alva, Master Explorer":
		switch {
		case anyPrefix(dialogue, alvaIncursionDone):
			m.Incursions++
		case anyPrefix(dialogue, alvaTemple):
			m.Temple = true
		case anyPrefix(dialogue, alvaIncursionOpen):
			// Openings are implied by completions; nothing to count.
		}
	case "Niko, Master of the Depths":
		if anyPrefix(dialogue, nikoSulphite) {
			m.Sulphite++
		}
	case "Jun, Veiled Master":
		if anyPrefix(dialogue, junSafehouse) {
			m.MissionComplete = true
		}
	case "Sister Cassia":
		if anyPrefix(dialogue, cassiaLane) {
			m.BlightLanes++
		}
	}
}

func (x *Extractor) reduceLeagueNPC(acc *accumulator, speaker, dialogue string, ts time.Time) {
	info := acc.info
	switch speaker {
	case "The Trialmaster":
		x.reduceTrialmaster(info, dialogue)

	case "Oshabi":
		if info.Harvest == nil {
			info.Harvest = &HarvestInfo{Encounters: 1}
		}
		switch {
		case anyPrefix(dialogue, oshabiBossStart):
			if info.Harvest.BossFight == nil {
				info.Harvest.BossFight = &BossFight{}
			}
			if !info.Harvest.BossFight.started() {
				info.Harvest.BossFight.BattleStart = ts
			}
		case anyPrefix(dialogue, oshabiBossKill):
			if info.Harvest.BossFight == nil {
				info.Harvest.BossFight = &BossFight{}
			}
			info.Harvest.BossFight.Defeated = ts
		}

	case "Strange Voice":
		if info.Delirium == nil {
			info.Delirium = &DeliriumInfo{}
		}
		if info.Delirium.Mirrors == 0 {
			info.Delirium.Mirrors = 1
		}

	case "Tane Octavius":
		if info.Metamorph == nil {
			info.Metamorph = &MetamorphInfo{}
		}
		if info.Metamorph.Encounters == 0 {
			info.Metamorph.Encounters = 1
		}

	case "The Envoy":
		info.EnvoyWords++

	case "The Maven":
		if info.Maven == nil {
			info.Maven = &MavenInfo{}
		}
		switch {
		case anyPrefix(dialogue, mavenCrucibleStart):
			if info.Maven.Crucible == nil {
				info.Maven.Crucible = &BossFight{}
			}
			if !info.Maven.Crucible.started() {
				info.Maven.Crucible.BattleStart = ts
			}
		case anyPrefix(dialogue, mavenCrucibleKill):
			if info.Maven.Crucible == nil {
				info.Maven.Crucible = &BossFight{}
			}
			info.Maven.Crucible.Defeated = ts
		case anyPrefix(dialogue, mavenWitness):
			info.Maven.Witnessed = true
		}

	case "Izaro":
		// Labyrinth boss speaks as a league NPC but is tracked as a
		// boss window like any map boss.
		reduceBossDialogue(info.mapBoss(speaker), speaker, dialogue, ts,
			mapBossBattleStart, mapBossKill)
	}
}

func (x *Extractor) reduceTrialmaster(info *RunInfo, dialogue string) {
	if info.Trial == nil {
		info.Trial = &TrialInfo{}
	}
	t := info.Trial
	switch {
	case anyPrefix(dialogue, trialmasterWon):
		t.Won = true
	case anyPrefix(dialogue, trialmasterLost):
		t.Lost = true
	case anyPrefix(dialogue, trialmasterRewards):
		t.TookRewards = true
	default:
		for line, mod := range trialmasterRounds {
			if strings.HasPrefix(dialogue, line) {
				if mod == "" {
					return
				}
				t.Rounds = append(t.Rounds, TrialRound{Mod: mod, Ambiguous: mod == modAmbiguousRuin})
				return
			}
		}
		for line, mod := range trialmasterOtherRounds {
			if strings.HasPrefix(dialogue, line) {
				t.Rounds = append(t.Rounds, TrialRound{Mod: mod})
				return
			}
		}
	}
}

// reduceBossDialogue applies the boss-window rule: earliest start wins,
// latest kill wins. Untabled dialogue opens the window too, since a
// boss only speaks once engaged.
func reduceBossDialogue(f *BossFight, speaker, dialogue string, ts time.Time, startTable, killTable map[string][]string) {
	if anyPrefix(dialogue, killTable[speaker]) {
		f.Defeated = ts
		if !f.started() {
			f.BattleStart = ts
		}
		return
	}
	if !f.started() {
		f.BattleStart = ts
	}
}

// fixupBossBattle derives the flattened {time, deaths} boss summary
// from the earliest start and latest kill across all recorded windows.
func (x *Extractor) fixupBossBattle(acc *accumulator) {
	info := acc.info
	var start, kill time.Time

	consider := func(f *BossFight) {
		if f == nil {
			return
		}
		if f.started() && (start.IsZero() || f.BattleStart.Before(start)) {
			start = f.BattleStart
		}
		if f.defeated() && f.Defeated.After(kill) {
			kill = f.Defeated
		}
	}
	for _, f := range info.Conquerors {
		consider(f)
	}
	for _, f := range info.MapBosses {
		consider(f)
	}
	if info.Harvest != nil {
		consider(info.Harvest.BossFight)
	}
	if info.Maven != nil {
		consider(info.Maven.Crucible)
	}

	if start.IsZero() || kill.IsZero() || kill.Before(start) {
		return
	}
	deaths := 0
	for _, d := range acc.deathTimes {
		if !d.Before(start) && !d.After(kill) {
			deaths++
		}
	}
	info.BossBattle = &BossBattle{Time: int64(kill.Sub(start).Seconds()), Deaths: deaths}
}

// fixupBeastColours infers the colour of a single generic capture when
// every identified capture in the encounter had the other colour.
func (x *Extractor) fixupBeastColours(acc *accumulator) {
	if acc.genericCaptures != 1 {
		return
	}
	m, ok := acc.info.Masters["Einhar, Beastmaster"]
	if !ok {
		return
	}
	switch {
	case m.RedBeasts == 0 && m.YellowBeasts > 0:
		m.RedBeasts++
	case m.YellowBeasts == 0 && m.RedBeasts > 0:
		m.YellowBeasts++
	}
}

// fixupCurrencyDrops attributes faction currency to the conqueror
// defeated in the same run, when there was one.
func (x *Extractor) fixupCurrencyDrops(acc *accumulator, items []storage.Item) {
	if len(acc.info.Conquerors) == 0 {
		return
	}
	for _, it := range items {
		owner, ok := conquerorCurrency[it.Name]
		if !ok {
			continue
		}
		f, ok := acc.info.Conquerors[owner]
		if !ok || !f.defeated() {
			continue
		}
		f.Drops = append(f.Drops, it.Name)
	}
}

func (x *Extractor) fixupTrialRounds(acc *accumulator) {
	if acc.info.Trial == nil || len(acc.info.Trial.Rounds) == 0 {
		return
	}
	resolveTrialRounds(acc.info.Trial.Rounds)
}

func anyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
