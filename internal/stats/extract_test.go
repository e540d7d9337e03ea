package stats

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/exiletools/runtracker/internal/event"
	"github.com/exiletools/runtracker/internal/storage"
)

func testExtractor() *Extractor {
	return NewExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)), "MyExile")
}

func at(min, sec int) time.Time {
	return time.Date(2026, 3, 1, 20, min, sec, 0, time.Local)
}

func ev(t event.Type, text string, ts time.Time) storage.StoredEvent {
	return storage.StoredEvent{Type: t, Text: text, Timestamp: ts}
}

func TestExtractDeathsOwnCharacterOnly(t *testing.T) {
	x := testExtractor()

	info := x.Extract([]storage.StoredEvent{
		ev(event.TypeSlain, "MyExile", at(1, 0)),
		ev(event.TypeSlain, "SomePartyMember", at(2, 0)),
		ev(event.TypeSlain, "MyExile", at(3, 0)),
	}, nil)

	if info.Deaths != 2 {
		t.Fatalf("deaths = %d, want 2", info.Deaths)
	}
}

func TestExtractLevelUpsAndAllocations(t *testing.T) {
	x := testExtractor()

	info := x.Extract([]storage.StoredEvent{
		ev(event.TypeLevel, "MyExile|Slayer|92", at(1, 0)),
		ev(event.TypeLevel, "PartyFriend|Witch|80", at(2, 0)),
		ev(event.TypeAllocated, "Strength", at(3, 0)),
	}, nil)

	if len(info.LevelUps) != 1 {
		t.Fatalf("levelUps = %+v, want 1 entry", info.LevelUps)
	}
	lu := info.LevelUps[0]
	if lu.Character != "MyExile" || lu.Level != 92 {
		t.Fatalf("levelUp = %+v", lu)
	}
	if len(info.Allocated) != 1 || info.Allocated[0] != "Strength" {
		t.Fatalf("allocated = %+v", info.Allocated)
	}
}

func TestExtractShrinesAndDisconnects(t *testing.T) {
	x := testExtractor()

	info := x.Extract([]storage.StoredEvent{
		ev(event.TypeShrine, "Diamond", at(1, 0)),
		ev(event.TypeShrine, "Diamond", at(2, 0)),
		ev(event.TypeShrine, "Massive", at(3, 0)),
		ev(event.TypeAbnormalDisconnect, "An unexpected disconnection occurred.", at(4, 0)),
	}, nil)

	if info.Shrines["Diamond"] != 2 || info.Shrines["Massive"] != 1 {
		t.Fatalf("shrines = %+v", info.Shrines)
	}
	if info.Disconnects != 1 {
		t.Fatalf("disconnects = %d", info.Disconnects)
	}
}

func TestBossWindowEarliestStartLatestKill(t *testing.T) {
	x := testExtractor()

	info := x.Extract([]storage.StoredEvent{
		ev(event.TypeMapBoss, "The Shaper: The end approaches.", at(1, 0)),
		ev(event.TypeMapBoss, "The Shaper: I have come to witness the end of all things.", at(2, 0)),
		ev(event.TypeSlain, "MyExile", at(3, 0)),
		ev(event.TypeMapBoss, "The Shaper: There must... be... another way...", at(5, 0)),
	}, nil)

	f := info.MapBosses["The Shaper"]
	if f == nil {
		t.Fatal("no shaper fight recorded")
	}
	if !f.BattleStart.Equal(at(1, 0)) {
		t.Fatalf("battle start = %v, want %v", f.BattleStart, at(1, 0))
	}
	if !f.Defeated.Equal(at(5, 0)) {
		t.Fatalf("defeated = %v, want %v", f.Defeated, at(5, 0))
	}

	if info.BossBattle == nil {
		t.Fatal("no flattened boss battle")
	}
	if info.BossBattle.Time != 240 {
		t.Fatalf("boss battle time = %d, want 240", info.BossBattle.Time)
	}
	if info.BossBattle.Deaths != 1 {
		t.Fatalf("boss battle deaths = %d, want 1", info.BossBattle.Deaths)
	}
}

func TestBossWindowWithoutKillHasNoSummary(t *testing.T) {
	x := testExtractor()

	info := x.Extract([]storage.StoredEvent{
		ev(event.TypeMapBoss, "The Shaper: The end approaches.", at(1, 0)),
	}, nil)

	if info.BossBattle != nil {
		t.Fatalf("boss battle = %+v, want nil without a kill", info.BossBattle)
	}
}

func TestEinharColourInference(t *testing.T) {
	x := testExtractor()

	info := x.Extract([]storage.StoredEvent{
		ev(event.TypeMaster, "Einhar, Beastmaster: You are captured, little beast!", at(1, 0)),
		ev(event.TypeMaster, "Einhar, Beastmaster: You are captured, little beast!", at(2, 0)),
		ev(event.TypeMaster, "Einhar, Beastmaster: Beast captured.", at(3, 0)),
	}, nil)

	m := info.Masters["Einhar, Beastmaster"]
	if m == nil {
		t.Fatal("no einhar entry")
	}
	if m.YellowBeasts != 2 {
		t.Fatalf("yellow beasts = %d, want 2", m.YellowBeasts)
	}
	if m.RedBeasts != 1 {
		t.Fatalf("inferred red beasts = %d, want 1", m.RedBeasts)
	}
}

func TestEinharColourInferenceNeedsEvidence(t *testing.T) {
	x := testExtractor()

	// A lone generic capture has no colour evidence and stays uncounted.
	info := x.Extract([]storage.StoredEvent{
		ev(event.TypeMaster, "Einhar, Beastmaster: Beast captured.", at(1, 0)),
	}, nil)

	m := info.Masters["Einhar, Beastmaster"]
	if m == nil {
		t.Fatal("no einhar entry")
	}
	if m.RedBeasts != 0 || m.YellowBeasts != 0 {
		t.Fatalf("beasts = red %d yellow %d, want 0/0", m.RedBeasts, m.YellowBeasts)
	}
}

func TestConquerorCurrencyAttribution(t *testing.T) {
	x := testExtractor()

	events := []storage.StoredEvent{
		ev(event.TypeConqueror, "Baran, the Crusader: You have no place here!", at(1, 0)),
		ev(event.TypeConqueror, "Baran, the Crusader: The Order... will endure", at(4, 0)),
	}
	items := []storage.Item{
		{Timestamp: at(4, 10), Name: "Crusader's Exalted Orb"},
		{Timestamp: at(4, 20), Name: "Chaos Orb"},
	}

	info := x.Extract(events, items)

	f := info.Conquerors["Baran, the Crusader"]
	if f == nil || !f.defeated() {
		t.Fatalf("baran fight = %+v", f)
	}
	if len(f.Drops) != 1 || f.Drops[0] != "Crusader's Exalted Orb" {
		t.Fatalf("drops = %+v", f.Drops)
	}
}

func TestConquerorCurrencyNeedsDefeat(t *testing.T) {
	x := testExtractor()

	events := []storage.StoredEvent{
		ev(event.TypeConqueror, "Baran, the Crusader: You have no place here!", at(1, 0)),
	}
	items := []storage.Item{{Timestamp: at(2, 0), Name: "Crusader's Exalted Orb"}}

	info := x.Extract(events, items)

	if f := info.Conquerors["Baran, the Crusader"]; f != nil && len(f.Drops) != 0 {
		t.Fatalf("drops attributed without a defeat: %+v", f.Drops)
	}
}

func TestTrialOutcome(t *testing.T) {
	x := testExtractor()

	info := x.Extract([]storage.StoredEvent{
		ev(event.TypeLeagueNPC, "The Trialmaster: The ground corrodes beneath you.", at(1, 0)),
		ev(event.TypeLeagueNPC, "The Trialmaster: You have bested every trial.", at(2, 0)),
		ev(event.TypeLeagueNPC, "The Trialmaster: Take your winnings and go.", at(3, 0)),
	}, nil)

	if info.Trial == nil {
		t.Fatal("no trial recorded")
	}
	if !info.Trial.Won || !info.Trial.TookRewards || info.Trial.Lost {
		t.Fatalf("trial = %+v", info.Trial)
	}
	if len(info.Trial.Rounds) != 1 || info.Trial.Rounds[0].Mod != ModRuin {
		t.Fatalf("rounds = %+v", info.Trial.Rounds)
	}
}

func TestMavenWitnessAndEnvoy(t *testing.T) {
	x := testExtractor()

	info := x.Extract([]storage.StoredEvent{
		ev(event.TypeLeagueNPC, "The Maven: Interesting.", at(1, 0)),
		ev(event.TypeLeagueNPC, "The Envoy: The Maven watches.", at(2, 0)),
		ev(event.TypeLeagueNPC, "The Envoy: She grows curious.", at(3, 0)),
	}, nil)

	if info.Maven == nil || !info.Maven.Witnessed {
		t.Fatalf("maven = %+v", info.Maven)
	}
	if info.EnvoyWords != 2 {
		t.Fatalf("envoy words = %d, want 2", info.EnvoyWords)
	}
}
