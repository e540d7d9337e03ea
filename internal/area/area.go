// Package area classifies area names the way the run tracker needs
// them: towns and hideouts never hold a run, labyrinth and a few
// persistent areas must not split one.
package area

import "strings"

var towns = map[string]bool{
	"Lioneye's Watch":         true,
	"The Forest Encampment":   true,
	"The Sarn Encampment":     true,
	"Highgate":                true,
	"Overseer's Tower":        true,
	"The Bridge Encampment":   true,
	"Oriath Docks":            true,
	"Oriath":                  true,
	"The Rogue Harbour":       true,
	"Karui Shores":            true,
	"Kirac's Vault":           true,
	"The Menagerie":           true,
	"Azurite Mine Encampment": true,
}

// labyrinth areas share one logical run; crossing between them is not a
// run boundary.
var labyrinth = map[string]bool{
	"Aspirant's Plaza": true,
	"Aspirant's Trial": true,
	"Estate Path":      true,
	"Estate Walkways":  true,
	"Estate Crossing":  true,
	"Basilica Path":    true,
	"Sanitorium":       true,
	"Mansion Atrium":   true,
}

// LabAirlock is the staging area before the labyrinth proper; it never
// starts a run.
const LabAirlock = "Aspirant's Plaza"

// LabBossArea holds the Izaro fights; it never starts a run of its own.
const LabBossArea = "Aspirant's Trial"

// Persistent non-instanced areas: leaving and re-entering them does not
// end a run.
const (
	AzuriteMine = "Azurite Mine"
	MemoryVoid  = "Memory Void"
)

func IsTown(name string) bool {
	return towns[name]
}

// IsHideout treats any "... Hideout" as a hideout except the Betrayal
// encounter areas, which are maps in their own right.
func IsHideout(name string) bool {
	if !strings.HasSuffix(name, "Hideout") {
		return false
	}
	switch name {
	case "Syndicate Hideout", "Fortification Hideout", "Intervention Hideout", "Research Hideout", "Transportation Hideout":
		return false
	}
	return true
}

func IsLabyrinth(name string) bool {
	return labyrinth[name]
}

// IsSameLogicalArea reports whether moving from prev to next stays
// inside one non-splittable area class.
func IsSameLogicalArea(prev, next string) bool {
	if prev == next {
		return true
	}
	if IsLabyrinth(prev) && IsLabyrinth(next) {
		return true
	}
	return false
}

// NeverStartsRun reports areas that cannot open a run.
func NeverStartsRun(name string) bool {
	return IsTown(name) || IsHideout(name) || name == LabAirlock || name == LabBossArea
}
