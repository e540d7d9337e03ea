package classify

// Static dialogue tables. The classifier only decides which table a
// speaker belongs to; what the dialogue means is the stats reducer's job.

// masterNames are the league masters whose missions we track per run.
var masterNames = map[string]bool{
	"Niko, Master of the Depths": true,
	"Einhar, Beastmaster":        true,
	"Alva, Master Explorer":      true,
	"Jun, Veiled Master":         true,
	"Zana, Master Cartographer":  true,
	"Sister Cassia":              true,
}

// conquerorNames covers the atlas conquerors and Sirus himself.
var conquerorNames = map[string]bool{
	"Baran, the Crusader":       true,
	"Veritania, the Redeemer":   true,
	"Al-Hezmin, the Hunter":     true,
	"Drox, the Warlord":         true,
	"Sirus, Awakener of Worlds": true,
}

// leagueNPCNames are per-league mechanic speakers.
var leagueNPCNames = map[string]bool{
	"The Trialmaster":             true,
	"Oshabi":                      true,
	"Strange Voice":               true,
	"Tane Octavius":               true,
	"Catarina, Master of Undeath": true,
	"The Envoy":                   true,
	"The Maven":                   true,
	"Izaro":                       true,
}

// mapBossNames is not exhaustive; it covers the bosses whose battle
// windows the stats reducer records. Unknown speakers inside a map fall
// through to chat classification.
var mapBossNames = map[string]bool{
	"The Shaper":                true,
	"The Elder":                 true,
	"The Eater of Worlds":       true,
	"The Searing Exarch":        true,
	"The Black Star":            true,
	"The Infinite Hunger":       true,
	"Atziri, Queen of the Vaal": true,
	"The Cleansing Light":       true,
	"The Consuming Dark":        true,
	"Guardian of the Phoenix":   true,
	"Guardian of the Hydra":     true,
	"Guardian of the Minotaur":  true,
	"Guardian of the Chimera":   true,
	"Aul, the Crystal King":     true,
	"Kurgal, the Blackblooded":  true,
}

// shrinePhrases maps the activation message to the shrine it came from.
var shrinePhrases = map[string]string{
	"A sudden surge of energy fills you":        "Acceleration",
	"You feel overwhelming bloodlust":           "Brutal",
	"Diamond light shines upon you":             "Diamond",
	"You are wreathed in flame":                 "Burning",
	"Frost creeps across your body":             "Freezing",
	"Sparks dance between your fingers":         "Lightning",
	"You feel the impenetrable hide of a beast": "Impenetrable",
	"Massive strength floods your muscles":      "Massive",
	"You have been replenished":                 "Replenishing",
	"Echoes surround you":                       "Echoing",
	"You feel nothing can harm you":             "Divine",
	"The gods are watching":                     "Gloom",
	"Your skin hardens to stone":                "Resistance",
	"Time slows around you":                     "Static",
}
