package stats

// Dialogue tables. Matching is prefix-based: voice lines in the client
// log are stable, but localized punctuation at the end is not.

// einharRedCapture / einharYellowCapture split beast captures by rarity.
var einharRedCapture = []string{
	"Haha! You are captured, stupid beast",
	"You have been captured, great beast",
	"This one is strong. A worthy capture",
}

var einharYellowCapture = []string{
	"You are captured, little beast",
	"Great job, Exile! Einhar will take the beast from here",
	"The First Ones look upon this capture with pride",
}

// einharRemainingColour is consulted by the post-reduction fixup: when
// every other capture in the encounter had a known colour, the odd
// "generic" capture line is inferred to be the remaining colour.
var einharGenericCapture = []string{
	"Beast captured",
	"Another beast for the menagerie",
}

var alvaIncursionOpen = []string{
	"The temple door opens",
	"I have located an Incursion",
}

var alvaIncursionDone = []string{
	"The portal to the past is fading",
	"Good work, Exile",
}

var alvaTemple = []string{
	"The Temple of Atzoatl reveals itself",
}

var nikoSulphite = []string{
	"More Sulphite for the crawler",
	"That is a fine deposit of Sulphite",
}

var junSafehouse = []string{
	"The safehouse is yours, Exile",
}

var cassiaLane = []string{
	"The ichor is draining from this lane",
	"Another tendril withers",
}

var masterMissionDone = []string{
	"Mission complete",
	"This hunt is over",
	"Our work here is done",
}

// conquerorBattleStart / conquerorDefeated key on the speaker name.
var conquerorBattleStart = map[string][]string{
	"Baran, the Crusader":       {"You have no place here", "The Order does not forgive"},
	"Veritania, the Redeemer":   {"The cold embrace of death awaits", "You walk into your grave"},
	"Al-Hezmin, the Hunter":     {"The hunt begins", "I smell your fear, prey"},
	"Drox, the Warlord":         {"Warriors, to me", "You face the legion of Drox"},
	"Sirus, Awakener of Worlds": {"Feel the thrill of the void", "Did you really think you stood a chance"},
}

var conquerorDefeated = map[string][]string{
	"Baran, the Crusader":       {"The Order... will endure"},
	"Veritania, the Redeemer":   {"So cold... so dark"},
	"Al-Hezmin, the Hunter":     {"The prey... has become... the hunter"},
	"Drox, the Warlord":         {"My legion... my glory..."},
	"Sirus, Awakener of Worlds": {"At last... silence"},
}

// conquerorCurrency attributes faction exalted orbs dropped in the same
// run to the conqueror defeated in it (post-reduction fixup).
var conquerorCurrency = map[string]string{
	"Crusader's Exalted Orb": "Baran, the Crusader",
	"Redeemer's Exalted Orb": "Veritania, the Redeemer",
	"Hunter's Exalted Orb":   "Al-Hezmin, the Hunter",
	"Warlord's Exalted Orb":  "Drox, the Warlord",
	"Awakener's Orb":         "Sirus, Awakener of Worlds",
}

// mapBossBattleStart / mapBossKill: a boss speaker's first tabled taunt
// opens the battle window, a tabled death cry closes it.
var mapBossBattleStart = map[string][]string{
	"The Shaper":          {"I have come to witness the end of all things", "The end approaches"},
	"The Elder":           {"...consume...", "...decay..."},
	"The Eater of Worlds": {"YOUR FLESH IS A GIFT"},
	"The Searing Exarch":  {"THE CLEANSING FIRE COMES"},
	"Izaro":               {"Justice will prevail"},
}

var mapBossKill = map[string][]string{
	"The Shaper":          {"There must... be... another way..."},
	"The Elder":           {"...silence..."},
	"The Eater of Worlds": {"HUNGER... UNSATED..."},
	"The Searing Exarch":  {"THE FLAME... GUTTERS..."},
	"Izaro":               {"I die a king"},
}

// Trial round modifiers (The Trialmaster). One voice line is genuinely
// ambiguous between two identities; see trial.go.
const (
	ModRuin          = "Ruin"
	ModRuin2         = "Ruin II"
	ModRuin3         = "Ruin III"
	ModStalkingRuin  = "Stalking Ruin"
	ModStalkingRuin2 = "Stalking Ruin II"
	ModStalkingRuin3 = "Stalking Ruin III"
	modAmbiguousRuin = "ambiguous" // Ruin or Stalking Ruin III
)

var trialmasterRounds = map[string]string{
	"The ground corrodes beneath you":            ModRuin,
	"The corrosion quickens":                     ModRuin2,
	"The corrosion consumes everything":          ModRuin3,
	"Ruin stalks your every step":                ModStalkingRuin,
	"Ruin hunts you in earnest":                  ModStalkingRuin2,
	"Let ruin overtake you":                      modAmbiguousRuin,
	"Entropy surrounds you":                      ModStalkingRuin3,
	"Choose: escape with your prize, or risk it": "",
}

var trialmasterOtherRounds = map[string]string{
	"The sands of time flow faster": "Accelerating Sands",
	"Blades whirl around you":       "Razor Dance",
	"The storm never ends":          "Stormcaller Runes",
}

var trialmasterWon = []string{
	"You have bested every trial",
	"Impressive. The wager is yours",
}

var trialmasterLost = []string{
	"Your ambition exceeded your skill",
	"The house always wins",
}

var trialmasterRewards = []string{
	"Take your winnings and go",
}

var oshabiBossStart = []string{
	"The Heart of the Grove beats for me alone",
}

var oshabiBossKill = []string{
	"The Grove... it releases me",
}

var mavenWitness = []string{
	"Interesting",
	"Again. Again",
}

var mavenCrucibleStart = []string{
	"Welcome to my crucible",
}

var mavenCrucibleKill = []string{
	"You are... worthy",
}
