package stats

import "math/rand/v2"

// resolveTrialRounds fixes up ambiguous trial round modifiers in place.
//
// One Trialmaster voice line maps to either "Ruin" or "Stalking Ruin
// III" with no further disambiguating text. Resolution runs two passes:
//
//   - pass 1 resolves every ambiguous entry that the unambiguous
//     evidence (the seen-modifier booleans and the entry's position
//     relative to other tiers) logically forces one way, and records
//     the corroborating booleans as it goes;
//   - pass 2 re-scans the remaining ambiguous entries against the
//     booleans pass 1 set, because resolving one entry can disambiguate
//     another that pass 1 could not.
//
// Anything still ambiguous after both passes is assigned by a uniform
// random pick between the two candidates. That fallback is accepted
// imprecision: the log genuinely does not contain the answer.
func resolveTrialRounds(rounds []TrialRound) {
	var seen struct {
		ruin, ruin2, ruin3    bool
		sruin, sruin2, sruin3 bool
	}
	note := func(mod string) {
		switch mod {
		case ModRuin:
			seen.ruin = true
		case ModRuin2:
			seen.ruin2 = true
		case ModRuin3:
			seen.ruin3 = true
		case ModStalkingRuin:
			seen.sruin = true
		case ModStalkingRuin2:
			seen.sruin2 = true
		case ModStalkingRuin3:
			seen.sruin3 = true
		}
	}
	for _, r := range rounds {
		if !r.Ambiguous {
			note(r.Mod)
		}
	}

	assign := func(i int, mod string) {
		rounds[i].Mod = mod
		rounds[i].Ambiguous = false
		note(mod)
	}

	// tryResolve applies the deterministic rules to entry i:
	//   each Ruin tier occurs at most once, and within a family the
	//   tiers escalate, so Ruin must precede an unambiguous Ruin II/III
	//   and Stalking Ruin III cannot precede Stalking Ruin I/II.
	tryResolve := func(i int) {
		switch {
		case seen.ruin:
			assign(i, ModStalkingRuin3)
		case seen.sruin3:
			assign(i, ModRuin)
		case higherRuinBefore(rounds, i):
			assign(i, ModStalkingRuin3)
		case lowerStalkingAfter(rounds, i):
			assign(i, ModRuin)
		}
	}

	for pass := 0; pass < 2; pass++ {
		for i := range rounds {
			if rounds[i].Ambiguous {
				tryResolve(i)
			}
		}
	}

	for i := range rounds {
		if rounds[i].Ambiguous {
			if rand.IntN(2) == 0 {
				assign(i, ModRuin)
			} else {
				assign(i, ModStalkingRuin3)
			}
		}
	}
}

// higherRuinBefore reports an unambiguous Ruin II or Ruin III at an
// index before i: Ruin itself must then have occurred even earlier, so
// entry i cannot be it.
func higherRuinBefore(rounds []TrialRound, i int) bool {
	for j := 0; j < i; j++ {
		if rounds[j].Ambiguous {
			continue
		}
		if rounds[j].Mod == ModRuin2 || rounds[j].Mod == ModRuin3 {
			return true
		}
	}
	return false
}

// lowerStalkingAfter reports an unambiguous Stalking Ruin or Stalking
// Ruin II at an index after i: the stalking tiers escalate, so entry i
// cannot already be tier III.
func lowerStalkingAfter(rounds []TrialRound, i int) bool {
	for j := i + 1; j < len(rounds); j++ {
		if rounds[j].Ambiguous {
			continue
		}
		if rounds[j].Mod == ModStalkingRuin || rounds[j].Mod == ModStalkingRuin2 {
			return true
		}
	}
	return false
}
