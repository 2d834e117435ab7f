package eventdomain

import (
	"slices"
	"strings"
	"unicode"
)

// Category is the class of hiscore statistic an event measures.
type Category string

const (
	CategoryCustom Category = "custom"
	CategorySkills Category = "skills"
	CategoryBH     Category = "bh"
	CategoryLMS    Category = "lms"
	CategoryClues  Category = "clues"
	CategoryBosses Category = "bosses"
)

// Categories lists every trackable category in display order.
var Categories = []Category{CategoryCustom, CategorySkills, CategoryBH, CategoryLMS, CategoryClues, CategoryBosses}

// Tracking selects the category and the metrics within it to diff.
type Tracking struct {
	Category Category `json:"category"`
	What     []string `json:"what,omitempty"`
}

var catalog = map[Category][]string{
	CategoryCustom: nil,
	CategoryLMS:    nil,
	CategorySkills: {
		"overall", "attack", "defence", "strength", "hitpoints", "ranged", "prayer", "magic",
		"cooking", "woodcutting", "fletching", "fishing", "firemaking", "crafting", "smithing",
		"mining", "herblore", "agility", "thieving", "slayer", "farming", "runecraft", "hunter",
		"construction",
	},
	CategoryBH:    {"hunter", "rogue"},
	CategoryClues: {"all", "beginner", "easy", "medium", "hard", "elite", "master"},
	CategoryBosses: metricKeys(
		"Abyssal Sire", "Alchemical Hydra", "Amoxliatl", "Araxxor", "Artio", "Barrows Chests",
		"Bryophyta", "Callisto", "Calvar'ion", "Cerberus", "Chambers of Xeric",
		"Chambers of Xeric: Challenge Mode", "Chaos Elemental", "Chaos Fanatic",
		"Commander Zilyana", "Corporeal Beast", "Crazy Archaeologist", "Dagannoth Prime",
		"Dagannoth Rex", "Dagannoth Supreme", "Deranged Archaeologist", "Duke Sucellus",
		"General Graardor", "Giant Mole", "Grotesque Guardians", "Hespori", "Kalphite Queen",
		"King Black Dragon", "Kraken", "Kree'Arra", "K'ril Tsutsaroth", "Lunar Chests", "Mimic",
		"Nex", "Nightmare", "Phosani's Nightmare", "Obor", "Phantom Muspah", "Sarachnis",
		"Scorpia", "Scurrius", "Skotizo", "Sol Heredit", "Spindel", "Tempoross", "The Gauntlet",
		"The Corrupted Gauntlet", "The Hueycoatl", "The Leviathan", "The Whisperer",
		"Theatre of Blood", "Theatre of Blood: Hard Mode", "Thermonuclear Smoke Devil",
		"Tombs of Amascut", "Tombs of Amascut: Expert Mode", "TzKal-Zuk", "TzTok-Jad",
		"Vardorvis", "Venenatis", "Vet'ion", "Vorkath", "Wintertodt", "Zalcano", "Zulrah",
	),
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := catalog[c]
	return ok
}

// Metrics returns the sub-metric keys available for c.
func (c Category) Metrics() []string { return catalog[c] }

// HasMetric reports whether key belongs to c.
func (c Category) HasMetric(key string) bool { return slices.Contains(catalog[c], key) }

// UsesXP reports whether scores read the XP field instead of Score.
func (c Category) UsesXP() bool { return c == CategorySkills }

// ParseCategory matches user input against the known categories.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// MetricKey turns a hiscores label such as "Kree'Arra" into the key "kreearra".
// Runs of other separators collapse to a single underscore.
func MetricKey(label string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '\'':
		default:
			pendingSep = true
		}
	}
	return b.String()
}

func metricKeys(labels ...string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = MetricKey(l)
	}
	return out
}
