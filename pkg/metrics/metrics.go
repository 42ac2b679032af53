package metrics

import (
	"errors"
	"fmt"
)

// Type groups metrics by what their value measures.
type Type string

const (
	TypeSkill    Type = "skill"
	TypeActivity Type = "activity"
	TypeBoss     Type = "boss"
)

// Measure names the unit each metric type is tracked in.
const (
	MeasureExperience = "experience"
	MeasureScore      = "score"
	MeasureKills      = "kills"
)

// Key identifies a tracked metric. Keys are unique across all types.
type Key string

var ErrInvalidMetric = errors.New("invalid metric")

// Metric is one entry in the static catalog.
type Metric struct {
	Key  Key
	Name string
	Type Type
	// DifficultyFactor scales achievement thresholds for metrics that
	// accumulate slower or faster than the baseline of their type.
	DifficultyFactor float64
}

// MeasureName returns the unit the metric's value is tracked in.
func (m Metric) MeasureName() string {
	switch m.Type {
	case TypeSkill:
		return MeasureExperience
	case TypeActivity:
		return MeasureScore
	default:
		return MeasureKills
	}
}

// ValueKey returns the column/field name of the metric's value.
func (m Metric) ValueKey() string {
	return fmt.Sprintf("%s_%s", m.Key, m.MeasureName())
}

// RankKey returns the column/field name of the metric's rank.
func (m Metric) RankKey() string {
	return fmt.Sprintf("%s_rank", m.Key)
}

// Skill metric keys.
const (
	Overall      Key = "overall"
	Attack       Key = "attack"
	Defence      Key = "defence"
	Strength     Key = "strength"
	Hitpoints    Key = "hitpoints"
	Ranged       Key = "ranged"
	Prayer       Key = "prayer"
	Magic        Key = "magic"
	Cooking      Key = "cooking"
	Woodcutting  Key = "woodcutting"
	Fletching    Key = "fletching"
	Fishing      Key = "fishing"
	Firemaking   Key = "firemaking"
	Crafting     Key = "crafting"
	Smithing     Key = "smithing"
	Mining       Key = "mining"
	Herblore     Key = "herblore"
	Agility      Key = "agility"
	Thieving     Key = "thieving"
	Slayer       Key = "slayer"
	Farming      Key = "farming"
	Runecrafting Key = "runecrafting"
	Hunter       Key = "hunter"
	Construction Key = "construction"
)

// Activity metric keys.
const (
	LeaguePoints        Key = "league_points"
	BountyHunterHunter  Key = "bounty_hunter_hunter"
	BountyHunterRogue   Key = "bounty_hunter_rogue"
	ClueScrollsAll      Key = "clue_scrolls_all"
	ClueScrollsBeginner Key = "clue_scrolls_beginner"
	ClueScrollsEasy     Key = "clue_scrolls_easy"
	ClueScrollsMedium   Key = "clue_scrolls_medium"
	ClueScrollsHard     Key = "clue_scrolls_hard"
	ClueScrollsElite    Key = "clue_scrolls_elite"
	ClueScrollsMaster   Key = "clue_scrolls_master"
	LastManStanding     Key = "last_man_standing"
	SoulWarsZeal        Key = "soul_wars_zeal"
)

// Boss metric keys.
const (
	AbyssalSire             Key = "abyssal_sire"
	AlchemicalHydra         Key = "alchemical_hydra"
	BarrowsChests           Key = "barrows_chests"
	Bryophyta               Key = "bryophyta"
	Callisto                Key = "callisto"
	Cerberus                Key = "cerberus"
	ChambersOfXeric         Key = "chambers_of_xeric"
	ChambersOfXericCM       Key = "chambers_of_xeric_challenge_mode"
	ChaosElemental          Key = "chaos_elemental"
	ChaosFanatic            Key = "chaos_fanatic"
	CommanderZilyana        Key = "commander_zilyana"
	CorporealBeast          Key = "corporeal_beast"
	CrazyArchaeologist      Key = "crazy_archaeologist"
	DagannothPrime          Key = "dagannoth_prime"
	DagannothRex            Key = "dagannoth_rex"
	DagannothSupreme        Key = "dagannoth_supreme"
	DerangedArchaeologist   Key = "deranged_archaeologist"
	GeneralGraardor         Key = "general_graardor"
	GiantMole               Key = "giant_mole"
	GrotesqueGuardians      Key = "grotesque_guardians"
	Hespori                 Key = "hespori"
	KalphiteQueen           Key = "kalphite_queen"
	KingBlackDragon         Key = "king_black_dragon"
	Kraken                  Key = "kraken"
	Kreearra                Key = "kreearra"
	KrilTsutsaroth          Key = "kril_tsutsaroth"
	Mimic                   Key = "mimic"
	Nightmare               Key = "nightmare"
	Obor                    Key = "obor"
	Sarachnis               Key = "sarachnis"
	Scorpia                 Key = "scorpia"
	Skotizo                 Key = "skotizo"
	TheGauntlet             Key = "the_gauntlet"
	TheCorruptedGauntlet    Key = "the_corrupted_gauntlet"
	TheatreOfBlood          Key = "theatre_of_blood"
	ThermonuclearSmokeDevil Key = "thermonuclear_smoke_devil"
	TzKalZuk                Key = "tzkal_zuk"
	TzTokJad                Key = "tztok_jad"
	Venenatis               Key = "venenatis"
	Vetion                  Key = "vetion"
	Vorkath                 Key = "vorkath"
	Wintertodt              Key = "wintertodt"
	Zalcano                 Key = "zalcano"
	Zulrah                  Key = "zulrah"
)

func skill(key Key, name string) Metric {
	return Metric{Key: key, Name: name, Type: TypeSkill, DifficultyFactor: 1}
}

func activity(key Key, name string) Metric {
	return Metric{Key: key, Name: name, Type: TypeActivity, DifficultyFactor: 1}
}

func boss(key Key, name string, factor float64) Metric {
	return Metric{Key: key, Name: name, Type: TypeBoss, DifficultyFactor: factor}
}

// catalog is the full metric registry, in canonical (hiscores) order.
// Boss difficulty factors scale kill-count achievement thresholds: slow,
// high-effort bosses complete achievements at a fraction of the base count.
var catalog = []Metric{
	skill(Overall, "Overall"),
	skill(Attack, "Attack"),
	skill(Defence, "Defence"),
	skill(Strength, "Strength"),
	skill(Hitpoints, "Hitpoints"),
	skill(Ranged, "Ranged"),
	skill(Prayer, "Prayer"),
	skill(Magic, "Magic"),
	skill(Cooking, "Cooking"),
	skill(Woodcutting, "Woodcutting"),
	skill(Fletching, "Fletching"),
	skill(Fishing, "Fishing"),
	skill(Firemaking, "Firemaking"),
	skill(Crafting, "Crafting"),
	skill(Smithing, "Smithing"),
	skill(Mining, "Mining"),
	skill(Herblore, "Herblore"),
	skill(Agility, "Agility"),
	skill(Thieving, "Thieving"),
	skill(Slayer, "Slayer"),
	skill(Farming, "Farming"),
	skill(Runecrafting, "Runecrafting"),
	skill(Hunter, "Hunter"),
	skill(Construction, "Construction"),

	activity(LeaguePoints, "League Points"),
	activity(BountyHunterHunter, "Bounty Hunter (Hunter)"),
	activity(BountyHunterRogue, "Bounty Hunter (Rogue)"),
	activity(ClueScrollsAll, "Clue Scrolls (All)"),
	activity(ClueScrollsBeginner, "Clue Scrolls (Beginner)"),
	activity(ClueScrollsEasy, "Clue Scrolls (Easy)"),
	activity(ClueScrollsMedium, "Clue Scrolls (Medium)"),
	activity(ClueScrollsHard, "Clue Scrolls (Hard)"),
	activity(ClueScrollsElite, "Clue Scrolls (Elite)"),
	activity(ClueScrollsMaster, "Clue Scrolls (Master)"),
	activity(LastManStanding, "Last Man Standing"),
	activity(SoulWarsZeal, "Soul Wars Zeal"),

	boss(AbyssalSire, "Abyssal Sire", 1),
	boss(AlchemicalHydra, "Alchemical Hydra", 1),
	boss(BarrowsChests, "Barrows Chests", 1),
	boss(Bryophyta, "Bryophyta", 0.2),
	boss(Callisto, "Callisto", 1),
	boss(Cerberus, "Cerberus", 1),
	boss(ChambersOfXeric, "Chambers Of Xeric", 1),
	boss(ChambersOfXericCM, "Chambers Of Xeric (CM)", 0.2),
	boss(ChaosElemental, "Chaos Elemental", 1),
	boss(ChaosFanatic, "Chaos Fanatic", 1),
	boss(CommanderZilyana, "Commander Zilyana", 1),
	boss(CorporealBeast, "Corporeal Beast", 1),
	boss(CrazyArchaeologist, "Crazy Archaeologist", 1),
	boss(DagannothPrime, "Dagannoth Prime", 1),
	boss(DagannothRex, "Dagannoth Rex", 1),
	boss(DagannothSupreme, "Dagannoth Supreme", 1),
	boss(DerangedArchaeologist, "Deranged Archaeologist", 1),
	boss(GeneralGraardor, "General Graardor", 1),
	boss(GiantMole, "Giant Mole", 1),
	boss(GrotesqueGuardians, "Grotesque Guardians", 1),
	boss(Hespori, "Hespori", 0.1),
	boss(KalphiteQueen, "Kalphite Queen", 1),
	boss(KingBlackDragon, "King Black Dragon", 1),
	boss(Kraken, "Kraken", 1),
	boss(Kreearra, "Kree'Arra", 1),
	boss(KrilTsutsaroth, "K'ril Tsutsaroth", 1),
	boss(Mimic, "Mimic", 0.05),
	boss(Nightmare, "Nightmare", 1),
	boss(Obor, "Obor", 0.2),
	boss(Sarachnis, "Sarachnis", 1),
	boss(Scorpia, "Scorpia", 1),
	boss(Skotizo, "Skotizo", 0.2),
	boss(TheGauntlet, "The Gauntlet", 0.4),
	boss(TheCorruptedGauntlet, "The Corrupted Gauntlet", 0.4),
	boss(TheatreOfBlood, "Theatre Of Blood", 1),
	boss(ThermonuclearSmokeDevil, "Thermonuclear Smoke Devil", 1),
	boss(TzKalZuk, "TzKal-Zuk", 0.02),
	boss(TzTokJad, "TzTok-Jad", 0.1),
	boss(Venenatis, "Venenatis", 1),
	boss(Vetion, "Vet'ion", 1),
	boss(Vorkath, "Vorkath", 1),
	boss(Wintertodt, "Wintertodt", 1),
	boss(Zalcano, "Zalcano", 1),
	boss(Zulrah, "Zulrah", 1),
}

var byKey = func() map[Key]Metric {
	m := make(map[Key]Metric, len(catalog))
	for _, metric := range catalog {
		if _, dup := m[metric.Key]; dup {
			panic(fmt.Sprintf("duplicate metric key %q", metric.Key))
		}
		m[metric.Key] = metric
	}
	return m
}()

// All returns every metric in canonical order. The returned slice must not
// be mutated.
func All() []Metric {
	return catalog
}

// Count returns the catalog size.
func Count() int {
	return len(catalog)
}

// Get looks up a metric by key.
func Get(key Key) (Metric, error) {
	m, ok := byKey[key]
	if !ok {
		return Metric{}, fmt.Errorf("%w: %q", ErrInvalidMetric, key)
	}
	return m, nil
}

// IsValid reports whether key names a tracked metric.
func IsValid(key Key) bool {
	_, ok := byKey[key]
	return ok
}

func ofType(t Type) []Metric {
	out := make([]Metric, 0, len(catalog))
	for _, m := range catalog {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Skills returns all skill metrics.
func Skills() []Metric { return ofType(TypeSkill) }

// Activities returns all activity metrics.
func Activities() []Metric { return ofType(TypeActivity) }

// Bosses returns all boss metrics.
func Bosses() []Metric { return ofType(TypeBoss) }
