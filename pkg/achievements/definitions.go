package achievements

import (
	"fmt"
	"math"
	"sync"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/metrics"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
)

// Definition is one concrete achievement: a metric, a threshold and the
// display type string. Definitions are expanded from templates once per
// process and never mutated afterwards.
type Definition struct {
	Type      string
	Metric    metrics.Key
	Threshold int64
}

// Validate reports whether the given reading satisfies the definition.
func (d Definition) Validate(stat model.Stat) bool {
	return stat.Value != nil && *stat.Value >= d.Threshold
}

// ValidateSnapshot reports whether the snapshot satisfies the definition.
func (d Definition) ValidateSnapshot(s *model.Snapshot) bool {
	return s != nil && d.Validate(s.Stat(d.Metric))
}

const (
	level99Experience = 13_034_431
	maxExperience     = 200_000_000
)

// template is one tagged expansion rule. Exactly one of the three shapes is
// used per template:
//   - fixed metric, fixed threshold (single definition);
//   - one definition per metric of a type, fixed threshold;
//   - one definition per metric of a type, threshold scaled by the metric's
//     difficulty factor.
type template struct {
	format    string
	metric    metrics.Key // set for fixed-metric templates
	overType  metrics.Type
	threshold int64
	scaled    bool
}

var templates = []template{
	// Fixed-metric experience milestones.
	{format: "100m Overall Exp.", metric: metrics.Overall, threshold: 100_000_000},
	{format: "200m Overall Exp.", metric: metrics.Overall, threshold: 200_000_000},
	{format: "500m Overall Exp.", metric: metrics.Overall, threshold: 500_000_000},
	{format: "1b Overall Exp.", metric: metrics.Overall, threshold: 1_000_000_000},

	// Per-skill experience milestones.
	{format: "99 %s", overType: metrics.TypeSkill, threshold: level99Experience},
	{format: "50m %s", overType: metrics.TypeSkill, threshold: 50_000_000},
	{format: "100m %s", overType: metrics.TypeSkill, threshold: 100_000_000},
	{format: "200m %s", overType: metrics.TypeSkill, threshold: maxExperience},

	// Activity score milestones.
	{format: "500 %s score", overType: metrics.TypeActivity, threshold: 500, scaled: true},
	{format: "1k %s score", overType: metrics.TypeActivity, threshold: 1000, scaled: true},
	{format: "5k %s score", overType: metrics.TypeActivity, threshold: 5000, scaled: true},
	{format: "10k %s score", overType: metrics.TypeActivity, threshold: 10_000, scaled: true},

	// Boss kill-count milestones, scaled by each boss's difficulty factor.
	{format: "500 %s kills", overType: metrics.TypeBoss, threshold: 500, scaled: true},
	{format: "1k %s kills", overType: metrics.TypeBoss, threshold: 1000, scaled: true},
	{format: "5k %s kills", overType: metrics.TypeBoss, threshold: 5000, scaled: true},
	{format: "10k %s kills", overType: metrics.TypeBoss, threshold: 10_000, scaled: true},
}

var (
	expandOnce  sync.Once
	definitions []Definition
	byType      map[string]Definition
	byMetric    map[metrics.Key][]Definition
)

func expand() {
	for _, t := range templates {
		if t.metric != "" {
			definitions = append(definitions, Definition{
				Type:      t.format,
				Metric:    t.metric,
				Threshold: t.threshold,
			})
			continue
		}

		for _, m := range metrics.All() {
			if m.Type != t.overType {
				continue
			}
			// Overall milestones are covered by the fixed-metric templates.
			if m.Key == metrics.Overall {
				continue
			}

			threshold := t.threshold
			if t.scaled && m.DifficultyFactor != 1 {
				threshold = int64(math.Round(float64(t.threshold) * m.DifficultyFactor))
			}

			definitions = append(definitions, Definition{
				Type:      fmt.Sprintf(t.format, m.Name),
				Metric:    m.Key,
				Threshold: threshold,
			})
		}
	}

	byType = make(map[string]Definition, len(definitions))
	byMetric = make(map[metrics.Key][]Definition, metrics.Count())
	for _, d := range definitions {
		if _, dup := byType[d.Type]; dup {
			panic(fmt.Sprintf("duplicate achievement type %q", d.Type))
		}
		byType[d.Type] = d
		byMetric[d.Metric] = append(byMetric[d.Metric], d)
	}
}

// Definitions returns the full expanded definition list. The returned slice
// must not be mutated.
func Definitions() []Definition {
	expandOnce.Do(expand)
	return definitions
}

// DefinitionByType looks up a definition by its display type string.
func DefinitionByType(typ string) (Definition, bool) {
	expandOnce.Do(expand)
	d, ok := byType[typ]
	return d, ok
}

// DefinitionsForMetric returns all definitions over a metric.
func DefinitionsForMetric(key metrics.Key) []Definition {
	expandOnce.Do(expand)
	return byMetric[key]
}
