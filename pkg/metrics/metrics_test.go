package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogIntegrity(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)
	assert.Equal(t, len(all), Count())

	seen := make(map[Key]bool, len(all))
	for _, m := range all {
		assert.False(t, seen[m.Key], "duplicate key %q", m.Key)
		seen[m.Key] = true
		assert.NotEmpty(t, m.Name, "metric %q has no display name", m.Key)
		assert.Greater(t, m.DifficultyFactor, 0.0, "metric %q has no difficulty factor", m.Key)
	}

	assert.Equal(t, Count(), len(Skills())+len(Activities())+len(Bosses()))
	assert.Len(t, Skills(), 24)
	assert.Len(t, Activities(), 12)
}

func TestGet(t *testing.T) {
	m, err := Get(Overall)
	require.NoError(t, err)
	assert.Equal(t, TypeSkill, m.Type)
	assert.Equal(t, "Overall", m.Name)

	_, err = Get("not_a_metric")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMetric)

	assert.True(t, IsValid(Zulrah))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("attack "))
}

func TestMeasureNames(t *testing.T) {
	attack, err := Get(Attack)
	require.NoError(t, err)
	assert.Equal(t, MeasureExperience, attack.MeasureName())
	assert.Equal(t, "attack_experience", attack.ValueKey())
	assert.Equal(t, "attack_rank", attack.RankKey())

	zeal, err := Get(SoulWarsZeal)
	require.NoError(t, err)
	assert.Equal(t, MeasureScore, zeal.MeasureName())
	assert.Equal(t, "soul_wars_zeal_score", zeal.ValueKey())

	zulrah, err := Get(Zulrah)
	require.NoError(t, err)
	assert.Equal(t, MeasureKills, zulrah.MeasureName())
	assert.Equal(t, "zulrah_kills", zulrah.ValueKey())
}

func TestDifficultyFactors(t *testing.T) {
	mimic, err := Get(Mimic)
	require.NoError(t, err)
	assert.Equal(t, 0.05, mimic.DifficultyFactor)

	zuk, err := Get(TzKalZuk)
	require.NoError(t, err)
	assert.Equal(t, 0.02, zuk.DifficultyFactor)

	// The common case stays unscaled.
	zulrah, err := Get(Zulrah)
	require.NoError(t, err)
	assert.Equal(t, 1.0, zulrah.DifficultyFactor)
}
