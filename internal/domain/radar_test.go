package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRadarSelection_NoDestination(t *testing.T) {
	sel := RadarSelection{Radars: []Site{{ID: "ktlx", Point: ktlx}, {ID: "KVNX", Point: kvnx}}}

	tr, err := sel.Transposition()
	require.NoError(t, err)
	assert.False(t, tr.Active())
	assert.Equal(t, []string{"KTLX", "KVNX"}, sel.TargetRadars())
}

func TestRadarSelection_WithDestination(t *testing.T) {
	sel := RadarSelection{
		Radars:   []Site{{ID: "KTLX", Point: ktlx}},
		NewRadar: &Site{ID: "kvnx", Point: kvnx},
	}

	tr, err := sel.Transposition()
	require.NoError(t, err)
	assert.True(t, tr.Active())
	assert.Equal(t, ktlx, tr.Origin)
	assert.Equal(t, kvnx, *tr.Dest)
	assert.Equal(t, []string{"KVNX"}, sel.TargetRadars())
}

func TestRadarSelection_DestinationNeedsSingleOrigin(t *testing.T) {
	for _, radars := range [][]Site{nil, {{ID: "KTLX", Point: ktlx}, {ID: "KINX"}}} {
		sel := RadarSelection{Radars: radars, NewRadar: &Site{ID: "KVNX", Point: kvnx}}
		_, err := sel.Transposition()
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "origin radar", cfgErr.Field)
	}
}
