package model

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestLayerHasColumn(t *testing.T) {
	t.Parallel()

	l := &Layer{Columns: []string{"station_id", "elev"}}
	assert.True(t, l.HasColumn("station_id"))
	assert.False(t, l.HasColumn("Station_ID"))
	assert.Equal(t, 0, l.Len())

	var nilLayer *Layer
	assert.Equal(t, 0, nilLayer.Len())
}

func TestLineFeatureEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, LineFeature{}.Empty())
	assert.True(t, LineFeature{Geom: orb.MultiLineString{{}}}.Empty())
	assert.False(t, LineFeature{Geom: orb.MultiLineString{{{0, 0}, {1, 1}}}}.Empty())
}

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "running", string(RunStatusRunning))
	assert.Equal(t, "complete", string(RunStatusComplete))
	assert.Equal(t, "failed", string(RunStatusFailed))
}
