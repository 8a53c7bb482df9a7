package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/segment-assigner/internal/model"
)

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assignments.xlsx")
	cands := sampleCandidates()
	best := []model.BestMatch{{Candidate: cands[0], ElevDeltaFt: model.Float(0)}}

	require.NoError(t, WriteXLSX(path, ids, cands, best))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)
	assert.Equal(t, CandidatesSheet, f.Sheets[0].Name)
	assert.Equal(t, BestMatchSheet, f.Sheets[1].Name)

	cs := f.Sheet[CandidatesSheet]
	require.Len(t, cs.Rows, len(cands)+1)
	assert.Equal(t, "station_id", cs.Rows[0].Cells[0].String())
	assert.Equal(t, "elev_check", cs.Rows[0].Cells[8].String())
	assert.Equal(t, "S1", cs.Rows[1].Cells[0].String())

	dist, err := cs.Rows[1].Cells[2].Float()
	require.NoError(t, err)
	assert.InDelta(t, 300.0, dist, 1e-9)
	assert.Equal(t, "fail", cs.Rows[3].Cells[8].String())

	bs := f.Sheet[BestMatchSheet]
	require.Len(t, bs.Rows, 2)
	assert.Equal(t, deltaColumn, bs.Rows[0].Cells[9].String())
}

func TestWriteXLSX_BadPath(t *testing.T) {
	err := WriteXLSX(filepath.Join(t.TempDir(), "missing", "out.xlsx"), ids, nil, nil)
	require.Error(t, err)
}
