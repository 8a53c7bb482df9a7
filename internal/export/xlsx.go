package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/segment-assigner/internal/model"
)

// Workbook sheet names.
const (
	CandidatesSheet = "candidates"
	BestMatchSheet  = "best_match"
)

// WriteXLSX saves a workbook with a candidates sheet and a best_match sheet.
// Numeric columns are stored as numbers and missing values as empty cells.
func WriteXLSX(path string, ids IDColumns, cands []model.Candidate, best []model.BestMatch) error {
	f := xlsx.NewFile()

	cs, err := f.AddSheet(CandidatesSheet)
	if err != nil {
		return eris.Wrap(err, "export: add candidates sheet")
	}
	addHeader(cs, CandidateHeader(ids))
	for i := range cands {
		addCandidateCells(cs.AddRow(), &cands[i])
	}

	bs, err := f.AddSheet(BestMatchSheet)
	if err != nil {
		return eris.Wrap(err, "export: add best_match sheet")
	}
	addHeader(bs, BestHeader(ids))
	for i := range best {
		row := bs.AddRow()
		addCandidateCells(row, &best[i].Candidate)
		addOptional(row, best[i].ElevDeltaFt)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addHeader(s *xlsx.Sheet, cols []string) {
	row := s.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}

func addCandidateCells(row *xlsx.Row, c *model.Candidate) {
	row.AddCell().SetString(string(c.PointID))
	row.AddCell().SetString(string(c.LineID))
	row.AddCell().SetFloat(c.DistanceM)
	row.AddCell().SetFloat(c.DistanceFt)
	addOptional(row, c.PointElevFt)
	addOptional(row, c.LineMinElevFt)
	addOptional(row, c.LineMaxElevFt)
	row.AddCell().SetBool(c.ElevPass)
	row.AddCell().SetString(string(c.ElevCheck))
}

func addOptional(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloat(*v)
	}
}
