// Package export writes assignment results: delimited text tables, an XLSX
// workbook, and a YAML run manifest.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/segment-assigner/internal/model"
)

// IDColumns names the first two output columns after the source id columns.
type IDColumns struct {
	Point string
	Line  string
}

// Fixed columns following the two id columns.
var candidateColumns = []string{
	"distance_m",
	"distance_ft",
	"station_elev_ft",
	"seg_min_elev_ft",
	"seg_max_elev_ft",
	"elev_pass",
	"elev_check",
}

const deltaColumn = "elev_delta_abs_ft"

// CandidateHeader returns the candidate table header.
func CandidateHeader(ids IDColumns) []string {
	return append([]string{ids.Point, ids.Line}, candidateColumns...)
}

// BestHeader returns the best-match table header.
func BestHeader(ids IDColumns) []string {
	return append(CandidateHeader(ids), deltaColumn)
}

// WriteCandidatesCSV writes one row per candidate under CandidateHeader.
func WriteCandidatesCSV(w io.Writer, ids IDColumns, cands []model.Candidate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CandidateHeader(ids)); err != nil {
		return eris.Wrap(err, "export: write candidate header")
	}
	for i := range cands {
		if err := cw.Write(candidateRow(&cands[i])); err != nil {
			return eris.Wrap(err, "export: write candidate row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush candidates")
}

// WriteBestMatchesCSV writes one row per best match under BestHeader.
func WriteBestMatchesCSV(w io.Writer, ids IDColumns, best []model.BestMatch) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BestHeader(ids)); err != nil {
		return eris.Wrap(err, "export: write best header")
	}
	for i := range best {
		row := append(candidateRow(&best[i].Candidate), formatOptional(best[i].ElevDeltaFt))
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write best row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush best matches")
}

// WriteCandidatesFile creates path and writes the candidate table to it.
func WriteCandidatesFile(path string, ids IDColumns, cands []model.Candidate) error {
	return writeFile(path, func(w io.Writer) error { return WriteCandidatesCSV(w, ids, cands) })
}

// WriteBestMatchesFile creates path and writes the best-match table to it.
func WriteBestMatchesFile(path string, ids IDColumns, best []model.BestMatch) error {
	return writeFile(path, func(w io.Writer) error { return WriteBestMatchesCSV(w, ids, best) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

// ReadCandidatesCSV parses a table written by WriteCandidatesCSV and
// returns the id column names found in its header.
func ReadCandidatesCSV(r io.Reader) ([]model.Candidate, IDColumns, error) {
	rows, ids, err := readTable(r, len(candidateColumns)+2, candidateColumns)
	if err != nil {
		return nil, ids, err
	}
	out := make([]model.Candidate, 0, len(rows))
	for i, rec := range rows {
		c, err := parseCandidate(rec)
		if err != nil {
			return nil, ids, eris.Wrapf(err, "export: candidate row %d", i+2)
		}
		out = append(out, c)
	}
	return out, ids, nil
}

// ReadBestMatchesCSV parses a table written by WriteBestMatchesCSV.
func ReadBestMatchesCSV(r io.Reader) ([]model.BestMatch, IDColumns, error) {
	want := append(append([]string{}, candidateColumns...), deltaColumn)
	rows, ids, err := readTable(r, len(want)+2, want)
	if err != nil {
		return nil, ids, err
	}
	out := make([]model.BestMatch, 0, len(rows))
	for i, rec := range rows {
		c, err := parseCandidate(rec)
		if err != nil {
			return nil, ids, eris.Wrapf(err, "export: best row %d", i+2)
		}
		delta, err := parseOptional(rec[len(rec)-1])
		if err != nil {
			return nil, ids, eris.Wrapf(err, "export: best row %d: %s", i+2, deltaColumn)
		}
		out = append(out, model.BestMatch{Candidate: c, ElevDeltaFt: delta})
	}
	return out, ids, nil
}

func readTable(r io.Reader, width int, want []string) ([][]string, IDColumns, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = width

	header, err := cr.Read()
	if err == io.EOF {
		return nil, IDColumns{}, eris.New("export: empty table")
	}
	if err != nil {
		return nil, IDColumns{}, eris.Wrap(err, "export: read header")
	}
	for i, name := range want {
		if header[i+2] != name {
			return nil, IDColumns{}, eris.Errorf("export: column %d is %q, want %q", i+3, header[i+2], name)
		}
	}
	ids := IDColumns{Point: header[0], Line: header[1]}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, ids, eris.Wrap(err, "export: read rows")
	}
	return rows, ids, nil
}

func candidateRow(c *model.Candidate) []string {
	return []string{
		string(c.PointID),
		string(c.LineID),
		formatFloat(c.DistanceM),
		formatFloat(c.DistanceFt),
		formatOptional(c.PointElevFt),
		formatOptional(c.LineMinElevFt),
		formatOptional(c.LineMaxElevFt),
		strconv.FormatBool(c.ElevPass),
		string(c.ElevCheck),
	}
}

func parseCandidate(rec []string) (model.Candidate, error) {
	c := model.Candidate{
		PointID:   model.ID(rec[0]),
		LineID:    model.ID(rec[1]),
		ElevCheck: model.ElevCheck(rec[8]),
	}
	var err error
	if c.DistanceM, err = strconv.ParseFloat(rec[2], 64); err != nil {
		return c, eris.Wrap(err, "distance_m")
	}
	if c.DistanceFt, err = strconv.ParseFloat(rec[3], 64); err != nil {
		return c, eris.Wrap(err, "distance_ft")
	}
	if c.PointElevFt, err = parseOptional(rec[4]); err != nil {
		return c, eris.Wrap(err, "station_elev_ft")
	}
	if c.LineMinElevFt, err = parseOptional(rec[5]); err != nil {
		return c, eris.Wrap(err, "seg_min_elev_ft")
	}
	if c.LineMaxElevFt, err = parseOptional(rec[6]); err != nil {
		return c, eris.Wrap(err, "seg_max_elev_ft")
	}
	if c.ElevPass, err = strconv.ParseBool(rec[7]); err != nil {
		return c, eris.Wrap(err, "elev_pass")
	}
	return c, nil
}

// formatFloat renders the shortest text that parses back to v.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseOptional(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
