package export

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/segment-assigner/internal/model"
)

// Manifest describes one assignment run: what went in, with which
// parameters, and what came out.
type Manifest struct {
	RunID     string          `yaml:"run_id,omitempty"`
	CreatedAt time.Time       `yaml:"created_at"`
	Params    model.RunParams `yaml:"params"`
	Sources   Sources         `yaml:"sources"`
	EPSG      int             `yaml:"epsg"`
	Counts    Counts          `yaml:"counts"`
	Outputs   Outputs         `yaml:"outputs"`
	Warnings  []string        `yaml:"warnings,omitempty"`
}

// Sources lists the inputs of a run. Empty entries were not used.
type Sources struct {
	Points     string `yaml:"points"`
	Lines      string `yaml:"lines"`
	Constraint string `yaml:"constraint,omitempty"`
	DEM        string `yaml:"dem,omitempty"`
}

// Counts summarizes the sizes of a run.
type Counts struct {
	Points           int `yaml:"points"`
	Lines            int `yaml:"lines"`
	Candidates       int `yaml:"candidates"`
	BestMatches      int `yaml:"best_matches"`
	UnknownElevation int `yaml:"unknown_elevation"`
}

// Outputs lists the files written by a run.
type Outputs struct {
	Candidates string `yaml:"candidates,omitempty"`
	Best       string `yaml:"best,omitempty"`
	XLSX       string `yaml:"xlsx,omitempty"`
}

// WriteManifest saves m as YAML at path.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return eris.Wrap(err, "export: marshal manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, eris.Wrapf(err, "export: read %s", path)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, eris.Wrapf(err, "export: parse %s", path)
	}
	return m, nil
}
