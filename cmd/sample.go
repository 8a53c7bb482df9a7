package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// Sample dataset file names written by the sample command.
const (
	sampleStationsFile = "stations_sample.geojson"
	sampleSegmentsFile = "segments_sample.geojson"
	sampleHFRAFile     = "hfra_sample.geojson"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write a small synthetic station and segment dataset",
	Long:  "Writes WGS84 GeoJSON stations, overhead and underground segments, and a constraint polygon around Santa Monica, CA for trying out the assign command.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		paths, err := writeSampleData(dir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	sampleCmd.Flags().String("dir", "sample_data", "output directory")
	rootCmd.AddCommand(sampleCmd)
}

// writeSampleData writes the three sample layers into dir and returns
// their paths.
func writeSampleData(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "sample: create dir")
	}
	layers := []struct {
		name string
		fc   *geojson.FeatureCollection
	}{
		{sampleStationsFile, sampleStations()},
		{sampleSegmentsFile, sampleSegments()},
		{sampleHFRAFile, sampleHFRA()},
	}
	paths := make([]string, 0, len(layers))
	for _, l := range layers {
		data, err := l.fc.MarshalJSON()
		if err != nil {
			return nil, eris.Wrapf(err, "sample: encode %s", l.name)
		}
		path := filepath.Join(dir, l.name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, eris.Wrapf(err, "sample: write %s", l.name)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func sampleStations() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range []struct {
		id       string
		lon, lat float64
		elevFt   float64
	}{
		{"SM_01", -118.495, 34.012, 100},
		{"SM_02", -118.490, 34.015, 150},
		{"SM_03", -118.485, 34.010, 90},
		{"SM_04", -118.492, 34.008, 110},
		{"SM_05", -118.488, 34.018, 160},
	} {
		f := geojson.NewFeature(orb.Point{s.lon, s.lat})
		f.Properties["station_id"] = s.id
		f.Properties["station_elev_ft"] = s.elevFt
		f.Properties["type"] = "Weather"
		fc.Append(f)
	}
	return fc
}

func sampleSegments() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	add := func(id string, ls orb.LineString, minFt, maxFt float64, structure string) {
		f := geojson.NewFeature(ls)
		f.Properties["segment_id"] = id
		f.Properties["seg_min_elev_ft"] = minFt
		f.Properties["seg_max_elev_ft"] = maxFt
		f.Properties["STRUCTURE"] = structure
		fc.Append(f)
	}
	for i, lat := range []float64{34.010, 34.015, 34.020} {
		add(fmt.Sprintf("EW_%d", i), orb.LineString{{-118.500, lat}, {-118.480, lat}},
			float64(80+i*20), float64(120+i*20), "OH")
	}
	for i, lon := range []float64{-118.495, -118.490, -118.485} {
		add(fmt.Sprintf("NS_%d", i), orb.LineString{{lon, 34.005}, {lon, 34.025}},
			float64(90+i*10), float64(150+i*10), "OH")
	}
	add("UG_0", orb.LineString{{-118.498, 34.006}, {-118.482, 34.022}}, 85, 140, "UG")
	return fc
}

func sampleHFRA() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{{
		{-118.493, 34.004}, {-118.478, 34.004}, {-118.478, 34.026}, {-118.493, 34.026}, {-118.493, 34.004},
	}})
	f.Properties["zone"] = "Tier 2"
	fc.Append(f)
	return fc
}
