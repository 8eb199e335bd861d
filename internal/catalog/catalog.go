// Package catalog holds the static per-analysis-type configuration: which
// source collections to try in which order, their band mappings, quality
// filters, temporal validity, and visualization parameters. The selection
// algorithm never branches on analysis type; everything type-specific lives
// here as data.
package catalog

import (
	"strings"
	"time"

	"imagery-engine/internal/common"
)

// DeriveKind enumerates the deterministic band arithmetic a collection may
// request from the backend.
type DeriveKind string

const (
	// DeriveNormalizedDifference computes (A-B)/(A+B) and renames the result.
	DeriveNormalizedDifference DeriveKind = "normalized_difference"
	// DeriveThermalCelsius applies the Landsat thermal scale factors and
	// converts Kelvin to Celsius.
	DeriveThermalCelsius DeriveKind = "thermal_celsius"
)

// BandMath describes a derived band computed server-side from raw bands.
type BandMath struct {
	Kind   DeriveKind `json:"kind"`
	A      string     `json:"a"`
	B      string     `json:"b,omitempty"`
	Rename string     `json:"rename"`
}

// Collection identifies one remote-sensing dataset and how this engine uses
// it for a given analysis type. Immutable static configuration.
type Collection struct {
	ID              string    // backend collection identifier
	Name            string    // satellite / product name for hints and logs
	Bands           []string  // bands selected for this analysis
	Derive          *BandMath // optional derived band
	CloudProp       string    // metadata property for cloud filtering, "" = none
	MaxCloud        float64   // cloud-cover ceiling under the original window
	WidenedMaxCloud float64   // relaxed ceiling used after widening
	ValidFrom       time.Time // first acquisition date
	ValidTo         time.Time // zero = still acquiring
	ResolutionM     float64
	MergeWith       string // adjacent-generation collection mergeable after widening
}

// CoversWindow reports whether the collection's temporal validity overlaps
// [start, end].
func (c Collection) CoversWindow(start, end time.Time) bool {
	if c.ValidFrom.After(end) {
		return false
	}
	if !c.ValidTo.IsZero() && c.ValidTo.Before(start) {
		return false
	}
	return true
}

// VisParams are the statically defined visualization parameters attached to
// a resolved image before tile generation. Selection logic never mutates
// them.
type VisParams struct {
	Bands   []string  `json:"bands,omitempty"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Gamma   float64   `json:"gamma,omitempty"`
	Palette []string  `json:"palette,omitempty"`
}

// AnalysisConfig bundles everything the engine needs for one analysis type.
type AnalysisConfig struct {
	Type       common.ProcessingType
	Candidates []Collection         // priority order, newest generation first
	Vis        map[string]VisParams // keyed by collection ID
	StatBand   string               // band statistics are computed on, "" = none
	NeedsYear  bool                 // type keyed by year rather than a range
}

// CandidatesFor returns the candidate list honoring an optional satellite
// hint: a hint matching a candidate name starts the cascade there, skipping
// newer generations, exactly as an explicit "Landsat 8" request should.
func (a AnalysisConfig) CandidatesFor(hint string) []Collection {
	if hint == "" {
		return a.Candidates
	}
	for i, c := range a.Candidates {
		if strings.EqualFold(c.Name, hint) {
			return a.Candidates[i:]
		}
	}
	return a.Candidates
}

// VisFor returns the visualization parameters for the given collection ID.
// Falls back to the first candidate's parameters so a merged collection
// still renders with its primary generation's parameters.
func (a AnalysisConfig) VisFor(collectionID string) VisParams {
	if v, ok := a.Vis[collectionID]; ok {
		return v
	}
	if len(a.Candidates) > 0 {
		if v, ok := a.Vis[a.Candidates[0].ID]; ok {
			return v
		}
	}
	return VisParams{}
}

// Collection and band identifiers.
const (
	Sentinel2SR    = "COPERNICUS/S2_SR_HARMONIZED"
	Landsat9SR     = "LANDSAT/LC09/C02/T1_L2"
	Landsat8SR     = "LANDSAT/LC08/C02/T1_L2"
	Landsat7SR     = "LANDSAT/LE07/C02/T1_L2"
	Landsat5SR     = "LANDSAT/LT05/C02/T1_L2"
	SurfaceWater   = "JRC/GSW1_4/GlobalSurfaceWater"
	WorldCoverV200 = "ESA/WorldCover/v200"
	WorldCoverV100 = "ESA/WorldCover/v100"
	OpenBuildings  = "GOOGLE/Research/open-buildings/v3/polygons"
	VIIRSMonthly   = "NOAA/VIIRS/DNB/MONTHLY_V1/VCMSLCFG"
)

// Cloud-cover metadata properties.
const (
	s2CloudProp      = "CLOUDY_PIXEL_PERCENTAGE"
	landsatCloudProp = "CLOUD_COVER"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Sensor validity ranges.
var (
	sentinel2From = date(2015, 6, 23)
	landsat9From  = date(2021, 10, 31)
	landsat8From  = date(2013, 3, 18)
	landsat7From  = date(1999, 5, 28)
	landsat5From  = date(1984, 3, 1)
	landsat5To    = date(2012, 5, 5)
	viirsFrom     = date(2012, 4, 1)
)

var ndviPalette = []string{
	"FFFFFF", "CE7E45", "DF923D", "F1B555", "FCD163", "99B718",
	"74A901", "66A000", "529400", "3E8601", "207401", "056201",
	"004C00", "023B01", "012E01", "011D01", "011301",
}

var lstPalette = []string{
	"040274", "0502a3", "0502ce", "0602ff", "307ef3", "30c8e2",
	"3be285", "86e26f", "b5e22e", "ffd611", "ff8b13", "ff0000",
	"de0101", "a71001", "911003",
}

var configs = map[common.ProcessingType]AnalysisConfig{
	common.ProcessingRGB: {
		Type: common.ProcessingRGB,
		Candidates: []Collection{
			{
				ID: Sentinel2SR, Name: common.SatelliteSentinel2,
				Bands:     []string{"B4", "B3", "B2"},
				CloudProp: s2CloudProp, MaxCloud: 30, WidenedMaxCloud: 30,
				ValidFrom: sentinel2From, ResolutionM: 10,
			},
			{
				ID: Landsat9SR, Name: common.SatelliteLandsat9,
				Bands:     []string{"SR_B4", "SR_B3", "SR_B2"},
				CloudProp: landsatCloudProp, MaxCloud: 35, WidenedMaxCloud: 40,
				ValidFrom: landsat9From, ResolutionM: 30,
				MergeWith: Landsat8SR,
			},
			{
				ID: Landsat8SR, Name: common.SatelliteLandsat8,
				Bands:     []string{"SR_B4", "SR_B3", "SR_B2"},
				CloudProp: landsatCloudProp, MaxCloud: 35, WidenedMaxCloud: 40,
				ValidFrom: landsat8From, ResolutionM: 30,
			},
		},
		Vis: map[string]VisParams{
			Sentinel2SR: {Bands: []string{"B4", "B3", "B2"}, Min: 0, Max: 3000, Gamma: 1.2},
			Landsat9SR:  {Bands: []string{"SR_B4", "SR_B3", "SR_B2"}, Min: 0, Max: 0.3, Gamma: 1.2},
			Landsat8SR:  {Bands: []string{"SR_B4", "SR_B3", "SR_B2"}, Min: 0, Max: 0.3, Gamma: 1.2},
		},
	},

	common.ProcessingNDVI: {
		Type:     common.ProcessingNDVI,
		StatBand: "NDVI",
		Candidates: []Collection{
			{
				ID: Sentinel2SR, Name: common.SatelliteSentinel2,
				Bands:  []string{"B8", "B4"},
				Derive: &BandMath{Kind: DeriveNormalizedDifference, A: "B8", B: "B4", Rename: "NDVI"},
				CloudProp: s2CloudProp, MaxCloud: 20, WidenedMaxCloud: 30,
				ValidFrom: sentinel2From, ResolutionM: 10,
			},
			{
				ID: Landsat9SR, Name: common.SatelliteLandsat9,
				Bands:  []string{"SR_B5", "SR_B4"},
				Derive: &BandMath{Kind: DeriveNormalizedDifference, A: "SR_B5", B: "SR_B4", Rename: "NDVI"},
				CloudProp: landsatCloudProp, MaxCloud: 35, WidenedMaxCloud: 40,
				ValidFrom: landsat9From, ResolutionM: 30,
				MergeWith: Landsat8SR,
			},
			{
				ID: Landsat8SR, Name: common.SatelliteLandsat8,
				Bands:  []string{"SR_B5", "SR_B4"},
				Derive: &BandMath{Kind: DeriveNormalizedDifference, A: "SR_B5", B: "SR_B4", Rename: "NDVI"},
				CloudProp: landsatCloudProp, MaxCloud: 35, WidenedMaxCloud: 40,
				ValidFrom: landsat8From, ResolutionM: 30,
			},
			{
				ID: Landsat7SR, Name: common.SatelliteLandsat7,
				Bands:  []string{"SR_B4", "SR_B3"},
				Derive: &BandMath{Kind: DeriveNormalizedDifference, A: "SR_B4", B: "SR_B3", Rename: "NDVI"},
				CloudProp: landsatCloudProp, MaxCloud: 35, WidenedMaxCloud: 40,
				ValidFrom: landsat7From, ResolutionM: 30,
			},
			{
				ID: Landsat5SR, Name: "Landsat 5",
				Bands:  []string{"SR_B4", "SR_B3"},
				Derive: &BandMath{Kind: DeriveNormalizedDifference, A: "SR_B4", B: "SR_B3", Rename: "NDVI"},
				CloudProp: landsatCloudProp, MaxCloud: 35, WidenedMaxCloud: 40,
				ValidFrom: landsat5From, ValidTo: landsat5To, ResolutionM: 30,
			},
		},
		Vis: map[string]VisParams{
			Sentinel2SR: {Min: -1, Max: 1, Palette: ndviPalette},
			Landsat9SR:  {Min: -1, Max: 1, Palette: ndviPalette},
			Landsat8SR:  {Min: -1, Max: 1, Palette: ndviPalette},
			Landsat7SR:  {Min: -1, Max: 1, Palette: ndviPalette},
			Landsat5SR:  {Min: -1, Max: 1, Palette: ndviPalette},
		},
	},

	common.ProcessingSurfaceWater: {
		Type: common.ProcessingSurfaceWater,
		Candidates: []Collection{
			{
				ID: SurfaceWater, Name: "Global Surface Water",
				Bands:     []string{"occurrence"},
				ValidFrom: landsat5From, ResolutionM: 30,
			},
		},
		Vis: map[string]VisParams{
			SurfaceWater: {Min: 0, Max: 100, Palette: []string{"ffffff", "ffbbbb", "0000ff"}},
		},
	},

	common.ProcessingLULC: {
		Type:      common.ProcessingLULC,
		NeedsYear: true,
		Candidates: []Collection{
			{
				ID: WorldCoverV200, Name: "WorldCover v200",
				Bands:     []string{"Map"},
				ValidFrom: date(2021, 1, 1), ResolutionM: 10,
			},
			{
				ID: WorldCoverV100, Name: "WorldCover v100",
				Bands:     []string{"Map"},
				ValidFrom: date(2020, 1, 1), ValidTo: date(2020, 12, 31), ResolutionM: 10,
			},
		},
		Vis: map[string]VisParams{
			WorldCoverV200: {Min: 10, Max: 100, Palette: []string{
				"006400", "ffbb22", "ffff4c", "f096ff", "fa0000",
				"b4b4b4", "f0f0f0", "0064c8", "0096a0", "00cf75", "fae6a0",
			}},
			WorldCoverV100: {Min: 10, Max: 100, Palette: []string{
				"006400", "ffbb22", "ffff4c", "f096ff", "fa0000",
				"b4b4b4", "f0f0f0", "0064c8", "0096a0", "00cf75", "fae6a0",
			}},
		},
	},

	common.ProcessingLST: {
		Type:      common.ProcessingLST,
		StatBand:  "LST_Celsius",
		NeedsYear: true,
		Candidates: []Collection{
			{
				ID: Landsat9SR, Name: common.SatelliteLandsat9,
				Bands:  []string{"ST_B10"},
				Derive: &BandMath{Kind: DeriveThermalCelsius, A: "ST_B10", Rename: "LST_Celsius"},
				CloudProp: landsatCloudProp, MaxCloud: 35, WidenedMaxCloud: 40,
				ValidFrom: landsat9From, ResolutionM: 30,
				MergeWith: Landsat8SR,
			},
			{
				ID: Landsat8SR, Name: common.SatelliteLandsat8,
				Bands:  []string{"ST_B10"},
				Derive: &BandMath{Kind: DeriveThermalCelsius, A: "ST_B10", Rename: "LST_Celsius"},
				CloudProp: landsatCloudProp, MaxCloud: 35, WidenedMaxCloud: 40,
				ValidFrom: landsat8From, ResolutionM: 30,
			},
			{
				ID: Landsat7SR, Name: common.SatelliteLandsat7,
				Bands:  []string{"ST_B6"},
				Derive: &BandMath{Kind: DeriveThermalCelsius, A: "ST_B6", Rename: "LST_Celsius"},
				CloudProp: landsatCloudProp, MaxCloud: 35, WidenedMaxCloud: 40,
				ValidFrom: landsat7From, ResolutionM: 30,
			},
		},
		Vis: map[string]VisParams{
			Landsat9SR: {Min: 0, Max: 40, Palette: lstPalette},
			Landsat8SR: {Min: 0, Max: 40, Palette: lstPalette},
			Landsat7SR: {Min: 0, Max: 40, Palette: lstPalette},
		},
	},

	common.ProcessingOpenBuildings: {
		Type: common.ProcessingOpenBuildings,
		Candidates: []Collection{
			{
				ID: OpenBuildings, Name: "Open Buildings",
				Bands:     []string{"confidence"},
				ValidFrom: date(2021, 1, 1), ResolutionM: 0.5,
			},
		},
		Vis: map[string]VisParams{
			OpenBuildings: {Min: 0.65, Max: 0.95, Palette: []string{"FF0000", "FFFF00", "00FF00"}},
		},
	},

	common.ProcessingNDSI: {
		Type:     common.ProcessingNDSI,
		StatBand: "NDSI",
		Candidates: []Collection{
			{
				ID: Sentinel2SR, Name: common.SatelliteSentinel2,
				Bands:  []string{"B3", "B11"},
				Derive: &BandMath{Kind: DeriveNormalizedDifference, A: "B3", B: "B11", Rename: "NDSI"},
				CloudProp: s2CloudProp, MaxCloud: 20, WidenedMaxCloud: 30,
				ValidFrom: sentinel2From, ResolutionM: 20,
			},
			{
				ID: Landsat8SR, Name: common.SatelliteLandsat8,
				Bands:  []string{"SR_B3", "SR_B6"},
				Derive: &BandMath{Kind: DeriveNormalizedDifference, A: "SR_B3", B: "SR_B6", Rename: "NDSI"},
				CloudProp: landsatCloudProp, MaxCloud: 35, WidenedMaxCloud: 40,
				ValidFrom: landsat8From, ResolutionM: 30,
			},
		},
		Vis: map[string]VisParams{
			Sentinel2SR: {Min: -1, Max: 1, Palette: []string{"000088", "0000FF", "8888FF", "FFFFFF"}},
			Landsat8SR:  {Min: -1, Max: 1, Palette: []string{"000088", "0000FF", "8888FF", "FFFFFF"}},
		},
	},

	common.ProcessingNightLights: {
		Type:     common.ProcessingNightLights,
		StatBand: "avg_rad",
		Candidates: []Collection{
			{
				ID: VIIRSMonthly, Name: "VIIRS Monthly",
				Bands:     []string{"avg_rad"},
				ValidFrom: viirsFrom, ResolutionM: 463,
			},
		},
		Vis: map[string]VisParams{
			VIIRSMonthly: {Min: 0, Max: 60, Palette: []string{"000000", "0000FF", "00FFFF", "FFFF00", "FF0000"}},
		},
	},
}

// For returns the analysis configuration for the given processing type.
func For(t common.ProcessingType) (AnalysisConfig, bool) {
	cfg, ok := configs[t]
	return cfg, ok
}
