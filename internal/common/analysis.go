package common

// ProcessingType identifies the analysis a request asks for. The set is
// closed; anything unrecognized is coerced to RGB at the boundary so the
// core never sees an unknown type.
type ProcessingType string

const (
	ProcessingRGB           ProcessingType = "RGB"
	ProcessingNDVI          ProcessingType = "NDVI"
	ProcessingSurfaceWater  ProcessingType = "SURFACE_WATER"
	ProcessingLULC          ProcessingType = "LULC"
	ProcessingLST           ProcessingType = "LST"
	ProcessingOpenBuildings ProcessingType = "OPEN_BUILDINGS"
	ProcessingNDSI          ProcessingType = "NDSI"
	ProcessingNightLights   ProcessingType = "NIGHT_LIGHTS"
)

// AllProcessingTypes lists every supported analysis type in a stable order.
var AllProcessingTypes = []ProcessingType{
	ProcessingRGB,
	ProcessingNDVI,
	ProcessingSurfaceWater,
	ProcessingLULC,
	ProcessingLST,
	ProcessingOpenBuildings,
	ProcessingNDSI,
	ProcessingNightLights,
}

// ParseProcessingType maps a raw string to a ProcessingType, coercing
// unknown values to RGB.
func ParseProcessingType(s string) ProcessingType {
	normalized := ProcessingType(normalizeTypeName(s))
	for _, t := range AllProcessingTypes {
		if normalized == t {
			return t
		}
	}
	return ProcessingRGB
}

func normalizeTypeName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c == ' ' || c == '-':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

func (t ProcessingType) String() string {
	return string(t)
}

// Satellite name constants for the satellite hint accepted by requests.
const (
	SatelliteSentinel2 = "Sentinel-2"
	SatelliteLandsat9  = "Landsat 9"
	SatelliteLandsat8  = "Landsat 8"
	SatelliteLandsat7  = "Landsat 7"
)
