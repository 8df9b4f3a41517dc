package kinematics

import (
	"encoding/json"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Supported embodiment types.
const (
	RigidBodyType   = "rigid_body"
	ManipulatorType = "manipulator"
)

// Named DH tables usable from a manipulator config.
const (
	MicoPreset   = "mico"
	PlanarPreset = "simple_planar"
)

// ModelConfig represents all supported fields in an embodiment JSON file.
type ModelConfig struct {
	Name string `json:"name"`
	Type string `json:"type"`

	// rigid body
	BodyPoints [][3]float64 `json:"body_points,omitempty"`

	// manipulator
	Preset          string          `json:"preset,omitempty"`
	DHParams        []DHParamConfig `json:"dh_params,omitempty"`
	Base            []float64       `json:"base,omitempty"`
	SamplesPerMetre float64         `json:"samples_per_metre,omitempty"`
}

// DHParamConfig is the JSON form of a DHParam. Scale defaults to 1.
type DHParamConfig struct {
	A      float64  `json:"a"`
	D      float64  `json:"d"`
	Alpha  float64  `json:"alpha"`
	Scale  *float64 `json:"scale,omitempty"`
	Offset float64  `json:"offset"`
}

// ParseConfig converts a DHParamConfig into a DHParam.
func (cfg DHParamConfig) ParseConfig() DHParam {
	dh := DHParam{A: cfg.A, D: cfg.D, Alpha: cfg.Alpha, Scale: 1, Offset: cfg.Offset}
	if cfg.Scale != nil {
		dh.Scale = *cfg.Scale
	}
	return dh
}

// UnmarshalModelJSON will parse the given JSON data into a model. modelName sets the name of the model,
// will use the name from the JSON if string is empty.
func UnmarshalModelJSON(jsonData []byte, modelName string) (Model, error) {
	if len(jsonData) == 0 {
		return nil, ErrNoModelInformation
	}
	cfg := &ModelConfig{}
	if err := json.Unmarshal(jsonData, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}
	return cfg.ParseConfig(modelName)
}

// ParseModelJSONFile will read a given file and then parse the contained JSON data.
func ParseModelJSONFile(filename, modelName string) (Model, error) {
	//nolint:gosec
	jsonData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read json file")
	}
	return UnmarshalModelJSON(jsonData, modelName)
}

// ParseConfig converts the ModelConfig into a Model with the name modelName.
func (cfg *ModelConfig) ParseConfig(modelName string) (Model, error) {
	if modelName == "" {
		modelName = cfg.Name
	}
	switch cfg.Type {
	case RigidBodyType:
		points := make([]r3.Vector, 0, len(cfg.BodyPoints))
		for _, p := range cfg.BodyPoints {
			points = append(points, r3.Vector{X: p[0], Y: p[1], Z: p[2]})
		}
		return NewRigidBody(modelName, points)
	case ManipulatorType:
		base := mgl64.Ident4()
		if len(cfg.Base) > 0 {
			if len(cfg.Base) != 16 {
				return nil, errors.Errorf("base transform must have 16 row-major values, got %d", len(cfg.Base))
			}
			for r := 0; r < 4; r++ {
				for c := 0; c < 4; c++ {
					base.Set(r, c, cfg.Base[4*r+c])
				}
			}
		}
		density := cfg.SamplesPerMetre
		if density == 0 {
			density = DefaultSamplesPerMetre
		}
		params, err := cfg.dhParams()
		if err != nil {
			return nil, err
		}
		return NewSerialManipulator(modelName, params, base, density)
	default:
		return nil, NewUnsupportedModelTypeError(cfg.Type)
	}
}

func (cfg *ModelConfig) dhParams() ([]DHParam, error) {
	if cfg.Preset != "" && len(cfg.DHParams) > 0 {
		return nil, errors.New("a manipulator config takes either a preset or dh_params, not both")
	}
	switch cfg.Preset {
	case MicoPreset:
		return MicoDHParams(), nil
	case PlanarPreset:
		planar, err := NewSimplePlanar(DefaultSamplesPerMetre)
		if err != nil {
			return nil, err
		}
		return planar.DHParams(), nil
	case "":
	default:
		return nil, errors.Errorf("unknown manipulator preset %q", cfg.Preset)
	}
	params := make([]DHParam, 0, len(cfg.DHParams))
	for _, p := range cfg.DHParams {
		params = append(params, p.ParseConfig())
	}
	return params, nil
}
