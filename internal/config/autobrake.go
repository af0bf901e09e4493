package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical autobrake defaults file.
const DefaultConfigPath = "config/autobrake.defaults.json"

// Policy names accepted by the "policy" key.
const (
	PolicyContinuous = "continuous"
	PolicyDiscrete   = "discrete"
)

// ErrInvalidConfig wraps every validation failure so callers can tell a bad
// file apart from an unreadable one.
var ErrInvalidConfig = errors.New("invalid configuration")

// AutobrakeConfig holds the vehicle geometry, sensor mounting and envelope
// limits. Every field is optional; the Get* methods supply the default for
// anything the JSON omits. Values are read once at start-up.
type AutobrakeConfig struct {
	// Vehicle geometry (metres)
	VehicleLength *float64 `json:"vehicle_length,omitempty"`
	VehicleWidth  *float64 `json:"vehicle_width,omitempty"`

	// Steering below this magnitude (radians) is treated as straight travel.
	SteeringEpsilon *float64 `json:"steering_epsilon,omitempty"`

	// LIDAR mounting
	LidarRotationalOffset *float64 `json:"lidar_rotational_offset,omitempty"` // radians
	LidarLateralOffset    *float64 `json:"lidar_lateral_offset,omitempty"`    // metres from front axle centre

	// Envelope limits
	AutobrakeDistance *float64 `json:"autobrake_distance,omitempty"` // metres
	MaxVelocity       *float64 `json:"max_velocity,omitempty"`       // m/s, forward limit
	MinVelocity       *float64 `json:"min_velocity,omitempty"`       // m/s, reverse limit (negative)

	// Discrete (count based) policy
	Policy                *string  `json:"policy,omitempty"`
	AutobrakeTime         *float64 `json:"autobrake_time,omitempty"` // seconds
	MinCollisionsForBrake *int     `json:"min_collisions_for_brake,omitempty"`

	// Publishing
	PublishInterval *string `json:"publish_interval,omitempty"` // duration string like "33ms"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAutobrakeConfig returns a config with all fields unset.
func EmptyAutobrakeConfig() *AutobrakeConfig {
	return &AutobrakeConfig{}
}

// DefaultAutobrakeConfig returns a config with every field populated from
// the built-in defaults.
func DefaultAutobrakeConfig() *AutobrakeConfig {
	return &AutobrakeConfig{
		VehicleLength:         ptrFloat64(defaultVehicleLength),
		VehicleWidth:          ptrFloat64(defaultVehicleWidth),
		SteeringEpsilon:       ptrFloat64(defaultSteeringEpsilon),
		LidarRotationalOffset: ptrFloat64(defaultLidarRotationalOffset),
		LidarLateralOffset:    ptrFloat64(defaultLidarLateralOffset),
		AutobrakeDistance:     ptrFloat64(defaultAutobrakeDistance),
		MaxVelocity:           ptrFloat64(defaultMaxVelocity),
		MinVelocity:           ptrFloat64(defaultMinVelocity),
		Policy:                ptrString(PolicyContinuous),
		AutobrakeTime:         ptrFloat64(defaultAutobrakeTime),
		MinCollisionsForBrake: ptrInt(defaultMinCollisionsForBrake),
		PublishInterval:       ptrString(defaultPublishInterval.String()),
	}
}

const (
	defaultVehicleLength         = 0.3
	defaultVehicleWidth          = 0.2
	defaultSteeringEpsilon       = 0.01
	defaultLidarRotationalOffset = math.Pi
	defaultLidarLateralOffset    = 0.035
	defaultAutobrakeDistance     = 0.2
	defaultMaxVelocity           = 1.5
	defaultMinVelocity           = -1.5
	defaultAutobrakeTime         = 0.7
	defaultMinCollisionsForBrake = 3
	defaultPublishInterval       = time.Second / 30
)

// LoadAutobrakeConfig loads an AutobrakeConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults, so partial configs are safe.
func LoadAutobrakeConfig(path string) (*AutobrakeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAutobrakeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *AutobrakeConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/<tool>/
	}
	for _, path := range candidates {
		if cfg, err := LoadAutobrakeConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks that the configured values are usable. It is checked
// against the effective values, so unset fields validate via their defaults.
func (c *AutobrakeConfig) Validate() error {
	if v := c.GetVehicleLength(); !(v > 0) {
		return invalidf("vehicle_length must be positive, got %f", v)
	}
	if v := c.GetVehicleWidth(); !(v > 0) {
		return invalidf("vehicle_width must be positive, got %f", v)
	}
	if v := c.GetSteeringEpsilon(); v < 0 {
		return invalidf("steering_epsilon must be non-negative, got %f", v)
	}
	if v := c.GetAutobrakeDistance(); v < 0 {
		return invalidf("autobrake_distance must be non-negative, got %f", v)
	}
	if v := c.GetMaxVelocity(); !(v > 0) {
		return invalidf("max_velocity must be positive, got %f", v)
	}
	if v := c.GetMinVelocity(); !(v < 0) {
		return invalidf("min_velocity must be negative, got %f", v)
	}
	if v := c.GetAutobrakeTime(); !(v > 0) {
		return invalidf("autobrake_time must be positive, got %f", v)
	}
	if v := c.GetMinCollisionsForBrake(); v < 0 {
		return invalidf("min_collisions_for_brake must be non-negative, got %d", v)
	}

	if c.Policy != nil {
		switch *c.Policy {
		case PolicyContinuous, PolicyDiscrete:
		default:
			return invalidf("unknown policy %q: expected %q or %q", *c.Policy, PolicyContinuous, PolicyDiscrete)
		}
	}

	if c.PublishInterval != nil && *c.PublishInterval != "" {
		d, err := time.ParseDuration(*c.PublishInterval)
		if err != nil {
			return invalidf("invalid publish_interval '%s': %v", *c.PublishInterval, err)
		}
		if d <= 0 {
			return invalidf("publish_interval must be positive, got %s", d)
		}
	}

	return nil
}

// GetVehicleLength returns the vehicle_length value or the default.
func (c *AutobrakeConfig) GetVehicleLength() float64 {
	if c.VehicleLength == nil {
		return defaultVehicleLength
	}
	return *c.VehicleLength
}

// GetVehicleWidth returns the vehicle_width value or the default.
func (c *AutobrakeConfig) GetVehicleWidth() float64 {
	if c.VehicleWidth == nil {
		return defaultVehicleWidth
	}
	return *c.VehicleWidth
}

// GetSteeringEpsilon returns the steering_epsilon value or the default.
func (c *AutobrakeConfig) GetSteeringEpsilon() float64 {
	if c.SteeringEpsilon == nil {
		return defaultSteeringEpsilon
	}
	return *c.SteeringEpsilon
}

// GetLidarRotationalOffset returns the lidar_rotational_offset value or the default.
func (c *AutobrakeConfig) GetLidarRotationalOffset() float64 {
	if c.LidarRotationalOffset == nil {
		return defaultLidarRotationalOffset
	}
	return *c.LidarRotationalOffset
}

// GetLidarLateralOffset returns the lidar_lateral_offset value or the default.
func (c *AutobrakeConfig) GetLidarLateralOffset() float64 {
	if c.LidarLateralOffset == nil {
		return defaultLidarLateralOffset
	}
	return *c.LidarLateralOffset
}

// GetAutobrakeDistance returns the autobrake_distance value or the default.
func (c *AutobrakeConfig) GetAutobrakeDistance() float64 {
	if c.AutobrakeDistance == nil {
		return defaultAutobrakeDistance
	}
	return *c.AutobrakeDistance
}

// GetMaxVelocity returns the max_velocity value or the default.
func (c *AutobrakeConfig) GetMaxVelocity() float64 {
	if c.MaxVelocity == nil {
		return defaultMaxVelocity
	}
	return *c.MaxVelocity
}

// GetMinVelocity returns the min_velocity value or the default.
func (c *AutobrakeConfig) GetMinVelocity() float64 {
	if c.MinVelocity == nil {
		return defaultMinVelocity
	}
	return *c.MinVelocity
}

// GetPolicy returns the policy value or the default.
func (c *AutobrakeConfig) GetPolicy() string {
	if c.Policy == nil || *c.Policy == "" {
		return PolicyContinuous
	}
	return *c.Policy
}

// GetAutobrakeTime returns the autobrake_time value or the default.
func (c *AutobrakeConfig) GetAutobrakeTime() float64 {
	if c.AutobrakeTime == nil {
		return defaultAutobrakeTime
	}
	return *c.AutobrakeTime
}

// GetMinCollisionsForBrake returns the min_collisions_for_brake value or the default.
func (c *AutobrakeConfig) GetMinCollisionsForBrake() int {
	if c.MinCollisionsForBrake == nil {
		return defaultMinCollisionsForBrake
	}
	return *c.MinCollisionsForBrake
}

// GetPublishInterval parses and returns PublishInterval as a time.Duration.
func (c *AutobrakeConfig) GetPublishInterval() time.Duration {
	if c.PublishInterval == nil || *c.PublishInterval == "" {
		return defaultPublishInterval
	}
	d, err := time.ParseDuration(*c.PublishInterval)
	if err != nil || d <= 0 {
		return defaultPublishInterval // default on parse error
	}
	return d
}

// Resolved returns a copy with every field set to its effective value, so
// callers that report the configuration see the defaults that apply.
func (c *AutobrakeConfig) Resolved() *AutobrakeConfig {
	return &AutobrakeConfig{
		VehicleLength:         ptrFloat64(c.GetVehicleLength()),
		VehicleWidth:          ptrFloat64(c.GetVehicleWidth()),
		SteeringEpsilon:       ptrFloat64(c.GetSteeringEpsilon()),
		LidarRotationalOffset: ptrFloat64(c.GetLidarRotationalOffset()),
		LidarLateralOffset:    ptrFloat64(c.GetLidarLateralOffset()),
		AutobrakeDistance:     ptrFloat64(c.GetAutobrakeDistance()),
		MaxVelocity:           ptrFloat64(c.GetMaxVelocity()),
		MinVelocity:           ptrFloat64(c.GetMinVelocity()),
		Policy:                ptrString(c.GetPolicy()),
		AutobrakeTime:         ptrFloat64(c.GetAutobrakeTime()),
		MinCollisionsForBrake: ptrInt(c.GetMinCollisionsForBrake()),
		PublishInterval:       ptrString(c.GetPublishInterval().String()),
	}
}
