// Package config loads the viewer configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration written as a Go duration string.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Render configures the render pipeline and the terminal host.
type Render struct {
	Background     [4]float64 `toml:"background" comment:"clear color, RGBA in 0..1"`
	FPS            int        `toml:"fps"`
	Near           float64    `toml:"near"`
	Far            float64    `toml:"far"`
	EyeDistance    float64    `toml:"eye_distance"`
	SkyBox         int        `toml:"skybox" comment:"-3 axis and grids, -2 background, -1 inverted, 0+ cube maps"`
	SkyBoxSize     float64    `toml:"skybox_size"`
	MaxTextureSize int        `toml:"max_texture_size"`
}

// Scene configures loading, rescaling and the light.
type Scene struct {
	Unit           float64    `toml:"unit"`
	CameraDistance float64    `toml:"camera_distance"`
	LightPeriod    Duration   `toml:"light_period"`
	RescaleBand    [2]float64 `toml:"rescale_band" comment:"scale factors inside this open band leave the model alone"`
	OrbitStep      float64    `toml:"orbit_step"`
}

// Log configures the log file. The terminal is in use, so logs never go
// to stderr.
type Log struct {
	File  string     `toml:"file"`
	Level slog.Level `toml:"level"`
}

type Config struct {
	Render Render `toml:"render"`
	Scene  Scene  `toml:"scene"`
	Log    Log    `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Render: Render{
			Background:     [4]float64{0, 0, 0, 1},
			FPS:            30,
			Near:           1,
			Far:            10000,
			EyeDistance:    5,
			SkyBox:         0,
			SkyBoxSize:     1000,
			MaxTextureSize: 1024,
		},
		Scene: Scene{
			Unit:           100,
			CameraDistance: 150,
			LightPeriod:    Duration{5 * time.Second},
			RescaleBand:    [2]float64{0.5, 1.5},
			OrbitStep:      0.0005,
		},
		Log: Log{
			File:  "diorama.log",
			Level: slog.LevelInfo,
		},
	}
}

// Load reads path over the defaults and validates the result. Unknown keys
// are an error.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read is Load for an already open source.
func Read(r io.Reader) (Config, error) {
	c := Default()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalid, strict.String())
		}
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// Validate reports every out-of-range field at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	r := c.Render
	for i, v := range r.Background {
		check(v >= 0 && v <= 1, "render.background[%d] = %g, want 0..1", i, v)
	}
	check(r.FPS > 0, "render.fps = %d, want > 0", r.FPS)
	check(r.Near > 0 && r.Near < r.Far, "render.near/far = %g/%g, want 0 < near < far", r.Near, r.Far)
	check(r.EyeDistance >= 0, "render.eye_distance = %g, want >= 0", r.EyeDistance)
	check(r.SkyBox >= -3, "render.skybox = %d, want >= -3", r.SkyBox)
	check(r.SkyBoxSize > 0, "render.skybox_size = %g, want > 0", r.SkyBoxSize)
	check(r.MaxTextureSize > 0, "render.max_texture_size = %d, want > 0", r.MaxTextureSize)

	s := c.Scene
	check(s.Unit > 0, "scene.unit = %g, want > 0", s.Unit)
	check(s.CameraDistance > 0, "scene.camera_distance = %g, want > 0", s.CameraDistance)
	check(s.LightPeriod.Duration > 0, "scene.light_period = %s, want > 0", s.LightPeriod)
	lo, hi := s.RescaleBand[0], s.RescaleBand[1]
	check(lo > 0 && lo <= 1 && hi >= 1, "scene.rescale_band = [%g, %g], want 0 < lower <= 1 <= upper", lo, hi)

	return errors.Join(errs...)
}
