package stylize

import (
	"errors"
	"fmt"
	"sort"

	"gocv.io/x/gocv"
)

// ErrInvalidConfig is returned by New when the configuration is unusable.
var ErrInvalidConfig = errors.New("stylize: invalid config")

// Ghost is one shifted copy blended into the tinted frame.
// The running composite becomes Alpha*composite + Beta*shifted.
type Ghost struct {
	DX    int     `yaml:"dx" json:"dx"`
	DY    int     `yaml:"dy" json:"dy"`
	Alpha float64 `yaml:"alpha" json:"alpha"`
	Beta  float64 `yaml:"beta" json:"beta"`
}

// Config holds the hologram tunables.
type Config struct {
	// Colormap names the OpenCV colormap used for the tint.
	Colormap string `yaml:"colormap" json:"colormap"`

	// Rows are grouped as BandLength attenuated rows followed by BandGap
	// untouched rows.
	BandLength int `yaml:"band_length" json:"band_length"`
	BandGap    int `yaml:"band_gap" json:"band_gap"`

	// Attenuation factor range, drawn per row per frame.
	BandMin float64 `yaml:"band_min" json:"band_min"`
	BandMax float64 `yaml:"band_max" json:"band_max"`

	// Ghosts are applied in order.
	Ghosts []Ghost `yaml:"ghosts" json:"ghosts"`

	// Final blend: BaseWeight*input + EffectWeight*ghosted.
	// The pair sums past 1.0 on purpose.
	BaseWeight   float64 `yaml:"base_weight" json:"base_weight"`
	EffectWeight float64 `yaml:"effect_weight" json:"effect_weight"`
}

// DefaultConfig returns the stock hologram look.
func DefaultConfig() Config {
	return Config{
		Colormap:   "winter",
		BandLength: 1,
		BandGap:    2,
		BandMin:    0.1,
		BandMax:    0.3,
		Ghosts: []Ghost{
			{DX: 5, DY: 5, Alpha: 0.2, Beta: 0.8},
			{DX: -5, DY: -5, Alpha: 0.4, Beta: 0.6},
		},
		BaseWeight:   0.5,
		EffectWeight: 0.6,
	}
}

var colormaps = map[string]gocv.ColormapTypes{
	"autumn":  gocv.ColormapAutumn,
	"bone":    gocv.ColormapBone,
	"jet":     gocv.ColormapJet,
	"winter":  gocv.ColormapWinter,
	"rainbow": gocv.ColormapRainbow,
	"ocean":   gocv.ColormapOcean,
	"summer":  gocv.ColormapSummer,
	"spring":  gocv.ColormapSpring,
	"cool":    gocv.ColormapCool,
	"hsv":     gocv.ColormapHsv,
	"pink":    gocv.ColormapPink,
	"hot":     gocv.ColormapHot,
}

// Colormaps returns the accepted colormap names, sorted.
func Colormaps() []string {
	names := make([]string, 0, len(colormaps))
	for name := range colormaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, ok := colormaps[c.Colormap]; !ok {
		return fmt.Errorf("%w: unknown colormap %q, want one of %v", ErrInvalidConfig, c.Colormap, Colormaps())
	}
	if c.BandLength < 0 || c.BandGap < 0 {
		return fmt.Errorf("%w: band length and gap must be >= 0", ErrInvalidConfig)
	}
	if c.BandLength > 0 && c.BandLength+c.BandGap == 0 {
		return fmt.Errorf("%w: band period must be positive", ErrInvalidConfig)
	}
	if c.BandMin < 0 || c.BandMax < c.BandMin || c.BandMax > 1 {
		return fmt.Errorf("%w: band range [%g, %g] must lie within [0, 1]", ErrInvalidConfig, c.BandMin, c.BandMax)
	}
	for i, g := range c.Ghosts {
		if g.Alpha < 0 || g.Beta < 0 {
			return fmt.Errorf("%w: ghost %d has negative weight", ErrInvalidConfig, i)
		}
	}
	if c.BaseWeight < 0 || c.EffectWeight < 0 {
		return fmt.Errorf("%w: final weights must be >= 0", ErrInvalidConfig)
	}
	return nil
}
