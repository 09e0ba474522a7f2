package camera

// Preset names for common capture modes.
const (
	PresetVGA    = "vga"
	Preset720p   = "720p"
	Preset1080p  = "1080p"
	PresetLowFPS = "vga30"
)

// Presets returns all available preset configurations. The device is left
// at its default; callers overwrite it.
func Presets() map[string]Config {
	vga := DefaultConfig()

	hd := DefaultConfig()
	hd.Width, hd.Height, hd.Framerate = 1280, 720, 30

	fhd := DefaultConfig()
	fhd.Width, fhd.Height, fhd.Framerate = 1920, 1080, 30

	slow := DefaultConfig()
	slow.Framerate = 30

	return map[string]Config{
		PresetVGA:    vga,
		Preset720p:   hd,
		Preset1080p:  fhd,
		PresetLowFPS: slow,
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetVGA, PresetLowFPS, Preset720p, Preset1080p}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}
