package config

import "sort"

var Presets = map[string]*Config{
	"reference": {
		Bound: 102, Device: "auto",
	},
	"small": {
		Bound: 10_000, Device: "auto",
	},
	"medium": {
		Bound: 1_000_000, Device: "auto",
	},
	"large": {
		Bound: 100_000_000, Device: "auto",
	},
	"narrow": {
		Bound: 1_000_000, Device: "host", LaneWidth: 32,
	},
	"single-worker": {
		Bound: 1_000_000, Device: "host", Workers: 1,
	},
}

// GetPreset returns a copy of the named preset with unset fields filled
// from DefaultConfig, or nil if there is no such preset.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Bound = p.Bound
	if p.Device != "" {
		cfg.Device = p.Device
	}
	cfg.Workers = p.Workers
	cfg.LaneWidth = p.LaneWidth
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
