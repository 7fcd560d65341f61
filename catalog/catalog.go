// Package catalog wraps the external LV2 plugin discovery library: scan,
// validate, search, and bundle operations over PluginInfo records.
package catalog

import (
	"fmt"
	"strings"
)

// Unit pairs a label with a symbol, e.g. {"Decibels", "dB"}.
type Unit struct {
	Label  string `json:"label"`
	Symbol string `json:"symbol"`
}

// ScalePoint names a specific value on a control port.
type ScalePoint struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// Port describes one audio, control, CV, or MIDI port on a plugin.
type Port struct {
	Index       int          `json:"index"`
	Name        string       `json:"name"`
	Symbol      string       `json:"symbol"`
	ShortName   string       `json:"short_name,omitempty"`
	Comment     string       `json:"comment,omitempty"`
	Designation string       `json:"designation,omitempty"`
	Min         float64      `json:"min"`
	Max         float64      `json:"max"`
	Default     float64      `json:"default"`
	Units       Unit         `json:"units,omitempty"`
	Properties  []string     `json:"properties,omitempty"`
	ScalePoints []ScalePoint `json:"scale_points,omitempty"`
}

// Ports groups a plugin's ports by direction and signal type.
type Ports struct {
	AudioIn    []Port `json:"audio_in"`
	AudioOut   []Port `json:"audio_out"`
	ControlIn  []Port `json:"control_in"`
	ControlOut []Port `json:"control_out"`
	CVIn       []Port `json:"cv_in"`
	CVOut      []Port `json:"cv_out"`
	MidiIn     []Port `json:"midi_in"`
	MidiOut    []Port `json:"midi_out"`
}

// Author identifies who published a plugin.
type Author struct {
	Name     string `json:"name"`
	Homepage string `json:"homepage,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Info is the immutable record produced by a catalog scan.
type Info struct {
	URI        string   `json:"uri"`
	Name       string   `json:"name"`
	Brand      string   `json:"brand,omitempty"`
	Label      string   `json:"label,omitempty"`
	Comment    string   `json:"comment,omitempty"`
	Version    string   `json:"version,omitempty"`
	License    string   `json:"license,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Author     Author   `json:"author"`
	Ports      Ports    `json:"ports"`
}

// Preset is a named configuration stored for a plugin.
type Preset struct {
	URI   string `json:"uri"`
	Label string `json:"label"`
}

// GUI describes the UI bundle resources for a plugin, when present.
type GUI struct {
	URI          string `json:"uri"`
	ResourcesDir string `json:"resources_dir"`
}

// Discovery is the opaque external LV2 discovery contract the real LV2
// scanning library implements. Only the catalog package calls it.
type Discovery interface {
	Scan() (map[string]Info, error)
	Detail(uri string) (*Info, error)
	GUI(uri string) (*GUI, error)
	GUIMini(uri string) (*GUI, error)
	Essentials(uri string) (*Info, error)
	Presets(uri string) ([]Preset, error)
	ValidatePreset(uri, presetURI string) (bool, error)
	RescanPresets(uri string) ([]Preset, error)
	BundleLoaded(path string) (bool, error)
	AddBundle(path string) ([]string, error)
	RemoveBundle(path, resourcePath string) ([]string, error)
	ListPluginsInBundle(path string) ([]string, error)
}

const maxAudioPorts = 8
const extremeRange = 1e6

// knownIncompatible lists URIs that scan must always reject, regardless of
// how the discovery library describes them.
var knownIncompatible = map[string]bool{}

// SearchCriteria is a conjunction of optional filters. A zero-value
// SearchCriteria matches everything.
type SearchCriteria struct {
	Category        string
	Author          string
	MinAudioInputs  int
	MinAudioOutputs int
	MaxAudioInputs  int
	MaxAudioOutputs int
}

// Catalog validates and exposes plugin metadata fetched through Discovery.
type Catalog struct {
	discovery Discovery
	warn      func(format string, args ...interface{})
}

// New creates a Catalog backed by discovery. warn receives validation and
// scan warnings; pass nil to discard them.
func New(discovery Discovery, warn func(string, ...interface{})) *Catalog {
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}
	return &Catalog{discovery: discovery, warn: warn}
}

// Scan performs a full rescan, validating every result before admission.
// Plugins that fail validation are skipped with a warning, not returned
// as an error.
func (c *Catalog) Scan() (map[string]Info, error) {
	raw, err := c.discovery.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	valid := make(map[string]Info, len(raw))
	for uri, info := range raw {
		if err := c.validate(info); err != nil {
			c.warn("catalog: skipping %s: %v", uri, err)
			continue
		}
		valid[uri] = info
	}
	return valid, nil
}

// validate applies the admission rule from the scan. Extreme control ranges
// are warn-only and never cause rejection.
func (c *Catalog) validate(info Info) error {
	if info.URI == "" {
		return fmt.Errorf("empty uri")
	}
	if info.Name == "" {
		return fmt.Errorf("empty name")
	}
	if knownIncompatible[info.URI] {
		return fmt.Errorf("uri %s is on the known-incompatible list", info.URI)
	}
	if len(info.Ports.AudioIn) > maxAudioPorts {
		return fmt.Errorf("too many audio input ports: %d", len(info.Ports.AudioIn))
	}
	if len(info.Ports.AudioOut) > maxAudioPorts {
		return fmt.Errorf("too many audio output ports: %d", len(info.Ports.AudioOut))
	}
	if len(info.Ports.AudioIn) == 0 && len(info.Ports.AudioOut) == 0 {
		return fmt.Errorf("no audio ports")
	}
	for _, p := range append(append([]Port{}, info.Ports.ControlIn...), info.Ports.ControlOut...) {
		if p.Min > p.Max {
			return fmt.Errorf("control port %s: min %v > max %v", p.Symbol, p.Min, p.Max)
		}
		if absf(p.Min) > extremeRange || absf(p.Max) > extremeRange {
			c.warn("catalog: %s control port %s has an extreme range [%v, %v]", info.URI, p.Symbol, p.Min, p.Max)
		}
	}
	return nil
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (c *Catalog) Detail(uri string) (*Info, error) { return c.discovery.Detail(uri) }
func (c *Catalog) GUI(uri string) (*GUI, error)      { return c.discovery.GUI(uri) }
func (c *Catalog) GUIMini(uri string) (*GUI, error)  { return c.discovery.GUIMini(uri) }
func (c *Catalog) Essentials(uri string) (*Info, error) {
	return c.discovery.Essentials(uri)
}
func (c *Catalog) Presets(uri string) ([]Preset, error) { return c.discovery.Presets(uri) }
func (c *Catalog) ValidatePreset(uri, presetURI string) (bool, error) {
	return c.discovery.ValidatePreset(uri, presetURI)
}
func (c *Catalog) RescanPresets(uri string) ([]Preset, error) {
	return c.discovery.RescanPresets(uri)
}
func (c *Catalog) BundleLoaded(path string) (bool, error) { return c.discovery.BundleLoaded(path) }
func (c *Catalog) AddBundle(path string) ([]string, error) { return c.discovery.AddBundle(path) }
func (c *Catalog) RemoveBundle(path, resourcePath string) ([]string, error) {
	return c.discovery.RemoveBundle(path, resourcePath)
}
func (c *Catalog) ListPluginsInBundle(path string) ([]string, error) {
	return c.discovery.ListPluginsInBundle(path)
}

// Search returns the subset of infos matching both criteria (a conjunction
// of filters, empty criteria matches everything) and a case-insensitive
// substring match of query against name/author/comment/uri.
func Search(infos []Info, query string, criteria SearchCriteria) []Info {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Info
	for _, info := range infos {
		if !matchesCriteria(info, criteria) {
			continue
		}
		if q != "" && !matchesQuery(info, q) {
			continue
		}
		out = append(out, info)
	}
	return out
}

func matchesCriteria(info Info, c SearchCriteria) bool {
	if c.Category != "" && !hasCategory(info.Categories, c.Category) {
		return false
	}
	if c.Author != "" && !strings.Contains(strings.ToLower(info.Author.Name), strings.ToLower(c.Author)) {
		return false
	}
	if c.MinAudioInputs > 0 && len(info.Ports.AudioIn) < c.MinAudioInputs {
		return false
	}
	if c.MinAudioOutputs > 0 && len(info.Ports.AudioOut) < c.MinAudioOutputs {
		return false
	}
	if c.MaxAudioInputs > 0 && len(info.Ports.AudioIn) > c.MaxAudioInputs {
		return false
	}
	if c.MaxAudioOutputs > 0 && len(info.Ports.AudioOut) > c.MaxAudioOutputs {
		return false
	}
	return true
}

func hasCategory(categories []string, want string) bool {
	want = strings.ToLower(want)
	for _, cat := range categories {
		if strings.Contains(strings.ToLower(cat), want) {
			return true
		}
	}
	return false
}

func matchesQuery(info Info, q string) bool {
	haystack := strings.ToLower(info.Name + " " + info.Author.Name + " " + info.Comment + " " + info.URI)
	return strings.Contains(haystack, q)
}
