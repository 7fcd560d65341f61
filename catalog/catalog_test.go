package catalog

import (
	"errors"
	"testing"
)

type fakeDiscovery struct {
	scanResult map[string]Info
	scanErr    error
}

func (f *fakeDiscovery) Scan() (map[string]Info, error)                { return f.scanResult, f.scanErr }
func (f *fakeDiscovery) Detail(uri string) (*Info, error)               { return nil, nil }
func (f *fakeDiscovery) GUI(uri string) (*GUI, error)                   { return nil, nil }
func (f *fakeDiscovery) GUIMini(uri string) (*GUI, error)               { return nil, nil }
func (f *fakeDiscovery) Essentials(uri string) (*Info, error)           { return nil, nil }
func (f *fakeDiscovery) Presets(uri string) ([]Preset, error)           { return nil, nil }
func (f *fakeDiscovery) ValidatePreset(uri, p string) (bool, error)     { return true, nil }
func (f *fakeDiscovery) RescanPresets(uri string) ([]Preset, error)     { return nil, nil }
func (f *fakeDiscovery) BundleLoaded(path string) (bool, error)         { return false, nil }
func (f *fakeDiscovery) AddBundle(path string) ([]string, error)        { return nil, nil }
func (f *fakeDiscovery) RemoveBundle(path, r string) ([]string, error)  { return nil, nil }
func (f *fakeDiscovery) ListPluginsInBundle(path string) ([]string, error) { return nil, nil }

func validInfo(uri string) Info {
	return Info{
		URI:  uri,
		Name: "Test Plugin",
		Ports: Ports{
			AudioIn:  []Port{{Index: 0, Symbol: "in", Min: 0, Max: 1}},
			AudioOut: []Port{{Index: 1, Symbol: "out", Min: 0, Max: 1}},
		},
	}
}

func TestScanAdmitsValidPlugins(t *testing.T) {
	d := &fakeDiscovery{scanResult: map[string]Info{
		"urn:test": validInfo("urn:test"),
	}}
	c := New(d, nil)
	out, err := c.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d plugins, want 1", len(out))
	}
}

func TestScanRejectsEmptyURI(t *testing.T) {
	info := validInfo("")
	d := &fakeDiscovery{scanResult: map[string]Info{"": info}}
	var warnings []string
	c := New(d, func(format string, args ...interface{}) {
		warnings = append(warnings, format)
	})
	out, err := c.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected rejection, got %d plugins", len(out))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(warnings))
	}
}

func TestScanRejectsNoAudioPorts(t *testing.T) {
	info := validInfo("urn:no-audio")
	info.Ports = Ports{}
	d := &fakeDiscovery{scanResult: map[string]Info{"urn:no-audio": info}}
	c := New(d, nil)
	out, _ := c.Scan()
	if len(out) != 0 {
		t.Fatalf("expected rejection of plugin with no audio ports")
	}
}

func TestScanRejectsTooManyAudioPorts(t *testing.T) {
	info := validInfo("urn:many")
	for i := 0; i < 9; i++ {
		info.Ports.AudioIn = append(info.Ports.AudioIn, Port{Index: i, Symbol: "x"})
	}
	d := &fakeDiscovery{scanResult: map[string]Info{"urn:many": info}}
	c := New(d, nil)
	out, _ := c.Scan()
	if len(out) != 0 {
		t.Fatalf("expected rejection of plugin with > 8 audio inputs")
	}
}

func TestScanRejectsInvertedControlRange(t *testing.T) {
	info := validInfo("urn:inverted")
	info.Ports.ControlIn = []Port{{Symbol: "gain", Min: 10, Max: 0}}
	d := &fakeDiscovery{scanResult: map[string]Info{"urn:inverted": info}}
	c := New(d, nil)
	out, _ := c.Scan()
	if len(out) != 0 {
		t.Fatalf("expected rejection of inverted min/max control port")
	}
}

func TestScanWarnsButKeepsExtremeRange(t *testing.T) {
	info := validInfo("urn:extreme")
	info.Ports.ControlIn = []Port{{Symbol: "freq", Min: 0, Max: 2e6}}
	d := &fakeDiscovery{scanResult: map[string]Info{"urn:extreme": info}}
	var warned bool
	c := New(d, func(string, ...interface{}) { warned = true })
	out, err := c.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("extreme range should warn, not reject; got %d plugins", len(out))
	}
	if !warned {
		t.Fatal("expected a warning for extreme control range")
	}
}

func TestScanPropagatesDiscoveryError(t *testing.T) {
	d := &fakeDiscovery{scanErr: errors.New("boom")}
	c := New(d, nil)
	if _, err := c.Scan(); err == nil {
		t.Fatal("expected error from Scan")
	}
}

func TestSearchByQuery(t *testing.T) {
	infos := []Info{
		{URI: "urn:a", Name: "Reverb Hall", Author: Author{Name: "Acme"}},
		{URI: "urn:b", Name: "Delay Tape", Author: Author{Name: "Acme"}},
	}
	got := Search(infos, "reverb", SearchCriteria{})
	if len(got) != 1 || got[0].URI != "urn:a" {
		t.Fatalf("unexpected search result: %+v", got)
	}
}

func TestSearchByCriteria(t *testing.T) {
	infos := []Info{
		{URI: "urn:a", Name: "A", Categories: []string{"Reverb"}, Ports: Ports{AudioIn: []Port{{}, {}}}},
		{URI: "urn:b", Name: "B", Categories: []string{"Delay"}, Ports: Ports{AudioIn: []Port{{}}}},
	}
	got := Search(infos, "", SearchCriteria{Category: "reverb", MinAudioInputs: 2})
	if len(got) != 1 || got[0].URI != "urn:a" {
		t.Fatalf("unexpected criteria result: %+v", got)
	}
}

func TestSearchEmptyCriteriaMatchesAll(t *testing.T) {
	infos := []Info{{URI: "urn:a"}, {URI: "urn:b"}}
	got := Search(infos, "", SearchCriteria{})
	if len(got) != 2 {
		t.Fatalf("expected all plugins to match empty criteria, got %d", len(got))
	}
}
