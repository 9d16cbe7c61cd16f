// Package party holds the static party metadata used when rendering result
// rows: the logo asset and short abbreviation for each party.
package party

import (
	"fmt"

	"github.com/spf13/viper"
)

// DefaultLogo is shown for parties missing from the table.
const DefaultLogo = "/default-logo.png"

// Party describes how a party is displayed.
type Party struct {
	Logo         string `mapstructure:"logo"`
	Abbreviation string `mapstructure:"abbreviation"`
}

// Table maps a party's full name, as it appears in the results feed, to its
// display metadata. It is never modified after construction.
type Table struct {
	parties     map[string]Party
	defaultLogo string
}

// NewTable copies parties into a read-only Table. An empty defaultLogo
// falls back to DefaultLogo.
func NewTable(parties map[string]Party, defaultLogo string) Table {
	if defaultLogo == "" {
		defaultLogo = DefaultLogo
	}
	cp := make(map[string]Party, len(parties))
	for name, p := range parties {
		cp[name] = p
	}
	return Table{parties: cp, defaultLogo: defaultLogo}
}

// Defaults returns the parties contesting the 2024 Puerto Rico general
// election.
func Defaults() Table {
	return NewTable(map[string]Party{
		"Partido Nuevo Progresista":              {Logo: "/pnp.jpg", Abbreviation: "PNP"},
		"Partido Popular Democrático":            {Logo: "/ppd.png", Abbreviation: "PPD"},
		"Partido Independentista Puertorriqueño": {Logo: "/pip.png", Abbreviation: "PIP"},
		"Proyecto Dignidad":                      {Logo: "/dignidad.svg", Abbreviation: "PD"},
		"Movimiento Victoria Ciudadana":          {Logo: "/victoriaciud.svg", Abbreviation: "MVC"},
	}, DefaultLogo)
}

// Lookup returns the logo and display label for a party. Unknown parties
// get the default logo and their full name; a known party with an empty
// abbreviation is labelled by its full name too.
func (t Table) Lookup(name string) (logo, label string) {
	p, ok := t.parties[name]
	if !ok {
		return t.defaultLogo, name
	}
	logo, label = p.Logo, p.Abbreviation
	if logo == "" {
		logo = t.defaultLogo
	}
	if label == "" {
		label = name
	}
	return logo, label
}

// Len returns the number of known parties.
func (t Table) Len() int { return len(t.parties) }

// Load reads a party table from a YAML, JSON or TOML file with the layout
//
//	default_logo: /default-logo.png
//	parties:
//	  - name: Partido Nuevo Progresista
//	    logo: /pnp.jpg
//	    abbreviation: PNP
//
// An empty path returns Defaults.
func Load(path, defaultLogo string) (Table, error) {
	if path == "" {
		t := Defaults()
		if defaultLogo != "" {
			t.defaultLogo = defaultLogo
		}
		return t, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Table{}, fmt.Errorf("party: read %s: %w", path, err)
	}

	// Parties are a list rather than a map because viper lowercases keys.
	var entries []struct {
		Name         string `mapstructure:"name"`
		Logo         string `mapstructure:"logo"`
		Abbreviation string `mapstructure:"abbreviation"`
	}
	if err := v.UnmarshalKey("parties", &entries); err != nil {
		return Table{}, fmt.Errorf("party: decode %s: %w", path, err)
	}

	parties := make(map[string]Party, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return Table{}, fmt.Errorf("party: %s: entry %d has no name", path, i)
		}
		parties[e.Name] = Party{Logo: e.Logo, Abbreviation: e.Abbreviation}
	}

	if fileLogo := v.GetString("default_logo"); fileLogo != "" {
		defaultLogo = fileLogo
	}
	return NewTable(parties, defaultLogo), nil
}
