package service

import (
	"sort"

	"marrfa-assistant/internal/utils"
)

// Place is a canonical location name and the lower-case spellings that refer to it
type Place struct {
	Name    string
	Aliases []string
}

// DubaiPlaces are the communities the listings API understands as search_query
var DubaiPlaces = []Place{
	{Name: "Dubai"},
	{Name: "Dubai Marina", Aliases: []string{"marina"}},
	{Name: "Dubai Hills Estate", Aliases: []string{"dubai hills"}},
	{Name: "Business Bay"},
	{Name: "Jumeirah Village Circle", Aliases: []string{"jvc"}},
	{Name: "Jumeirah Village Triangle", Aliases: []string{"jvt"}},
	{Name: "Jumeirah Lake Towers", Aliases: []string{"jlt", "jumeirah lakes towers"}},
	{Name: "Jumeirah Beach Residence", Aliases: []string{"jbr"}},
	{Name: "Downtown Dubai", Aliases: []string{"downtown"}},
	{Name: "Palm Jumeirah", Aliases: []string{"the palm", "palm"}},
	{Name: "Arjan"},
	{Name: "Dubai South"},
	{Name: "Mohammed Bin Rashid City", Aliases: []string{"mbr city", "mbr", "meydan mbr"}},
	{Name: "Meydan"},
	{Name: "Dubai Creek Harbour", Aliases: []string{"creek harbour", "creek harbor", "dubai creek"}},
	{Name: "Al Barsha", Aliases: []string{"barsha"}},
	{Name: "Al Furjan", Aliases: []string{"furjan"}},
	{Name: "Al Jaddaf", Aliases: []string{"jaddaf"}},
	{Name: "Dubai Silicon Oasis", Aliases: []string{"silicon oasis", "dso"}},
	{Name: "Dubai Sports City", Aliases: []string{"sports city"}},
	{Name: "Motor City"},
	{Name: "Town Square"},
	{Name: "Arabian Ranches"},
	{Name: "Damac Hills", Aliases: []string{"akoya"}},
	{Name: "Dubai Harbour"},
	{Name: "Emaar Beachfront"},
	{Name: "Bluewaters Island", Aliases: []string{"bluewaters"}},
	{Name: "City Walk"},
	{Name: "Sobha Hartland", Aliases: []string{"hartland"}},
	{Name: "International City"},
	{Name: "Discovery Gardens"},
	{Name: "Dubailand", Aliases: []string{"dubai land"}},
	{Name: "Tilal Al Ghaf"},
	{Name: "Jumeirah", Aliases: []string{"jumeira"}},
}

type gazetteerEntry struct {
	alias string
	name  string
}

// Gazetteer resolves place mentions in normalized text
type Gazetteer struct {
	entries []gazetteerEntry // longest alias first
}

// NewGazetteer indexes every place name and alias
func NewGazetteer(places []Place) *Gazetteer {
	g := &Gazetteer{}
	for _, p := range places {
		g.entries = append(g.entries, gazetteerEntry{alias: utils.NormalizeText(p.Name), name: p.Name})
		for _, a := range p.Aliases {
			g.entries = append(g.entries, gazetteerEntry{alias: utils.NormalizeText(a), name: p.Name})
		}
	}
	sort.SliceStable(g.entries, func(i, j int) bool {
		return len(g.entries[i].alias) > len(g.entries[j].alias)
	})
	return g
}

// DefaultGazetteer indexes DubaiPlaces
func DefaultGazetteer() *Gazetteer {
	return NewGazetteer(DubaiPlaces)
}

// Match returns the canonical name of the longest alias found on word
// boundaries in text; among equally long aliases the earliest wins.
func (g *Gazetteer) Match(text string) (string, bool) {
	text = utils.NormalizeText(text)

	bestPos := -1
	bestLen := 0
	best := ""
	for _, e := range g.entries {
		if len(e.alias) < bestLen {
			break
		}
		pos := utils.IndexPhrase(text, e.alias)
		if pos < 0 {
			continue
		}
		if len(e.alias) > bestLen || pos < bestPos {
			best, bestLen, bestPos = e.name, len(e.alias), pos
		}
	}
	return best, best != ""
}

// Aliases returns every indexed spelling, used by the intent rules
func (g *Gazetteer) Aliases() []string {
	out := make([]string, 0, len(g.entries))
	for _, e := range g.entries {
		out = append(out, e.alias)
	}
	return out
}

