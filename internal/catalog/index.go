package catalog

import (
	"manifests/internal/rules"
	"manifests/internal/util"
)

type AliasEntry struct {
	Key  string
	City string
}

type CityEntry struct {
	Name    string
	Letters string
}

// Index is the destination lookup built from the rules tables. Aliases and
// cities keep table order; that order decides containment and fuzzy ties.
type Index struct {
	ByAlias map[string]string
	Aliases []AliasEntry
	Cities  []CityEntry
}

func BuildIndex(d rules.Destinations) *Index {
	idx := &Index{
		ByAlias: map[string]string{},
		Aliases: make([]AliasEntry, 0, len(d.Aliases)),
		Cities:  make([]CityEntry, 0, len(d.Catalog)),
	}

	for _, a := range d.Aliases {
		key := util.NormalizePhrase(a.Key)
		if key == "" {
			continue
		}
		if _, exists := idx.ByAlias[key]; exists {
			continue
		}
		city := util.CollapseSpaces(a.City)
		idx.ByAlias[key] = city
		idx.Aliases = append(idx.Aliases, AliasEntry{Key: key, City: city})
	}

	seen := map[string]struct{}{}
	for _, name := range d.Catalog {
		name = util.CollapseSpaces(name)
		letters := util.LettersOnly(name)
		if letters == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		idx.Cities = append(idx.Cities, CityEntry{Name: name, Letters: letters})
	}

	return idx
}
