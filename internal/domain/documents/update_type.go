package documents

import (
	"sort"
	"strings"
)

// UpdateType flags which parts of a document changed in one save.
type UpdateType uint8

const (
	UpdateFigures UpdateType = 1 << iota
	UpdateGeom
	UpdateLang
)

func (u UpdateType) Has(flag UpdateType) bool { return u&flag != 0 }

func (u UpdateType) String() string {
	if u == 0 {
		return "none"
	}
	parts := make([]string, 0, 3)
	if u.Has(UpdateFigures) {
		parts = append(parts, "figures")
	}
	if u.Has(UpdateGeom) {
		parts = append(parts, "geom")
	}
	if u.Has(UpdateLang) {
		parts = append(parts, "lang")
	}
	return strings.Join(parts, "|")
}

// Flags lists the set flags as strings.
func (u UpdateType) Flags() []string {
	if u == 0 {
		return nil
	}
	return strings.Split(u.String(), "|")
}

// VersionSet captures the entity-level versions of a document. Geometry is 0
// when the document has no geometry.
type VersionSet struct {
	Document int
	Geometry int
	Locales  map[string]int
}

// Versions captures the current entity versions of d.
func (d *Document) Versions() VersionSet {
	vs := VersionSet{Document: d.Version, Locales: make(map[string]int, len(d.Locales))}
	if d.Geometry != nil {
		vs.Geometry = d.Geometry.Version
	}
	for _, l := range d.Locales {
		if l != nil {
			vs.Locales[l.Lang] = l.Version
		}
	}
	return vs
}

// ClassifyUpdate compares versions captured before a save with the versions
// after it. A locale absent before the save counts as changed.
func ClassifyUpdate(before, after VersionSet) (UpdateType, []string) {
	var u UpdateType
	if after.Document != before.Document {
		u |= UpdateFigures
	}
	if after.Geometry != before.Geometry {
		u |= UpdateGeom
	}
	var changed []string
	for lang, v := range after.Locales {
		old, ok := before.Locales[lang]
		if !ok || v != old {
			changed = append(changed, lang)
		}
	}
	if len(changed) > 0 {
		u |= UpdateLang
		sort.Strings(changed)
	}
	return u, changed
}
