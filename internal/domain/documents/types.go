package documents

import "sort"

// Type is the document discriminator. Every document shares one id space
// regardless of its type.
type Type string

const (
	TypeWaypoint Type = "waypoint"
	TypeRoute    Type = "route"
	TypeOuting   Type = "outing"
	TypeArticle  Type = "article"
	TypeBook     Type = "book"
	TypeImage    Type = "image"
	TypeReport   Type = "report"
	TypeXReport  Type = "xreport"
	TypeArea     Type = "area"
	TypeTopoMap  Type = "topo_map"
)

var allTypes = []Type{
	TypeWaypoint, TypeRoute, TypeOuting, TypeArticle, TypeBook,
	TypeImage, TypeReport, TypeXReport, TypeArea, TypeTopoMap,
}

func AllTypes() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

func (t Type) Valid() bool {
	for _, v := range allTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsSpatialContainer reports whether documents of this type own derived
// area/map links to the documents located inside their geometry.
func (t Type) IsSpatialContainer() bool {
	return t == TypeArea || t == TypeTopoMap
}

var knownLangs = map[string]bool{
	"fr": true, "it": true, "de": true, "en": true, "es": true,
	"ca": true, "eu": true, "sl": true, "zh_CN": true,
}

// ValidLang reports whether lang is one of the platform languages.
func ValidLang(lang string) bool { return knownLangs[lang] }

func KnownLangs() []string {
	out := make([]string, 0, len(knownLangs))
	for l := range knownLangs {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
