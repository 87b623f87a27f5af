// Package search keeps the search index in step with the document store.
package search

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/cordee/cordee-backend/internal/domain/documents"
)

// objectNamespace seeds the deterministic index ids so a re-sync of a
// document overwrites its previous object.
var objectNamespace = uuid.MustParse("6f1f7a52-3a4e-4b55-9a52-8b8f3f5d7c11")

// SearchDocument is the flattened, indexable view of a document.
type SearchDocument struct {
	DocumentID   int64
	DocumentType documents.Type
	Protected    bool
	Quality      string
	RedirectsTo  *int64

	// Titles and Summaries are keyed by language.
	Titles    map[string]string
	Summaries map[string]string
	Langs     []string

	// Lon/Lat are set when the document has a location.
	Lon, Lat *float64

	// Fields holds the type-specific attributes.
	Fields map[string]interface{}
}

// ObjectID is the stable index id of a document.
func ObjectID(documentID int64) uuid.UUID {
	return uuid.NewSHA1(objectNamespace, []byte(fmt.Sprintf("document:%d", documentID)))
}

// ToSearchDocument maps the current state of doc. A redirected document only
// keeps its base fields so search hits point at the merge target.
func ToSearchDocument(doc *documents.Document) (SearchDocument, error) {
	out := SearchDocument{
		DocumentID:   doc.DocumentID,
		DocumentType: doc.Type,
		Protected:    doc.Protected,
		Quality:      doc.Quality,
		RedirectsTo:  doc.RedirectsTo,
	}
	if doc.IsRedirected() {
		return out, nil
	}

	out.Titles = make(map[string]string, len(doc.Locales))
	out.Summaries = make(map[string]string, len(doc.Locales))
	for _, l := range doc.Locales {
		if l == nil {
			continue
		}
		out.Titles[l.Lang] = l.Title
		if l.Summary != "" {
			out.Summaries[l.Lang] = l.Summary
		}
		out.Langs = append(out.Langs, l.Lang)
	}
	sort.Strings(out.Langs)

	if p, ok := doc.Geometry.RepresentativePoint(); ok {
		lon, lat := p.Lon(), p.Lat()
		out.Lon, out.Lat = &lon, &lat
	}

	figs, err := doc.DecodeFigures()
	if err != nil {
		return out, fmt.Errorf("decode figures of document %d: %w", doc.DocumentID, err)
	}
	out.Fields = figureFields(figs)
	return out, nil
}

func figureFields(f documents.Figures) map[string]interface{} {
	fields := map[string]interface{}{}
	put := func(name string, v interface{}) {
		switch x := v.(type) {
		case string:
			if x == "" {
				return
			}
		case []string:
			if len(x) == 0 {
				return
			}
		case *int:
			if x == nil {
				return
			}
			v = *x
		}
		fields[name] = v
	}
	switch v := f.(type) {
	case *documents.WaypointFigures:
		put("waypoint_type", v.WaypointType)
		put("elevation", v.Elevation)
	case *documents.RouteFigures:
		put("activities", v.Activities)
		put("elevation_min", v.ElevationMin)
		put("elevation_max", v.ElevationMax)
		put("height_diff_up", v.HeightDiffUp)
		put("global_rating", v.GlobalRating)
	case *documents.OutingFigures:
		put("activities", v.Activities)
		put("date_start", v.DateStart)
		put("date_end", v.DateEnd)
		put("elevation_max", v.ElevationMax)
		put("condition_rating", v.Condition)
	case *documents.ArticleFigures:
		put("article_type", v.ArticleType)
		put("categories", v.Categories)
		put("activities", v.Activities)
	case *documents.BookFigures:
		put("author", v.Author)
		put("book_types", v.BookTypes)
		put("activities", v.Activities)
	case *documents.ImageFigures:
		put("image_type", v.ImageType)
		put("categories", v.Categories)
		put("activities", v.Activities)
	case *documents.ReportFigures:
		put("activities", v.Activities)
		put("date", v.Date)
		put("event_type", v.EventType)
		put("nb_participants", v.NbParticipants)
		put("nb_impacted", v.NbImpacted)
		put("severity", v.Severity)
		put("avalanche_level", v.AvalancheLevel)
		put("avalanche_slope", v.AvalancheSlope)
		put("elevation", v.Elevation)
	case *documents.AreaFigures:
		put("area_type", v.AreaType)
	case *documents.TopoMapFigures:
		put("editor", v.Editor)
		put("code", v.Code)
	}
	return fields
}

// Properties flattens d into the property map stored in the index.
func (d SearchDocument) Properties() map[string]interface{} {
	props := map[string]interface{}{
		"document_id":   d.DocumentID,
		"document_type": string(d.DocumentType),
		"protected":     d.Protected,
	}
	if d.Quality != "" {
		props["quality"] = d.Quality
	}
	if d.RedirectsTo != nil {
		props["redirects_to"] = *d.RedirectsTo
		return props
	}
	if len(d.Langs) > 0 {
		props["available_langs"] = d.Langs
	}
	for lang, t := range d.Titles {
		props["title_"+lang] = t
	}
	for lang, s := range d.Summaries {
		props["summary_"+lang] = s
	}
	if d.Lon != nil && d.Lat != nil {
		props["location"] = map[string]interface{}{"longitude": *d.Lon, "latitude": *d.Lat}
	}
	for k, v := range d.Fields {
		props[k] = v
	}
	return props
}
