package documents

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Figures is the type-specific, non-locale, non-geometry payload of a document.
// Exactly one variant exists per document type.
type Figures interface {
	DocumentType() Type
}

type WaypointFigures struct {
	WaypointType string   `json:"waypoint_type,omitempty"`
	Elevation    *int     `json:"elevation,omitempty"`
	Prominence   *int     `json:"prominence,omitempty"`
	Orientations []string `json:"orientations,omitempty"`
	URL          string   `json:"url,omitempty"`
}

type RouteFigures struct {
	Activities     []string `json:"activities,omitempty"`
	ElevationMin   *int     `json:"elevation_min,omitempty"`
	ElevationMax   *int     `json:"elevation_max,omitempty"`
	HeightDiffUp   *int     `json:"height_diff_up,omitempty"`
	Durations      []string `json:"durations,omitempty"`
	GlobalRating   string   `json:"global_rating,omitempty"`
	MainWaypointID *int64   `json:"main_waypoint_id,omitempty"`
}

type OutingFigures struct {
	Activities    []string `json:"activities,omitempty"`
	DateStart     string   `json:"date_start,omitempty"`
	DateEnd       string   `json:"date_end,omitempty"`
	ElevationMax  *int     `json:"elevation_max,omitempty"`
	Frequentation string   `json:"frequentation,omitempty"`
	Condition     string   `json:"condition_rating,omitempty"`
}

type ArticleFigures struct {
	ArticleType string   `json:"article_type,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Activities  []string `json:"activities,omitempty"`
}

type BookFigures struct {
	Author          string   `json:"author,omitempty"`
	Editor          string   `json:"editor,omitempty"`
	ISBN            string   `json:"isbn,omitempty"`
	NbPages         *int     `json:"nb_pages,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	BookTypes       []string `json:"book_types,omitempty"`
	Activities      []string `json:"activities,omitempty"`
}

type ImageFigures struct {
	Filename     string   `json:"filename,omitempty"`
	Activities   []string `json:"activities,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	ImageType    string   `json:"image_type,omitempty"`
	Author       string   `json:"author,omitempty"`
	Elevation    *int     `json:"elevation,omitempty"`
	Height       *int     `json:"height,omitempty"`
	Width        *int     `json:"width,omitempty"`
	FileSize     *int     `json:"file_size,omitempty"`
	DateTime     string   `json:"date_time,omitempty"`
	CameraName   string   `json:"camera_name,omitempty"`
	ExposureTime *float64 `json:"exposure_time,omitempty"`
	FocalLength  *float64 `json:"focal_length,omitempty"`
	FNumber      *float64 `json:"fnumber,omitempty"`
	ISOSpeed     *int     `json:"iso_speed,omitempty"`
}

// ReportFigures backs both report and xreport documents; kind tells them apart.
type ReportFigures struct {
	Kind           Type     `json:"-"`
	Activities     []string `json:"activities,omitempty"`
	Date           string   `json:"date,omitempty"`
	EventType      []string `json:"event_type,omitempty"`
	NbParticipants *int     `json:"nb_participants,omitempty"`
	NbImpacted     *int     `json:"nb_impacted,omitempty"`
	Severity       string   `json:"severity,omitempty"`
	AvalancheLevel string   `json:"avalanche_level,omitempty"`
	AvalancheSlope string   `json:"avalanche_slope,omitempty"`
	Elevation      *int     `json:"elevation,omitempty"`
}

type AreaFigures struct {
	AreaType string `json:"area_type,omitempty"`
}

type TopoMapFigures struct {
	Editor string `json:"editor,omitempty"`
	Scale  string `json:"scale,omitempty"`
	Code   string `json:"code,omitempty"`
}

func (WaypointFigures) DocumentType() Type { return TypeWaypoint }
func (RouteFigures) DocumentType() Type    { return TypeRoute }
func (OutingFigures) DocumentType() Type   { return TypeOuting }
func (ArticleFigures) DocumentType() Type  { return TypeArticle }
func (BookFigures) DocumentType() Type     { return TypeBook }
func (ImageFigures) DocumentType() Type    { return TypeImage }
func (AreaFigures) DocumentType() Type     { return TypeArea }
func (TopoMapFigures) DocumentType() Type  { return TypeTopoMap }

func (f ReportFigures) DocumentType() Type {
	if f.Kind == TypeXReport {
		return TypeXReport
	}
	return TypeReport
}

// NewFigures returns the zero variant for t.
func NewFigures(t Type) (Figures, error) {
	switch t {
	case TypeWaypoint:
		return &WaypointFigures{}, nil
	case TypeRoute:
		return &RouteFigures{}, nil
	case TypeOuting:
		return &OutingFigures{}, nil
	case TypeArticle:
		return &ArticleFigures{}, nil
	case TypeBook:
		return &BookFigures{}, nil
	case TypeImage:
		return &ImageFigures{}, nil
	case TypeReport, TypeXReport:
		return &ReportFigures{Kind: t}, nil
	case TypeArea:
		return &AreaFigures{}, nil
	case TypeTopoMap:
		return &TopoMapFigures{}, nil
	default:
		return nil, fmt.Errorf("unknown document type %q", t)
	}
}

// DecodeFigures reads a stored figures payload into the variant for t.
// An empty payload yields the zero variant.
func DecodeFigures(t Type, raw []byte) (Figures, error) {
	f, err := NewFigures(t)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return f, nil
	}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("decode %s figures: %w", t, err)
	}
	return f, nil
}

// EncodeFigures produces the canonical JSON stored in figures columns.
// Struct field order is fixed, so equal figures always encode to equal bytes.
func EncodeFigures(f Figures) (datatypes.JSON, error) {
	if f == nil {
		return datatypes.JSON("{}"), nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func figuresMatchType(f Figures, t Type) bool {
	if f == nil {
		return true
	}
	ft := f.DocumentType()
	if ft == t {
		return true
	}
	// a ReportFigures without Kind decodes as report; accept it for xreport too.
	return (ft == TypeReport || ft == TypeXReport) && (t == TypeReport || t == TypeXReport)
}
