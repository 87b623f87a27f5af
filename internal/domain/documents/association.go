package documents

import "time"

// Association is a directed edge parent -> child. Traversal goes both ways
// through explicit parent/child queries.
type Association struct {
	ParentDocumentID   int64     `gorm:"column:parent_document_id;primaryKey;autoIncrement:false" json:"parent_document_id"`
	ChildDocumentID    int64     `gorm:"column:child_document_id;primaryKey;autoIncrement:false;index" json:"child_document_id"`
	ParentDocumentType Type      `gorm:"column:parent_document_type;not null" json:"parent_document_type"`
	ChildDocumentType  Type      `gorm:"column:child_document_type;not null" json:"child_document_type"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Association) TableName() string { return "associations" }

// Key identifies an edge independently of its type columns.
func (a Association) Key() AssociationKey {
	return AssociationKey{Parent: a.ParentDocumentID, Child: a.ChildDocumentID}
}

type AssociationKey struct {
	Parent int64
	Child  int64
}

// AssociationLog is the append-only audit trail of association mutations.
type AssociationLog struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ParentDocumentID   int64     `gorm:"column:parent_document_id;not null;index" json:"parent_document_id"`
	ChildDocumentID    int64     `gorm:"column:child_document_id;not null;index" json:"child_document_id"`
	ParentDocumentType Type      `gorm:"column:parent_document_type;not null" json:"parent_document_type"`
	ChildDocumentType  Type      `gorm:"column:child_document_type;not null" json:"child_document_type"`
	UserID             int64     `gorm:"column:user_id;not null" json:"user_id"`
	IsCreation         bool      `gorm:"column:is_creation;not null" json:"is_creation"`
	WrittenAt          time.Time `gorm:"column:written_at;not null" json:"written_at"`
}

func (AssociationLog) TableName() string { return "association_log" }

// NewAssociationLog records a creation (true) or removal (false) of a.
func NewAssociationLog(a *Association, userID int64, isCreation bool, at time.Time) *AssociationLog {
	return &AssociationLog{
		ParentDocumentID:   a.ParentDocumentID,
		ChildDocumentID:    a.ChildDocumentID,
		ParentDocumentType: a.ParentDocumentType,
		ChildDocumentType:  a.ChildDocumentType,
		UserID:             userID,
		IsCreation:         isCreation,
		WrittenAt:          at,
	}
}

// AreaAssociation links a document to an area containing it. System maintained.
type AreaAssociation struct {
	DocumentID int64 `gorm:"column:document_id;primaryKey;autoIncrement:false" json:"document_id"`
	AreaID     int64 `gorm:"column:area_id;primaryKey;autoIncrement:false;index" json:"area_id"`
}

func (AreaAssociation) TableName() string { return "area_associations" }

// TopoMapAssociation links a document to a topo map covering it. System maintained.
type TopoMapAssociation struct {
	DocumentID int64 `gorm:"column:document_id;primaryKey;autoIncrement:false" json:"document_id"`
	TopoMapID  int64 `gorm:"column:topo_map_id;primaryKey;autoIncrement:false;index" json:"topo_map_id"`
}

func (TopoMapAssociation) TableName() string { return "map_associations" }

var associationRules = map[Type]map[Type]bool{
	TypeWaypoint: {TypeWaypoint: true, TypeRoute: true, TypeArticle: true, TypeImage: true, TypeReport: true, TypeXReport: true},
	TypeRoute:    {TypeRoute: true, TypeOuting: true, TypeArticle: true, TypeImage: true, TypeReport: true, TypeXReport: true},
	TypeOuting:   {TypeImage: true, TypeArticle: true, TypeReport: true, TypeXReport: true},
	TypeBook:     {TypeWaypoint: true, TypeRoute: true, TypeArticle: true, TypeImage: true},
	TypeArticle:  {TypeArticle: true, TypeImage: true, TypeOuting: true},
	TypeReport:   {TypeImage: true, TypeArticle: true},
	TypeXReport:  {TypeImage: true, TypeArticle: true},
}

// AssociationAllowed reports whether an edge parent -> child may be created by
// users. Area and topo map links are never user-editable.
func AssociationAllowed(parent, child Type) bool {
	return associationRules[parent][child]
}
