package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// Index stores search documents. Upsert replaces objects with the same id.
type Index interface {
	Upsert(ctx context.Context, docs []SearchDocument) error
	Remove(ctx context.Context, documentIDs []int64) error
}

type WeaviateIndex struct {
	log    *logger.Logger
	client *weaviate.Client
	class  string
}

// NewWeaviateIndex connects to rawURL and stores objects in the class
// "<prefix>Document".
func NewWeaviateIndex(log *logger.Logger, rawURL, prefix string) (*WeaviateIndex, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid weaviate url %q", rawURL)
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: u.Host, Scheme: u.Scheme})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &WeaviateIndex{
		log:    log.With("service", "WeaviateIndex"),
		client: client,
		class:  ClassName(prefix),
	}, nil
}

func ClassName(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "Document"
	}
	return strings.ToUpper(prefix[:1]) + prefix[1:] + "Document"
}

func (w *WeaviateIndex) Class() *models.Class {
	filterable := true
	return &models.Class{
		Class:       w.class,
		Description: "Current state of a document for full text search",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "document_id", DataType: []string{"int"}, IndexFilterable: &filterable},
			{Name: "document_type", DataType: []string{"text"}, IndexFilterable: &filterable, Tokenization: "field"},
			{Name: "protected", DataType: []string{"boolean"}},
			{Name: "quality", DataType: []string{"text"}, Tokenization: "field"},
			{Name: "redirects_to", DataType: []string{"int"}},
			{Name: "available_langs", DataType: []string{"text[]"}, Tokenization: "field"},
			{Name: "location", DataType: []string{"geoCoordinates"}},
		},
	}
}

// EnsureSchema creates the class when it does not exist yet.
func (w *WeaviateIndex) EnsureSchema(ctx context.Context) error {
	if _, err := w.client.Schema().ClassGetter().WithClassName(w.class).Do(ctx); err == nil {
		w.log.Debug("Search class exists", "class", w.class)
		return nil
	}
	if err := w.client.Schema().ClassCreator().WithClass(w.Class()).Do(ctx); err != nil {
		return fmt.Errorf("create search class %s: %w", w.class, err)
	}
	w.log.Info("Search class created", "class", w.class)
	return nil
}

func (w *WeaviateIndex) Upsert(ctx context.Context, docs []SearchDocument) error {
	if len(docs) == 0 {
		return nil
	}
	objects := make([]*models.Object, 0, len(docs))
	for _, d := range docs {
		objects = append(objects, &models.Object{
			Class:      w.class,
			ID:         strfmt.UUID(ObjectID(d.DocumentID).String()),
			Properties: d.Properties(),
		})
	}
	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate batch upsert: %w", err)
	}
	for _, item := range resp {
		if item.Result == nil || item.Result.Errors == nil || len(item.Result.Errors.Error) == 0 {
			continue
		}
		return fmt.Errorf("weaviate upsert of object %s: %s", item.ID, item.Result.Errors.Error[0].Message)
	}
	return nil
}

func (w *WeaviateIndex) Remove(ctx context.Context, documentIDs []int64) error {
	for _, id := range documentIDs {
		where := filters.Where().
			WithPath([]string{"document_id"}).
			WithOperator(filters.Equal).
			WithValueInt(id)
		_, err := w.client.Batch().ObjectsBatchDeleter().
			WithClassName(w.class).
			WithOutput("minimal").
			WithWhere(where).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("weaviate delete document %d: %w", id, err)
		}
	}
	return nil
}
