// Package catalog projects opportunities into Elasticsearch so students can
// search what is open. The record store stays authoritative; the projection
// is best effort.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"placement-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// Indexer keeps the catalog in step with opportunity changes.
type Indexer interface {
	Index(ctx context.Context, opp models.Opportunity) error
	Remove(ctx context.Context, opportunityID string) error
}

// Document is the indexed shape of an opportunity.
type Document struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	CompanyName    string    `json:"companyName"`
	Level          string    `json:"level"`
	PreferredMajor string    `json:"preferredMajor"`
	OpeningDate    time.Time `json:"openingDate"`
	ClosingDate    time.Time `json:"closingDate"`
	RemainingSlots int       `json:"remainingSlots"`
	Status         string    `json:"status"`
	Visible        bool      `json:"visible"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewDocument maps an opportunity onto its catalog document.
func NewDocument(o models.Opportunity) Document {
	return Document{
		ID:             o.ID,
		Title:          o.Title,
		Description:    o.Description,
		CompanyName:    o.CompanyName,
		Level:          string(o.Level),
		PreferredMajor: o.PreferredMajor,
		OpeningDate:    o.OpeningDate,
		ClosingDate:    o.ClosingDate,
		RemainingSlots: o.RemainingSlots(),
		Status:         string(o.Status),
		Visible:        o.Visible,
		UpdatedAt:      o.UpdatedAt,
	}
}

// ESIndexer writes catalog documents to one Elasticsearch index.
type ESIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewESIndexer(client *elasticsearch.Client, index string) *ESIndexer {
	return &ESIndexer{client: client, index: index}
}

func (x *ESIndexer) Index(ctx context.Context, opp models.Opportunity) error {
	body, err := json.Marshal(NewDocument(opp))
	if err != nil {
		return fmt.Errorf("encode catalog document: %w", err)
	}

	res, err := x.client.Index(
		x.index,
		bytes.NewReader(body),
		x.client.Index.WithDocumentID(opp.ID),
		x.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index opportunity %s: %w", opp.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index opportunity %s: %s", opp.ID, res.Status())
	}
	return nil
}

func (x *ESIndexer) Remove(ctx context.Context, opportunityID string) error {
	res, err := x.client.Delete(x.index, opportunityID, x.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("remove opportunity %s: %w", opportunityID, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("remove opportunity %s: %s", opportunityID, res.Status())
	}
	return nil
}

// Search runs a catalog query and returns the matching documents.
func (x *ESIndexer) Search(ctx context.Context, q SearchQuery) ([]Document, error) {
	req, err := BuildSearch(x.index, q)
	if err != nil {
		return nil, err
	}

	res, err := req.Do(ctx, x.client)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search catalog: %s: %s", res.Status(), raw)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]Document, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

// NopIndexer is used when the catalog is disabled.
type NopIndexer struct{}

func (NopIndexer) Index(context.Context, models.Opportunity) error { return nil }
func (NopIndexer) Remove(context.Context, string) error            { return nil }
