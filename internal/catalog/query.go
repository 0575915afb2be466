package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrMissingIndex = errors.New("index name is required")

// SearchQuery filters the open catalog.
type SearchQuery struct {
	Keywords string
	Level    string
	Major    string
	On       time.Time
	From     int
	Size     int
}

// BuildSearch builds a search for visible, approved opportunities whose
// application window contains q.On.
func BuildSearch(index string, q SearchQuery) (*esapi.SearchRequest, error) {
	if index == "" {
		return nil, ErrMissingIndex
	}

	body, err := json.Marshal(buildQueryBody(q))
	if err != nil {
		return nil, err
	}

	size := q.Size
	if size <= 0 {
		size = 20
	}
	from := q.From

	return &esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
		From:  &from,
		Size:  &size,
	}, nil
}

func buildQueryBody(q SearchQuery) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"status": "approved"}},
		map[string]interface{}{"term": map[string]interface{}{"visible": true}},
		map[string]interface{}{"range": map[string]interface{}{"remainingSlots": map[string]interface{}{"gt": 0}}},
	}

	if q.Keywords != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Keywords,
				"fields": []string{"title^3", "description^2", "companyName"},
				"type":   "best_fields",
			},
		})
	}
	if q.Level != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"level": q.Level}})
	}
	if q.Major != "" {
		filter = append(filter, map[string]interface{}{
			"terms": map[string]interface{}{"preferredMajor": []string{q.Major, "any"}},
		})
	}
	if !q.On.IsZero() {
		day := q.On.Format("2006-01-02")
		filter = append(filter,
			map[string]interface{}{"range": map[string]interface{}{"openingDate": map[string]interface{}{"lte": day + "||/d"}}},
			map[string]interface{}{"range": map[string]interface{}{"closingDate": map[string]interface{}{"gte": day + "||/d"}}},
		)
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"closingDate": map[string]interface{}{"order": "asc"}},
		},
	}
}
