package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	elasticsearch "github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"

	"example.com/backstage/services/skip/config"
)

// Indexer is an interface for the movement search index
type Indexer interface {
	IndexDocument(ctx context.Context, id string, document []byte) error
	SearchDocuments(ctx context.Context, query interface{}) ([]json.RawMessage, error)
}

// esIndexer implements the Indexer interface
type esIndexer struct {
	client *elasticsearch.Client
	index  string
}

// noopIndexer drops documents when no Elasticsearch URL is configured
type noopIndexer struct{}

// NewIndexer creates a new Elasticsearch indexer. Without a configured URL
// it returns a no-op indexer.
func NewIndexer(cfg config.Config) (Indexer, error) {
	if cfg.ElasticSearchURL == "" {
		return &noopIndexer{}, nil
	}

	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.ElasticSearchURL},
	}
	if cfg.ElasticSearchUsername != "" && cfg.ElasticSearchPassword != "" {
		esCfg.Username = cfg.ElasticSearchUsername
		esCfg.Password = cfg.ElasticSearchPassword
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	// Test the connection
	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("Elasticsearch error: %s", res.String())
	}

	return &esIndexer{
		client: client,
		index:  cfg.ElasticSearchIndex,
	}, nil
}

// IndexDocument indexes a movement document
func (e *esIndexer) IndexDocument(ctx context.Context, id string, document []byte) error {
	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: id,
		Body:       bytes.NewReader(document),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}

	return nil
}

// SearchDocuments searches the movement index
func (e *esIndexer) SearchDocuments(ctx context.Context, query interface{}) ([]json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(&buf),
		e.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("error searching documents: %s", res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	docs := make([]json.RawMessage, len(result.Hits.Hits))
	for i, hit := range result.Hits.Hits {
		docs[i] = hit.Source
	}

	return docs, nil
}

func (n *noopIndexer) IndexDocument(ctx context.Context, id string, document []byte) error {
	return nil
}

func (n *noopIndexer) SearchDocuments(ctx context.Context, query interface{}) ([]json.RawMessage, error) {
	return nil, nil
}
