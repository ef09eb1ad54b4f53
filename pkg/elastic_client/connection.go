package elastic_client

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/config"
)

type Client struct {
	Elasticsearch *elasticsearch.Client

	bulkIndexer esutil.BulkIndexer
}

// Connect returns a nil Client without error when no address is configured,
// unless required is set.
func Connect(cfg config.ElasticsearchConfig, required bool) (*Client, error) {
	if cfg.Address == "" && !required {
		log.Info().Msg("Skipping Elasticsearch setup")
		return nil, nil
	} else if cfg.Address == "" && required {
		return nil, fmt.Errorf("elasticsearch address not configured")
	}

	tp := http.DefaultTransport.(*http.Transport).Clone()
	tp.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	retryBackoff := backoff.NewExponentialBackOff()

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Address},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: tp,

		RetryOnStatus: []int{502, 503, 504, 429},

		RetryBackoff: func(i int) time.Duration {
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
		MaxRetries: 5,
	})
	if err != nil {
		return nil, err
	}

	if _, err := es.Info(); err != nil {
		return nil, err
	}

	bulkIndexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        es,
		FlushInterval: 15 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("Elasticsearch client setup for %s", cfg.Address)

	return &Client{
		Elasticsearch: es,
		bulkIndexer:   bulkIndexer,
	}, nil
}

func (c *Client) IndexRequest(ctx context.Context, indexName string, document io.ReadSeeker) error {
	return c.bulkIndexer.Add(
		ctx,
		esutil.BulkIndexerItem{
			Index:  indexName,
			Action: "index",
			Body:   document,
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					log.Error().Err(err).Str("indexName", indexName).Msg("Failed to index document")
				} else {
					log.Error().Str("type", res.Error.Type).Str("reason", res.Error.Reason).Msg("Failed to index document")
				}
			},
		},
	)
}

// WaitUntilQueueEmpty flushes and closes the bulk indexer
func (c *Client) WaitUntilQueueEmpty(ctx context.Context) error {
	return c.bulkIndexer.Close(ctx)
}
