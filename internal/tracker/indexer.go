// internal/tracker/indexer.go
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// ESIndexer ships terminal history records to Elasticsearch for audit
// search. Indexing runs on its own goroutine per record and never blocks or
// fails the dispatch path.
type ESIndexer struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

func NewESIndexer(client *elasticsearch.Client, index string, log logger.Logger) *ESIndexer {
	return &ESIndexer{
		client: client,
		index:  index,
		log:    log.WithFields(map[string]interface{}{"component": "audit-indexer"}),
	}
}

func (i *ESIndexer) Index(h *models.NotificationHistory) {
	cp := *h
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		body, err := json.Marshal(cp)
		if err != nil {
			i.log.Warn("encode audit document failed", map[string]interface{}{"error": err.Error()})
			return
		}

		res, err := i.client.Index(
			i.index,
			bytes.NewReader(body),
			i.client.Index.WithContext(ctx),
			i.client.Index.WithDocumentID(cp.NotificationID),
		)
		if err != nil {
			i.log.Warn("audit index request failed", map[string]interface{}{"error": err.Error()})
			return
		}
		defer res.Body.Close()

		if res.IsError() {
			i.log.Warn("audit index rejected", map[string]interface{}{
				"status":         res.Status(),
				"notificationId": cp.NotificationID,
			})
		}
	}()
}
