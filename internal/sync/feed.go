package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FeedClient fetches deadline records from a JSON calendar export endpoint.
//
// Expected payload:
//
//	{
//	  "complete": true,
//	  "records": [
//	    {"id": "E1", "title": "Essay", "description": "", "due": "2026-02-01T00:00:00Z", "user": "alice"}
//	  ]
//	}
type FeedClient struct {
	url    string
	client *http.Client
}

// NewFeedClient creates a client for the given export URL.
func NewFeedClient(url string) *FeedClient {
	return &FeedClient{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type feedRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Due         string `json:"due"`
	User        string `json:"user"`
}

type feedPayload struct {
	Complete bool         `json:"complete"`
	Records  []feedRecord `json:"records"`
}

// Fetch implements Fetcher.
func (c *FeedClient) Fetch(ctx context.Context) ([]ExternalRecord, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var payload feedPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false, err
	}

	records := make([]ExternalRecord, 0, len(payload.Records))
	for _, rec := range payload.Records {
		out := ExternalRecord{
			SourceID:    rec.ID,
			Title:       rec.Title,
			Description: rec.Description,
			UserRef:     rec.User,
		}
		if rec.Due != "" {
			// An unparsable due date leaves the deadline open-ended
			// rather than rejecting the record.
			if due, err := time.Parse(time.RFC3339, rec.Due); err == nil {
				utc := due.UTC()
				out.DueDate = &utc
			}
		}
		records = append(records, out)
	}
	return records, payload.Complete, nil
}
