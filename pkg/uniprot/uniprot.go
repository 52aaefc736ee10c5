// Package uniprot is a small REST client for retrieving protein sequences
// from the UniProt knowledgebase.
package uniprot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://rest.uniprot.org/uniprotkb"

// SequenceRecord is one sequence returned for an accession.
type SequenceRecord struct {
	UniProtID string `json:"uniprot_id"`
	Sequence  string `json:"sequence"`
	Length    int    `json:"sequence_length"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

func NewClient(log *zap.Logger) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Log:     log,
	}
}

// wire format of /uniprotkb/accessions
type accessionsResponse struct {
	Results []struct {
		PrimaryAccession string `json:"primaryAccession"`
		Sequence         struct {
			Value  string `json:"value"`
			Length int    `json:"length"`
		} `json:"sequence"`
	} `json:"results"`
}

// Fetch retrieves the sequences stored for an accession. Only records whose
// primary accession equals the requested one are returned; the endpoint can
// answer with secondary matches.
func (c *Client) Fetch(ctx context.Context, accession string) ([]SequenceRecord, error) {

	endpoint := fmt.Sprintf("%s/accessions?accessions=%s&fields=accession,sequence",
		c.BaseURL, url.QueryEscape(accession))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uniprot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("uniprot request for %s returned status %d", accession, resp.StatusCode)
	}

	var payload accessionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode uniprot response: %w", err)
	}

	var records []SequenceRecord
	for _, r := range payload.Results {
		if r.PrimaryAccession != accession {
			continue
		}
		records = append(records, SequenceRecord{
			UniProtID: r.PrimaryAccession,
			Sequence:  r.Sequence.Value,
			Length:    r.Sequence.Length,
		})
	}

	if c.Log != nil {
		c.Log.Debug("fetched uniprot sequences",
			zap.String("accession", accession),
			zap.Int("records", len(records)))
	}

	return records, nil
}
