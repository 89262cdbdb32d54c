// Package catalogsync reconciles versioned external catalog snapshots
// (medications, diagnoses, starter treatments) into the local store
// without overwriting user customizations or accumulated learning.
package catalogsync

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medikit/prescriptor-api/catalog"
	"github.com/medikit/prescriptor-api/interfaces"
)

// Snapshot file names served under the snapshot base URL.
const (
	medicationsFile = "medications.json"
	diagnosesFile   = "diagnoses.json"
	treatmentsFile  = "treatments.json"
)

// Compile-time check to ensure Client implements Fetcher
var _ interfaces.Fetcher = (*Client)(nil)

// Client downloads snapshot files from the configured base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a snapshot client. The timeout covers the whole
// download; snapshots are small JSON files so two minutes is generous.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// fetchJSON downloads one snapshot file and decodes the JSON array into v.
func (c *Client) fetchJSON(file string, v any) error {
	url := c.baseURL + "/" + file

	response, err := c.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		io.Copy(io.Discard, response.Body)
		return fmt.Errorf("unexpected status %d downloading %s", response.StatusCode, url)
	}

	if err := json.NewDecoder(response.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", url, err)
	}

	return nil
}

// FetchMedications downloads the medications snapshot.
func (c *Client) FetchMedications() ([]catalog.Medication, error) {
	var meds []catalog.Medication
	if err := c.fetchJSON(medicationsFile, &meds); err != nil {
		return nil, err
	}
	return meds, nil
}

// FetchDiagnoses downloads the diagnoses snapshot.
func (c *Client) FetchDiagnoses() ([]catalog.Diagnosis, error) {
	var dxs []catalog.Diagnosis
	if err := c.fetchJSON(diagnosesFile, &dxs); err != nil {
		return nil, err
	}
	return dxs, nil
}

// FetchTreatments downloads the starter treatments snapshot.
func (c *Client) FetchTreatments() ([]catalog.Treatment, error) {
	var ts []catalog.Treatment
	if err := c.fetchJSON(treatmentsFile, &ts); err != nil {
		return nil, err
	}
	return ts, nil
}
