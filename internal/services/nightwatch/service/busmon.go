package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"footfall/internal/core/mac"
	perr "footfall/internal/platform/errors"
)

// BusMonitor reads the bus server's monitoring endpoint to learn which
// antennas hold a live connection. Antennas connect with their id as the
// client name
type BusMonitor struct {
	BaseURL  string
	PageSize int
	Client   *http.Client
}

// NewBusMonitor constructs a monitor client for the given base URL
func NewBusMonitor(baseURL string) *BusMonitor {
	return &BusMonitor{
		BaseURL:  baseURL,
		PageSize: 1024,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type connzPage struct {
	Total       int `json:"total"`
	Offset      int `json:"offset"`
	Limit       int `json:"limit"`
	Connections []struct {
		Name string `json:"name"`
	} `json:"connections"`
}

// Connected pages through the connection listing and returns the set of
// connected antenna ids. Connection names that are not antenna ids (other
// services on the same bus) are ignored
func (m *BusMonitor) Connected(ctx context.Context) (map[string]bool, error) {
	out := map[string]bool{}
	for offset := 0; ; {
		page, err := m.fetch(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, c := range page.Connections {
			id := mac.Normalize(c.Name)
			if mac.Valid(id) {
				out[id] = true
			}
		}
		offset += len(page.Connections)
		if offset >= page.Total || len(page.Connections) == 0 {
			return out, nil
		}
	}
}

func (m *BusMonitor) fetch(ctx context.Context, offset int) (*connzPage, error) {
	url := fmt.Sprintf("%s/connz?offset=%d&limit=%d", m.BaseURL, offset, m.PageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "build connz request")
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "query bus monitor")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, perr.Unavailablef("bus monitor returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "read connz response")
	}
	var page connzPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode connz response")
	}
	return &page, nil
}
