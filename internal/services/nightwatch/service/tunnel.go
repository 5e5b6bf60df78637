package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"footfall/internal/core/mac"
	perr "footfall/internal/platform/errors"
)

// TunnelState is one antenna's reverse tunnel as the tunnel server sees it
type TunnelState struct {
	Online     bool
	RemotePort int
}

// TunnelAdmin reads the tunnel server's admin API. Each antenna keeps a
// named reverse tunnel whose remote port is the SSH path onto the device
type TunnelAdmin struct {
	BaseURL  string
	User     string
	Password string
	Client   *http.Client
}

// NewTunnelAdmin constructs an admin client with basic auth credentials
func NewTunnelAdmin(baseURL, user, password string) *TunnelAdmin {
	return &TunnelAdmin{
		BaseURL:  baseURL,
		User:     user,
		Password: password,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type tunnelListing struct {
	Proxies []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Conf   struct {
			RemotePort int `json:"remote_port"`
		} `json:"conf"`
	} `json:"proxies"`
}

// Status returns the per-antenna tunnel state. Tunnel names that are not
// antenna ids are ignored
func (t *TunnelAdmin) Status(ctx context.Context) (map[string]TunnelState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+"/api/proxy/tcp", nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "build tunnel request")
	}
	req.SetBasicAuth(t.User, t.Password)

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "query tunnel admin")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, perr.Unavailablef("tunnel admin returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "read tunnel response")
	}
	var listing tunnelListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode tunnel response")
	}

	out := map[string]TunnelState{}
	for _, p := range listing.Proxies {
		id := mac.Normalize(p.Name)
		if !mac.Valid(id) {
			continue
		}
		out[id] = TunnelState{
			Online:     p.Status == "online",
			RemotePort: p.Conf.RemotePort,
		}
	}
	return out, nil
}
