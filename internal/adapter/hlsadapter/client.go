package hlsadapter

import (
	"net"
	"net/http"

	"github.com/hlsgrab/hlsgrab/internal/config"
)

// NewHTTPClient builds the client shared by the resolver and the segment
// fetcher. Connect and read timeouts come from config so a stalled remote
// cannot hang a job.
func NewHTTPClient(cfg *config.DownloadConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout: cfg.ConnectTimeout.Std(),
	}

	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: cfg.ReadTimeout.Std(),
		},
	}
}
