package hlsadapter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hlsgrab/hlsgrab/internal/common"
	"github.com/hlsgrab/hlsgrab/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:9.0,
seg0.ts
#EXTINF:9.0,
seg1.ts
#EXTINF:4.5,
seg2.ts
#EXT-X-ENDLIST
`

const emptyMediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-ENDLIST
`

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=500000
low/index.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=1500000
mid/index.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=800000
high/index.m3u8
`

const loopingMasterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=1000000
master.m3u8
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func testDownloadConfig() *config.DownloadConfig {
	return &config.DownloadConfig{
		SegmentAttempts: 3,
		RetryBackoff:    config.Duration(time.Millisecond),
		ConnectTimeout:  config.Duration(time.Second),
		ReadTimeout:     config.Duration(time.Second),
		MaxResolveDepth: 5,
	}
}

func newTestResolver(client *http.Client) *Resolver {
	return NewResolver(client, testDownloadConfig(), testLogger())
}

func playlistServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)

			return
		}

		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestResolverMediaPlaylist(t *testing.T) {
	srv := playlistServer(t, map[string]string{
		"/streams/index.m3u8": mediaPlaylist,
	})

	r := newTestResolver(srv.Client())

	pl, err := r.Resolve(context.Background(), srv.URL+"/streams/index.m3u8")
	require.NoError(t, err)
	require.Len(t, pl.Segments, 3)

	// Relative segment URIs join against the playlist's own directory.
	assert.Equal(t, srv.URL+"/streams/seg0.ts", pl.Segments[0].URL)
	assert.Equal(t, srv.URL+"/streams/seg1.ts", pl.Segments[1].URL)
	assert.Equal(t, srv.URL+"/streams/seg2.ts", pl.Segments[2].URL)

	for i, seg := range pl.Segments {
		assert.Equal(t, i, seg.Index)
	}
}

func TestResolverSelectsHighestBandwidthVariant(t *testing.T) {
	srv := playlistServer(t, map[string]string{
		"/master.m3u8":    masterPlaylist,
		"/mid/index.m3u8": mediaPlaylist,
	})

	r := newTestResolver(srv.Client())

	pl, err := r.Resolve(context.Background(), srv.URL+"/master.m3u8")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/mid/index.m3u8", pl.URL)
	assert.Equal(t, srv.URL+"/mid/seg0.ts", pl.Segments[0].URL)
}

func TestResolverIdempotent(t *testing.T) {
	srv := playlistServer(t, map[string]string{
		"/index.m3u8": mediaPlaylist,
	})

	r := newTestResolver(srv.Client())

	first, err := r.Resolve(context.Background(), srv.URL+"/index.m3u8")
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), srv.URL+"/index.m3u8")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolverErrors(t *testing.T) {
	testCases := []struct {
		name        string
		routes      map[string]string
		path        string
		expectedErr error
	}{
		{
			name:        "no segments",
			routes:      map[string]string{"/empty.m3u8": emptyMediaPlaylist},
			path:        "/empty.m3u8",
			expectedErr: common.ErrNoSegments,
		},
		{
			name:        "unparsable body",
			routes:      map[string]string{"/garbage.m3u8": "<html>not a playlist</html>"},
			path:        "/garbage.m3u8",
			expectedErr: common.ErrParse,
		},
		{
			name:        "http error status",
			routes:      map[string]string{},
			path:        "/missing.m3u8",
			expectedErr: common.ErrFetch,
		},
		{
			name:        "master loop exceeds depth",
			routes:      map[string]string{"/master.m3u8": loopingMasterPlaylist},
			path:        "/master.m3u8",
			expectedErr: common.ErrParse,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := playlistServer(t, tc.routes)
			r := newTestResolver(srv.Client())

			_, err := r.Resolve(context.Background(), srv.URL+tc.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func TestResolverRejectsNonHTTPScheme(t *testing.T) {
	r := newTestResolver(http.DefaultClient)

	_, err := r.Resolve(context.Background(), "ftp://example.com/index.m3u8")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFetch)
}
