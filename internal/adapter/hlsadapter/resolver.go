package hlsadapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/grafov/m3u8"
	"github.com/hlsgrab/hlsgrab/internal/common"
	"github.com/hlsgrab/hlsgrab/internal/config"
	"github.com/hlsgrab/hlsgrab/internal/entity"
)

// Resolver fetches a playlist URL and resolves master -> media indirection
// down to an ordered segment list with absolute URLs.
type Resolver struct {
	client   *http.Client
	maxDepth int
	log      *slog.Logger
}

func NewResolver(client *http.Client, cfg *config.DownloadConfig, log *slog.Logger) *Resolver {
	return &Resolver{
		client:   client,
		maxDepth: cfg.MaxResolveDepth,
		log:      log.With(slog.String("item", "Resolver")),
	}
}

func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*entity.MediaPlaylist, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", common.ErrFetch, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported url scheme %q", common.ErrFetch, u.Scheme)
	}

	for depth := 0; depth < r.maxDepth; depth++ {
		pl, listType, err := r.fetchPlaylist(ctx, u)
		if err != nil {
			return nil, err
		}

		switch listType {
		case m3u8.MEDIA:
			media, ok := pl.(*m3u8.MediaPlaylist)
			if !ok {
				return nil, fmt.Errorf("%w: unexpected playlist type", common.ErrParse)
			}

			return r.toEntity(u, media)

		case m3u8.MASTER:
			master, ok := pl.(*m3u8.MasterPlaylist)
			if !ok {
				return nil, fmt.Errorf("%w: unexpected playlist type", common.ErrParse)
			}

			next, err := r.selectVariant(u, master)
			if err != nil {
				return nil, err
			}

			r.log.Info("Selected variant", slog.String("url", next.String()))
			u = next

		default:
			return nil, fmt.Errorf("%w: unknown playlist type", common.ErrParse)
		}
	}

	return nil, fmt.Errorf("%w: master playlist nesting exceeds %d levels", common.ErrParse, r.maxDepth)
}

func (r *Resolver) fetchPlaylist(ctx context.Context, u *url.URL) (m3u8.Playlist, m3u8.ListType, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrFetch, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)

		return nil, 0, fmt.Errorf("%w: unexpected status %s for %s", common.ErrFetch, resp.Status, u)
	}

	pl, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrParse, err)
	}

	return pl, listType, nil
}

// selectVariant picks the variant with the maximum declared bandwidth; the
// first maximum encountered wins on ties. A missing bandwidth counts as 0.
func (r *Resolver) selectVariant(base *url.URL, master *m3u8.MasterPlaylist) (*url.URL, error) {
	var best *m3u8.Variant

	for _, v := range master.Variants {
		if v == nil {
			continue
		}

		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: master playlist has no variants", common.ErrNoSegments)
	}

	vu, err := url.Parse(best.URI)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid variant uri %q: %v", common.ErrParse, best.URI, err)
	}

	return base.ResolveReference(vu), nil
}

func (r *Resolver) toEntity(base *url.URL, media *m3u8.MediaPlaylist) (*entity.MediaPlaylist, error) {
	segments := make([]entity.Segment, 0, media.Count())

	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}

		su, err := url.Parse(seg.URI)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid segment uri %q: %v", common.ErrParse, seg.URI, err)
		}

		segments = append(segments, entity.Segment{
			Index:    len(segments),
			URL:      base.ResolveReference(su).String(),
			Duration: seg.Duration,
		})
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrNoSegments, base)
	}

	r.log.Info("Resolved media playlist", slog.String("url", base.String()), slog.Int("segments", len(segments)))

	return &entity.MediaPlaylist{
		URL:      base.String(),
		Segments: segments,
	}, nil
}
