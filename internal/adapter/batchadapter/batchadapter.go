/*
Package batchadapter parses batch link-list files.

The single supported format is batch format version 1: a Markdown document
with a YAML frontmatter header.

	---
	version: 1
	title: "Night recordings"
	format: streaming-mp4
	---
	- https://example.com/a/index.m3u8
	- <https://example.com/b/index.m3u8>

"version: 1" is required. "format" is optional and defaults to
raw-container. URLs are collected from markdown links, autolinks and bare
http(s) URLs in text, in document order, duplicates removed.
*/
package batchadapter

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/hlsgrab/hlsgrab/internal/entity"
	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

const supportedVersion = 1

var (
	ErrMissingFrontmatter = fmt.Errorf("batch file has no frontmatter header")
	ErrUnsupportedVersion = fmt.Errorf("unsupported batch file version")
	ErrNoURLs             = fmt.Errorf("batch file contains no urls")

	urlRegexp = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `]+`)
)

type meta struct {
	Version int    `yaml:"version"`
	Title   string `yaml:"title"`
	Format  string `yaml:"format"`
}

type BatchAdapter struct {
	fs  afero.Fs
	md  goldmark.Markdown
	log *slog.Logger
}

func NewBatchAdapter(log *slog.Logger) *BatchAdapter {
	return NewBatchAdapterWithFS(afero.NewOsFs(), log)
}

func NewBatchAdapterWithFS(fs afero.Fs, log *slog.Logger) *BatchAdapter {
	md := goldmark.New(
		goldmark.WithExtensions(
			&frontmatter.Extender{},
		),
	)

	return &BatchAdapter{
		fs:  fs,
		md:  md,
		log: log.With(slog.String("item", "BatchAdapter")),
	}
}

func (a *BatchAdapter) FromFile(path string) (*entity.Batch, error) {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, fmt.Errorf("cannot read batch file: %w", err)
	}

	return a.Parse(data)
}

func (a *BatchAdapter) Parse(src []byte) (*entity.Batch, error) {
	pc := parser.NewContext()
	doc := a.md.Parser().Parse(text.NewReader(src), parser.WithContext(pc))

	fm := frontmatter.Get(pc)
	if fm == nil {
		return nil, ErrMissingFrontmatter
	}

	var m meta
	if err := fm.Decode(&m); err != nil {
		return nil, fmt.Errorf("cannot decode frontmatter: %w", err)
	}

	if m.Version != supportedVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.Version)
	}

	format := entity.FormatRawContainer
	if m.Format != "" {
		format = entity.OutputFormat(m.Format)
		if !format.Valid() {
			return nil, fmt.Errorf("unknown output format %q", m.Format)
		}
	}

	urls, err := collectURLs(doc, src)
	if err != nil {
		return nil, err
	}

	if len(urls) == 0 {
		return nil, ErrNoURLs
	}

	a.log.Info("Parsed batch file", slog.String("title", m.Title), slog.Int("urls", len(urls)))

	return &entity.Batch{
		Title:  m.Title,
		Format: format,
		URLs:   urls,
	}, nil
}

func collectURLs(doc ast.Node, src []byte) ([]string, error) {
	var urls []string
	seen := make(map[string]struct{})

	add := func(u string) {
		if _, exists := seen[u]; exists {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Link:
			add(string(node.Destination))
		case *ast.AutoLink:
			add(string(node.URL(src)))
		case *ast.Text:
			for _, u := range urlRegexp.FindAllString(string(node.Segment.Value(src)), -1) {
				add(u)
			}
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot walk batch document: %w", err)
	}

	return urls, nil
}
