package flow

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// Catalog resolves article IDs to titles and URLs.
type Catalog interface {
	Article(id models.ArticleID) (models.Article, bool)
	ArticlesByIDs(ids []models.ArticleID) []models.Article
}

// StaticCatalog is an in-memory, read-only catalog.
type StaticCatalog struct {
	articles map[models.ArticleID]models.Article
}

// NewStaticCatalog indexes articles by ID. Later duplicates replace earlier ones.
func NewStaticCatalog(articles []models.Article) *StaticCatalog {
	return &StaticCatalog{articles: lo.KeyBy(articles, func(a models.Article) models.ArticleID { return a.ID })}
}

// Article looks up one article.
func (c *StaticCatalog) Article(id models.ArticleID) (models.Article, bool) {
	a, ok := c.articles[id]
	return a, ok
}

// ArticlesByIDs returns the known articles in the order requested, skipping
// unknown IDs.
func (c *StaticCatalog) ArticlesByIDs(ids []models.ArticleID) []models.Article {
	return lo.FilterMap(ids, func(id models.ArticleID, _ int) (models.Article, bool) {
		a, ok := c.articles[id]
		if !ok {
			slog.Warn("StaticCatalog.ArticlesByIDs: unknown article", "id", id)
		}
		return a, ok
	})
}

// Len returns the number of articles.
func (c *StaticCatalog) Len() int { return len(c.articles) }

type catalogFile struct {
	Articles []models.Article `yaml:"articles"`
}

// LoadCatalogFile reads a YAML catalog of the form
//
//	articles:
//	  - id: dx-first-steps
//	    title: ...
//	    url: https://...
//
// and merges it over the built-in articles, so a file only needs to list changes.
func LoadCatalogFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	for i, a := range f.Articles {
		if a.ID == "" || a.Title == "" || a.URL == "" {
			return nil, fmt.Errorf("catalog file %s: entry %d needs id, title and url", path, i)
		}
	}
	merged := append(DefaultArticles(), f.Articles...)
	slog.Debug("LoadCatalogFile: catalog loaded", "path", path, "file_entries", len(f.Articles), "total", len(merged))
	return NewStaticCatalog(merged), nil
}
