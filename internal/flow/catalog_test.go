package flow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

func TestStaticCatalogArticlesByIDs(t *testing.T) {
	c := NewStaticCatalog(DefaultArticles())
	got := c.ArticlesByIDs([]models.ArticleID{ArticleSmallStartGuide, "missing", ArticleAIROIBasics})
	if len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(got))
	}
	if got[0].ID != ArticleSmallStartGuide || got[1].ID != ArticleAIROIBasics {
		t.Errorf("order not preserved: %+v", got)
	}
	if len(c.ArticlesByIDs(nil)) != 0 {
		t.Error("expected no articles for no IDs")
	}
}

func TestLoadCatalogFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `articles:
  - id: ai-roi-basics
    title: ROI, revised
    url: https://blog.example.com/roi
  - id: brand-new
    title: Something new
    url: https://blog.example.com/new
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	c, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("LoadCatalogFile: %v", err)
	}
	roi, ok := c.Article(ArticleAIROIBasics)
	if !ok || roi.Title != "ROI, revised" || roi.URL != "https://blog.example.com/roi" {
		t.Errorf("override not applied: %+v", roi)
	}
	if _, ok := c.Article("brand-new"); !ok {
		t.Error("new article missing")
	}
	if _, ok := c.Article(ArticleInventoryDashboard); !ok {
		t.Error("default article dropped")
	}
	if c.Len() != len(DefaultArticles())+1 {
		t.Errorf("expected %d articles, got %d", len(DefaultArticles())+1, c.Len())
	}
}

func TestLoadCatalogFileRejectsIncompleteEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("articles:\n  - id: x\n    title: no url\n"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := LoadCatalogFile(path); err == nil {
		t.Error("expected error for entry without url")
	}
}

func TestLoadCatalogFileMissing(t *testing.T) {
	if _, err := LoadCatalogFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
