// Package resources implements the searchable resource listing.
package resources

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"planboard/internal/domain"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	SortNewest = "newest"
	SortOldest = "oldest"
)

type Query struct {
	Search   string   `json:"q,omitempty"`
	Category string   `json:"category,omitempty"`
	Year     int      `json:"year,omitempty"`
	Language string   `json:"language,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Sort     string   `json:"sort,omitempty"`
	Page     int      `json:"page,omitempty"`
	PageSize int      `json:"page_size,omitempty"`
}

type Page struct {
	Items      []domain.Resource `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// normalize fills defaults and clamps paging.
func (q Query) normalize() Query {
	q.Search = strings.ToLower(strings.TrimSpace(q.Search))
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize <= 0:
		q.PageSize = DefaultPageSize
	case q.PageSize > MaxPageSize:
		q.PageSize = MaxPageSize
	}
	if q.Sort != SortOldest {
		q.Sort = SortNewest
	}
	return q
}

// Matches reports whether r satisfies every filter set on q.
func (q Query) Matches(r domain.Resource) bool {
	q = q.normalize()
	if q.Search != "" && !matchesSearch(r, q.Search) {
		return false
	}
	if q.Category != "" && !strings.EqualFold(r.Category, q.Category) {
		return false
	}
	if q.Year != 0 && r.Year != q.Year {
		return false
	}
	if q.Language != "" && !strings.EqualFold(r.Language, q.Language) {
		return false
	}
	for _, want := range q.Tags {
		if !hasTag(r.Tags, want) {
			return false
		}
	}
	return true
}

func matchesSearch(r domain.Resource, needle string) bool {
	if strings.Contains(strings.ToLower(r.Title), needle) || strings.Contains(strings.ToLower(r.Summary), needle) {
		return true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func hasTag(tags []string, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return true
	}
	for _, tag := range tags {
		if strings.EqualFold(tag, want) {
			return true
		}
	}
	return false
}

// List filters, sorts and then paginates items. The input is not modified.
func List(items []domain.Resource, q Query) Page {
	q = q.normalize()
	matched := make([]domain.Resource, 0, len(items))
	for _, r := range items {
		if q.Matches(r) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if q.Sort == SortOldest {
			return matched[i].PublishedAt < matched[j].PublishedAt
		}
		return matched[i].PublishedAt > matched[j].PublishedAt
	})

	total := len(matched)
	page := Page{
		Items:      []domain.Resource{},
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: (total + q.PageSize - 1) / q.PageSize,
	}
	start := (q.Page - 1) * q.PageSize
	if start >= total {
		return page
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	page.Items = matched[start:end]
	return page
}

// Decode reads a YAML list of resources, as written by editors, and checks
// the fields the listing depends on.
func Decode(r io.Reader) ([]domain.Resource, error) {
	var doc struct {
		Resources []domain.Resource `yaml:"resources"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid resources yaml: %w", err)
	}
	seen := map[string]bool{}
	for i, item := range doc.Resources {
		switch {
		case strings.TrimSpace(item.ID) == "":
			return nil, fmt.Errorf("resources[%d].id is required", i)
		case strings.TrimSpace(item.Title) == "":
			return nil, fmt.Errorf("resources[%d].title is required", i)
		case seen[item.ID]:
			return nil, fmt.Errorf("resources[%d] duplicates id %s", i, item.ID)
		}
		if _, err := time.Parse("2006-01-02", item.PublishedAt); err != nil {
			return nil, fmt.Errorf("resources[%d].published_at: %w", i, err)
		}
		seen[item.ID] = true
	}
	return doc.Resources, nil
}
