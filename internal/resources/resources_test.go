package resources

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planboard/internal/domain"
)

func fixture() []domain.Resource {
	return []domain.Resource{
		{ID: "r1", Title: "Drip irrigation guide", Summary: "Low-cost water saving", Tags: []string{"water", "farming"}, Category: "guide", Year: 2023, Language: "en", PublishedAt: "2023-04-02"},
		{ID: "r2", Title: "Rapport annuel", Summary: "Bilan des activités", Tags: []string{"report"}, Category: "report", Year: 2024, Language: "fr", PublishedAt: "2024-01-15"},
		{ID: "r3", Title: "Seed banks", Summary: "Community seed storage", Tags: []string{"farming", "seeds"}, Category: "guide", Year: 2024, Language: "en", PublishedAt: "2024-06-30"},
		{ID: "r4", Title: "Water committees", Summary: "Governance of wells", Tags: []string{"water", "governance"}, Category: "case-study", Year: 2022, Language: "en", PublishedAt: "2022-11-05"},
		{ID: "r5", Title: "Formation agricole", Summary: "Irrigation et semences", Tags: []string{"farming", "training"}, Category: "guide", Year: 2024, Language: "fr", PublishedAt: "2024-03-08"},
	}
}

func ids(items []domain.Resource) []string {
	out := make([]string, 0, len(items))
	for _, r := range items {
		out = append(out, r.ID)
	}
	return out
}

func TestSearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	page := List(fixture(), Query{Search: "IRRIGATION"})
	assert.Equal(t, []string{"r5", "r1"}, ids(page.Items))

	page = List(fixture(), Query{Search: "seeds"})
	assert.Equal(t, []string{"r3"}, ids(page.Items), "tag match")
}

func TestEqualityAndTagFilters(t *testing.T) {
	page := List(fixture(), Query{Category: "guide", Year: 2024})
	assert.Equal(t, []string{"r3", "r5"}, ids(page.Items))

	page = List(fixture(), Query{Language: "EN", Tags: []string{"water", "farming"}})
	assert.Equal(t, []string{"r1"}, ids(page.Items), "tags are ANDed")

	page = List(fixture(), Query{Tags: []string{"water", "seeds"}})
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.TotalPages)
}

func TestSortOrder(t *testing.T) {
	newest := List(fixture(), Query{})
	assert.Equal(t, []string{"r3", "r5", "r2", "r1", "r4"}, ids(newest.Items))
	oldest := List(fixture(), Query{Sort: SortOldest})
	assert.Equal(t, []string{"r4", "r1", "r2", "r5", "r3"}, ids(oldest.Items))
}

func TestPaginationAfterFilterAndSort(t *testing.T) {
	page := List(fixture(), Query{Tags: []string{"farming"}, PageSize: 2, Page: 2})
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, []string{"r1"}, ids(page.Items))

	past := List(fixture(), Query{PageSize: 2, Page: 9})
	assert.Empty(t, past.Items)
	assert.Equal(t, 5, past.Total)

	defaults := List(fixture(), Query{Page: -1, PageSize: 0})
	assert.Equal(t, 1, defaults.Page)
	assert.Equal(t, DefaultPageSize, defaults.PageSize)
	capped := List(fixture(), Query{PageSize: 1000})
	assert.Equal(t, MaxPageSize, capped.PageSize)
}

func TestListingProperties(t *testing.T) {
	var items []domain.Resource
	for i := 0; i < 57; i++ {
		items = append(items, domain.Resource{
			ID:          fmt.Sprintf("r%02d", i),
			Title:       fmt.Sprintf("Item %d", i),
			Tags:        []string{[]string{"a", "b", "c"}[i%3], []string{"x", "y"}[i%2]},
			Category:    []string{"guide", "report"}[i%2],
			Year:        2020 + i%4,
			Language:    []string{"en", "fr", "wo"}[i%3],
			PublishedAt: fmt.Sprintf("20%02d-%02d-%02d", 20+i%4, 1+i%12, 1+i%28),
		})
	}
	queries := []Query{
		{},
		{Category: "guide"},
		{Year: 2021, PageSize: 3},
		{Language: "fr", Tags: []string{"y"}, Page: 2, PageSize: 4},
		{Search: "item 1", Sort: SortOldest, PageSize: 5},
		{Tags: []string{"a", "x"}, Page: 3, PageSize: 2},
	}
	for _, q := range queries {
		page := List(items, q)
		require.LessOrEqual(t, len(page.Items), page.PageSize)
		for i, r := range page.Items {
			require.True(t, q.Matches(r), "%+v does not match %+v", r, q)
			if i == 0 {
				continue
			}
			prev := page.Items[i-1].PublishedAt
			if q.Sort == SortOldest {
				require.LessOrEqual(t, prev, r.PublishedAt)
			} else {
				require.GreaterOrEqual(t, prev, r.PublishedAt)
			}
		}
	}
}

func TestDecode(t *testing.T) {
	items, err := Decode(strings.NewReader(`
resources:
  - id: r1
    title: Drip irrigation guide
    tags: [water, farming]
    category: guide
    year: 2023
    language: en
    published_at: 2023-04-02
`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2023-04-02", items[0].PublishedAt)
	assert.Equal(t, []string{"water", "farming"}, items[0].Tags)

	_, err = Decode(strings.NewReader("resources:\n  - id: r1\n    title: x\n    published_at: soon\n"))
	require.ErrorContains(t, err, "published_at")
	_, err = Decode(strings.NewReader("resources:\n  - id: r1\n    title: x\n    published_at: 2023-01-01\n  - id: r1\n    title: y\n    published_at: 2023-01-01\n"))
	require.ErrorContains(t, err, "duplicates id r1")

	items, err = Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, items)
}
