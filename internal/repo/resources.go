package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"planboard/internal/domain"
)

// UpsertResources replaces resources by id in one transaction.
func (r Repo) UpsertResources(ctx context.Context, items []domain.Resource) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, item := range items {
		tags := item.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("encode tags for %s: %w", item.ID, err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO resources(id,title,summary,tags_json,category,year,language,published_at,url) VALUES (?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET title=excluded.title, summary=excluded.summary, tags_json=excluded.tags_json, category=excluded.category,
			year=excluded.year, language=excluded.language, published_at=excluded.published_at, url=excluded.url`,
			item.ID, item.Title, nullable(item.Summary), string(tagsJSON), nullable(item.Category), item.Year, nullable(item.Language), item.PublishedAt, nullable(item.URL))
		if err != nil {
			return fmt.Errorf("upsert resource %s: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

// ListResources returns every stored resource; filtering happens in memory.
func (r Repo) ListResources(ctx context.Context) ([]domain.Resource, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,COALESCE(summary,''),tags_json,COALESCE(category,''),COALESCE(year,0),COALESCE(language,''),published_at,COALESCE(url,'') FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Resource
	for rows.Next() {
		var item domain.Resource
		var tagsJSON string
		if err := rows.Scan(&item.ID, &item.Title, &item.Summary, &tagsJSON, &item.Category, &item.Year, &item.Language, &item.PublishedAt, &item.URL); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", item.ID, err)
		}
		res = append(res, item)
	}
	return res, rows.Err()
}

