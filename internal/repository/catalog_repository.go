package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/screening-license/internal/model"
)

type catalogRow struct {
	ID         string `db:"id"`
	IvaID      string `db:"iva_id"`
	Title      string `db:"title"`
	TitleNorm  string `db:"title_norm"`
	Year       int    `db:"year"`
	PosterPath string `db:"poster_path"`
	MediaType  string `db:"media_type"`
}

// CatalogRepo reads the film catalog.
type CatalogRepo struct{ db *sqlx.DB }

func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: sqlx.NewDb(db, "mysql")}
}

// SearchPrefix returns titles of one media type whose normalized title
// starts with prefix, ordered by normalized title.
func (r *CatalogRepo) SearchPrefix(ctx context.Context, prefix, mediaType string, limit int) ([]model.CatalogTitle, error) {
	var rows []catalogRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, iva_id, title, title_norm, year, poster_path, media_type
		FROM catalog_titles
		WHERE media_type = ? AND title_norm LIKE ?
		ORDER BY title_norm ASC
		LIMIT ?`,
		mediaType, escapeLike(prefix)+"%", limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.CatalogTitle, 0, len(rows))
	for _, c := range rows {
		out = append(out, model.CatalogTitle{
			ID: c.ID, IvaID: c.IvaID, Title: c.Title, TitleNorm: c.TitleNorm,
			Year: c.Year, PosterPath: c.PosterPath, MediaType: c.MediaType,
		})
	}
	return out, nil
}

// Get loads one title by id.
func (r *CatalogRepo) Get(ctx context.Context, id string) (model.CatalogTitle, error) {
	var c catalogRow
	err := r.db.GetContext(ctx, &c,
		`SELECT id, iva_id, title, title_norm, year, poster_path, media_type FROM catalog_titles WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return model.CatalogTitle{}, ErrNotFound
	}
	if err != nil {
		return model.CatalogTitle{}, err
	}
	return model.CatalogTitle{
		ID: c.ID, IvaID: c.IvaID, Title: c.Title, TitleNorm: c.TitleNorm,
		Year: c.Year, PosterPath: c.PosterPath, MediaType: c.MediaType,
	}, nil
}

// Upsert inserts or refreshes catalog entries.
func (r *CatalogRepo) Upsert(ctx context.Context, titles []model.CatalogTitle) error {
	for _, t := range titles {
		row := catalogRow{
			ID: t.ID, IvaID: t.IvaID, Title: t.Title, TitleNorm: t.TitleNorm,
			Year: t.Year, PosterPath: t.PosterPath, MediaType: t.MediaType,
		}
		if _, err := r.db.NamedExecContext(ctx,
			`INSERT INTO catalog_titles (id, iva_id, title, title_norm, year, poster_path, media_type)
			VALUES (:id, :iva_id, :title, :title_norm, :year, :poster_path, :media_type)
			ON DUPLICATE KEY UPDATE iva_id = VALUES(iva_id), title = VALUES(title), title_norm = VALUES(title_norm),
				year = VALUES(year), poster_path = VALUES(poster_path), media_type = VALUES(media_type)`,
			row); err != nil {
			return err
		}
	}
	return nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
