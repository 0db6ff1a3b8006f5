package repository

import (
	"context"
	"database/sql"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

const categoriesTable = "categories"

// CategoryRepository mirrors the remote category list so labels resolve
// offline.
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]entity.Category, error)
	ReplaceCategories(ctx context.Context, categories []entity.Category) error
}

type categoryRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewCategoryRepository(db *DB, logger *slog.Logger) CategoryRepository {
	return &categoryRepository{
		db:     db,
		logger: logger,
	}
}

func (r *categoryRepository) ListCategories(ctx context.Context) ([]entity.Category, error) {
	b := r.db.builder()
	query, args := b.Select("id", "name", "description").
		From(b.Table(categoriesTable)).
		OrderBy("name").
		Query()

	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, query, args, rows); err != nil {
		r.logger.Error("failed to list categories", "error", err)
		return nil, err
	}
	defer rows.Close()

	var result []entity.Category
	for rows.Next() {
		var (
			id, name    string
			description sql.NullString
		)
		if err := rows.Scan(&id, &name, &description); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			r.logger.Warn("skipping category with bad id", "id", id, "error", err)
			continue
		}
		c := entity.Category{ID: parsed, Name: name}
		if description.Valid {
			c.Description = &description.String
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// ReplaceCategories swaps the mirrored list in one transaction.
func (r *categoryRepository) ReplaceCategories(ctx context.Context, categories []entity.Category) error {
	tx, err := r.db.drv.Tx(ctx)
	if err != nil {
		return err
	}

	b := r.db.builder()
	query, args := b.Delete(categoriesTable).Query()
	if err := tx.Exec(ctx, query, args, nil); err != nil {
		_ = tx.Rollback()
		return err
	}

	if len(categories) > 0 {
		insert := b.Insert(categoriesTable).Columns("id", "name", "description")
		for _, c := range categories {
			var description any
			if c.Description != nil {
				description = *c.Description
			}
			insert.Values(c.ID.String(), c.Name, description)
		}
		query, args = insert.Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			_ = tx.Rollback()
			r.logger.Error("failed to replace categories", "count", len(categories), "error", err)
			return err
		}
	}
	return tx.Commit()
}
