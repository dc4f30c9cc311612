package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/sous-chef/server/internal/recipe"
	logx "github.com/sous-chef/server/pkg/logger"
)

var ErrVectorUnsupported = errors.New("vector search requires the postgres store")

type recipeRow struct {
	ID               string              `gorm:"primaryKey;size:255"`
	Title            string              `gorm:"size:255;not null;index"`
	Description      string              `gorm:"type:text"`
	MainIngredients  []string            `gorm:"type:text;serializer:json"`
	AllIngredients   []recipe.Ingredient `gorm:"type:text;serializer:json"`
	Instructions     []string            `gorm:"type:text;serializer:json"`
	PrepTimeMinutes  *int
	CookTimeMinutes  *int
	TotalTimeMinutes *int
	Servings         int
	Difficulty       string                `gorm:"size:50"`
	CuisineType      string                `gorm:"size:100"`
	MealType         []string              `gorm:"type:text;serializer:json"`
	DietaryTags      []string              `gorm:"type:text;serializer:json"`
	Nutrition        *recipe.NutritionInfo `gorm:"type:text;serializer:json"`
	Tips             []string              `gorm:"type:text;serializer:json"`
	RawText          string                `gorm:"type:text"`
	CreatedAt        time.Time             `gorm:"index"`
	Embedding        *pgvector.Vector      `gorm:"type:vector"`
}

func (recipeRow) TableName() string { return "recipes" }

func toRow(r *recipe.Recipe) *recipeRow {
	return &recipeRow{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		MainIngredients:  r.MainIngredients,
		AllIngredients:   r.AllIngredients,
		Instructions:     r.Instructions,
		PrepTimeMinutes:  r.PrepTimeMinutes,
		CookTimeMinutes:  r.CookTimeMinutes,
		TotalTimeMinutes: r.TotalTimeMinutes,
		Servings:         r.Servings,
		Difficulty:       r.Difficulty,
		CuisineType:      r.CuisineType,
		MealType:         r.MealType,
		DietaryTags:      r.DietaryTags,
		Nutrition:        r.Nutrition,
		Tips:             r.Tips,
		RawText:          r.RawText,
		CreatedAt:        r.CreatedAt,
	}
}

func (row *recipeRow) toRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		ID:               row.ID,
		Title:            row.Title,
		Description:      row.Description,
		MainIngredients:  row.MainIngredients,
		AllIngredients:   row.AllIngredients,
		Instructions:     row.Instructions,
		PrepTimeMinutes:  row.PrepTimeMinutes,
		CookTimeMinutes:  row.CookTimeMinutes,
		TotalTimeMinutes: row.TotalTimeMinutes,
		Servings:         row.Servings,
		Difficulty:       row.Difficulty,
		CuisineType:      row.CuisineType,
		MealType:         row.MealType,
		DietaryTags:      row.DietaryTags,
		Nutrition:        row.Nutrition,
		Tips:             row.Tips,
		RawText:          row.RawText,
		CreatedAt:        row.CreatedAt,
	}
}

// GormStore is the relational recipe store. On postgres it also keeps a
// pgvector embedding per recipe.
type GormStore struct {
	db     *gorm.DB
	vector bool
}

// OpenSQLite opens (or creates) a sqlite database at path. ":memory:" works for tests.
func OpenSQLite(ctx context.Context, path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// an in-memory database exists per connection
	sqlDB.SetMaxOpenConns(1)
	return newGormStore(ctx, db, false)
}

func OpenPostgres(ctx context.Context, dsn string) (*GormStore, error) {
	if dsn == "" {
		return nil, errors.New("STORE_DSN is required for the postgres store")
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return newGormStore(ctx, db, true)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
}

func newGormStore(ctx context.Context, db *gorm.DB, vector bool) (*GormStore, error) {
	db = db.WithContext(ctx)
	if vector {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return nil, fmt.Errorf("install pgvector extension: %w", err)
		}
	}
	if err := db.AutoMigrate(&recipeRow{}); err != nil {
		return nil, fmt.Errorf("migrate recipes: %w", err)
	}
	logx.Info().Bool("vector", vector).Str("dialect", db.Dialector.Name()).Msg("recipe store ready")
	return &GormStore{db: db, vector: vector}, nil
}

func (s *GormStore) Add(ctx context.Context, r *recipe.Recipe) (string, error) {
	c := r.Clone()
	c.Normalize()
	if err := s.db.WithContext(ctx).Create(toRow(c)).Error; err != nil {
		return "", fmt.Errorf("insert recipe: %w", err)
	}
	r.ID = c.ID
	return c.ID, nil
}

func (s *GormStore) Update(ctx context.Context, r *recipe.Recipe) error {
	res := s.db.WithContext(ctx).
		Model(&recipeRow{ID: r.ID}).
		Select("*").
		Omit("id", "created_at", "embedding").
		Updates(toRow(r))
	if res.Error != nil {
		return fmt.Errorf("update recipe: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*recipe.Recipe, error) {
	var row recipeRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	return row.toRecipe(), nil
}

func (s *GormStore) All(ctx context.Context) ([]*recipe.Recipe, error) {
	return s.Recent(ctx, 0)
}

func (s *GormStore) Recent(ctx context.Context, limit int) ([]*recipe.Recipe, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []recipeRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	out := make([]*recipe.Recipe, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toRecipe())
	}
	return out, nil
}

// Tags and ingredients live in JSON columns, so these filter in Go.
func (s *GormStore) ByDietaryTag(ctx context.Context, tag string) ([]*recipe.Recipe, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return filterByTag(all, tag), nil
}

func (s *GormStore) ByMainIngredient(ctx context.Context, ingredient string) ([]*recipe.Recipe, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return filterByIngredient(all, ingredient), nil
}

func (s *GormStore) FindByTitle(ctx context.Context, title string) (*recipe.Recipe, error) {
	var row recipeRow
	err := s.db.WithContext(ctx).
		Where("LOWER(title) LIKE ?", "%"+strings.ToLower(title)+"%").
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find recipe by title: %w", err)
	}
	return row.toRecipe(), nil
}

func (s *GormStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&recipeRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count recipes: %w", err)
	}
	return int(n), nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SetEmbedding stores the embedding used by NearestByEmbedding.
func (s *GormStore) SetEmbedding(ctx context.Context, id string, vec []float32) error {
	if !s.vector {
		return ErrVectorUnsupported
	}
	v := pgvector.NewVector(vec)
	res := s.db.WithContext(ctx).Model(&recipeRow{}).Where("id = ?", id).Update("embedding", &v)
	if res.Error != nil {
		return fmt.Errorf("store embedding: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// NearestByEmbedding ranks stored recipes by cosine distance to vec.
func (s *GormStore) NearestByEmbedding(ctx context.Context, vec []float32, limit int, excludeID string) ([]Result, error) {
	if !s.vector {
		return nil, ErrVectorUnsupported
	}
	q := s.db.WithContext(ctx).
		Where("embedding IS NOT NULL").
		Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []any{pgvector.NewVector(vec)}}})
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []recipeRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	out := make([]Result, 0, len(rows))
	for i := range rows {
		out = append(out, Result{
			Recipe: rows[i].toRecipe(),
			Score:  CosineSimilarity(vec, rows[i].Embedding.Slice()),
		})
	}
	return out, nil
}

var (
	_ Repository  = (*GormStore)(nil)
	_ VectorIndex = (*GormStore)(nil)
)
