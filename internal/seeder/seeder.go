package seeder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/comanda/internal/database"
	"github.com/Additional-Code/comanda/internal/entity"
)

// Module provides the Seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// All runs every seeder in dependency order.
func (s *Seeder) All(ctx context.Context) error {
	if err := s.Users(ctx); err != nil {
		return err
	}
	if err := s.Tables(ctx); err != nil {
		return err
	}
	return s.Catalog(ctx)
}

// Users seeds example operators if they are missing.
func (s *Seeder) Users(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.User{
		{Name: "Ana Souza", Login: "ana", CreatedAt: now},
		{Name: "Bruno Lima", Login: "bruno", CreatedAt: now},
	}

	for _, sample := range samples {
		user := sample
		_, err := s.db.NewInsert().Model(&user).
			On("CONFLICT (login) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	s.logger.Info("seeded users", zap.Int("count", len(samples)))
	return nil
}

// Tables seeds the dining room layout if it is missing.
func (s *Seeder) Tables(ctx context.Context) error {
	now := time.Now().UTC()
	count := 0
	for number := 1; number <= 12; number++ {
		table := entity.Table{
			Number:    number,
			Status:    entity.TableFree,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err := s.db.NewInsert().Model(&table).
			On("CONFLICT (number) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		count++
	}

	s.logger.Info("seeded tables", zap.Int("count", count))
	return nil
}

// Catalog seeds categories and products if they are missing.
func (s *Seeder) Catalog(ctx context.Context) error {
	categories := []entity.Category{
		{Name: "Mains"},
		{Name: "Drinks"},
		{Name: "Desserts"},
	}
	for idx := range categories {
		_, err := s.db.NewInsert().Model(&categories[idx]).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	byName := make(map[string]int64, len(categories))
	var stored []entity.Category
	if err := s.db.NewSelect().Model(&stored).Scan(ctx); err != nil {
		return err
	}
	for _, category := range stored {
		byName[category.Name] = category.ID
	}

	now := time.Now().UTC()
	products := []entity.Product{
		{CategoryID: byName["Mains"], Name: "Grilled Picanha", Price: decimal.NewFromFloat(48.90), Active: true, CreatedAt: now},
		{CategoryID: byName["Mains"], Name: "Moqueca", Price: decimal.NewFromFloat(39.50), Active: true, CreatedAt: now},
		{CategoryID: byName["Drinks"], Name: "Guarana", Price: decimal.NewFromFloat(6.00), Active: true, CreatedAt: now},
		{CategoryID: byName["Drinks"], Name: "Caipirinha", Price: decimal.NewFromFloat(18.00), Active: true, CreatedAt: now},
		{CategoryID: byName["Desserts"], Name: "Pudim", Price: decimal.NewFromFloat(12.00), Active: true, CreatedAt: now},
	}
	for idx := range products {
		exists, err := s.db.NewSelect().Model((*entity.Product)(nil)).
			Where("name = ?", products[idx].Name).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.db.NewInsert().Model(&products[idx]).Exec(ctx); err != nil {
			return err
		}
	}

	s.logger.Info("seeded catalog",
		zap.Int("categories", len(categories)),
		zap.Int("products", len(products)),
	)
	return nil
}
