package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"facegate/internal/core/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository definiert die Schnittstelle für die Katalog-Operationen
type Repository interface {
	// Identity-Methoden
	EnsureIdentity(ctx context.Context, label string) error
	GetIdentity(ctx context.Context, label string) (*models.Identity, error)
	ListIdentities(ctx context.Context) ([]models.IdentitySummary, error)
	DeleteIdentity(ctx context.Context, label string) ([]models.Capture, bool, error)

	// Capture-Methoden
	InsertCapture(ctx context.Context, c *models.Capture) error
	ListCaptures(ctx context.Context, label string) ([]models.Capture, error)
	ListRegisteredEmbeddings(ctx context.Context) ([]models.EmbeddingRef, error)
	ReferencedPaths(ctx context.Context) (map[string]struct{}, error)

	// Statistik-Methoden
	GetStatistics(ctx context.Context) (models.Statistics, error)
}

// GormRepository implementiert die Repository-Schnittstelle für SQLite und MySQL
type GormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormRepository erstellt eine neue Repository-Instanz
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db, now: time.Now}
}

// EnsureIdentity legt eine Identität an, falls sie noch nicht existiert
func (r *GormRepository) EnsureIdentity(ctx context.Context, label string) error {
	identity := models.Identity{Label: label, CreatedAt: r.now()}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&identity)
	if result.Error != nil {
		return fmt.Errorf("failed to ensure identity %q: %w", label, result.Error)
	}
	return nil
}

// GetIdentity holt eine Identität anhand ihres Labels, nil wenn unbekannt
func (r *GormRepository) GetIdentity(ctx context.Context, label string) (*models.Identity, error) {
	var identity models.Identity
	result := r.db.WithContext(ctx).First(&identity, "label = ?", label)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &identity, nil
}

// ListIdentities liefert alle Identitäten mit der Anzahl ihrer Aufnahmen
func (r *GormRepository) ListIdentities(ctx context.Context) ([]models.IdentitySummary, error) {
	var summaries []models.IdentitySummary
	result := r.db.WithContext(ctx).
		Table("identities").
		Select("identities.label AS label, identities.created_at AS created_at, COUNT(captures.id) AS captures").
		Joins("LEFT JOIN captures ON captures.identity_label = identities.label").
		Group("identities.label, identities.created_at").
		Order("identities.created_at ASC, identities.label ASC").
		Scan(&summaries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list identities: %w", result.Error)
	}
	return summaries, nil
}

// DeleteIdentity löscht eine Identität samt Aufnahmen und gibt die gelöschten Aufnahmen zurück.
// Der bool-Wert ist false, wenn das Label unbekannt ist.
func (r *GormRepository) DeleteIdentity(ctx context.Context, label string) ([]models.Capture, bool, error) {
	var (
		removed []models.Capture
		found   bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var identity models.Identity
		if err := tx.First(&identity, "label = ?", label).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true

		if err := tx.Where("identity_label = ?", label).Order("created_at ASC, id ASC").Find(&removed).Error; err != nil {
			return err
		}
		// Aufnahmen explizit löschen, unabhängig davon ob der Treiber ON DELETE CASCADE durchsetzt
		if err := tx.Where("identity_label = ?", label).Delete(&models.Capture{}).Error; err != nil {
			return err
		}
		return tx.Delete(&identity).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to delete identity %q: %w", label, err)
	}
	return removed, found, nil
}

// InsertCapture speichert einen neuen Aufnahme-Datensatz
func (r *GormRepository) InsertCapture(ctx context.Context, c *models.Capture) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to insert capture: %w", err)
	}
	return nil
}

// ListCaptures liefert alle Aufnahmen einer Identität in Aufnahme-Reihenfolge
func (r *GormRepository) ListCaptures(ctx context.Context, label string) ([]models.Capture, error) {
	var captures []models.Capture
	result := r.db.WithContext(ctx).
		Where("identity_label = ?", label).
		Order("created_at ASC, id ASC").
		Find(&captures)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list captures of %q: %w", label, result.Error)
	}
	return captures, nil
}

// ListRegisteredEmbeddings liefert (Label, Embedding-Pfad) aller registrierten Identitäten
// in stabiler Reihenfolge
func (r *GormRepository) ListRegisteredEmbeddings(ctx context.Context) ([]models.EmbeddingRef, error) {
	var refs []models.EmbeddingRef
	result := r.db.WithContext(ctx).
		Table("captures").
		Select("captures.identity_label AS label, captures.embedding_path AS path").
		Joins("JOIN identities ON identities.label = captures.identity_label").
		Where("captures.embedding_path IS NOT NULL").
		Order("captures.created_at ASC, captures.id ASC").
		Scan(&refs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list registered embeddings: %w", result.Error)
	}
	return refs, nil
}

// ReferencedPaths liefert alle Bild- und Embedding-Pfade, auf die der Katalog verweist
func (r *GormRepository) ReferencedPaths(ctx context.Context) (map[string]struct{}, error) {
	var rows []struct {
		ImagePath     string
		EmbeddingPath *string
	}
	result := r.db.WithContext(ctx).Model(&models.Capture{}).Select("image_path", "embedding_path").Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list referenced paths: %w", result.Error)
	}

	paths := make(map[string]struct{}, len(rows)*2)
	for _, row := range rows {
		paths[row.ImagePath] = struct{}{}
		if row.EmbeddingPath != nil {
			paths[*row.EmbeddingPath] = struct{}{}
		}
	}
	return paths, nil
}

// GetStatistics holt Kennzahlen aus der Datenbank
func (r *GormRepository) GetStatistics(ctx context.Context) (models.Statistics, error) {
	var stats models.Statistics
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.Identity{}).Count(&stats.Identities).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.Capture{}).Count(&stats.Captures).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.Capture{}).Where("identity_label IS NULL").Count(&stats.AnonymousCaptures).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
