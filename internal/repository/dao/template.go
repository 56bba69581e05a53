package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrTemplateNotFound = errors.New("draw template not found")

type DrawTemplate struct {
	ID              uint   `gorm:"primaryKey"`
	Label           string `gorm:"not null"`
	Slots           int    `gorm:"not null"`
	EntryDollars    int    `gorm:"not null"`
	EntryCredits    int64  `gorm:"not null"`
	FeePercent      int    `gorm:"not null"`
	Enabled         bool   `gorm:"not null;default:true"`
	RequiresDeposit bool   `gorm:"not null;default:false"`
	AutoFill        bool   `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DrawTemplate) TableName() string {
	return "draw_templates"
}

type TemplateDAO struct {
	db *gorm.DB
}

func NewTemplateDAO(db *gorm.DB) *TemplateDAO {
	return &TemplateDAO{
		db: db,
	}
}

func (d *TemplateDAO) Insert(ctx context.Context, template DrawTemplate) (DrawTemplate, error) {
	result := d.db.WithContext(ctx).Create(&template)
	if result.Error != nil {
		return DrawTemplate{}, result.Error
	}

	return template, nil
}

func (d *TemplateDAO) GetByID(ctx context.Context, id uint) (DrawTemplate, error) {
	var template DrawTemplate

	result := d.db.WithContext(ctx).First(&template, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return DrawTemplate{}, ErrTemplateNotFound
		}

		return DrawTemplate{}, result.Error
	}

	return template, nil
}

func (d *TemplateDAO) ListEnabled(ctx context.Context) ([]DrawTemplate, error) {
	var templates []DrawTemplate

	result := d.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&templates)
	if result.Error != nil {
		return nil, result.Error
	}

	return templates, nil
}

func (d *TemplateDAO) ListAll(ctx context.Context) ([]DrawTemplate, error) {
	var templates []DrawTemplate

	result := d.db.WithContext(ctx).Order("id").Find(&templates)
	if result.Error != nil {
		return nil, result.Error
	}

	return templates, nil
}

// UpdateFlags toggles the only mutable template fields. Slot count, price
// and fee are frozen at creation; draws snapshot them anyway.
func (d *TemplateDAO) UpdateFlags(ctx context.Context, id uint, enabled, requiresDeposit, autoFill bool) (DrawTemplate, error) {
	result := d.db.WithContext(ctx).Model(&DrawTemplate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"enabled":          enabled,
			"requires_deposit": requiresDeposit,
			"auto_fill":        autoFill,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return DrawTemplate{}, result.Error
	}
	if result.RowsAffected == 0 {
		return DrawTemplate{}, ErrTemplateNotFound
	}

	return d.GetByID(ctx, id)
}
