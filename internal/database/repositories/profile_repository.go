package repositories

import (
	"context"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/patchlink/patchlink-go/internal/database/models"
	"github.com/patchlink/patchlink-go/internal/fixture"
)

// ProfileRepository handles profile library data access.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByName returns a profile definition by its unique name.
func (r *ProfileRepository) FindByName(ctx context.Context, name string) (*models.ProfileDefinition, error) {
	var def models.ProfileDefinition
	result := r.db.WithContext(ctx).First(&def, "name = ?", name)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &def, nil
}

// FindAll returns all profile definitions ordered by name.
func (r *ProfileRepository) FindAll(ctx context.Context) ([]models.ProfileDefinition, error) {
	var defs []models.ProfileDefinition
	result := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&defs)
	return defs, result.Error
}

// Count returns the total count of profiles in the library.
func (r *ProfileRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.ProfileDefinition{}).
		Count(&count)
	return count, result.Error
}

// GetModes returns all modes of a profile in document order.
func (r *ProfileRepository) GetModes(ctx context.Context, profileID string) ([]models.ProfileMode, error) {
	var modes []models.ProfileMode
	result := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("position ASC").
		Find(&modes)
	return modes, result.Error
}

// GetModeChannels returns all channels of a mode ordered by offset.
func (r *ProfileRepository) GetModeChannels(ctx context.Context, modeID string) ([]models.ModeChannel, error) {
	var channels []models.ModeChannel
	result := r.db.WithContext(ctx).
		Where("mode_id = ?", modeID).
		Order("offset ASC").
		Find(&channels)
	return channels, result.Error
}

// DeleteByName removes a profile and its modes/channels.
func (r *ProfileRepository) DeleteByName(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var def models.ProfileDefinition
		result := tx.First(&def, "name = ?", name)
		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				return nil
			}
			return result.Error
		}
		return deleteProfileTree(tx, &def)
	})
}

func deleteProfileTree(tx *gorm.DB, def *models.ProfileDefinition) error {
	var modeIDs []string
	if err := tx.Model(&models.ProfileMode{}).
		Where("profile_id = ?", def.ID).
		Pluck("id", &modeIDs).Error; err != nil {
		return err
	}
	if len(modeIDs) > 0 {
		if err := tx.Delete(&models.ModeChannel{}, "mode_id IN ?", modeIDs).Error; err != nil {
			return err
		}
	}
	if err := tx.Delete(&models.ProfileMode{}, "profile_id = ?", def.ID).Error; err != nil {
		return err
	}
	return tx.Delete(&models.ProfileDefinition{}, "id = ?", def.ID).Error
}

// UpsertProfile stores a parsed profile, replacing any existing profile
// with the same name along with its modes and channels.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, p *fixture.Profile, stem string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ProfileDefinition
		result := tx.First(&existing, "name = ?", p.Name)
		if result.Error == nil {
			if err := deleteProfileTree(tx, &existing); err != nil {
				return err
			}
		} else if result.Error != gorm.ErrRecordNotFound {
			return result.Error
		}

		def := models.ProfileDefinition{
			ID:     cuid.New(),
			Name:   p.Name,
			Source: string(p.Source),
		}
		if stem != "" {
			def.FileStem = &stem
		}
		if err := tx.Create(&def).Error; err != nil {
			return err
		}

		for pos, modeName := range p.ModeOrder {
			m := p.Modes[modeName]
			if m == nil {
				continue
			}
			mode := models.ProfileMode{
				ID:           cuid.New(),
				Name:         m.Name,
				ProfileID:    def.ID,
				Position:     pos,
				ChannelCount: m.ChannelCount(),
			}
			if err := tx.Create(&mode).Error; err != nil {
				return err
			}
			var channels []models.ModeChannel
			for attr, offset := range m.Channels {
				ch := models.ModeChannel{
					ID:        cuid.New(),
					ModeID:    mode.ID,
					Attribute: attr,
					Offset:    offset,
				}
				if group, ok := m.ActivationGroups[attr]; ok && group != "" {
					ch.ActivationGroup = &group
				}
				channels = append(channels, ch)
			}
			if len(channels) > 0 {
				if err := tx.Create(&channels).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// LoadProfile hydrates one stored profile with its modes and channels.
func (r *ProfileRepository) LoadProfile(ctx context.Context, name string) (*fixture.Profile, error) {
	def, err := r.FindByName(ctx, name)
	if err != nil || def == nil {
		return nil, err
	}
	return r.hydrate(ctx, def)
}

// LoadAll hydrates the whole profile library.
func (r *ProfileRepository) LoadAll(ctx context.Context) ([]*fixture.Profile, error) {
	defs, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	profiles := make([]*fixture.Profile, 0, len(defs))
	for i := range defs {
		p, err := r.hydrate(ctx, &defs[i])
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func (r *ProfileRepository) hydrate(ctx context.Context, def *models.ProfileDefinition) (*fixture.Profile, error) {
	p := &fixture.Profile{
		Name:   def.Name,
		Source: fixture.ProfileSource(def.Source),
	}
	modes, err := r.GetModes(ctx, def.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range modes {
		mode := &fixture.Mode{
			Name:             m.Name,
			Channels:         make(map[string]int),
			ActivationGroups: make(map[string]string),
			TotalChannels:    m.ChannelCount,
		}
		channels, err := r.GetModeChannels(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, ch := range channels {
			mode.Channels[ch.Attribute] = ch.Offset
			if ch.ActivationGroup != nil && *ch.ActivationGroup != "" {
				mode.ActivationGroups[ch.Attribute] = *ch.ActivationGroup
			}
		}
		p.AddMode(mode)
	}
	return p, nil
}

// CreateImportMeta records one library import run.
func (r *ProfileRepository) CreateImportMeta(ctx context.Context, meta *models.LibraryImportMeta) error {
	if meta.ID == "" {
		meta.ID = cuid.New()
	}
	return r.db.WithContext(ctx).Create(meta).Error
}
