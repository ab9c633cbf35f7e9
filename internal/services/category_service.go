package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "geumjjoki/internal/errors"
	"geumjjoki/internal/models"
)

// categoryService handles the shared category tree.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// loadCategoryTree reads every live category through db, which may be a transaction.
func loadCategoryTree(db *gorm.DB) (*models.CategoryTree, error) {
	var categories []models.Category
	if err := db.Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return models.NewCategoryTree(categories), nil
}

// rootOf resolves categoryID to its top-level ancestor within tree.
func rootOf(tree *models.CategoryTree, categoryID string) (*models.Category, error) {
	root, err := tree.Root(categoryID)
	switch {
	case errors.Is(err, models.ErrUnknownCategory):
		return nil, apperrors.ErrCategoryNotFound
	case err != nil:
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return root, nil
}

// CreateCategory creates a new category
func (s *categoryService) CreateCategory(ctx context.Context, name, description, icon, color string, parentID *string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	db := s.db.WithContext(ctx)

	if parentID != nil {
		if _, err := findCategory(db, *parentID); err != nil {
			if errors.Is(err, apperrors.ErrCategoryNotFound) {
				return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
			}
			return nil, err
		}
	}

	category := &models.Category{
		Name:        name,
		Description: description,
		Icon:        icon,
		Color:       color,
		ParentID:    parentID,
	}
	if err := db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// GetRootCategories returns every top-level category ordered by name.
func (s *categoryService) GetRootCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Where("parent_id IS NULL").Order("name").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

// GetCategoryByID retrieves a category by ID
func (s *categoryService) GetCategoryByID(ctx context.Context, categoryID string) (*models.Category, error) {
	return findCategory(s.db.WithContext(ctx), categoryID)
}

// GetChildCategories returns the direct children of a category.
func (s *categoryService) GetChildCategories(ctx context.Context, categoryID string) ([]models.Category, error) {
	db := s.db.WithContext(ctx)
	if _, err := findCategory(db, categoryID); err != nil {
		return nil, err
	}

	var children []models.Category
	if err := db.Where("parent_id = ?", categoryID).Order("name").Find(&children).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return children, nil
}

// UpdateCategory updates an existing category. Reparenting is rejected when it
// would make the category its own ancestor.
func (s *categoryService) UpdateCategory(ctx context.Context, categoryID string, update CategoryUpdate) (*models.Category, error) {
	var category *models.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		category, err = findCategory(tx, categoryID)
		if err != nil {
			return err
		}

		updates := make(map[string]interface{})
		if update.Name != nil {
			name := strings.TrimSpace(*update.Name)
			if name == "" {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "category name cannot be empty")
			}
			updates["name"] = name
		}
		if update.Description != nil {
			updates["description"] = *update.Description
		}
		if update.Icon != nil {
			updates["icon"] = *update.Icon
		}
		if update.Color != nil {
			updates["color"] = *update.Color
		}

		switch {
		case update.ClearParent:
			updates["parent_id"] = nil
		case update.ParentID != nil:
			tree, err := loadCategoryTree(tx)
			if err != nil {
				return err
			}
			if tree.Get(*update.ParentID) == nil {
				return apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
			}
			if tree.WouldCycle(categoryID, *update.ParentID) {
				return apperrors.ErrCategoryCycle
			}
			updates["parent_id"] = *update.ParentID
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(category).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return tx.First(category, "id = ?", categoryID).Error
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteCategory soft-deletes a leaf category. Expenses keep their reference
// for historical records.
func (s *categoryService) DeleteCategory(ctx context.Context, categoryID string) error {
	db := s.db.WithContext(ctx)

	category, err := findCategory(db, categoryID)
	if err != nil {
		return err
	}

	var childCount int64
	if err := db.Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&childCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if childCount > 0 {
		return apperrors.ErrCategoryHasChildren
	}

	if err := db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// RootOf returns the top-level ancestor of a category.
func (s *categoryService) RootOf(ctx context.Context, categoryID string) (*models.Category, error) {
	tree, err := loadCategoryTree(s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return rootOf(tree, categoryID)
}

func findCategory(db *gorm.DB, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := db.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}
