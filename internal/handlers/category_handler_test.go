package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "geumjjoki/internal/errors"
	"geumjjoki/internal/models"
	"geumjjoki/internal/services"
)

// --- mock category service ---

type mockCategoryService struct {
	createCategoryFn     func(name, description, icon, color string, parentID *string) (*models.Category, error)
	getRootCategoriesFn  func() ([]models.Category, error)
	getCategoryByIDFn    func(categoryID string) (*models.Category, error)
	getChildCategoriesFn func(categoryID string) ([]models.Category, error)
	updateCategoryFn     func(categoryID string, update services.CategoryUpdate) (*models.Category, error)
	deleteCategoryFn     func(categoryID string) error
	rootOfFn             func(categoryID string) (*models.Category, error)
}

func (m *mockCategoryService) CreateCategory(_ context.Context, name, description, icon, color string, parentID *string) (*models.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(name, description, icon, color, parentID)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) GetRootCategories(_ context.Context) ([]models.Category, error) {
	if m.getRootCategoriesFn != nil {
		return m.getRootCategoriesFn()
	}
	return []models.Category{}, nil
}

func (m *mockCategoryService) GetCategoryByID(_ context.Context, categoryID string) (*models.Category, error) {
	if m.getCategoryByIDFn != nil {
		return m.getCategoryByIDFn(categoryID)
	}
	return &models.Category{Base: models.Base{ID: categoryID}}, nil
}

func (m *mockCategoryService) GetChildCategories(_ context.Context, categoryID string) ([]models.Category, error) {
	if m.getChildCategoriesFn != nil {
		return m.getChildCategoriesFn(categoryID)
	}
	return []models.Category{}, nil
}

func (m *mockCategoryService) UpdateCategory(_ context.Context, categoryID string, update services.CategoryUpdate) (*models.Category, error) {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(categoryID, update)
	}
	return &models.Category{Base: models.Base{ID: categoryID}}, nil
}

func (m *mockCategoryService) DeleteCategory(_ context.Context, categoryID string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(categoryID)
	}
	return nil
}

func (m *mockCategoryService) RootOf(_ context.Context, categoryID string) (*models.Category, error) {
	if m.rootOfFn != nil {
		return m.rootOfFn(categoryID)
	}
	return &models.Category{Base: models.Base{ID: categoryID}}, nil
}

var _ services.CategoryServicer = (*mockCategoryService)(nil)

const (
	foodID = "0190a5c2-7d1e-7000-8000-00000000c001"
	cafeID = "0190a5c2-7d1e-7000-8000-00000000c002"
)

func setupCategoryRouter(handler *CategoryHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/categories", handler.GetRootCategories)
	auth.GET("/categories/:id", handler.GetCategory)
	r.POST("/admin/categories", handler.CreateCategory)
	r.PUT("/admin/categories/:id", handler.UpdateCategory)
	r.DELETE("/admin/categories/:id", handler.DeleteCategory)
	return r
}

func TestCategoryHandler_GetRootCategories(t *testing.T) {
	svc := &mockCategoryService{
		getRootCategoriesFn: func() ([]models.Category, error) {
			return []models.Category{{Base: models.Base{ID: foodID}, Name: "식품"}}, nil
		},
	}
	r := setupCategoryRouter(NewCategoryHandler(svc))

	rec := doRequest(r, "GET", "/categories", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	categories := parseJSON(t, rec)["categories"].([]interface{})
	if len(categories) != 1 {
		t.Fatalf("expected 1 category, got %d", len(categories))
	}
	if categories[0].(map[string]interface{})["name"] != "식품" {
		t.Errorf("unexpected category: %v", categories[0])
	}
}

func TestCategoryHandler_GetCategory(t *testing.T) {
	t.Run("returns category with children and root", func(t *testing.T) {
		svc := &mockCategoryService{
			getCategoryByIDFn: func(id string) (*models.Category, error) {
				parent := foodID
				return &models.Category{Base: models.Base{ID: id}, Name: "카페", ParentID: &parent}, nil
			},
			rootOfFn: func(string) (*models.Category, error) {
				return &models.Category{Base: models.Base{ID: foodID}, Name: "식품"}, nil
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(svc))

		rec := doRequest(r, "GET", "/categories/"+cafeID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["root"].(map[string]interface{})["id"] != foodID {
			t.Errorf("expected root %s, got %v", foodID, result["root"])
		}
		if result["category"].(map[string]interface{})["name"] != "카페" {
			t.Errorf("unexpected category: %v", result["category"])
		}
	})

	t.Run("returns 400 on malformed id", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}))

		rec := doRequest(r, "GET", "/categories/abc", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockCategoryService{
			getCategoryByIDFn: func(string) (*models.Category, error) { return nil, apperrors.ErrCategoryNotFound },
		}
		r := setupCategoryRouter(NewCategoryHandler(svc))

		rec := doRequest(r, "GET", "/categories/"+cafeID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_NOT_FOUND")
	})
}

func TestCategoryHandler_CreateCategory(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var gotParent *string
		svc := &mockCategoryService{
			createCategoryFn: func(name, _, _, color string, parentID *string) (*models.Category, error) {
				gotParent = parentID
				return &models.Category{Base: models.Base{ID: cafeID}, Name: name, Color: color, ParentID: parentID}, nil
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(svc))

		rec := doRequest(r, "POST", "/admin/categories",
			`{"name":"카페","color":"#A0522D","parent_id":"`+foodID+`"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotParent == nil || *gotParent != foodID {
			t.Errorf("expected parent %s, got %v", foodID, gotParent)
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"color":"#FFFFFF"}`},
		{"invalid color", `{"name":"카페","color":"brown"}`},
		{"invalid parent", `{"name":"카페","parent_id":"7"}`},
	}
	for _, tt := range tests {
		t.Run("returns 400 on "+tt.name, func(t *testing.T) {
			r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}))

			rec := doRequest(r, "POST", "/admin/categories", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
		})
	}
}

func TestCategoryHandler_UpdateCategory(t *testing.T) {
	t.Run("passes clear_parent through", func(t *testing.T) {
		var got services.CategoryUpdate
		svc := &mockCategoryService{
			updateCategoryFn: func(id string, update services.CategoryUpdate) (*models.Category, error) {
				got = update
				return &models.Category{Base: models.Base{ID: id}}, nil
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(svc))

		rec := doRequest(r, "PUT", "/admin/categories/"+cafeID, `{"name":"커피","clear_parent":true}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.ClearParent || got.Name == nil || *got.Name != "커피" {
			t.Errorf("unexpected update: %+v", got)
		}
	})

	t.Run("returns 400 on cycle", func(t *testing.T) {
		svc := &mockCategoryService{
			updateCategoryFn: func(string, services.CategoryUpdate) (*models.Category, error) {
				return nil, apperrors.ErrCategoryCycle
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(svc))

		rec := doRequest(r, "PUT", "/admin/categories/"+foodID, `{"parent_id":"`+cafeID+`"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_CYCLE")
	})
}

func TestCategoryHandler_DeleteCategory(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}))

		rec := doRequest(r, "DELETE", "/admin/categories/"+cafeID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("returns 409 when category has children", func(t *testing.T) {
		svc := &mockCategoryService{
			deleteCategoryFn: func(string) error { return apperrors.ErrCategoryHasChildren },
		}
		r := setupCategoryRouter(NewCategoryHandler(svc))

		rec := doRequest(r, "DELETE", "/admin/categories/"+foodID, "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_HAS_CHILDREN")
	})
}
