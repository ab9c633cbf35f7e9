package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"geumjjoki/internal/testutil"
)

func TestCreateCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("root", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)

		category, err := svc.CreateCategory(ctx, " 식품 ", "food", "🍚", "#ff0000", nil)
		testutil.AssertNoError(t, err)
		require.NotEmpty(t, category.ID)
		require.Equal(t, "식품", category.Name)
		require.Nil(t, category.ParentID)
	})

	t.Run("child", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		root := testutil.CreateTestCategory(t, db, "식품", nil)

		child, err := svc.CreateCategory(ctx, "카페", "", "", "", &root.ID)
		testutil.AssertNoError(t, err)
		require.Equal(t, root.ID, *child.ParentID)
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)

		_, err := svc.CreateCategory(ctx, "  ", "", "", "", nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("missing_parent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)

		_, err := svc.CreateCategory(ctx, "카페", "", "", "", testutil.StrPtr("00000000-0000-0000-0000-000000000000"))
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestUpdateCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("rename", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		cat := testutil.CreateTestCategory(t, db, "식비", nil)

		updated, err := svc.UpdateCategory(ctx, cat.ID, CategoryUpdate{Name: testutil.StrPtr("식품")})
		testutil.AssertNoError(t, err)
		require.Equal(t, "식품", updated.Name)
	})

	t.Run("reparent_to_descendant_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		root := testutil.CreateTestCategory(t, db, "식품", nil)
		child := testutil.CreateTestCategory(t, db, "카페", &root.ID)
		grandchild := testutil.CreateTestCategory(t, db, "라떼", &child.ID)

		_, err := svc.UpdateCategory(ctx, root.ID, CategoryUpdate{ParentID: &grandchild.ID})
		testutil.AssertAppError(t, err, "CATEGORY_CYCLE")

		_, err = svc.UpdateCategory(ctx, root.ID, CategoryUpdate{ParentID: &root.ID})
		testutil.AssertAppError(t, err, "CATEGORY_CYCLE")
	})

	t.Run("reparent_and_promote", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		food := testutil.CreateTestCategory(t, db, "식품", nil)
		leisure := testutil.CreateTestCategory(t, db, "여가", nil)
		cafe := testutil.CreateTestCategory(t, db, "카페", &food.ID)

		moved, err := svc.UpdateCategory(ctx, cafe.ID, CategoryUpdate{ParentID: &leisure.ID})
		testutil.AssertNoError(t, err)
		require.Equal(t, leisure.ID, *moved.ParentID)

		promoted, err := svc.UpdateCategory(ctx, cafe.ID, CategoryUpdate{ClearParent: true})
		testutil.AssertNoError(t, err)
		require.Nil(t, promoted.ParentID)
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)

		_, err := svc.UpdateCategory(ctx, "missing", CategoryUpdate{Name: testutil.StrPtr("x")})
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestDeleteCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("with_children", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		root := testutil.CreateTestCategory(t, db, "식품", nil)
		testutil.CreateTestCategory(t, db, "카페", &root.ID)

		err := svc.DeleteCategory(ctx, root.ID)
		testutil.AssertAppError(t, err, "CATEGORY_HAS_CHILDREN")
	})

	t.Run("leaf", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		leaf := testutil.CreateTestCategory(t, db, "카페", nil)

		testutil.AssertNoError(t, svc.DeleteCategory(ctx, leaf.ID))
		_, err := svc.GetCategoryByID(ctx, leaf.ID)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestCategoryQueries(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCategoryService(db)

	food := testutil.CreateTestCategory(t, db, "식품", nil)
	transit := testutil.CreateTestCategory(t, db, "교통", nil)
	cafe := testutil.CreateTestCategory(t, db, "카페", &food.ID)
	latte := testutil.CreateTestCategory(t, db, "라떼", &cafe.ID)

	roots, err := svc.GetRootCategories(ctx)
	testutil.AssertNoError(t, err)
	require.Len(t, roots, 2)
	require.Equal(t, transit.ID, roots[0].ID)

	children, err := svc.GetChildCategories(ctx, food.ID)
	testutil.AssertNoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, cafe.ID, children[0].ID)

	root, err := svc.RootOf(ctx, latte.ID)
	testutil.AssertNoError(t, err)
	require.Equal(t, food.ID, root.ID)

	_, err = svc.RootOf(ctx, "missing")
	testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
}
