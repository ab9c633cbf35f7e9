package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"geumjjoki/internal/clock"
	"geumjjoki/internal/events"
	"geumjjoki/internal/handlers"
	"geumjjoki/internal/logger"
	"geumjjoki/internal/middleware"
	"geumjjoki/internal/services"
	"geumjjoki/internal/testutil"
	"geumjjoki/internal/validator"
)

const adminKey = "test-admin-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Clock  *clock.FixedClock
	Events *events.Recorder
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite and a clock fixed at now.
func setupApp(t *testing.T, now time.Time, adminAPIKey string) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	clk := clock.Fixed(now)
	recorder := events.NewRecorder()
	locks := services.NewUserLocks()

	// Services
	auditService := services.NewAuditService(db)
	categoryService := services.NewCategoryService(db)
	attributionService := services.NewAttributionService(db, clk, locks)
	expenseService := services.NewExpenseService(db, clk, attributionService, locks)
	challengeService := services.NewChallengeService(db, clk, attributionService, recorder, locks)
	profileService := services.NewProfileService(db)
	userChallengeService := services.NewUserChallengeService(db, clk, profileService, recorder, locks)
	rewardService := services.NewRewardService(db, clk, profileService, recorder)

	// Handlers
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	expenseHandler := handlers.NewExpenseHandler(expenseService, auditService, clk)
	challengeHandler := handlers.NewChallengeHandler(challengeService, auditService)
	userChallengeHandler := handlers.NewUserChallengeHandler(userChallengeService)
	profileHandler := handlers.NewProfileHandler(profileService)
	rewardHandler := handlers.NewRewardHandler(rewardService, auditService)
	adminHandler := handlers.NewAdminHandler(userChallengeService, attributionService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	admin := v1.Group("/admin")
	admin.Use(middleware.AdminAuthMiddleware(adminAPIKey))
	admin.POST("/categories", categoryHandler.CreateCategory)
	admin.PUT("/categories/:id", categoryHandler.UpdateCategory)
	admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)
	admin.POST("/challenges", challengeHandler.CreateChallenge)
	admin.POST("/rewards", rewardHandler.CreateReward)
	admin.POST("/settle", adminHandler.SettleDue)
	admin.POST("/users/:id/reattribute", adminHandler.Reattribute)

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	categories := protected.Group("/categories")
	categories.GET("", categoryHandler.GetRootCategories)
	categories.GET("/:id", categoryHandler.GetCategory)

	challenges := protected.Group("/challenges")
	challenges.GET("", challengeHandler.GetChallenges)
	challenges.GET("/:id", challengeHandler.GetChallenge)
	challenges.GET("/:id/status", challengeHandler.GetChallengeStatus)
	challenges.POST("/:id/join", challengeHandler.JoinChallenge)

	myChallenges := protected.Group("/my-challenges")
	myChallenges.GET("", userChallengeHandler.GetMyChallenges)
	myChallenges.GET("/:id", userChallengeHandler.GetMyChallenge)
	myChallenges.GET("/:id/status", userChallengeHandler.GetMyChallengeStatus)

	expenses := protected.Group("/expenses")
	expenses.POST("", expenseHandler.CreateExpense)
	expenses.GET("", expenseHandler.GetExpenses)
	expenses.GET("/summary", expenseHandler.GetMonthlySummary)
	expenses.GET("/:id", expenseHandler.GetExpense)
	expenses.PUT("/:id", expenseHandler.UpdateExpense)
	expenses.DELETE("/:id", expenseHandler.DeleteExpense)

	profile := protected.Group("/profile")
	profile.GET("", profileHandler.GetProfile)
	profile.GET("/points", profileHandler.GetPointHistory)

	rewards := protected.Group("/rewards")
	rewards.GET("", rewardHandler.GetRewards)
	rewards.GET("/redemptions", rewardHandler.GetRedemptions)
	rewards.POST("/:id/redeem", rewardHandler.RedeemReward)

	return &testApp{DB: db, Router: router, Clock: clk, Events: recorder}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// adminRequest makes a request carrying the admin API key.
func (app *testApp) adminRequest(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", adminKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// expectStatus fails the test when rec does not carry the wanted status.
func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) map[string]interface{} {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)
}

// expectError fails the test unless rec is an error response with code.
func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	result := expectStatus(t, rec, status)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %v", result)
	}
	if errObj["code"] != code {
		t.Fatalf("expected error code %s, got %v", code, errObj["code"])
	}
}

// newUser creates a user row and returns an access token for it with its ID.
// Accounts are owned by the auth service, so tests only mint tokens.
func (app *testApp) newUser(t *testing.T) (token, userID string) {
	t.Helper()
	user := testutil.CreateTestUser(t, app.DB)
	token, err := middleware.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token, user.ID
}

// createCategory creates a category through the admin API and returns its ID.
func (app *testApp) createCategory(t *testing.T, name, parentID string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q}`, name)
	if parentID != "" {
		body = fmt.Sprintf(`{"name":%q,"parent_id":%q}`, name, parentID)
	}
	result := expectStatus(t, app.adminRequest("POST", "/api/v1/admin/categories", body), http.StatusCreated)
	return result["category"].(map[string]interface{})["id"].(string)
}

// createChallenge creates a March 2026 challenge through the admin API and returns its ID.
func (app *testApp) createChallenge(t *testing.T, categoryID string, goalAmount int64, goalDays int, reward int64) string {
	t.Helper()
	body := fmt.Sprintf(`{"title":"Spend less","category_id":%q,"goal_amount":%d,"goal_days":%d,"point_reward":%d,
		"start_date":"2026-03-01T00:00:00Z","end_date":"2026-03-31T23:59:59Z"}`, categoryID, goalAmount, goalDays, reward)
	result := expectStatus(t, app.adminRequest("POST", "/api/v1/admin/challenges", body), http.StatusCreated)
	return result["challenge"].(map[string]interface{})["id"].(string)
}

// spend records an expense and returns the created expense object.
func (app *testApp) spend(t *testing.T, token, categoryID string, amount int64, date string) map[string]interface{} {
	t.Helper()
	body := fmt.Sprintf(`{"category_id":%q,"amount":%d,"date":%q}`, categoryID, amount, date)
	result := expectStatus(t, app.request("POST", "/api/v1/expenses", body, token), http.StatusCreated)
	return result["expense"].(map[string]interface{})
}

// join joins challengeID and returns the new attempt.
func (app *testApp) join(t *testing.T, token, challengeID string) map[string]interface{} {
	t.Helper()
	result := expectStatus(t, app.request("POST", "/api/v1/challenges/"+challengeID+"/join", "", token), http.StatusCreated)
	return result["user_challenge"].(map[string]interface{})
}
