package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ims/internal/database"
	"ims/internal/middleware"
	"ims/internal/model"
	"ims/internal/repository"
	"ims/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testPassword = "secret123"

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Pagination *struct {
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Total int64 `json:"total"`
	} `json:"pagination"`
}

type testApp struct {
	router   *gin.Engine
	db       *gorm.DB
	college  model.College
	dept     model.Department
	category model.Category
	vendor   model.Vendor
	tokens   map[string]string
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.RegisterCallbacks(db); err != nil {
		t.Fatalf("callbacks: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	app := &testApp{db: db, tokens: map[string]string{}}

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	colleges := repository.NewCollegeRepository(db)
	departments := repository.NewDepartmentRepository(db)
	locations := repository.NewLocationRepository(db)
	categories := repository.NewCategoryRepository(db)
	vendors := repository.NewVendorRepository(db)
	requestRepo := repository.NewPurchaseRequestRepository(db)
	orderRepo := repository.NewPurchaseOrderRepository(db)
	stockRepo := repository.NewStockRepository(db)
	txManager := repository.NewTransactionManager(db)

	secret := []byte("handler-secret")
	middleware.InitAuth(middleware.AuthConfig{Secret: secret, AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour}, roleRepo)

	audit := service.NewAuditService(repository.NewAuditRepository(db))
	roles := service.NewRoleService(roleRepo, txManager, middleware.ClearPermissionCache)
	users := service.NewUserService(userRepo, roleRepo, colleges, departments, txManager, service.TokenConfig{
		Secret: secret, AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour,
	})
	requests := service.NewPurchaseRequestService(requestRepo, userRepo, departments, categories, vendors, audit, txManager, nil, nil)
	orders := service.NewPurchaseOrderService(orderRepo, requestRepo, stockRepo, vendors, categories, audit, txManager, nil)
	stock := service.NewStockService(stockRepo, orderRepo, locations, audit, txManager, nil)

	if err := roles.SeedDefaultRolesAndPermissions(context.Background()); err != nil {
		t.Fatalf("seed roles: %v", err)
	}

	r := gin.New()
	api := r.Group("/api")
	NewUserHandler(users).RegisterRoutes(api)
	NewRoleHandler(roles).RegisterRoutes(api)
	NewAuditHandler(audit).RegisterRoutes(api)
	NewStatisticsHandler(service.NewStatisticsService(repository.NewStatisticsRepository(db))).RegisterRoutes(api)
	NewPurchaseRequestHandler(requests).RegisterRoutes(api)
	NewPurchaseOrderHandler(orders).RegisterRoutes(api)
	NewStockHandler(stock).RegisterRoutes(api)
	NewMasterHandler(service.NewOrganizationService(colleges, departments, locations, audit, txManager), service.NewCatalogService(categories, vendors, audit, txManager)).RegisterRoutes(api)
	app.router = r

	app.college = model.College{Code: "GEC", Name: "Government Engineering College"}
	app.create(t, &app.college)
	app.dept = model.Department{CollegeID: app.college.ID, Code: "CSE", Name: "Computer Science"}
	app.create(t, &app.dept)
	app.category = model.Category{Name: "Furniture"}
	app.create(t, &app.category)
	app.vendor = model.Vendor{Name: "Acme Supplies", IsActive: true}
	app.create(t, &app.vendor)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	accounts := []struct {
		role       string
		college    *uuid.UUID
		department *uuid.UUID
	}{
		{model.RoleStaff, &app.college.ID, &app.dept.ID},
		{model.RoleHOD, &app.college.ID, &app.dept.ID},
		{model.RolePrincipal, &app.college.ID, nil},
		{model.RoleAdmin, nil, nil},
		{model.RoleStorekeeper, &app.college.ID, nil},
	}
	for _, a := range accounts {
		u := model.User{
			Username:     a.role,
			Email:        a.role + "@college.test",
			Password:     string(hash),
			Role:         a.role,
			CollegeID:    a.college,
			DepartmentID: a.department,
		}
		app.create(t, &u)
		app.tokens[a.role] = app.login(t, u.Email)
	}
	return app
}

func (a *testApp) create(t *testing.T, v interface{}) {
	t.Helper()
	if err := a.db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

func (a *testApp) login(t *testing.T, email string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": testPassword})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, w.Code, w.Body.String())
	}
	var tokens service.AuthTokens
	decodeData(t, w, &tokens)
	return tokens.AccessToken
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, w.Body.String())
	}
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) envelope {
	t.Helper()
	env := decodeEnvelope(t, w)
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, w.Body.String())
	}
	return env
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
}

func (a *testApp) samplePayload() service.CreatePurchaseRequestDTO {
	return service.CreatePurchaseRequestDTO{
		Title: "Lab furniture",
		Items: []service.PurchaseRequestItemInput{
			{Name: "Chair", CategoryID: a.category.ID.String(), Quantity: 3, EstimatedUnitCost: decimal.NewFromInt(100)},
			{Name: "Desk", CategoryID: a.category.ID.String(), Quantity: 1, EstimatedUnitCost: decimal.NewFromInt(50)},
		},
	}
}

func TestProcurementFlow(t *testing.T) {
	app := newTestApp(t)

	// raise a request
	w := app.do(t, http.MethodPost, "/api/purchase-requests", app.tokens[model.RoleStaff], app.samplePayload())
	expectStatus(t, w, http.StatusCreated)
	var pr service.PurchaseRequestResponse
	env := decodeData(t, w, &pr)
	if !env.Success || env.StatusCode != http.StatusCreated {
		t.Errorf("unexpected envelope %+v", env)
	}
	if !pr.TotalEstimatedCost.Equal(decimal.NewFromInt(350)) {
		t.Errorf("expected total 350, got %s", pr.TotalEstimatedCost)
	}
	if pr.ApprovalStatus != model.RequestStatusPending {
		t.Errorf("expected Pending, got %s", pr.ApprovalStatus)
	}

	// an order against a Pending request is refused
	orderPayload := service.CreatePurchaseOrderDTO{PurchaseRequestID: pr.ID, VendorID: app.vendor.ID.String()}
	w = app.do(t, http.MethodPost, "/api/purchase-orders", app.tokens[model.RoleStorekeeper], orderPayload)
	expectStatus(t, w, http.StatusBadRequest)
	if env := decodeEnvelope(t, w); env.Success || env.Message == "" {
		t.Errorf("expected error envelope, got %+v", env)
	}

	// the principal cannot jump the HOD stage
	w = app.do(t, http.MethodPost, "/api/purchase-requests/"+pr.ID+"/decision", app.tokens[model.RolePrincipal], service.DecisionDTO{Decision: "approve"})
	expectStatus(t, w, http.StatusForbidden)

	for _, role := range []string{model.RoleHOD, model.RolePrincipal, model.RoleAdmin} {
		w = app.do(t, http.MethodPost, "/api/purchase-requests/"+pr.ID+"/decision", app.tokens[role], service.DecisionDTO{Decision: "approve"})
		expectStatus(t, w, http.StatusOK)
	}
	decodeData(t, w, &pr)
	if pr.ApprovalStatus != model.RequestStatusApproved {
		t.Fatalf("expected Approved, got %s", pr.ApprovalStatus)
	}

	w = app.do(t, http.MethodPost, "/api/purchase-orders", app.tokens[model.RoleStorekeeper], orderPayload)
	expectStatus(t, w, http.StatusCreated)
	var po service.PurchaseOrderResponse
	decodeData(t, w, &po)
	if len(po.Items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(po.Items))
	}

	// stock cannot be received before the order is
	bulk := service.BulkCreateStockDTO{PurchaseOrderID: po.ID}
	w = app.do(t, http.MethodPost, "/api/stock-items/bulk", app.tokens[model.RoleStorekeeper], bulk)
	expectStatus(t, w, http.StatusBadRequest)

	received := model.OrderStatusReceived
	placed := model.OrderStatusPlaced
	w = app.do(t, http.MethodPut, "/api/purchase-orders/"+po.ID, app.tokens[model.RoleStorekeeper], service.UpdatePurchaseOrderDTO{OrderStatus: &received})
	expectStatus(t, w, http.StatusBadRequest)
	w = app.do(t, http.MethodPut, "/api/purchase-orders/"+po.ID, app.tokens[model.RoleStorekeeper], service.UpdatePurchaseOrderDTO{OrderStatus: &placed})
	expectStatus(t, w, http.StatusOK)
	w = app.do(t, http.MethodPut, "/api/purchase-orders/"+po.ID, app.tokens[model.RoleStorekeeper], service.UpdatePurchaseOrderDTO{OrderStatus: &received})
	expectStatus(t, w, http.StatusOK)

	w = app.do(t, http.MethodPost, "/api/stock-items/bulk", app.tokens[model.RoleStorekeeper], bulk)
	expectStatus(t, w, http.StatusCreated)
	var items []service.StockItemResponse
	decodeData(t, w, &items)
	if len(items) != 4 {
		t.Fatalf("expected 4 stock units, got %d", len(items))
	}

	w = app.do(t, http.MethodGet, "/api/stock-items?limit=2", app.tokens[model.RoleHOD], nil)
	expectStatus(t, w, http.StatusOK)
	env = decodeData(t, w, &items)
	if len(items) != 2 || env.Pagination == nil || env.Pagination.Total != 4 {
		t.Errorf("expected 2 of 4 units, got %d items, pagination %+v", len(items), env.Pagination)
	}

	w = app.do(t, http.MethodGet, "/api/stock-items/export", app.tokens[model.RoleStorekeeper], nil)
	expectStatus(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("expected xlsx content type, got %q", ct)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "attachment") {
		t.Errorf("expected attachment disposition, got %q", w.Header().Get("Content-Disposition"))
	}
}

func TestAuthorization(t *testing.T) {
	app := newTestApp(t)

	testCases := []struct {
		name   string
		method string
		path   string
		role   string
		status int
	}{
		{"no token", http.MethodGet, "/api/purchase-requests", "", http.StatusUnauthorized},
		{"staff reads requests", http.MethodGet, "/api/purchase-requests", model.RoleStaff, http.StatusOK},
		{"staff cannot read audit", http.MethodGet, "/api/audit-logs", model.RoleStaff, http.StatusForbidden},
		{"staff cannot place orders", http.MethodPost, "/api/purchase-orders", model.RoleStaff, http.StatusForbidden},
		{"hod cannot write masters", http.MethodPost, "/api/categories", model.RoleHOD, http.StatusForbidden},
		{"storekeeper cannot manage roles", http.MethodGet, "/api/roles", model.RoleStorekeeper, http.StatusForbidden},
		{"admin manages roles", http.MethodGet, "/api/roles", model.RoleAdmin, http.StatusOK},
		{"principal reads audit", http.MethodGet, "/api/audit-logs", model.RolePrincipal, http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := app.do(t, tc.method, tc.path, app.tokens[tc.role], nil)
			expectStatus(t, w, tc.status)
			if tc.status >= 400 {
				if env := decodeEnvelope(t, w); env.Success || env.StatusCode != tc.status {
					t.Errorf("unexpected envelope %+v", env)
				}
			}
		})
	}
}

func TestErrorMapping(t *testing.T) {
	app := newTestApp(t)

	testCases := []struct {
		name    string
		method  string
		path    string
		body    interface{}
		status  int
		message string
	}{
		{"unknown request", http.MethodGet, "/api/purchase-requests/" + uuid.NewString(), nil, http.StatusNotFound, ""},
		{"malformed id", http.MethodGet, "/api/purchase-requests/not-a-uuid", nil, http.StatusBadRequest, ""},
		{"bad payload", http.MethodPost, "/api/purchase-requests", map[string]string{"title": "x"}, http.StatusBadRequest, "Invalid request payload"},
		{"invalid status filter", http.MethodGet, "/api/purchase-requests?approval_status=Maybe", nil, http.StatusBadRequest, ""},
		{"bad date", http.MethodGet, "/api/statistics?start_date=yesterday", nil, http.StatusBadRequest, "start_date"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := app.do(t, tc.method, tc.path, app.tokens[model.RoleAdmin], tc.body)
			expectStatus(t, w, tc.status)
			env := decodeEnvelope(t, w)
			if env.Success {
				t.Errorf("expected failure envelope")
			}
			if tc.message != "" && !strings.Contains(env.Message, tc.message) {
				t.Errorf("expected message containing %q, got %q", tc.message, env.Message)
			}
		})
	}
}

func TestDuplicateMasterData(t *testing.T) {
	app := newTestApp(t)

	payload := service.CollegeRequest{Code: "GEC", Name: "Duplicate"}
	w := app.do(t, http.MethodPost, "/api/colleges", app.tokens[model.RoleAdmin], payload)
	expectStatus(t, w, http.StatusBadRequest)
	if env := decodeEnvelope(t, w); env.Message != "record already exists" {
		t.Errorf("expected generic duplicate message, got %q", env.Message)
	}

	w = app.do(t, http.MethodPost, "/api/colleges", app.tokens[model.RoleAdmin], service.CollegeRequest{Code: "NIT", Name: "National Institute"})
	expectStatus(t, w, http.StatusCreated)

	w = app.do(t, http.MethodGet, "/api/colleges", app.tokens[model.RoleHOD], nil)
	expectStatus(t, w, http.StatusOK)
	var colleges []model.College
	env := decodeData(t, w, &colleges)
	if env.Pagination == nil || env.Pagination.Total != 2 {
		t.Errorf("expected 2 colleges, got %+v", env.Pagination)
	}
}

func TestSessionCookies(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@college.test", "password": testPassword})
	expectStatus(t, w, http.StatusOK)

	cookies := w.Result().Cookies()
	var access *http.Cookie
	for _, c := range cookies {
		if c.Name == "access_token" {
			access = c
		}
	}
	if access == nil || !access.HttpOnly {
		t.Fatalf("expected HttpOnly access_token cookie, got %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(access)
	me := httptest.NewRecorder()
	app.router.ServeHTTP(me, req)
	expectStatus(t, me, http.StatusOK)

	var user service.UserResponse
	decodeData(t, me, &user)
	if user.Role != model.RoleAdmin || len(user.Permissions) == 0 {
		t.Errorf("unexpected /me payload %+v", user)
	}

	w = app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@college.test", "password": "wrong"})
	expectStatus(t, w, http.StatusUnauthorized)
}
