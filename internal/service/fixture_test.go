package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"ims/internal/database"
	"ims/internal/model"
	"ims/internal/notify"
	"ims/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
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

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(_ context.Context, evt notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	events    *recorder
	users     UserService
	roles     RoleService
	requests  PurchaseRequestService
	orders    PurchaseOrderService
	stock     StockService
	stats     StatisticsService
	audit     AuditService
	org       OrganizationService
	catalog   CatalogService
	college   model.College
	dept      model.Department
	otherDept model.Department
	location  model.Location
	category  model.Category
	vendor    model.Vendor

	staff, hod, otherHOD, principal, admin, storekeeper model.User
}

const testPassword = "secret123"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	f := &fixture{db: db, events: &recorder{}}

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	colleges := repository.NewCollegeRepository(db)
	departments := repository.NewDepartmentRepository(db)
	locations := repository.NewLocationRepository(db)
	categories := repository.NewCategoryRepository(db)
	vendors := repository.NewVendorRepository(db)
	requestRepo := repository.NewPurchaseRequestRepository(db)
	orderRepo := repository.NewPurchaseOrderRepository(db)
	stockRepo := repository.NewStockRepository(db)
	txManager := repository.NewTransactionManager(db)

	f.audit = NewAuditService(auditRepo)
	f.roles = NewRoleService(roleRepo, txManager, nil)
	f.users = NewUserService(userRepo, roleRepo, colleges, departments, txManager, TokenConfig{
		Secret:     []byte("test-secret"),
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
	f.requests = NewPurchaseRequestService(requestRepo, userRepo, departments, categories, vendors, f.audit, txManager, f.events, nil)
	f.orders = NewPurchaseOrderService(orderRepo, requestRepo, stockRepo, vendors, categories, f.audit, txManager, f.events)
	f.stock = NewStockService(stockRepo, orderRepo, locations, f.audit, txManager, f.events)
	f.stats = NewStatisticsService(repository.NewStatisticsRepository(db))
	f.org = NewOrganizationService(colleges, departments, locations, f.audit, txManager)
	f.catalog = NewCatalogService(categories, vendors, f.audit, txManager)

	if err := f.roles.SeedDefaultRolesAndPermissions(context.Background()); err != nil {
		t.Fatalf("seed roles: %v", err)
	}

	f.college = model.College{Code: "GEC", Name: "Government Engineering College"}
	mustCreate(t, db, &f.college)
	f.dept = model.Department{CollegeID: f.college.ID, Code: "CSE", Name: "Computer Science"}
	mustCreate(t, db, &f.dept)
	f.otherDept = model.Department{CollegeID: f.college.ID, Code: "MECH", Name: "Mechanical"}
	mustCreate(t, db, &f.otherDept)
	f.location = model.Location{CollegeID: f.college.ID, DepartmentID: &f.dept.ID, Name: "Lab 1", Building: "Block A", Room: "101"}
	mustCreate(t, db, &f.location)
	f.category = model.Category{Name: "Furniture"}
	mustCreate(t, db, &f.category)
	f.vendor = model.Vendor{Name: "Acme Supplies", GSTIN: "29ABCDE1234F1Z5", IsActive: true}
	mustCreate(t, db, &f.vendor)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	newUser := func(name, role string, collegeID, departmentID *uuid.UUID) model.User {
		u := model.User{
			Username:     name,
			Email:        name + "@college.test",
			Password:     string(hash),
			Role:         role,
			CollegeID:    collegeID,
			DepartmentID: departmentID,
		}
		mustCreate(t, db, &u)
		return u
	}
	f.staff = newUser("staff", model.RoleStaff, &f.college.ID, &f.dept.ID)
	f.hod = newUser("hod", model.RoleHOD, &f.college.ID, &f.dept.ID)
	f.otherHOD = newUser("mechhod", model.RoleHOD, &f.college.ID, &f.otherDept.ID)
	f.principal = newUser("principal", model.RolePrincipal, &f.college.ID, nil)
	f.admin = newUser("admin", model.RoleAdmin, nil, nil)
	f.storekeeper = newUser("store", model.RoleStorekeeper, &f.college.ID, nil)

	return f
}

func mustCreate(t *testing.T, db *gorm.DB, v interface{}) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

// sampleRequest is two items: 3 chairs at 100 and 1 desk at 50.
func (f *fixture) sampleRequest() CreatePurchaseRequestDTO {
	return CreatePurchaseRequestDTO{
		Title:         "Lab furniture",
		Justification: "New batch",
		Items: []PurchaseRequestItemInput{
			{Name: "Chair", CategoryID: f.category.ID.String(), Quantity: 3, EstimatedUnitCost: decimal.NewFromInt(100)},
			{Name: "Desk", CategoryID: f.category.ID.String(), VendorID: f.vendor.ID.String(), Quantity: 1, EstimatedUnitCost: decimal.NewFromInt(50)},
		},
	}
}

func (f *fixture) createRequest(t *testing.T) *PurchaseRequestResponse {
	t.Helper()
	pr, err := f.requests.Create(context.Background(), f.staff.ID.String(), f.sampleRequest())
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return pr
}

func (f *fixture) decide(t *testing.T, actor model.User, id string, req DecisionDTO) *PurchaseRequestResponse {
	t.Helper()
	pr, err := f.requests.Decide(context.Background(), actor.ID.String(), id, req)
	if err != nil {
		t.Fatalf("%s decide: %v", actor.Role, err)
	}
	return pr
}

// approvedRequest walks a fresh request through the whole chain.
func (f *fixture) approvedRequest(t *testing.T) *PurchaseRequestResponse {
	t.Helper()
	pr := f.createRequest(t)
	approve := DecisionDTO{Decision: "approve"}
	f.decide(t, f.hod, pr.ID, approve)
	f.decide(t, f.principal, pr.ID, approve)
	return f.decide(t, f.admin, pr.ID, approve)
}

func (f *fixture) setOrderStatus(t *testing.T, id string, statuses ...string) *PurchaseOrderResponse {
	t.Helper()
	var po *PurchaseOrderResponse
	for _, st := range statuses {
		st := st
		var err error
		po, err = f.orders.Update(context.Background(), f.storekeeper.ID.String(), id, UpdatePurchaseOrderDTO{OrderStatus: &st})
		if err != nil {
			t.Fatalf("set order status %s: %v", st, err)
		}
	}
	return po
}

// receivedOrder returns a Received order for a fully approved request.
func (f *fixture) receivedOrder(t *testing.T) *PurchaseOrderResponse {
	t.Helper()
	pr := f.approvedRequest(t)
	po, err := f.orders.Create(context.Background(), f.storekeeper.ID.String(), CreatePurchaseOrderDTO{
		PurchaseRequestID: pr.ID,
		VendorID:          f.vendor.ID.String(),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return f.setOrderStatus(t, po.ID, model.OrderStatusPlaced, model.OrderStatusReceived)
}
