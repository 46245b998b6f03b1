package repository

import (
	"context"

	"ims/internal/model"
	"ims/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MasterRecord is any of the reference tables maintained through the
// master data screens.
type MasterRecord interface {
	model.College | model.Department | model.Location | model.Category | model.Vendor
}

// MasterFilter narrows master data listings. Equals holds exact column
// matches; Search is matched case-insensitively against SearchColumns.
type MasterFilter struct {
	Equals map[string]interface{}
	Search string
	Page   int
	Limit  int
}

// MasterRepository is the shared CRUD surface of the master data tables
type MasterRepository[T MasterRecord] interface {
	Create(ctx context.Context, record *T) error
	Update(ctx context.Context, record *T) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*T, error)
	List(ctx context.Context, filter MasterFilter) ([]T, int64, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type masterRepository[T MasterRecord] struct {
	db            *gorm.DB
	searchColumns []string
	preloads      []string
	order         string
}

func newMasterRepository[T MasterRecord](db *gorm.DB, order string, searchColumns []string, preloads ...string) MasterRepository[T] {
	return &masterRepository[T]{db: db, order: order, searchColumns: searchColumns, preloads: preloads}
}

func NewCollegeRepository(db *gorm.DB) MasterRepository[model.College] {
	return newMasterRepository[model.College](db, "name asc", []string{"name", "code"})
}

func NewDepartmentRepository(db *gorm.DB) MasterRepository[model.Department] {
	return newMasterRepository[model.Department](db, "name asc", []string{"name", "code"}, "College")
}

func NewLocationRepository(db *gorm.DB) MasterRepository[model.Location] {
	return newMasterRepository[model.Location](db, "name asc", []string{"name", "building", "room"}, "College", "Department")
}

func NewCategoryRepository(db *gorm.DB) MasterRepository[model.Category] {
	return newMasterRepository[model.Category](db, "name asc", []string{"name"})
}

func NewVendorRepository(db *gorm.DB) MasterRepository[model.Vendor] {
	return newMasterRepository[model.Vendor](db, "name asc", []string{"name", "contact_person", "email", "phone", "gstin"})
}

func (r *masterRepository[T]) Create(ctx context.Context, record *T) error {
	return GetDB(ctx, r.db).Omit(r.preloads...).Create(record).Error
}

func (r *masterRepository[T]) Update(ctx context.Context, record *T) error {
	return GetDB(ctx, r.db).Omit(r.preloads...).Save(record).Error
}

func (r *masterRepository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *masterRepository[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	var record T
	q := GetDB(ctx, r.db)
	for _, p := range r.preloads {
		q = q.Preload(p)
	}
	if err := q.First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *masterRepository[T]) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	if err := GetDB(ctx, r.db).Model(new(T)).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *masterRepository[T]) List(ctx context.Context, filter MasterFilter) ([]T, int64, error) {
	var records []T
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		for col, v := range filter.Equals {
			q = q.Where(col+" = ?", v)
		}
		if filter.Search != "" && len(r.searchColumns) > 0 {
			like := "%" + filter.Search + "%"
			cond := db.Where("LOWER("+r.searchColumns[0]+") LIKE LOWER(?)", like)
			for _, col := range r.searchColumns[1:] {
				cond = cond.Or("LOWER("+col+") LIKE LOWER(?)", like)
			}
			q = q.Where(cond)
		}
		return q
	}

	if err := db.Model(new(T)).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	fetch := db.Scopes(scope)
	for _, p := range r.preloads {
		fetch = fetch.Preload(p)
	}
	if err := fetch.Order(r.order).
		Scopes(pagination.Scope(filter.Page, filter.Limit)).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
