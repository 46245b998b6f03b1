package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// College is a member institution
type College struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string         `gorm:"type:varchar(30);not null;uniqueIndex:idx_colleges_code,where:deleted_at IS NULL" json:"code"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Address     string         `gorm:"type:text" json:"address"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	Departments []Department   `gorm:"foreignKey:CollegeID" json:"departments,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Department belongs to a college and is headed by an HOD
type Department struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CollegeID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_department_college_code,where:deleted_at IS NULL" json:"college_id"`
	College   *College       `gorm:"foreignKey:CollegeID" json:"college,omitempty"`
	Code      string         `gorm:"type:varchar(30);not null;uniqueIndex:idx_department_college_code,where:deleted_at IS NULL" json:"code"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Location is a physical place stock can be kept (lab, store room, office)
type Location struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CollegeID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"college_id"`
	College      *College       `gorm:"foreignKey:CollegeID" json:"college,omitempty"`
	DepartmentID *uuid.UUID     `gorm:"type:uuid;index" json:"department_id"`
	Department   *Department    `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	Building     string         `gorm:"type:varchar(255)" json:"building"`
	Room         string         `gorm:"type:varchar(50)" json:"room"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
