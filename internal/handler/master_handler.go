package handler

import (
	"context"
	"net/http"

	"ims/internal/middleware"
	"ims/internal/model"
	"ims/internal/service"
	"ims/pkg/pagination"
	"ims/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MasterHandler serves the reference data: colleges, departments, locations,
// categories and vendors.
type MasterHandler struct {
	organization service.OrganizationService
	catalog      service.CatalogService
}

func NewMasterHandler(organization service.OrganizationService, catalog service.CatalogService) *MasterHandler {
	return &MasterHandler{organization: organization, catalog: catalog}
}

func (h *MasterHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := middleware.RequirePermission("masters.read")
	write := middleware.RequirePermission("masters.write")

	colleges := router.Group("/colleges")
	{
		colleges.GET("", read, h.ListColleges)
		colleges.GET("/:id", read, h.GetCollege)
		colleges.POST("", write, h.CreateCollege)
		colleges.PUT("/:id", write, h.UpdateCollege)
		colleges.DELETE("/:id", write, h.DeleteCollege)
	}

	departments := router.Group("/departments")
	{
		departments.GET("", read, h.ListDepartments)
		departments.GET("/:id", read, h.GetDepartment)
		departments.POST("", write, h.CreateDepartment)
		departments.PUT("/:id", write, h.UpdateDepartment)
		departments.DELETE("/:id", write, h.DeleteDepartment)
	}

	locations := router.Group("/locations")
	{
		locations.GET("", read, h.ListLocations)
		locations.GET("/:id", read, h.GetLocation)
		locations.POST("", write, h.CreateLocation)
		locations.PUT("/:id", write, h.UpdateLocation)
		locations.DELETE("/:id", write, h.DeleteLocation)
	}

	categories := router.Group("/categories")
	{
		categories.GET("", read, h.ListCategories)
		categories.GET("/:id", read, h.GetCategory)
		categories.POST("", write, h.CreateCategory)
		categories.PUT("/:id", write, h.UpdateCategory)
		categories.DELETE("/:id", write, h.DeleteCategory)
	}

	vendors := router.Group("/vendors")
	{
		vendors.GET("", read, h.ListVendors)
		vendors.GET("/:id", read, h.GetVendor)
		vendors.POST("", write, h.CreateVendor)
		vendors.PUT("/:id", write, h.UpdateVendor)
		vendors.DELETE("/:id", write, h.DeleteVendor)
	}
}

// --- shared plumbing ---

func listQuery(c *gin.Context, p pagination.Params) service.ListQuery {
	return service.ListQuery{
		Search:       c.Query("search"),
		CollegeID:    c.Query("college_id"),
		DepartmentID: c.Query("department_id"),
		Page:         p.Page,
		Limit:        p.Limit,
	}
}

func listMaster[T any](c *gin.Context, list func(ctx context.Context, q service.ListQuery) ([]T, int64, error)) {
	p := pagination.Parse(c)
	rows, total, err := list(c.Request.Context(), listQuery(c, p))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, rows, p.Page, p.Limit, total))
}

func getMaster[T any](c *gin.Context, get func(ctx context.Context, id string) (*T, error)) {
	row, err := get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, row))
}

func createMaster[R, T any](c *gin.Context, create func(ctx context.Context, actorID *uuid.UUID, req R) (*T, error)) {
	var req R
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	row, err := create(c.Request.Context(), middleware.CurrentUserUUID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, row))
}

func updateMaster[R, T any](c *gin.Context, update func(ctx context.Context, actorID *uuid.UUID, id string, req R) (*T, error)) {
	var req R
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	row, err := update(c.Request.Context(), middleware.CurrentUserUUID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, row))
}

func deleteMaster(c *gin.Context, kind string, del func(ctx context.Context, actorID *uuid.UUID, id string) error) {
	if err := del(c.Request.Context(), middleware.CurrentUserUUID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Message(http.StatusOK, kind+" deleted successfully"))
}

// --- colleges ---

// ListColleges returns colleges matching an optional name or code search
// @Summary      List colleges
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Name or code"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]model.College}
// @Router       /colleges [get]
func (h *MasterHandler) ListColleges(c *gin.Context) {
	listMaster(c, h.organization.ListColleges)
}

// GetCollege returns a single college
// @Summary      Get college
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "College ID"
// @Success      200  {object}  response.Response{data=model.College}
// @Failure      404  {object}  response.Response
// @Router       /colleges/{id} [get]
func (h *MasterHandler) GetCollege(c *gin.Context) {
	getMaster(c, h.organization.GetCollege)
}

// CreateCollege registers a new member college
// @Summary      Create college
// @Tags         masters
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CollegeRequest  true  "College"
// @Success      201      {object}  response.Response{data=model.College}
// @Failure      400      {object}  response.Response
// @Router       /colleges [post]
func (h *MasterHandler) CreateCollege(c *gin.Context) {
	createMaster(c, h.organization.CreateCollege)
}

// UpdateCollege replaces the editable fields of a college
// @Summary      Update college
// @Tags         masters
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "College ID"
// @Param        payload  body      service.CollegeRequest  true  "College"
// @Success      200      {object}  response.Response{data=model.College}
// @Failure      400      {object}  response.Response
// @Router       /colleges/{id} [put]
func (h *MasterHandler) UpdateCollege(c *gin.Context) {
	updateMaster(c, h.organization.UpdateCollege)
}

// DeleteCollege removes a college without departments
// @Summary      Delete college
// @Description  Refused while departments still belong to the college
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "College ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /colleges/{id} [delete]
func (h *MasterHandler) DeleteCollege(c *gin.Context) {
	deleteMaster(c, "College", h.organization.DeleteCollege)
}

// --- departments ---

// ListDepartments returns departments, optionally of one college
// @Summary      List departments
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        college_id  query     string  false  "College ID"
// @Param        search      query     string  false  "Name or code"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200         {object}  response.Response{data=[]model.Department}
// @Router       /departments [get]
func (h *MasterHandler) ListDepartments(c *gin.Context) {
	listMaster(c, h.organization.ListDepartments)
}

// GetDepartment returns a single department
// @Summary      Get department
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Department ID"
// @Success      200  {object}  response.Response{data=model.Department}
// @Failure      404  {object}  response.Response
// @Router       /departments/{id} [get]
func (h *MasterHandler) GetDepartment(c *gin.Context) {
	getMaster(c, h.organization.GetDepartment)
}

// CreateDepartment adds a department to an existing college
// @Summary      Create department
// @Tags         masters
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.DepartmentRequest  true  "Department"
// @Success      201      {object}  response.Response{data=model.Department}
// @Failure      400      {object}  response.Response
// @Router       /departments [post]
func (h *MasterHandler) CreateDepartment(c *gin.Context) {
	createMaster(c, h.organization.CreateDepartment)
}

// UpdateDepartment renames or moves a department
// @Summary      Update department
// @Tags         masters
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Department ID"
// @Param        payload  body      service.DepartmentRequest  true  "Department"
// @Success      200      {object}  response.Response{data=model.Department}
// @Failure      400      {object}  response.Response
// @Router       /departments/{id} [put]
func (h *MasterHandler) UpdateDepartment(c *gin.Context) {
	updateMaster(c, h.organization.UpdateDepartment)
}

// DeleteDepartment removes a department
// @Summary      Delete department
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Department ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /departments/{id} [delete]
func (h *MasterHandler) DeleteDepartment(c *gin.Context) {
	deleteMaster(c, "Department", h.organization.DeleteDepartment)
}

// --- locations ---

// ListLocations returns stock locations filtered by college or department
// @Summary      List locations
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        college_id     query     string  false  "College ID"
// @Param        department_id  query     string  false  "Department ID"
// @Param        search         query     string  false  "Name"
// @Param        page           query     int     false  "Page number (default 1)"
// @Param        limit          query     int     false  "Number of items per page (default 20)"
// @Success      200            {object}  response.Response{data=[]model.Location}
// @Router       /locations [get]
func (h *MasterHandler) ListLocations(c *gin.Context) {
	listMaster(c, h.organization.ListLocations)
}

// GetLocation returns a single location
// @Summary      Get location
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Location ID"
// @Success      200  {object}  response.Response{data=model.Location}
// @Failure      404  {object}  response.Response
// @Router       /locations/{id} [get]
func (h *MasterHandler) GetLocation(c *gin.Context) {
	getMaster(c, h.organization.GetLocation)
}

// CreateLocation adds a place stock can be kept
// @Summary      Create location
// @Tags         masters
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LocationRequest  true  "Location"
// @Success      201      {object}  response.Response{data=model.Location}
// @Failure      400      {object}  response.Response
// @Router       /locations [post]
func (h *MasterHandler) CreateLocation(c *gin.Context) {
	createMaster(c, h.organization.CreateLocation)
}

// UpdateLocation updates a location
// @Summary      Update location
// @Tags         masters
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Location ID"
// @Param        payload  body      service.LocationRequest  true  "Location"
// @Success      200      {object}  response.Response{data=model.Location}
// @Failure      400      {object}  response.Response
// @Router       /locations/{id} [put]
func (h *MasterHandler) UpdateLocation(c *gin.Context) {
	updateMaster(c, h.organization.UpdateLocation)
}

// DeleteLocation removes a location
// @Summary      Delete location
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Location ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /locations/{id} [delete]
func (h *MasterHandler) DeleteLocation(c *gin.Context) {
	deleteMaster(c, "Location", h.organization.DeleteLocation)
}

// --- categories ---

// ListCategories returns item categories
// @Summary      List categories
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Name"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]model.Category}
// @Router       /categories [get]
func (h *MasterHandler) ListCategories(c *gin.Context) {
	listMaster(c, h.catalog.ListCategories)
}

// GetCategory returns a single category
// @Summary      Get category
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Category ID"
// @Success      200  {object}  response.Response{data=model.Category}
// @Failure      404  {object}  response.Response
// @Router       /categories/{id} [get]
func (h *MasterHandler) GetCategory(c *gin.Context) {
	getMaster(c, h.catalog.GetCategory)
}

// CreateCategory adds an item category
// @Summary      Create category
// @Tags         masters
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CategoryRequest  true  "Category"
// @Success      201      {object}  response.Response{data=model.Category}
// @Failure      400      {object}  response.Response
// @Router       /categories [post]
func (h *MasterHandler) CreateCategory(c *gin.Context) {
	createMaster(c, h.catalog.CreateCategory)
}

// UpdateCategory updates a category
// @Summary      Update category
// @Tags         masters
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Category ID"
// @Param        payload  body      service.CategoryRequest  true  "Category"
// @Success      200      {object}  response.Response{data=model.Category}
// @Failure      400      {object}  response.Response
// @Router       /categories/{id} [put]
func (h *MasterHandler) UpdateCategory(c *gin.Context) {
	updateMaster(c, h.catalog.UpdateCategory)
}

// DeleteCategory removes a category
// @Summary      Delete category
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Category ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /categories/{id} [delete]
func (h *MasterHandler) DeleteCategory(c *gin.Context) {
	deleteMaster(c, "Category", h.catalog.DeleteCategory)
}

// --- vendors ---

// ListVendors lists vendors; active=true hides deactivated ones
// ListVendors returns vendors, optionally only active ones
// @Summary      List vendors
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        active  query     bool    false  "Only active vendors"
// @Param        search  query     string  false  "Name"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]model.Vendor}
// @Router       /vendors [get]
func (h *MasterHandler) ListVendors(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	listMaster(c, func(ctx context.Context, q service.ListQuery) ([]model.Vendor, int64, error) {
		return h.catalog.ListVendors(ctx, q, activeOnly)
	})
}

// GetVendor returns a single vendor
// @Summary      Get vendor
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Vendor ID"
// @Success      200  {object}  response.Response{data=model.Vendor}
// @Failure      404  {object}  response.Response
// @Router       /vendors/{id} [get]
func (h *MasterHandler) GetVendor(c *gin.Context) {
	getMaster(c, h.catalog.GetVendor)
}

// CreateVendor registers a supplier
// @Summary      Create vendor
// @Tags         masters
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.VendorRequest  true  "Vendor"
// @Success      201      {object}  response.Response{data=model.Vendor}
// @Failure      400      {object}  response.Response
// @Router       /vendors [post]
func (h *MasterHandler) CreateVendor(c *gin.Context) {
	createMaster(c, h.catalog.CreateVendor)
}

// UpdateVendor updates vendor details and the active flag
// @Summary      Update vendor
// @Tags         masters
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Vendor ID"
// @Param        payload  body      service.VendorRequest  true  "Vendor"
// @Success      200      {object}  response.Response{data=model.Vendor}
// @Failure      400      {object}  response.Response
// @Router       /vendors/{id} [put]
func (h *MasterHandler) UpdateVendor(c *gin.Context) {
	updateMaster(c, h.catalog.UpdateVendor)
}

// DeleteVendor removes a vendor
// @Summary      Delete vendor
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Vendor ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /vendors/{id} [delete]
func (h *MasterHandler) DeleteVendor(c *gin.Context) {
	deleteMaster(c, "Vendor", h.catalog.DeleteVendor)
}
