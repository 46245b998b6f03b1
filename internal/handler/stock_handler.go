package handler

import (
	"fmt"
	"net/http"
	"time"

	"ims/internal/middleware"
	"ims/internal/service"
	"ims/pkg/pagination"
	"ims/pkg/response"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type StockHandler struct {
	stockService service.StockService
}

func NewStockHandler(stockService service.StockService) *StockHandler {
	return &StockHandler{stockService: stockService}
}

func (h *StockHandler) RegisterRoutes(router *gin.RouterGroup) {
	stock := router.Group("/stock-items")
	{
		stock.GET("", middleware.RequirePermission("stock.read"), h.ListStock)
		stock.POST("/bulk", middleware.RequirePermission("stock.write"), h.BulkCreate)
		stock.GET("/export", middleware.RequirePermission("stock.read"), h.ExportStock)
		stock.GET("/:id", middleware.RequirePermission("stock.read"), h.GetStockItem)
		stock.PUT("/:id", middleware.RequirePermission("stock.write"), h.UpdateStockItem)
		stock.GET("/:id/history", middleware.RequirePermission("stock.read"), h.GetHistory)
	}
}

func stockFilter(c *gin.Context, p pagination.Params) service.StockFilter {
	return service.StockFilter{
		Status:          c.Query("status"),
		CategoryID:      c.Query("category_id"),
		LocationID:      c.Query("location_id"),
		PurchaseOrderID: c.Query("purchase_order_id"),
		Search:          c.Query("search"),
		Page:            p.Page,
		Limit:           p.Limit,
	}
}

// ListStock handles retrieving paginated stock units
// @Summary      List stock items
// @Tags         stock
// @Security     BearerAuth
// @Produce      json
// @Param        status             query     string  false  "In Stock, Allocated, In Service or Trash"
// @Param        category_id        query     string  false  "Category ID"
// @Param        location_id        query     string  false  "Location ID"
// @Param        purchase_order_id  query     string  false  "Purchase order ID"
// @Param        search             query     string  false  "Asset tag or name"
// @Param        page               query     int     false  "Page number (default 1)"
// @Param        limit              query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]service.StockItemResponse}
// @Failure      400    {object}  response.Response
// @Router       /stock-items [get]
func (h *StockHandler) ListStock(c *gin.Context) {
	p := pagination.Parse(c)

	items, total, err := h.stockService.List(c.Request.Context(), stockFilter(c, p))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, items, p.Page, p.Limit, total))
}

// BulkCreate receives the units of a Received purchase order into stock
// @Summary      Bulk create stock items
// @Description  Creates one stock row per unit. The order must be Received and no line may exceed its ordered quantity. Omitted items receive all remaining units.
// @Tags         stock
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.BulkCreateStockDTO  true  "Receipt"
// @Success      201      {object}  response.Response{data=[]service.StockItemResponse}
// @Failure      400      {object}  response.Response
// @Router       /stock-items/bulk [post]
func (h *StockHandler) BulkCreate(c *gin.Context) {
	var req service.BulkCreateStockDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	items, err := h.stockService.BulkCreate(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, items))
}

// ExportStock streams the filtered stock list as an XLSX workbook
// @Summary      Export stock items
// @Tags         stock
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        status             query     string  false  "Stock status"
// @Param        category_id        query     string  false  "Category ID"
// @Param        location_id        query     string  false  "Location ID"
// @Param        purchase_order_id  query     string  false  "Purchase order ID"
// @Success      200  {file}    file
// @Failure      400  {object}  response.Response
// @Router       /stock-items/export [get]
func (h *StockHandler) ExportStock(c *gin.Context) {
	data, err := h.stockService.Export(c.Request.Context(), stockFilter(c, pagination.Params{Page: 1}))
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("stock-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// GetStockItem returns a single stock unit
// @Summary      Get stock item
// @Tags         stock
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Stock item ID"
// @Success      200  {object}  response.Response{data=service.StockItemResponse}
// @Failure      404  {object}  response.Response
// @Router       /stock-items/{id} [get]
func (h *StockHandler) GetStockItem(c *gin.Context) {
	item, err := h.stockService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// UpdateStockItem changes status, location or remarks of a unit
// @Summary      Update stock item
// @Description  Status may move between any two values of its domain. Status and location changes are recorded as movements.
// @Tags         stock
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Stock item ID"
// @Param        payload  body      service.UpdateStockItemDTO  true  "Changes"
// @Success      200      {object}  response.Response{data=service.StockItemResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /stock-items/{id} [put]
func (h *StockHandler) UpdateStockItem(c *gin.Context) {
	var req service.UpdateStockItemDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := h.stockService.Update(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// GetHistory lists the movements of a unit, oldest first
// @Summary      Stock item history
// @Tags         stock
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Stock item ID"
// @Success      200  {object}  response.Response{data=[]service.StockMovementResponse}
// @Failure      404  {object}  response.Response
// @Router       /stock-items/{id}/history [get]
func (h *StockHandler) GetHistory(c *gin.Context) {
	movements, err := h.stockService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, movements))
}
