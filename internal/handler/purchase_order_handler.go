package handler

import (
	"net/http"

	"ims/internal/middleware"
	"ims/internal/service"
	"ims/pkg/pagination"
	"ims/pkg/response"

	"github.com/gin-gonic/gin"
)

type PurchaseOrderHandler struct {
	orderService service.PurchaseOrderService
}

func NewPurchaseOrderHandler(orderService service.PurchaseOrderService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{orderService: orderService}
}

func (h *PurchaseOrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/purchase-orders")
	{
		orders.GET("", middleware.RequirePermission("orders.read"), h.ListOrders)
		orders.POST("", middleware.RequirePermission("orders.write"), h.CreateOrder)
		orders.GET("/:id", middleware.RequirePermission("orders.read"), h.GetOrder)
		orders.PUT("/:id", middleware.RequirePermission("orders.write"), h.UpdateOrder)
		orders.DELETE("/:id", middleware.RequirePermission("orders.write"), h.DeleteOrder)
	}
}

// ListOrders returns purchase orders
// @Summary      List purchase orders
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        order_status         query     string  false  "Pending, Placed, Received or Cancelled"
// @Param        payment_status       query     string  false  "Unpaid, Partial or Paid"
// @Param        vendor_id            query     string  false  "Vendor ID"
// @Param        purchase_request_id  query     string  false  "Purchase request ID"
// @Param        search               query     string  false  "Order number"
// @Param        page                 query     int     false  "Page number (default 1)"
// @Param        limit                query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]service.PurchaseOrderResponse}
// @Failure      400    {object}  response.Response
// @Router       /purchase-orders [get]
func (h *PurchaseOrderHandler) ListOrders(c *gin.Context) {
	p := pagination.Parse(c)

	orders, total, err := h.orderService.List(c.Request.Context(), service.PurchaseOrderFilter{
		OrderStatus:       c.Query("order_status"),
		PaymentStatus:     c.Query("payment_status"),
		VendorID:          c.Query("vendor_id"),
		PurchaseRequestID: c.Query("purchase_request_id"),
		Search:            c.Query("search"),
		Page:              p.Page,
		Limit:             p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, orders, p.Page, p.Limit, total))
}

// CreateOrder raises a purchase order against an approved request
// @Summary      Create purchase order
// @Description  The referenced purchase request must be Approved or Partially Approved; rejected items cannot be ordered. Omitted items default to the remaining approved quantities.
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePurchaseOrderDTO  true  "Purchase order"
// @Success      201      {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      400      {object}  response.Response
// @Router       /purchase-orders [post]
func (h *PurchaseOrderHandler) CreateOrder(c *gin.Context) {
	var req service.CreatePurchaseOrderDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.orderService.Create(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, order))
}

// GetOrder returns one order with its items
// @Summary      Get purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase order ID"
// @Success      200  {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      404  {object}  response.Response
// @Router       /purchase-orders/{id} [get]
func (h *PurchaseOrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// UpdateOrder changes order status, payment status, delivery date or note
// @Summary      Update purchase order
// @Description  Order status moves Pending to Placed to Received, or to Cancelled before receipt. Pending to Received directly is refused.
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Purchase order ID"
// @Param        payload  body      service.UpdatePurchaseOrderDTO  true  "Changes"
// @Success      200      {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /purchase-orders/{id} [put]
func (h *PurchaseOrderHandler) UpdateOrder(c *gin.Context) {
	var req service.UpdatePurchaseOrderDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.orderService.Update(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// DeleteOrder removes a Pending or Cancelled order that has no stock
// @Summary      Delete purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase order ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /purchase-orders/{id} [delete]
func (h *PurchaseOrderHandler) DeleteOrder(c *gin.Context) {
	if err := h.orderService.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Message(http.StatusOK, "Purchase order deleted successfully"))
}
