package handler

import (
	"net/http"

	"ims/internal/middleware"
	"ims/internal/service"
	"ims/pkg/pagination"
	"ims/pkg/response"

	"github.com/gin-gonic/gin"
)

type PurchaseRequestHandler struct {
	requestService service.PurchaseRequestService
}

func NewPurchaseRequestHandler(requestService service.PurchaseRequestService) *PurchaseRequestHandler {
	return &PurchaseRequestHandler{requestService: requestService}
}

func (h *PurchaseRequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/purchase-requests")
	{
		requests.GET("", middleware.RequirePermission("requests.read"), h.ListRequests)
		requests.POST("", middleware.RequirePermission("requests.write"), h.CreateRequest)
		requests.GET("/:id", middleware.RequirePermission("requests.read"), h.GetRequest)
		requests.DELETE("/:id", middleware.RequirePermission("requests.write"), h.DeleteRequest)
		requests.POST("/:id/decision", middleware.RequirePermission("requests.approve"), h.DecideRequest)
	}
}

// ListRequests returns purchase requests, optionally filtered
// @Summary      List purchase requests
// @Description  Paginated purchase requests. mine=true narrows to the caller's own requests, awaiting=<role> to requests waiting on that approver role.
// @Tags         purchase-requests
// @Security     BearerAuth
// @Produce      json
// @Param        approval_status  query     string  false  "Pending, Approved, Rejected or Partially Approved"
// @Param        department_id    query     string  false  "Department ID"
// @Param        requester_id     query     string  false  "Requester user ID"
// @Param        mine             query     bool    false  "Only the caller's requests"
// @Param        awaiting         query     string  false  "Approver role of the current stage"
// @Param        search           query     string  false  "Request number or title"
// @Param        page             query     int     false  "Page number (default 1)"
// @Param        limit            query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]service.PurchaseRequestResponse}
// @Failure      400    {object}  response.Response
// @Router       /purchase-requests [get]
func (h *PurchaseRequestHandler) ListRequests(c *gin.Context) {
	p := pagination.Parse(c)

	filter := service.PurchaseRequestFilter{
		Status:       c.Query("approval_status"),
		DepartmentID: c.Query("department_id"),
		RequesterID:  c.Query("requester_id"),
		AwaitingRole: c.Query("awaiting"),
		Search:       c.Query("search"),
		Page:         p.Page,
		Limit:        p.Limit,
	}
	if c.Query("mine") == "true" {
		filter.RequesterID = middleware.CurrentUserID(c)
	}

	requests, total, err := h.requestService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, requests, p.Page, p.Limit, total))
}

// CreateRequest raises a new purchase request for the caller
// @Summary      Create purchase request
// @Description  Creates a Pending request with its items and approval stages. The total estimated cost is computed from the items.
// @Tags         purchase-requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePurchaseRequestDTO  true  "Purchase request"
// @Success      201      {object}  response.Response{data=service.PurchaseRequestResponse}
// @Failure      400      {object}  response.Response
// @Router       /purchase-requests [post]
func (h *PurchaseRequestHandler) CreateRequest(c *gin.Context) {
	var req service.CreatePurchaseRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.requestService.Create(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// GetRequest returns one request with items and stages
// @Summary      Get purchase request
// @Tags         purchase-requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase request ID"
// @Success      200  {object}  response.Response{data=service.PurchaseRequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /purchase-requests/{id} [get]
func (h *PurchaseRequestHandler) GetRequest(c *gin.Context) {
	result, err := h.requestService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// DeleteRequest withdraws a pending request
// @Summary      Delete purchase request
// @Description  Only Pending requests without orders, by their requester or an admin
// @Tags         purchase-requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase request ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /purchase-requests/{id} [delete]
func (h *PurchaseRequestHandler) DeleteRequest(c *gin.Context) {
	if err := h.requestService.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Message(http.StatusOK, "Purchase request deleted successfully"))
}

// DecideRequest approves or rejects the current approval stage
// @Summary      Decide purchase request stage
// @Description  The caller must hold the role of the current stage and belong to the request's department or college. Rejections require a comment.
// @Tags         purchase-requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Purchase request ID"
// @Param        payload  body      service.DecisionDTO  true  "Decision"
// @Success      200      {object}  response.Response{data=service.PurchaseRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /purchase-requests/{id}/decision [post]
func (h *PurchaseRequestHandler) DecideRequest(c *gin.Context) {
	var req service.DecisionDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.requestService.Decide(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
