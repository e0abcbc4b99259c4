package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/procurematch/internal/adapter/importer"
	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/core/service"
)

const defaultComplianceRows = 12

type HTTPHandler struct {
	store    *service.Store
	currency string
	log      logrus.FieldLogger
}

type LoginRequest struct {
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

type CreateRequisitionRequest struct {
	domain.RequisitionHeader
	Items []domain.ItemInput `json:"items"`
}

type CreatedResponse struct {
	ID string `json:"id"`
}

type StatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

type PlanResponse struct {
	domain.AllocationPlan
	TotalCostDisplay string `json:"totalCostDisplay"`
}

type AcceptResponse struct {
	Plan   PlanResponse   `json:"plan"`
	Orders []domain.Order `json:"orders"`
}

type ImportResponse struct {
	service.BulkResult
	Skipped int `json:"skipped"`
}

type ErrorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

func NewHTTPHandler(store *service.Store, currency string, log logrus.FieldLogger) *HTTPHandler {
	return &HTTPHandler{store: store, currency: currency, log: log.WithField("module", "http")}
}

// Router mounts the API. metrics and events are optional.
func (h *HTTPHandler) Router(metrics, events http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", h.HealthCheck)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	if events != nil {
		r.GET("/ws/orders", gin.WrapH(events))
	}

	api := r.Group("/api")
	api.POST("/session", h.Login)
	api.GET("/session", h.CurrentUser)
	api.DELETE("/session", h.Logout)

	api.POST("/requisitions", h.CreateRequisition)
	api.GET("/requisitions", h.ListRequisitions)
	api.GET("/requisitions/open-items", h.OpenItems)
	api.GET("/requisitions/:id", h.GetRequisition)
	api.GET("/requisitions/:id/items/:itemId/plan", h.Plan)
	api.POST("/requisitions/:id/items/:itemId/accept", h.Accept)

	api.GET("/inventory", h.ListInventory)
	api.POST("/inventory", h.AddInventory)
	api.POST("/inventory/import", h.ImportInventory)
	api.PATCH("/inventory/:id", h.UpdateInventory)
	api.DELETE("/inventory/:id", h.DeleteInventory)

	api.GET("/orders", h.ListOrders)
	api.PATCH("/orders/:id/status", h.UpdateOrderStatus)

	api.GET("/suppliers/:name/summary", h.SupplierSummary)
	api.GET("/compliance", h.Compliance)
	return r
}

func (h *HTTPHandler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		h.log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("request handled")
	}
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.store.Login(c.Request.Context(), req.Name, req.Role)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *HTTPHandler) CurrentUser(c *gin.Context) {
	user := h.store.CurrentUser()
	if user == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no active session"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *HTTPHandler) Logout(c *gin.Context) {
	if err := h.store.Logout(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) CreateRequisition(c *gin.Context) {
	var req CreateRequisitionRequest
	if !h.bind(c, &req) {
		return
	}
	id, err := h.store.CreateRequisition(req.RequisitionHeader, req.Items)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreatedResponse{ID: id})
}

func (h *HTTPHandler) ListRequisitions(c *gin.Context) {
	c.JSON(http.StatusOK, nonNil(h.store.Requisitions()))
}

func (h *HTTPHandler) GetRequisition(c *gin.Context) {
	req, err := h.store.Requisition(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *HTTPHandler) OpenItems(c *gin.Context) {
	c.JSON(http.StatusOK, nonNil(h.store.OpenItems()))
}

func (h *HTTPHandler) Plan(c *gin.Context) {
	plan, err := h.store.PlanFor(c.Param("id"), c.Param("itemId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.planResponse(plan))
}

// Accept plans against the current inventory and commits that plan in one step.
func (h *HTTPHandler) Accept(c *gin.Context) {
	plan, orders, err := h.store.AcceptItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, AcceptResponse{Plan: h.planResponse(plan), Orders: orders})
}

func (h *HTTPHandler) planResponse(plan domain.AllocationPlan) PlanResponse {
	return newPlanResponse(h.currency, plan)
}

func newPlanResponse(currency string, plan domain.AllocationPlan) PlanResponse {
	return PlanResponse{
		AllocationPlan:   plan,
		TotalCostDisplay: domain.FormatMoney(currency, plan.TotalCost),
	}
}

func (h *HTTPHandler) ListInventory(c *gin.Context) {
	if supplier := c.Query("supplier"); supplier != "" {
		c.JSON(http.StatusOK, nonNil(h.store.InventoryBySupplier(supplier)))
		return
	}
	c.JSON(http.StatusOK, nonNil(h.store.Inventory()))
}

func (h *HTTPHandler) AddInventory(c *gin.Context) {
	var in domain.InventoryInput
	if !h.bind(c, &in) {
		return
	}
	if in.SupplierName == "" {
		in.SupplierName = h.sessionSupplier()
	}
	id, err := h.store.AddInventoryItem(in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreatedResponse{ID: id})
}

// ImportInventory takes a multipart "file" (CSV or XLSX). Rows are credited to
// the "supplier" form value, or to the signed-in user.
func (h *HTTPHandler) ImportInventory(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required"})
		return
	}
	f, err := header.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer f.Close()

	supplier := c.PostForm("supplier")
	if supplier == "" {
		supplier = h.sessionSupplier()
	}

	parsed, err := importer.Parse(header.Filename, f, supplier)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	result := h.store.AddInventoryBulk(parsed.Rows)
	c.JSON(http.StatusOK, ImportResponse{BulkResult: result, Skipped: parsed.Skipped})
}

func (h *HTTPHandler) sessionSupplier() string {
	if user := h.store.CurrentUser(); user != nil {
		return user.Name
	}
	return ""
}

func (h *HTTPHandler) UpdateInventory(c *gin.Context) {
	var patch domain.InventoryPatch
	if !h.bind(c, &patch) {
		return
	}
	row, err := h.store.UpdateInventoryItem(c.Param("id"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *HTTPHandler) DeleteInventory(c *gin.Context) {
	if !h.store.DeleteInventoryItem(c.Param("id")) {
		h.writeError(c, domain.NotFound("inventory row", c.Param("id")))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ListOrders(c *gin.Context) {
	if supplier := c.Query("supplier"); supplier != "" {
		c.JSON(http.StatusOK, nonNil(h.store.OrdersBySupplier(supplier)))
		return
	}
	c.JSON(http.StatusOK, nonNil(h.store.Orders()))
}

func (h *HTTPHandler) UpdateOrderStatus(c *gin.Context) {
	var req StatusRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.store.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *HTTPHandler) SupplierSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.SupplierSummary(c.Param("name")))
}

func (h *HTTPHandler) Compliance(c *gin.Context) {
	limit := defaultComplianceRows
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a number"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, h.store.ComplianceLog(limit))
}

func (h *HTTPHandler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Fields: verr.Fields})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		h.log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
