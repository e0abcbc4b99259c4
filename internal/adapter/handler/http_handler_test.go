package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/core/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type apiClient struct {
	t      *testing.T
	store  *service.Store
	router http.Handler
}

func newAPI(t *testing.T) *apiClient {
	store := service.NewStore()
	h := NewHTTPHandler(store, "₱", discardLogger())
	return &apiClient{t: t, store: store, router: h.Router(nil, nil)}
}

func (a *apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seed creates the Amoxicillin requisition and two supplier rows, returning
// the requisition and item ids.
func (a *apiClient) seed() (string, string) {
	a.t.Helper()
	rec := a.do("POST", "/api/requisitions", map[string]any{
		"deliveryDate":     "2025-09-01",
		"deliveryLocation": "Region I",
		"urgency":          "Critical",
		"items":            []map[string]any{{"itemName": "Amoxicillin 500mg", "brand": "Generix", "quantity": 100}},
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	reqID := decode[CreatedResponse](a.t, rec).ID

	for _, row := range []map[string]any{
		{"supplierName": "Alpha Pharma", "itemName": "Amoxicillin 500mg", "brand": "Generix", "quantity": 60, "price": 5, "deliveryRegions": "Region I, Region II"},
		{"supplierName": "Beta Meds", "itemName": "Amoxicillin 500mg", "brand": "Generix", "quantity": 50, "price": "4", "deliveryRegions": "Region I"},
	} {
		rec := a.do("POST", "/api/inventory", row)
		require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	req, err := a.store.Requisition(reqID)
	require.NoError(a.t, err)
	return reqID, req.Items[0].ID
}

func TestHealthCheck(t *testing.T) {
	api := newAPI(t)
	rec := api.do("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSessionEndpoints(t *testing.T) {
	api := newAPI(t)

	rec := api.do("GET", "/api/session", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do("POST", "/api/session", LoginRequest{Name: "Alpha Pharma", Role: domain.RoleSupplier})
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode[domain.User](t, rec)
	assert.Equal(t, "Alpha Pharma", user.Name)

	rec = api.do("GET", "/api/session", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do("POST", "/api/session", LoginRequest{Name: "Alpha", Role: "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do("DELETE", "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, api.store.CurrentUser())
}

func TestCreateRequisition_Invalid(t *testing.T) {
	api := newAPI(t)

	rec := api.do("POST", "/api/requisitions", map[string]any{
		"deliveryLocation": "Region I",
		"items":            []map[string]any{{"itemName": "Gauze", "quantity": 0}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	fields := make(map[string]bool)
	for _, f := range resp.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["deliveryDate"])
	assert.True(t, fields["items[0].brand"])
	assert.True(t, fields["items[0].quantity"])
	assert.Empty(t, api.store.Requisitions())

	rec = api.do("POST", "/api/requisitions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlanAndAccept(t *testing.T) {
	api := newAPI(t)
	reqID, itemID := api.seed()

	rec := api.do("GET", "/api/requisitions/"+reqID+"/items/"+itemID+"/plan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plan := decode[PlanResponse](t, rec)
	assert.Equal(t, domain.PlanFullyMatched, plan.Status)
	assert.Equal(t, "450", plan.TotalCost.String())
	assert.Equal(t, "₱450.00", plan.TotalCostDisplay)
	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, "Beta Meds", plan.Allocations[0].SupplierName)

	rec = api.do("POST", "/api/requisitions/"+reqID+"/items/"+itemID+"/accept", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	accepted := decode[AcceptResponse](t, rec)
	assert.Len(t, accepted.Orders, 2)

	rec = api.do("POST", "/api/requisitions/"+reqID+"/items/"+itemID+"/accept", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do("GET", "/api/orders?supplier=beta%20meds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Order](t, rec), 1)

	rec = api.do("GET", "/api/requisitions/open-items", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = api.do("GET", "/api/suppliers/Alpha%20Pharma/summary", nil)
	summary := decode[service.SupplierSummary](t, rec)
	assert.Equal(t, 10, summary.InventoryQty)
	assert.Equal(t, 50, summary.OrderQty)
}

func TestPlan_NotFound(t *testing.T) {
	api := newAPI(t)
	rec := api.do("GET", "/api/requisitions/nope/items/nope/plan", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do("GET", "/api/requisitions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccept_NoMatchIsBadRequest(t *testing.T) {
	api := newAPI(t)
	rec := api.do("POST", "/api/requisitions", map[string]any{
		"deliveryDate":     "2025-09-01",
		"deliveryLocation": "Region IX",
		"items":            []map[string]any{{"itemName": "Gauze", "brand": "Medi", "quantity": 1}},
	})
	reqID := decode[CreatedResponse](t, rec).ID
	req, _ := api.store.Requisition(reqID)

	rec = api.do("POST", "/api/requisitions/"+reqID+"/items/"+req.Items[0].ID+"/accept", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInventoryEndpoints(t *testing.T) {
	api := newAPI(t)
	api.do("POST", "/api/session", LoginRequest{Name: "Gamma Supplies", Role: domain.RoleSupplier})

	rec := api.do("POST", "/api/inventory", map[string]any{
		"itemName": "Gauze", "brand": "Medi", "quantity": 5, "price": "1.25", "deliveryRegions": "Region I",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[CreatedResponse](t, rec).ID

	rec = api.do("GET", "/api/inventory?supplier=gamma%20supplies", nil)
	rows := decode[[]domain.InventoryRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "Gamma Supplies", rows[0].SupplierName)

	rec = api.do("POST", "/api/inventory", map[string]any{"itemName": "Gauze", "quantity": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do("PATCH", "/api/inventory/"+id, map[string]any{"quantity": 9})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 9, decode[domain.InventoryRow](t, rec).Quantity)

	rec = api.do("PATCH", "/api/inventory/"+id, map[string]any{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do("PATCH", "/api/inventory/missing", map[string]any{"quantity": 3})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do("DELETE", "/api/inventory/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do("DELETE", "/api/inventory/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do("GET", "/api/inventory", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestImportInventory(t *testing.T) {
	api := newAPI(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("supplier", "Delta Health"))
	fw, err := mw.CreateFormFile("file", "stock.csv")
	require.NoError(t, err)
	io.WriteString(fw, "Item,Brand,Qty,Price,regions\nGauze,Medi,4,0.75,Region II\nGloves,,3,1,Region I\nMasks,Medi,x,1,Region I\n")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/inventory/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ImportResponse](t, rec)
	assert.Len(t, resp.IDs, 1)
	assert.Equal(t, 1, resp.Dropped)
	assert.Equal(t, 1, resp.Skipped)
	assert.Equal(t, "Delta Health", api.store.Inventory()[0].SupplierName)

	rec = api.do("POST", "/api/inventory/import", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	api := newAPI(t)
	reqID, itemID := api.seed()
	rec := api.do("POST", "/api/requisitions/"+reqID+"/items/"+itemID+"/accept", nil)
	orderID := decode[AcceptResponse](t, rec).Orders[0].ID

	rec = api.do("PATCH", "/api/orders/"+orderID+"/status", StatusRequest{Status: domain.OrderStatusInTransit})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OrderStatusInTransit, decode[domain.Order](t, rec).Status)

	rec = api.do("PATCH", "/api/orders/"+orderID+"/status", StatusRequest{Status: "Lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do("PATCH", "/api/orders/missing/status", StatusRequest{Status: domain.OrderStatusDelivered})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompliance(t *testing.T) {
	api := newAPI(t)
	api.seed()

	rec := api.do("GET", "/api/compliance?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	log := decode[service.ComplianceLog](t, rec)
	assert.Len(t, log.Inventory, 1)
	assert.Len(t, log.OpenRequisitions, 1)

	rec = api.do("GET", "/api/compliance?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterMountsMetricsAndEvents(t *testing.T) {
	store := service.NewStore()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "metrics") })
	events := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "events") })
	router := NewHTTPHandler(store, "₱", discardLogger()).Router(metrics, events)

	for path, want := range map[string]string{"/metrics": "metrics", "/ws/orders": "events"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, want, rec.Body.String())
	}
}
