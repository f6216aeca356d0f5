package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"yardtrack/handlers"
	"yardtrack/middleware"
	"yardtrack/models"
	"yardtrack/repository"
	"yardtrack/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const validUntil = "2099-12-31"

type fakeSlips struct{}

func (fakeSlips) Render(_ context.Context, data models.WeighbridgeSlipData) ([]byte, error) {
	return []byte("%PDF-1.4 " + data.Truck.TruckNumber), nil
}

type fakeBlob struct {
	mu   sync.Mutex
	keys []string
}

func (b *fakeBlob) Upload(_ context.Context, data []byte, key, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	return "https://files.example.com/" + key, nil
}

type api struct {
	t       *testing.T
	handler http.Handler
	blob    *fakeBlob
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newAPI(t *testing.T, withBlob bool) *api {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := repository.NewMemoryStore()
	d := services.NewDeps(store, nil, log)
	settings := services.NewSettings(d)
	approvals := services.NewApprovals(d)
	life := services.NewLifecycle(d, settings, approvals)
	jwtm := middleware.NewJWTManager("test-secret", time.Hour)

	a := &api{t: t}
	var blob handlers.BlobStore
	if withBlob {
		a.blob = &fakeBlob{}
		blob = a.blob
	}
	a.handler = New(Handlers{
		Users:       &handlers.UserHandler{Repo: repository.NewUserRepo(store), JWT: jwtm, Log: log},
		Trucks:      &handlers.TruckHandler{Life: life, Log: log},
		Processing:  &handlers.ProcessingHandler{Life: life, Blob: blob, Log: log},
		Weighbridge: &handlers.WeighbridgeHandler{Life: life, Slips: fakeSlips{}, Blob: blob, Log: log},
		Approvals:   &handlers.ApprovalHandler{Approvals: approvals, Log: log},
		Settings:    &handlers.SettingsHandler{Settings: settings, Log: log},
	}, jwtm, log)
	return a
}

func (a *api) raw(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.HeaderAuthorization, middleware.BearerPrefix+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// do calls the API, checks the status and decodes data into out.
func (a *api) do(method, path, token string, body any, wantStatus int, out any) envelope {
	a.t.Helper()
	rec := a.raw(method, path, token, body)
	require.Equal(a.t, wantStatus, rec.Code, "%s %s: %s", method, path, rec.Body.String())
	var env envelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env))
	if out != nil {
		require.NoError(a.t, json.Unmarshal(env.Data, out))
	}
	return env
}

func (a *api) login(email, password string) string {
	a.t.Helper()
	var res struct {
		AccessToken string `json:"accessToken"`
	}
	a.do(http.MethodPost, "/login", "", map[string]string{"email": email, "password": password}, http.StatusOK, &res)
	require.NotEmpty(a.t, res.AccessToken)
	return res.AccessToken
}

// bootstrap creates an admin and an operator and returns their tokens.
func (a *api) bootstrap() (adminToken, operatorToken string) {
	a.t.Helper()
	a.do(http.MethodPost, "/signup", "", map[string]string{
		"name": "Meera", "email": "meera@yard.test", "password": "pw-admin", "role": models.RoleAdmin,
	}, http.StatusCreated, nil)
	adminToken = a.login("meera@yard.test", "pw-admin")
	a.do(http.MethodPost, "/signup", adminToken, map[string]string{
		"name": "Ravi", "email": "ravi@yard.test", "password": "pw-op", "role": models.RoleOperator,
	}, http.StatusCreated, nil)
	return adminToken, a.login("ravi@yard.test", "pw-op")
}

func (a *api) insideForWeighbridge(token, number string) string {
	a.t.Helper()
	var tr models.Truck
	a.do(http.MethodPost, "/trucks", token, services.RegisterTruckInput{
		TruckNumber: number, DriverName: "Suresh", MaterialType: models.MaterialFG, AtGate: true,
	}, http.StatusCreated, &tr)
	base := "/trucks/" + tr.ID

	a.do(http.MethodPost, base+"/entry", token, services.EntryDecisionInput{
		Decision: models.EntryAllowed, Destination: models.DestinationInternalParking,
	}, http.StatusOK, nil)
	a.do(http.MethodPost, base+"/processing/start", token, nil, http.StatusOK, nil)
	a.do(http.MethodPost, base+"/processing/advance", token, map[string]any{
		"documentDates": map[string]string{"license": validUntil, "permit": validUntil, "insurance": validUntil},
	}, http.StatusOK, nil)

	checks := services.DefaultSafetyChecks()
	for i := range checks {
		checks[i].Response = models.SafetyYes
	}
	a.do(http.MethodPost, base+"/processing/advance", token, map[string]any{
		"safetyChecks": checks, "vehicleConditionChecked": true,
	}, http.StatusOK, nil)
	a.do(http.MethodPost, base+"/processing/advance", token, nil, http.StatusOK, nil)
	a.do(http.MethodPut, base+"/processing/draft", token, map[string]any{
		"nextMilestone": models.MilestoneWeighBridge, "processingCompleted": true,
	}, http.StatusOK, nil)

	a.do(http.MethodPost, base+"/processing/complete", token, nil, http.StatusOK, &tr)
	require.Equal(a.t, models.StatusInside, tr.Status)
	return tr.ID
}

func TestSignupAndLogin(t *testing.T) {
	a := newAPI(t, false)
	admin, operator := a.bootstrap()

	body := map[string]string{"name": "X", "email": "x@yard.test", "password": "pw", "role": models.RoleOperator}
	a.do(http.MethodPost, "/signup", "", body, http.StatusUnauthorized, nil)
	a.do(http.MethodPost, "/signup", operator, body, http.StatusForbidden, nil)
	a.do(http.MethodPost, "/signup", admin, map[string]string{
		"name": "Dup", "email": "RAVI@yard.test", "password": "pw", "role": models.RoleOperator,
	}, http.StatusConflict, nil)
	a.do(http.MethodPost, "/signup", admin, map[string]string{
		"name": "Bad", "email": "bad@yard.test", "password": "pw", "role": "guest",
	}, http.StatusBadRequest, nil)

	a.do(http.MethodPost, "/login", "", map[string]string{"email": "ravi@yard.test", "password": "wrong"},
		http.StatusUnauthorized, nil)
	a.do(http.MethodPost, "/login", "", map[string]string{"email": "nobody@yard.test", "password": "pw"},
		http.StatusUnauthorized, nil)

	var user models.AppUser
	a.do(http.MethodPost, "/signup", admin, body, http.StatusCreated, &user)
	assert.Empty(t, user.Password)
	assert.Equal(t, "x@yard.test", user.Email)
}

func TestRoutesRequireAuth(t *testing.T) {
	a := newAPI(t, false)
	_, operator := a.bootstrap()

	a.do(http.MethodGet, "/trucks", "", nil, http.StatusUnauthorized, nil)
	a.do(http.MethodGet, "/trucks", "not-a-token", nil, http.StatusUnauthorized, nil)

	var trucks []models.Truck
	a.do(http.MethodGet, "/trucks", operator, nil, http.StatusOK, &trucks)
	assert.Empty(t, trucks)

	a.do(http.MethodPost, "/settings/docks", operator, map[string]string{"name": "Dock A"}, http.StatusForbidden, nil)
	a.do(http.MethodPut, "/settings/weighbridge", operator, map[string]float64{"thresholdPercent": 3}, http.StatusForbidden, nil)
	a.do(http.MethodPost, "/approvals/any/decision", operator, map[string]bool{"approve": true}, http.StatusForbidden, nil)

	rec := a.raw(http.MethodOptions, "/trucks", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestErrorKindsMapToStatus(t *testing.T) {
	a := newAPI(t, false)
	_, operator := a.bootstrap()

	a.do(http.MethodGet, "/trucks/missing", operator, nil, http.StatusNotFound, nil)
	a.do(http.MethodGet, "/trucks?status=Parked", operator, nil, http.StatusBadRequest, nil)
	env := a.do(http.MethodPost, "/trucks", operator, map[string]string{"driverName": "Suresh"}, http.StatusBadRequest, nil)
	assert.False(t, env.Success)
	assert.Equal(t, "truck number is required", env.Message)

	var tr models.Truck
	a.do(http.MethodPost, "/trucks", operator, map[string]string{"truckNumber": "mh12ab1", "driverName": "Suresh"},
		http.StatusCreated, &tr)
	assert.Equal(t, "MH12AB1", tr.TruckNumber)
	assert.Equal(t, models.StatusUpcoming, tr.Status)

	a.do(http.MethodPost, "/trucks/"+tr.ID+"/exit", operator, nil, http.StatusUnprocessableEntity, nil)
	a.do(http.MethodPost, "/trucks/"+tr.ID+"/entry", operator, map[string]string{"decision": "maybe"},
		http.StatusBadRequest, nil)

	rec := a.raw(http.MethodPost, "/trucks", operator, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsEndpoints(t *testing.T) {
	a := newAPI(t, false)
	admin, operator := a.bootstrap()

	var dock models.Dock
	a.do(http.MethodPost, "/settings/docks", admin, map[string]string{"name": "Dock A"}, http.StatusCreated, &dock)
	assert.True(t, dock.IsServiceable)
	a.do(http.MethodPost, "/settings/docks", admin, map[string]string{"name": "dock a"}, http.StatusBadRequest, nil)

	var dests []string
	a.do(http.MethodGet, "/settings/destinations", operator, nil, http.StatusOK, &dests)
	assert.Equal(t, []string{"Dock A", models.DestinationInternalParking}, dests)

	a.do(http.MethodPut, "/settings/docks/"+dock.ID, admin, map[string]any{}, http.StatusBadRequest, nil)
	a.do(http.MethodPut, "/settings/docks/"+dock.ID, admin, map[string]bool{"isServiceable": false}, http.StatusOK, &dock)
	assert.False(t, dock.IsServiceable)
	a.do(http.MethodGet, "/settings/destinations", operator, nil, http.StatusOK, &dests)
	assert.Equal(t, []string{models.DestinationInternalParking}, dests)

	a.do(http.MethodDelete, "/settings/docks/"+dock.ID, admin, nil, http.StatusOK, nil)
	a.do(http.MethodDelete, "/settings/docks/"+dock.ID, admin, nil, http.StatusNotFound, nil)

	var ws models.WeighbridgeSettings
	a.do(http.MethodPut, "/settings/weighbridge", admin, map[string]float64{"thresholdPercent": 150}, http.StatusBadRequest, nil)
	a.do(http.MethodPut, "/settings/weighbridge", admin, map[string]float64{"thresholdPercent": 3}, http.StatusOK, &ws)
	a.do(http.MethodGet, "/settings/weighbridge", operator, nil, http.StatusOK, &ws)
	assert.Equal(t, 3.0, ws.ThresholdPercent)

	var inv models.SafetyEquipmentInventory
	a.do(http.MethodPut, "/settings/safety-equipment", admin, map[string]int{"wheelChokes": 4, "safetyShoes": 2}, http.StatusOK, &inv)
	a.do(http.MethodGet, "/settings/safety-equipment", operator, nil, http.StatusOK, &inv)
	assert.Equal(t, int64(4), inv.WheelChokes)

	var tat models.TATSettings
	a.do(http.MethodGet, "/settings/tat", operator, nil, http.StatusOK, &tat)
	assert.Equal(t, 120, tat.IdealMinutes[models.MaterialFG])

	var ts models.TransporterSettings
	a.do(http.MethodPut, "/settings/transporters", admin, map[string][]string{"names": {"VRL", "vrl"}}, http.StatusOK, &ts)
	assert.Equal(t, []string{"VRL"}, ts.Names)
}

func TestWeighbridgeFlowWithApproval(t *testing.T) {
	a := newAPI(t, false)
	admin, operator := a.bootstrap()
	id := a.insideForWeighbridge(operator, "MH12WB1")
	base := "/trucks/" + id

	var view struct {
		AvailableSlots []string `json:"availableSlots"`
		Complete       bool     `json:"complete"`
		Summary        struct {
			Average          int64   `json:"averageWeight"`
			PercentageDiff   float64 `json:"percentageDiff"`
			ExceedsThreshold bool    `json:"exceedsThreshold"`
		} `json:"summary"`
	}
	a.do(http.MethodGet, base+"/weighbridge", operator, nil, http.StatusOK, &view)
	assert.Equal(t, []string{"1", "2", "3", "4"}, view.AvailableSlots)

	a.do(http.MethodGet, base+"/weighbridge/slip", operator, nil, http.StatusUnprocessableEntity, nil)

	a.do(http.MethodPost, base+"/weighbridge/weights", operator, services.RecordWeightInput{
		WeightNumber: "1", Weight: 10000, MaterialType: models.MaterialFG,
	}, http.StatusCreated, nil)
	a.do(http.MethodPost, base+"/weighbridge/weights", operator, services.RecordWeightInput{
		WeightNumber: "1", Weight: 10100, MaterialType: models.MaterialFG,
	}, http.StatusConflict, nil)
	a.do(http.MethodPost, base+"/weighbridge/weights", operator, services.RecordWeightInput{
		WeightNumber: "2", Weight: 12000, MaterialType: models.MaterialFG,
	}, http.StatusCreated, nil)

	a.do(http.MethodGet, base+"/weighbridge?invoiceWeight=x", operator, nil, http.StatusBadRequest, nil)
	a.do(http.MethodGet, base+"/weighbridge?invoiceWeight=10000", operator, nil, http.StatusOK, &view)
	assert.Equal(t, []string{"3", "4"}, view.AvailableSlots)
	assert.Equal(t, int64(11000), view.Summary.Average)
	assert.Equal(t, 10.0, view.Summary.PercentageDiff)
	assert.True(t, view.Summary.ExceedsThreshold)

	complete := services.CompleteWeighbridgeInput{InvoiceNumber: "INV-1", InvoiceWeight: 10000}
	a.do(http.MethodPost, base+"/weighbridge/complete", operator, complete, http.StatusBadRequest, nil)

	complete.Reason = "moisture in load"
	var out services.WeighbridgeOutcome
	a.do(http.MethodPost, base+"/weighbridge/complete", operator, complete, http.StatusAccepted, &out)
	assert.False(t, out.Complete)
	require.NotNil(t, out.Request)

	var pending []models.ApprovalRequest
	a.do(http.MethodGet, "/approvals?status=pending", operator, nil, http.StatusOK, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, models.ApprovalWeightDiscrepancy, pending[0].RequestType)

	var res services.DecisionResult
	a.do(http.MethodPost, "/approvals/"+out.Request.ID+"/decision", admin, services.Decision{Approve: true, Notes: "ok"},
		http.StatusOK, &res)
	assert.True(t, res.Applied)
	a.do(http.MethodPost, "/approvals/"+out.Request.ID+"/decision", admin, services.Decision{Approve: false},
		http.StatusConflict, nil)

	var got models.ApprovalRequest
	a.do(http.MethodGet, "/approvals/"+out.Request.ID, operator, nil, http.StatusOK, &got)
	assert.Equal(t, models.ApprovalApproved, got.Status)

	a.do(http.MethodGet, base+"/weighbridge", operator, nil, http.StatusOK, &view)
	assert.True(t, view.Complete)

	rec := a.raw(http.MethodGet, base+"/weighbridge/slip", operator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 MH12WB1", rec.Body.String())

	var tr models.Truck
	a.do(http.MethodPost, base+"/exit", operator, nil, http.StatusOK, &tr)
	assert.Equal(t, models.StatusExited, tr.Status)

	var exited []models.Truck
	a.do(http.MethodGet, "/trucks?status=Exited", operator, nil, http.StatusOK, &exited)
	require.Len(t, exited, 1)
	assert.Equal(t, id, exited[0].ID)

	var tat services.TATReport
	a.do(http.MethodGet, base+"/tat", operator, nil, http.StatusOK, &tat)
	assert.False(t, tat.Running)
}

func TestSlipStoredWhenBlobConfigured(t *testing.T) {
	a := newAPI(t, true)
	_, operator := a.bootstrap()
	id := a.insideForWeighbridge(operator, "MH12WB2")
	base := "/trucks/" + id

	a.do(http.MethodPost, base+"/weighbridge/weights", operator, services.RecordWeightInput{
		WeightNumber: "1", Weight: 9000, MaterialType: models.MaterialFG,
	}, http.StatusCreated, nil)

	var slip map[string]string
	a.do(http.MethodGet, base+"/weighbridge/slip", operator, nil, http.StatusOK, &slip)
	require.Len(t, a.blob.keys, 1)
	assert.Equal(t, "https://files.example.com/"+a.blob.keys[0], slip["url"])

	var tr models.Truck
	a.do(http.MethodGet, base, operator, nil, http.StatusOK, &tr)
	require.NotNil(t, tr.WeightData)
	assert.Equal(t, slip["url"], tr.WeightData.SlipURL)
}

func TestUploadByReference(t *testing.T) {
	a := newAPI(t, false)
	_, operator := a.bootstrap()

	var tr models.Truck
	a.do(http.MethodPost, "/trucks", operator, services.RegisterTruckInput{
		TruckNumber: "MH12UP1", DriverName: "Suresh", AtGate: true,
	}, http.StatusCreated, &tr)
	base := "/trucks/" + tr.ID
	a.do(http.MethodPost, base+"/entry", operator, services.EntryDecisionInput{
		Decision: models.EntryAllowed, Destination: models.DestinationInternalParking,
	}, http.StatusOK, nil)
	a.do(http.MethodPost, base+"/processing/start", operator, nil, http.StatusOK, nil)

	a.do(http.MethodPost, base+"/processing/uploads", operator, map[string]string{"name": "invoice"},
		http.StatusBadRequest, nil)
	a.do(http.MethodPost, base+"/processing/uploads", operator, map[string]string{
		"name": "invoice", "url": "https://files.example.com/invoice.pdf",
	}, http.StatusCreated, &tr)
	require.NotNil(t, tr.ProcessingDraft)
	require.Len(t, tr.ProcessingDraft.Uploads, 1)
	assert.Equal(t, "Ravi", tr.ProcessingDraft.Uploads[0].UploadedBy)

	req := httptest.NewRequest(http.MethodPost, base+"/processing/uploads", bytes.NewBufferString("--x--"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	req.Header.Set(middleware.HeaderAuthorization, middleware.BearerPrefix+operator)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
