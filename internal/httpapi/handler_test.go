package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/septivank/meter-field-ops/internal/auth"
	"github.com/septivank/meter-field-ops/internal/config"
	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/importer"
	"github.com/septivank/meter-field-ops/internal/metrics"
	"github.com/septivank/meter-field-ops/internal/repository/memstore"
	"github.com/septivank/meter-field-ops/internal/route"
	"github.com/septivank/meter-field-ops/internal/service"
	"github.com/septivank/meter-field-ops/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	handler http.Handler
	store   *memstore.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	store := memstore.New()

	require.NoError(t, store.UpsertUsers(ctx, []db.UserAccount{
		{Username: "AGUNG", Name: "AGUNG", Role: db.RoleOfficer},
		{Username: "ADMIN", Name: "ADMINISTRATOR", Role: db.RoleAdmin},
	}))
	var customers []db.Customer
	for i := 0; i < 12; i++ {
		customers = append(customers, db.Customer{
			ID:              fmt.Sprintf("5180400008%02d", i),
			Name:            fmt.Sprintf("PELANGGAN %d", i),
			Officer:         "AGUNG",
			ReadingDay:      "A",
			ServiceCategory: route.CategoryForDay("A"),
			RoutePosition:   i,
		})
	}
	require.NoError(t, store.InsertCustomers(ctx, customers))
	require.NoError(t, store.InsertWhitelist(ctx, []string{"518040000806", "518040000807"}))
	require.NoError(t, store.InsertArrears(ctx, []db.Arrear{
		{Officer: "AGUNG", ID: "518040000806", Name: "PELANGGAN 6", Amount: 150000, Sheets: 1},
		{Officer: "BUDI", ID: "518030000001", Name: "PELANGGAN B", Amount: 50000, Sheets: 2},
	}))

	authCfg := config.AuthConfig{
		JWTSecret:      "test-secret",
		JWTIssuer:      "meter-field-ops",
		SessionTTL:     time.Hour,
		DefaultSecrets: []string{"123"},
	}
	v, err := validator.NewValidator(75, []string{"51804", "51803"})
	require.NoError(t, err)
	validate, err := NewValidate()
	require.NoError(t, err)

	m := metrics.New()
	jwtManager := auth.NewJWTManager(authCfg)
	loader := importer.NewLoader(importer.LoaderConfig{
		Store:   store,
		Import:  config.ImportConfig{InsertChunkSize: 2, DeleteChunkSize: 100},
		Metrics: m,
		Logger:  logger,
	})

	h := NewHandler(Deps{
		Auth:           auth.NewService(store, authCfg, logger),
		JWT:            jwtManager,
		Resolver:       route.NewResolver(store, logger),
		Filter:         route.NewFilter(store, nil, logger),
		Entries:        service.NewEntryService(store, v, nil, nil, "entry.submitted", m, logger),
		Arrears:        service.NewArrearsService(store, logger),
		Admin:          service.NewAdminService(store, nil, loader, logger),
		Loader:         loader,
		Validate:       validate,
		MaxUploadBytes: 1 << 20,
		Logger:         logger,
	})

	router := NewRouter(h, NewAuthMiddleware(jwtManager, store, logger), m, []string{"*"}, logger)
	return &testServer{handler: router, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username, device string) LoginResponse {
	t.Helper()
	rec := s.do(t, "POST", "/auth/login", "", LoginRequest{Username: username, Password: "123", DeviceID: device})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestLogin_BindsGeneratedDevice(t *testing.T) {
	s := newTestServer(t)

	resp := s.login(t, "agung", "")
	assert.NotEmpty(t, resp.Token)
	assert.True(t, auth.IsDeviceToken(resp.DeviceID))

	user, err := s.store.FindUser(context.Background(), "AGUNG")
	require.NoError(t, err)
	require.NotNil(t, user.DeviceToken)
	assert.Equal(t, resp.DeviceID, *user.DeviceToken)

	rec := s.do(t, "POST", "/auth/login", "", LoginRequest{Username: "agung", Password: "123", DeviceID: "DEV-ZZZZZ"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogin_Failures(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "POST", "/auth/login", "", LoginRequest{Username: "agung", Password: "999"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, "POST", "/auth/login", "", LoginRequest{Username: "nobody", Password: "123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, "POST", "/auth/login", "", LoginRequest{Username: "agung", Password: "123", DeviceID: "phone"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_RequiresSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "GET", "/api/arrears", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, "GET", "/api/arrears", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_DeviceResetRevokesOtherDevices(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "")
	officer := s.login(t, "agung", "DEV-AAAAA")

	rec := s.do(t, "DELETE", "/api/admin/users/agung/device", admin.Token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// a new device claims the account; the old session is now locked out
	s.login(t, "agung", "DEV-BBBBB")
	rec = s.do(t, "GET", "/api/arrears", officer.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSearchCustomers_Window(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "agung", "").Token

	rec := s.do(t, "GET", "/api/customers/search?q=518040000806", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var window route.Window
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &window))
	require.NotNil(t, window.Target)
	assert.Equal(t, "518040000806", window.Target.ID)
	assert.Len(t, window.Customers, route.NeighborsBefore+1+route.NeighborsAfter)
	assert.Equal(t, "518040000801", window.Customers[0].ID)
}

func TestRouteCustomers(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "agung", "").Token

	rec := s.do(t, "GET", "/api/customers/route?day=a", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Officer   string        `json:"officer"`
		Customers []db.Customer `json:"customers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AGUNG", body.Officer)
	assert.Len(t, body.Customers, 12)

	rec = s.do(t, "GET", "/api/customers/route?day=Z9", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitEntries(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "agung", "").Token

	rec := s.do(t, "POST", "/api/entries", token, EntryRequest{Text: "518040000806\n518040000808\nabc\n"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result service.SessionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, []string{"518040000806"}, result.Accepted)
	assert.Len(t, s.store.Submissions(), 1)

	rec = s.do(t, "GET", "/api/entries/gate", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"closed":false`)
}

func TestArrears_ScopedByRole(t *testing.T) {
	s := newTestServer(t)
	officer := s.login(t, "agung", "").Token
	admin := s.login(t, "admin", "").Token

	var resp ArrearsResponse
	rec := s.do(t, "GET", "/api/arrears", officer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, int64(150000), resp.Total)

	rec = s.do(t, "GET", "/api/arrears", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestArrears_Export(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "agung", "").Token

	rec := s.do(t, "GET", "/api/arrears/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "DATA_TUNGGAKAN_AGUNG_")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("TUNGGAKAN")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestAdmin_RequiresAdministrator(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "agung", "").Token

	rec := s.do(t, "GET", "/api/admin/stats", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_StatsAndSettle(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "").Token

	rec := s.do(t, "POST", "/api/admin/arrears/settle", token, SettleRequest{IDs: []string{"518040000806"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"settled":1}`, rec.Body.String())

	rec = s.do(t, "POST", "/api/admin/arrears/settle", token, SettleRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "GET", "/api/admin/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats service.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.OfficerCount)
	assert.Equal(t, 1, stats.RowCounts[db.TableArrears])
}

func upload(t *testing.T, s *testServer, path, token string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "WHITELIST.xlsx")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func whitelistFile(t *testing.T, ids ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheetName := f.GetSheetName(0)
	require.NoError(t, f.SetCellStr(sheetName, "A1", "IDPEL"))
	for i, id := range ids {
		require.NoError(t, f.SetCellStr(sheetName, fmt.Sprintf("A%d", i+2), id))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestAdmin_ImportWhitelist(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "").Token

	rec := upload(t, s, "/api/admin/imports/whitelist", token, whitelistFile(t, "518040000801", "518040000802", "518040000803"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var job importer.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, importer.StateDone, job.State)
	assert.Equal(t, 3, job.Written)
	assert.Equal(t, 2, job.Chunks)

	n, err := s.store.CountRows(context.Background(), db.TableWhitelist)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rec = s.do(t, "GET", "/api/admin/imports/whitelist", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"DONE"`)

	rec = s.do(t, "GET", "/api/admin/imports/arrears", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, "POST", "/api/admin/imports/whitelist/resume", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdmin_ImportRejections(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "").Token

	rec := upload(t, s, "/api/admin/imports/submissions", token, whitelistFile(t, "518040000801"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, s, "/api/admin/imports/whitelist", token, []byte("not a workbook"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not a readable .xlsx workbook")

	req := httptest.NewRequest("POST", "/api/admin/imports/whitelist", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdmin_ClearTableAndSecret(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "").Token

	rec := s.do(t, "DELETE", "/api/admin/tables/whitelist", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	n, err := s.store.CountRows(context.Background(), db.TableWhitelist)
	require.NoError(t, err)
	assert.Zero(t, n)

	rec = s.do(t, "PUT", "/api/admin/users/agung/secret", token, SecretRequest{Secret: "rahasia"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, "POST", "/auth/login", "", LoginRequest{Username: "agung", Password: "123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, "POST", "/auth/login", "", LoginRequest{Username: "agung", Password: "rahasia"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, "PUT", "/api/admin/users/nobody/secret", token, SecretRequest{Secret: "rahasia"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, "DELETE", "/api/admin/users/nobody/device", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_UsersTableCannotBeCleared(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "").Token

	rec := s.do(t, "DELETE", "/api/admin/tables/users", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	n, err := s.store.CountRows(context.Background(), db.TableUsers)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec = s.do(t, "GET", "/api/admin/stats", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store_configured":true`)

	rec = s.do(t, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
