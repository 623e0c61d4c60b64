// Package httpapi exposes the field-operations services over JSON HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/septivank/meter-field-ops/internal/apperror"
	"github.com/septivank/meter-field-ops/internal/auth"
	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/importer"
	"github.com/septivank/meter-field-ops/internal/logging"
	"github.com/septivank/meter-field-ops/internal/route"
	"github.com/septivank/meter-field-ops/internal/service"
	"go.uber.org/zap"
)

// Handler holds the HTTP handlers
type Handler struct {
	auth           *auth.Service
	jwt            *auth.JWTManager
	resolver       *route.Resolver
	filter         *route.Filter
	entries        *service.EntryService
	arrears        *service.ArrearsService
	admin          *service.AdminService
	loader         *importer.Loader
	validate       *validator.Validate
	maxUploadBytes int64
	storeReady     func() bool
	logger         *zap.Logger
}

// Deps lists the collaborators of a Handler
type Deps struct {
	Auth           *auth.Service
	JWT            *auth.JWTManager
	Resolver       *route.Resolver
	Filter         *route.Filter
	Entries        *service.EntryService
	Arrears        *service.ArrearsService
	Admin          *service.AdminService
	Loader         *importer.Loader
	Validate       *validator.Validate
	MaxUploadBytes int64
	StoreReady     func() bool
	Logger         *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(d Deps) *Handler {
	storeReady := d.StoreReady
	if storeReady == nil {
		storeReady = func() bool { return true }
	}
	return &Handler{
		auth:           d.Auth,
		jwt:            d.JWT,
		resolver:       d.Resolver,
		filter:         d.Filter,
		entries:        d.Entries,
		arrears:        d.Arrears,
		admin:          d.Admin,
		loader:         d.Loader,
		validate:       d.Validate,
		maxUploadBytes: d.MaxUploadBytes,
		storeReady:     storeReady,
		logger:         d.Logger,
	}
}

func (h *Handler) log(r *http.Request) *zap.Logger {
	logger := logging.WithRequestID(h.logger, requestID(r.Context()))
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		logger = logging.WithOfficer(logger, claims.Username)
	}
	return logger
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		h.log(r).Warn("failed to decode json", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return h.check(w, r, dst)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := h.validate.Struct(dst); err != nil {
		h.log(r).Warn("validation failed", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, apperror.ValidationMessages(err))
		return false
	}
	return true
}

// Health reports liveness and whether the record store is configured
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"store_configured": h.storeReady(),
	})
}

// Login authenticates an officer and binds the device on first login. A
// client without a device id gets a fresh one to persist.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	device := req.DeviceID
	if device == "" {
		generated, err := auth.NewDeviceToken()
		if err != nil {
			writeError(w, h.log(r), "failed to generate device id", err)
			return
		}
		device = generated
	}

	user, err := h.auth.Login(r.Context(), req.Username, req.Password, device)
	if err != nil {
		writeError(w, h.log(r), "login failed", err)
		return
	}

	token, expiresAt, err := h.jwt.GenerateToken(user, device)
	if err != nil {
		writeError(w, h.log(r), "failed to issue session token", err)
		return
	}

	h.log(r).Info("login succeeded", zap.String("officer", user.Username), zap.String("role", string(user.Role)))
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		DeviceID:  device,
		User:      *user,
	})
}

// SearchCustomers runs the smart search over q
func (h *Handler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	window, err := h.resolver.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.log(r), "customer search failed", err)
		return
	}
	writeJSON(w, http.StatusOK, window)
}

// RouteCustomers lists an officer's route for a reading day. The officer
// defaults to the caller.
func (h *Handler) RouteCustomers(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	q := RouteQuery{
		Officer: strings.TrimSpace(r.URL.Query().Get("officer")),
		Day:     strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("day"))),
	}
	if q.Officer == "" && claims != nil {
		q.Officer = claims.Username
	}
	if !h.check(w, r, &q) {
		return
	}

	customers, err := h.filter.List(r.Context(), q.Officer, q.Day)
	if err != nil {
		writeError(w, h.log(r), "route listing failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"officer":   db.NormalizeUsername(q.Officer),
		"day":       q.Day,
		"category":  route.CategoryForDay(q.Day),
		"customers": customers,
	})
}

// ListArrears returns the caller's arrears, or all of them for administrators
func (h *Handler) ListArrears(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	arrears, err := h.arrears.List(r.Context(), claims.Username, claims.Role)
	if err != nil {
		writeError(w, h.log(r), "arrears listing failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ArrearsResponse{
		Arrears: arrears,
		Count:   len(arrears),
		Total:   service.Total(arrears),
	})
}

// ExportArrears streams the caller's arrears as a workbook
func (h *Handler) ExportArrears(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	arrears, err := h.arrears.List(r.Context(), claims.Username, claims.Role)
	if err != nil {
		writeError(w, h.log(r), "arrears export failed", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, h.arrears.ExportFilename(claims.Username)))
	if err := h.arrears.Export(w, arrears); err != nil {
		h.log(r).Error("failed to write arrears workbook", zap.Error(err))
	}
}

// EntryGate reports whether batch entry is open
func (h *Handler) EntryGate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.entries.Gate())
}

// SubmitEntries runs the batch entry pipeline
func (h *Handler) SubmitEntries(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req EntryRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.entries.Submit(r.Context(), claims.Username, req.Text)
	if err != nil {
		writeError(w, h.log(r), "entry submission failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Stats serves the administrator dashboard
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		writeError(w, h.log(r), "stats failed", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func tableParam(r *http.Request) (db.Table, error) {
	name := mux.Vars(r)["table"]
	table, ok := db.ParseTable(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", apperror.ErrUnknownTable, name)
	}
	return table, nil
}

// Import loads an uploaded workbook from the multipart field "file"
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	table, err := tableParam(r)
	if err != nil {
		writeError(w, h.log(r), "import rejected", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.log(r).Warn("failed to read upload", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "a workbook must be uploaded in the 'file' field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.log(r).Warn("failed to read upload", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "upload could not be read")
		return
	}

	logger := h.log(r).With(zap.String("table", string(table)))
	job, err := h.loader.Import(r.Context(), table, header.Filename, data, func(written, total int) {
		logger.Debug("import progress", zap.Int("written", written), zap.Int("total", total))
	})
	h.respondJob(w, r, job, err)
}

// ImportStatus reports the last import job of a table
func (h *Handler) ImportStatus(w http.ResponseWriter, r *http.Request) {
	table, err := tableParam(r)
	if err != nil {
		writeError(w, h.log(r), "status rejected", err)
		return
	}

	job, ok := h.loader.Registry().Last(table)
	if !ok {
		writeMessage(w, http.StatusNotFound, fmt.Sprintf("no import recorded for %s", table))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ResumeImport continues the last failed import of a table
func (h *Handler) ResumeImport(w http.ResponseWriter, r *http.Request) {
	table, err := tableParam(r)
	if err != nil {
		writeError(w, h.log(r), "resume rejected", err)
		return
	}

	job, err := h.loader.Resume(r.Context(), table, nil)
	h.respondJob(w, r, job, err)
}

func (h *Handler) respondJob(w http.ResponseWriter, r *http.Request, job importer.Job, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, job)
		return
	}

	var importErr *apperror.ImportError
	if errors.As(err, &importErr) {
		h.log(r).Error("import stopped", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": apperror.Message(err),
			"job":   job,
		})
		return
	}
	writeError(w, h.log(r), "import rejected", err)
}

// SettleArrears removes paid arrears
func (h *Handler) SettleArrears(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if !h.decode(w, r, &req) {
		return
	}

	n, err := h.arrears.Settle(r.Context(), req.IDs)
	if err != nil {
		writeError(w, h.log(r), "settlement failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SettleResponse{Settled: n})
}

// ClearTable empties one table
func (h *Handler) ClearTable(w http.ResponseWriter, r *http.Request) {
	table, err := tableParam(r)
	if err != nil {
		writeError(w, h.log(r), "clear rejected", err)
		return
	}

	if err := h.admin.ClearTable(r.Context(), table); err != nil {
		writeError(w, h.log(r), "clear failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeAccountError answers admin account operations. An unknown target
// account is a 404, not a session failure.
func (h *Handler) writeAccountError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, apperror.ErrAccountNotRegistered) {
		h.log(r).Warn(msg, zap.Error(err))
		writeMessage(w, http.StatusNotFound, apperror.Message(err))
		return
	}
	writeError(w, h.log(r), msg, err)
}

// ResetDevice clears an officer's device lock
func (h *Handler) ResetDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.ResetDevice(r.Context(), mux.Vars(r)["username"]); err != nil {
		h.writeAccountError(w, r, "device reset failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetSecret replaces an officer's secret
func (h *Handler) SetSecret(w http.ResponseWriter, r *http.Request) {
	var req SecretRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.auth.SetSecret(r.Context(), mux.Vars(r)["username"], req.Secret); err != nil {
		h.writeAccountError(w, r, "secret update failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
