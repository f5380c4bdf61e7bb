package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/doorpasses/trustcore/pkg/audit"
	"github.com/doorpasses/trustcore/pkg/client"
	"github.com/doorpasses/trustcore/pkg/errors"
)

// Handle exposes read and export endpoints over the audit ledger
type Handle struct {
	service *audit.Service
}

func NewHandle(service *audit.Service) *Handle {
	return &Handle{service: service}
}

// Routes mounts the audit endpoints on a router. The router is expected to
// already carry token verification and AuthUser middleware.
func (h *Handle) Routes(r chi.Router) {
	r.Get("/audit-logs", h.ListAuditLogs)
	r.Get("/audit-logs/export", h.ExportAuditLogs)
}

type AuditLogEntry struct {
	ID             int64                  `json:"id"`
	Action         string                 `json:"action"`
	ActorUserID    string                 `json:"actor_user_id"`
	TargetUserID   *string                `json:"target_user_id,omitempty"`
	OrganizationID *string                `json:"organization_id,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
	Message        string                 `json:"message"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

type AuditLogListResponse struct {
	Logs  []AuditLogEntry `json:"logs"`
	Total int             `json:"total"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ListAuditLogs handles GET /audit-logs. Query parameters narrow the
// result conjunctively: organization_id, user_id, start_date, end_date,
// actions (comma-separated).
func (h *Handle) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	events, err := h.service.Query(r.Context(), filter)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	logs := make([]AuditLogEntry, 0, len(events))
	for _, event := range events {
		var entry AuditLogEntry
		if err := copier.Copy(&entry, &event); err != nil {
			slog.Error("Failed to map audit event", "id", event.ID, "err", err)
			renderError(w, r, http.StatusInternalServerError, ErrorResponse{Error: "Failed to map audit events"})
			return
		}
		entry.Action = string(event.Action)
		entry.ActorUserID = event.ActorUserID.String()
		if event.TargetUserID != nil {
			target := event.TargetUserID.String()
			entry.TargetUserID = &target
		}
		if event.OrganizationID != nil {
			org := event.OrganizationID.String()
			entry.OrganizationID = &org
		}
		logs = append(logs, entry)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, AuditLogListResponse{Logs: logs, Total: len(logs)})
}

// ExportAuditLogs handles GET /audit-logs/export?format=csv|json. The
// export itself is recorded in the ledger after a successful response
// body is produced.
func (h *Handle) ExportAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	var body []byte
	var contentType, extension string
	switch format {
	case "csv":
		body, err = h.service.ExportCSV(r.Context(), filter)
		contentType = "text/csv"
		extension = "csv"
	case "json":
		body, err = h.service.ExportJSON(r.Context(), filter)
		contentType = "application/json"
		extension = "json"
	default:
		renderError(w, r, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("unsupported export format: %q", format)})
		return
	}
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	h.recordExport(r, format)

	filename := fmt.Sprintf("audit-logs-%s.%s", time.Now().UTC().Format("2006-01-02"), extension)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	// Exports carry sensitive audit data and must never be cached
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Error("Failed to write export body", "err", err)
	}
}

// recordExport appends an AUDIT_LOG_EXPORTED event naming the caller.
// Failures are logged and swallowed so they never fail a served export.
func (h *Handle) recordExport(r *http.Request, format string) {
	actorID := uuid.Nil
	if authUser, ok := client.FromContext(r.Context()); ok {
		if parsed, err := uuid.Parse(authUser.UserId); err == nil {
			actorID = parsed
		}
	}

	if _, err := h.service.Append(r.Context(), audit.AppendRequest{
		Action:      audit.ActionAuditLogExported,
		ActorUserID: actorID,
		Message:     fmt.Sprintf("Audit log exported as %s", format),
		Metadata: map[string]interface{}{
			"format": format,
		},
	}); err != nil {
		slog.Error("Failed to record audit log export", "actor", actorID, "err", err)
	}
}

// parseFilter builds a ledger filter from query parameters. Date bounds
// accept RFC 3339 timestamps or bare dates; a bare end date is extended to
// the end of that day so the bound stays inclusive.
func parseFilter(r *http.Request) (audit.Filter, error) {
	var filter audit.Filter
	q := r.URL.Query()

	if v := q.Get("organization_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return audit.Filter{}, fmt.Errorf("invalid organization_id: %q", v)
		}
		filter.OrganizationID = &id
	}

	if v := q.Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return audit.Filter{}, fmt.Errorf("invalid user_id: %q", v)
		}
		filter.UserID = &id
	}

	if v := q.Get("start_date"); v != "" {
		ts, _, err := parseDateBound(v)
		if err != nil {
			return audit.Filter{}, fmt.Errorf("invalid start_date: %q", v)
		}
		filter.StartDate = &ts
	}

	if v := q.Get("end_date"); v != "" {
		ts, dateOnly, err := parseDateBound(v)
		if err != nil {
			return audit.Filter{}, fmt.Errorf("invalid end_date: %q", v)
		}
		if dateOnly {
			ts = ts.Add(24*time.Hour - time.Nanosecond)
		}
		filter.EndDate = &ts
	}

	if v := q.Get("actions"); v != "" {
		actions, err := audit.ParseActions(v)
		if err != nil {
			return audit.Filter{}, err
		}
		filter.Actions = actions
	}

	return filter, nil
}

func parseDateBound(v string) (time.Time, bool, error) {
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts.UTC(), false, nil
	}
	ts, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, false, err
	}
	return ts.UTC(), true, nil
}

func renderError(w http.ResponseWriter, r *http.Request, status int, body ErrorResponse) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// renderServiceError maps structured service errors onto HTTP responses.
// Persistence failures collapse into a generic 500.
func renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := errors.MapErrorCodeToHTTPStatus(code)
	body := ErrorResponse{Code: string(code)}
	if status >= http.StatusInternalServerError {
		slog.Error("Audit request failed", "code", code, "err", err)
		body.Error = http.StatusText(status)
	} else {
		body.Error = err.Error()
	}
	renderError(w, r, status, body)
}
