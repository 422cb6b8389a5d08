package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"survey-dashboard-service/internal/app"
	"survey-dashboard-service/internal/domain"
)

// WSHandler drives one live dashboard per websocket connection.
type WSHandler struct {
	reports  *app.ReportService
	trackers *app.TrackerService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(reports *app.ReportService, trackers *app.TrackerService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		reports:  reports,
		trackers: trackers,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type periodPayload struct {
	Period      domain.PeriodToken `json:"period"`
	CustomRange string             `json:"customRange"`
}

type modulePayload struct {
	Module domain.ModuleType `json:"module"`
}

type filterPayload struct {
	Dimension string `json:"dimension"`
	Value     string `json:"value"`
	Checked   bool   `json:"checked"`
}

type schoolsPayload struct {
	Schools []string `json:"schools"`
}

type trackPayload struct {
	Question string            `json:"question"`
	Module   domain.ModuleType `json:"module"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and answers dashboard commands until the client leaves.
// Every state change replies with a fresh dashboard snapshot.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	tenantID, terr := strconv.ParseInt(query.Get("tenantId"), 10, 64)
	userID, uerr := strconv.ParseInt(query.Get("userId"), 10, 64)
	module := domain.ModuleType(query.Get("module"))
	if terr != nil || uerr != nil || tenantID <= 0 || userID <= 0 || !module.Valid() {
		http.Error(w, "missing or invalid tenantId, userId, or module", http.StatusBadRequest)
		return
	}
	scope := app.Scope{
		TenantID:      tenantID,
		UserID:        userID,
		ActiveModules: parseModules(query.Get("activeModules")),
		Permissions:   parsePermissions(query["permission"]),
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	logger := h.logger.With(zap.Int64("tenant", tenantID), zap.Int64("user", userID))

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) bool { return enqueue(send, writerDone, msg) }

	ctx := r.Context()
	state := app.NewDashboardSessionState(module)
	if !push(h.dashboard(ctx, state, scope)) {
		close(send)
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		reply, refresh := h.apply(ctx, state, scope, inbound)
		if reply != nil && !push(*reply) {
			break
		}
		if refresh && !push(h.dashboard(ctx, state, scope)) {
			break
		}
	}

	close(send)
	<-writerDone
}

// apply mutates state for one command. refresh asks the caller to push a new snapshot.
func (h *WSHandler) apply(ctx context.Context, state *app.DashboardSessionState, scope app.Scope, in inboundMessage) (*outboundMessage[any], bool) {
	switch in.Type {
	case "setPeriod":
		var p periodPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errorMessage("invalid period payload"), false
		}
		state.SetPeriod(p.Period, p.CustomRange)
		return nil, true
	case "setComparison":
		var p periodPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errorMessage("invalid comparison payload"), false
		}
		if p.Period == "" {
			state.SetComparison(nil)
		} else {
			state.SetComparison(&domain.PeriodSelection{Token: p.Period, CustomRange: p.CustomRange})
		}
		return nil, true
	case "setModule":
		var p modulePayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errorMessage("invalid module payload"), false
		}
		if err := state.SetModule(p.Module); err != nil {
			return errorMessage(err.Error()), false
		}
		return nil, true
	case "setFilter":
		var p filterPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil || p.Dimension == "" {
			return errorMessage("invalid filter payload"), false
		}
		state.ToggleFilter(p.Dimension, p.Value, p.Checked)
		return nil, true
	case "setBenchmarkSchools":
		var p schoolsPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errorMessage("invalid schools payload"), false
		}
		state.BenchmarkSchools = p.Schools
		return nil, true
	case "applyBenchmark":
		state.ApplyBenchmark = true
		return nil, true
	case "clear":
		state.ClearFilters()
		return nil, true
	case "empty":
		state.Empty = true
		return nil, true
	case "refresh":
		if err := h.reports.Refresh(ctx, state.Peek(scope)); err != nil {
			h.logger.Warn("dashboard refresh failed", zap.Int64("tenant", scope.TenantID), zap.Error(err))
		}
		return nil, true
	case "track":
		return h.track(ctx, state, scope, in.Payload), false
	case "trackerScores":
		return h.trackerScores(ctx, state, scope), false
	default:
		return errorMessage("unsupported message type"), false
	}
}

func (h *WSHandler) dashboard(ctx context.Context, state *app.DashboardSessionState, scope app.Scope) outboundMessage[any] {
	snap, err := h.reports.Dashboard(ctx, state.Request(scope))
	if err != nil {
		h.logger.Debug("dashboard failed", zap.Int64("tenant", scope.TenantID), zap.Error(err))
		return *errorMessage(err.Error())
	}
	return outboundMessage[any]{Type: "dashboard", Payload: snap}
}

func (h *WSHandler) track(ctx context.Context, state *app.DashboardSessionState, scope app.Scope, raw json.RawMessage) *outboundMessage[any] {
	var p trackPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return errorMessage("invalid track payload")
	}
	ref, err := domain.ParseQuestionRef(p.Question)
	if err != nil {
		return &outboundMessage[any]{Type: "validation", Payload: domain.ValidationErrors{{
			Field: "question", Rule: "format", Message: "question must look like standard:12 or custom:5", Err: err,
		}}}
	}
	module := p.Module
	if module == "" {
		module = state.ModuleType
	}
	t, err := h.trackers.Create(ctx, domain.NewTracker{
		TenantID:   scope.TenantID,
		UserID:     scope.UserID,
		Question:   ref,
		ModuleType: module,
	})
	if err != nil {
		var verrs domain.ValidationErrors
		if errors.As(err, &verrs) {
			return &outboundMessage[any]{Type: "validation", Payload: verrs}
		}
		return errorMessage(err.Error())
	}
	return &outboundMessage[any]{Type: "tracker", Payload: t}
}

func (h *WSHandler) trackerScores(ctx context.Context, state *app.DashboardSessionState, scope app.Scope) *outboundMessage[any] {
	scores, err := h.trackers.Scores(ctx, scope.TenantID, scope.UserID, state.Peek(scope))
	if err != nil {
		return errorMessage(err.Error())
	}
	return &outboundMessage[any]{Type: "trackers", Payload: scores}
}

// enqueue hands msg to the writer. It returns false once the writer is gone, so the read
// loop stops instead of blocking on a full buffer.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func errorMessage(msg string) *outboundMessage[any] {
	return &outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

func parseModules(raw string) []domain.ModuleType {
	var out []domain.ModuleType
	for _, part := range strings.Split(raw, ",") {
		m := domain.ModuleType(strings.TrimSpace(part))
		if m.Valid() && m != domain.ModulePulse {
			out = append(out, m)
		}
	}
	return out
}

// parsePermissions returns nil when none were passed, which grants everything.
func parsePermissions(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	perms := make(map[string]bool, len(values))
	for _, v := range values {
		perms[v] = true
	}
	return perms
}
