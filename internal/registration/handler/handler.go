package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"campusreg/internal/registration/models"
	regservice "campusreg/internal/registration/service"
	teammodels "campusreg/internal/team/models"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/platform/httputil"
	authmw "campusreg/pkg/platform/middleware/auth"
	"campusreg/pkg/requestcontext"
)

// Service defines the registration operations exposed over HTTP.
type Service interface {
	RegisterIndividual(ctx context.Context, cmd regservice.RegisterCommand) (*models.Registration, error)
	RegisterForTeamEvent(ctx context.Context, userID id.UserID, eventID id.EventID, teamID id.TeamID, meta models.Metadata) (*models.Registration, error)
	IsRegistered(ctx context.Context, userID id.UserID, eventID id.EventID) (bool, error)
	GetRegistration(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	ListEventRegistrations(ctx context.Context, eventID id.EventID) ([]*models.Registration, error)
	Cancel(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	CreateTeam(ctx context.Context, eventID id.EventID, name string, creator id.UserID) (*teammodels.Team, error)
	JoinTeam(ctx context.Context, eventID id.EventID, teamID id.TeamID, userID id.UserID) (*teammodels.Team, error)
	SearchTeams(ctx context.Context, eventID id.EventID, prefix string, limit int) ([]*teammodels.Team, error)
}

// Handler exposes registration and team endpoints. Every route expects the
// auth middleware to have run.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts routes available to any authenticated user.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events/{eventID}/registrations", h.HandleRegister)
	r.Get("/events/{eventID}/registrations/me", h.HandleIsRegistered)
	r.Post("/events/{eventID}/teams", h.HandleCreateTeam)
	r.Get("/events/{eventID}/teams", h.HandleSearchTeams)
	r.Post("/events/{eventID}/teams/{teamID}/members", h.HandleJoinTeam)
	r.Post("/events/{eventID}/teams/{teamID}/registrations", h.HandleRegisterTeam)
	r.Delete("/registrations/{registrationID}", h.HandleCancel)
}

// RegisterOrganizer mounts routes that require the organizer role.
func (h *Handler) RegisterOrganizer(r chi.Router) {
	r.Get("/events/{eventID}/registrations", h.HandleListRegistrations)
}

// HandleRegister handles POST /events/{eventID}/registrations.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	reg, err := h.service.RegisterIndividual(ctx, regservice.RegisterCommand{
		EventID:    eventID,
		Registrant: req.Registrant(userID),
		Metadata:   req.Metadata(),
	})
	h.writeRegistration(ctx, w, reg, err, eventID)
}

// HandleRegisterTeam handles POST /events/{eventID}/teams/{teamID}/registrations.
func (h *Handler) HandleRegisterTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TeamRegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	reg, err := h.service.RegisterForTeamEvent(ctx, userID, eventID, teamID, req.Metadata())
	h.writeRegistration(ctx, w, reg, err, eventID)
}

// writeRegistration answers a registration attempt. A duplicate is returned
// with 200 and the existing record.
func (h *Handler) writeRegistration(ctx context.Context, w http.ResponseWriter, reg *models.Registration, err error, eventID id.EventID) {
	requestID := requestcontext.RequestID(ctx)
	if dErrors.HasCode(err, dErrors.CodeAlreadyRegistered) && reg != nil {
		resp := FromRegistration(reg)
		resp.AlreadyRegistered = true
		httputil.WriteJSON(w, http.StatusOK, resp)
		return
	}
	if err != nil {
		h.logger.WarnContext(ctx, "registration rejected",
			"request_id", requestID,
			"event_id", eventID.String(),
			"user_id", requestcontext.UserID(ctx).String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "registration created",
		"request_id", requestID,
		"event_id", eventID.String(),
		"registration_id", reg.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromRegistration(reg))
}

// HandleIsRegistered handles GET /events/{eventID}/registrations/me.
func (h *Handler) HandleIsRegistered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	registered, err := h.service.IsRegistered(ctx, userID, eventID)
	if err != nil {
		h.logger.ErrorContext(ctx, "registration lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"event_id", eventID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{EventID: eventID.String(), Registered: registered})
}

// HandleListRegistrations handles GET /events/{eventID}/registrations.
func (h *Handler) HandleListRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	regs, err := h.service.ListEventRegistrations(ctx, eventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRegistrations(regs))
}

// HandleCancel handles DELETE /registrations/{registrationID}. Registrants
// cancel their own registrations; organizers may cancel any.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	current, err := h.service.GetRegistration(ctx, regID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if current.UserID != userID && !requestcontext.HasRole(ctx, authmw.RoleOrganizer) {
		// Same answer as a missing record so ids cannot be enumerated.
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "registration not found"))
		return
	}

	reg, err := h.service.Cancel(ctx, regID)
	if err != nil {
		h.logger.WarnContext(ctx, "cancel failed",
			"request_id", requestID,
			"registration_id", regID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "registration cancelled",
		"request_id", requestID,
		"registration_id", regID.String(),
		"user_id", userID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromRegistration(reg))
}

// HandleCreateTeam handles POST /events/{eventID}/teams.
func (h *Handler) HandleCreateTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateTeamRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	team, err := h.service.CreateTeam(ctx, eventID, req.Name, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "team not created",
			"request_id", requestID,
			"event_id", eventID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromTeam(team))
}

// HandleJoinTeam handles POST /events/{eventID}/teams/{teamID}/members.
func (h *Handler) HandleJoinTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	team, err := h.service.JoinTeam(ctx, eventID, teamID, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "team join rejected",
			"request_id", requestcontext.RequestID(ctx),
			"event_id", eventID.String(),
			"team_id", teamID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTeam(team))
}

// HandleSearchTeams handles GET /events/{eventID}/teams?prefix=&limit=.
func (h *Handler) HandleSearchTeams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	teams, err := h.service.SearchTeams(ctx, eventID, r.URL.Query().Get("prefix"), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTeams(teams))
}

func (h *Handler) callerAndEvent(w http.ResponseWriter, r *http.Request) (id.UserID, id.EventID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, id.EventID{}, false
	}
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.UserID{}, id.EventID{}, false
	}
	return userID, eventID, true
}
