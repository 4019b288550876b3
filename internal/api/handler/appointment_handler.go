package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinicflow/rdv-api/internal/api/metrics"
	"github.com/clinicflow/rdv-api/internal/core/domain"
	"github.com/clinicflow/rdv-api/internal/core/ports"
)

// HeaderIdempotencyKey lets a patient retry an appointment request safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// AppointmentHandler handles HTTP requests for the appointment lifecycle.
type AppointmentHandler struct {
	service ports.AppointmentService
}

func NewAppointmentHandler(service ports.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

// callerID returns the subject of the verified token, or "" when the route
// is not behind the auth middleware.
func callerID(c echo.Context) string {
	id, _ := domain.IdentityFrom(c.Request().Context())
	return id.SubjectID
}

// Request handles POST /rdv/demande.
//
// @Summary      Request an appointment
// @Tags         rdv
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string                     false  "Replays return the first appointment"
// @Param        body             body      requestAppointmentRequest  true   "Requested date (RFC 3339)"
// @Success      201              {object}  appointmentEnvelope
// @Failure      400              {object}  ErrorResponse
// @Failure      401              {object}  ErrorResponse
// @Failure      403              {object}  ErrorResponse
// @Failure      500              {object}  ErrorResponse
// @Router       /rdv/demande [post]
func (h *AppointmentHandler) Request(c echo.Context) error {
	var req requestAppointmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return err
	}

	a, err := h.service.Request(c.Request().Context(), ports.RequestAppointmentInput{
		PatientID:      callerID(c),
		Date:           date,
		IdempotencyKey: strings.TrimSpace(c.Request().Header.Get(HeaderIdempotencyKey)),
	})
	if err != nil {
		return err
	}

	metrics.AppointmentsTotal.WithLabelValues(string(domain.EventRequested)).Inc()
	return c.JSON(http.StatusCreated, appointmentEnvelope{Message: "appointment requested", RDV: toAppointmentResponse(a)})
}

// Create handles POST /rdv/creer.
//
// @Summary      Create an appointment for a patient
// @Tags         rdv
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createAppointmentRequest  true  "Patient, date and optional doctor"
// @Success      201   {object}  appointmentEnvelope
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /rdv/creer [post]
func (h *AppointmentHandler) Create(c echo.Context) error {
	var req createAppointmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return err
	}

	a, err := h.service.CreateDirect(c.Request().Context(), ports.CreateAppointmentInput{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      date,
		ActorID:   callerID(c),
	})
	if err != nil {
		return err
	}

	metrics.AppointmentsTotal.WithLabelValues(string(domain.EventCreated)).Inc()
	return c.JSON(http.StatusCreated, appointmentEnvelope{Message: "appointment created", RDV: toAppointmentResponse(a)})
}

// Assign handles PUT /rdv/assigner.
//
// @Summary      Assign a doctor to an appointment
// @Tags         rdv
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      assignDoctorRequest  true  "Appointment and doctor ids"
// @Success      200   {object}  appointmentEnvelope
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /rdv/assigner [put]
func (h *AppointmentHandler) Assign(c echo.Context) error {
	var req assignDoctorRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	a, err := h.service.AssignDoctor(c.Request().Context(), req.AppointmentID, req.DoctorID, callerID(c))
	if err != nil {
		return err
	}

	metrics.AppointmentsTotal.WithLabelValues(string(domain.EventAssigned)).Inc()
	return c.JSON(http.StatusOK, appointmentEnvelope{Message: "doctor assigned", RDV: toAppointmentResponse(a)})
}

// Resolve handles PUT /rdv/gerer.
//
// @Summary      Confirm or cancel an appointment
// @Tags         rdv
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      resolveAppointmentRequest  true  "Appointment id and action (confirmer|annuler)"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /rdv/gerer [put]
func (h *AppointmentHandler) Resolve(c echo.Context) error {
	var req resolveAppointmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	status, err := h.service.Resolve(c.Request().Context(), req.AppointmentID, domain.ResolveAction(req.Action), callerID(c))
	if err != nil {
		return err
	}

	metrics.AppointmentsTotal.WithLabelValues(string(status)).Inc()
	return c.JSON(http.StatusOK, messageResponse{Message: "appointment " + string(status)})
}

// ListPatient handles GET /rdv/patient.
//
// @Summary      List the caller's appointments
// @Tags         rdv
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   appointmentResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /rdv/patient [get]
// @Router       /auth/patient [get]
func (h *AppointmentHandler) ListPatient(c echo.Context) error {
	list, err := h.service.ListForPatient(c.Request().Context(), callerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAppointmentList(list))
}

// ListDoctor handles GET /rdv/medecin.
//
// @Summary      List appointments assigned to the caller
// @Tags         rdv
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   appointmentResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /rdv/medecin [get]
func (h *AppointmentHandler) ListDoctor(c echo.Context) error {
	list, err := h.service.ListForDoctor(c.Request().Context(), callerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAppointmentList(list))
}

// History handles GET /rdv/:id/historique.
//
// @Summary      Audit trail of an appointment
// @Tags         rdv
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Appointment id"
// @Success      200  {array}   appointmentEventResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /rdv/{id}/historique [get]
func (h *AppointmentHandler) History(c echo.Context) error {
	events, err := h.service.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	out := make([]appointmentEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, appointmentEventResponse{
			Type:     string(e.Type),
			ActorID:  e.ActorID,
			DoctorID: e.DoctorID,
			Status:   string(e.Status),
			At:       e.At,
		})
	}
	return c.JSON(http.StatusOK, out)
}
