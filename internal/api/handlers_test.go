package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
	"github.com/hackgods/clinic-appointment-booking/internal/identity"
	"github.com/hackgods/clinic-appointment-booking/internal/observability/metrics"
	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
	"github.com/hackgods/clinic-appointment-booking/pkg/logging"
)

type testServer struct {
	handler  http.Handler
	verifier *identity.Verifier
	doctor   provider.Ref
}

func newTestServer(t *testing.T, deps ...Dependency) *testServer {
	t.Helper()
	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	clock := schedule.FixedClock{T: now}
	logger := logging.NewWithWriter(io.Discard, "error")

	providerRepo := provider.NewMemoryRepository()
	providers := provider.NewService(providerRepo, logger)

	doc, err := providers.Create(context.Background(), provider.Provider{
		Kind: provider.KindDoctor, Name: "Dr. Rao", Category: "Cardiology", Fee: 800, Available: true,
	})
	require.NoError(t, err)
	_, err = providers.AddSlot(context.Background(), doc.Ref(), "2025-06-20", "10:00 AM", true)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	appts := appointment.NewService(appointment.NewMemoryRepository(), providerRepo, nil, clock, logger, metrics.NewBookingMetrics(reg))

	verifier := identity.NewVerifier("test-secret", "")
	return &testServer{
		handler: NewRouter(RouterConfig{
			Appointments: appts,
			Providers:    providers,
			Verifier:     verifier,
			Logger:       logger,
			Dependencies: deps,
			Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Env:          "test",
		}),
		verifier: verifier,
		doctor:   doc.Ref(),
	}
}

func (s *testServer) token(t *testing.T, role identity.Role, subject string) string {
	t.Helper()
	tok, err := s.verifier.Issue(identity.Principal{Subject: subject, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) bookingBody(date, clock string) CreateAppointmentRequest {
	return CreateAppointmentRequest{
		ProviderKind:  "doctor",
		ProviderID:    s.doctor.ID.String(),
		Date:          date,
		Time:          clock,
		Patient:       PatientDetails{Name: "Asha Verma", Age: 34, Gender: "female", Mobile: "9876543210"},
		PaymentMethod: "Cash",
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t)
	patient := s.token(t, identity.RolePatient, "patient-1")
	admin := s.token(t, identity.RoleAdmin, "admin-1")

	rec := s.do(t, http.MethodPost, "/appointments", patient, s.bookingBody("2025-06-20", "10:00 AM"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "patient-1", created.PatientID)
	assert.Equal(t, "20 Jun 2025 • 10:00 AM", created.Display)

	rec = s.do(t, http.MethodPost, "/appointments", s.token(t, identity.RolePatient, "patient-2"), s.bookingBody("2025-06-20", "10:00"))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_already_taken", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/admin/appointments/"+created.ID.String()+"/transition", admin, TransitionRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/appointments/mine", patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]AppointmentResponse](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)

	rec = s.do(t, http.MethodPost, "/admin/appointments/"+created.ID.String()+"/cancel", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/admin/appointments/"+created.ID.String()+"/cancel", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/appointments/"+created.ID.String()+"/transition", admin, TransitionRequest{Status: "completed"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "terminal_state", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[appointment.DashboardStats](t, rec)
	assert.Equal(t, 1, stats.Canceled)
	assert.EqualValues(t, 1, stats.Patients)
}

func TestProviderDatesAndStatsReflectBookings(t *testing.T) {
	s := newTestServer(t)
	patient := s.token(t, identity.RolePatient, "patient-1")
	admin := s.token(t, identity.RoleAdmin, "admin-1")
	base := "/admin/providers/doctor/" + s.doctor.ID.String()
	datesPath := "/providers/doctor/" + s.doctor.ID.String() + "/dates"

	rec := s.do(t, http.MethodPost, base+"/dates/2025-06-20/slots", admin, AddSlotRequest{Time: "11:00 AM"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/appointments", patient, s.bookingBody("2025-06-20", "10:00 AM"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, datesPath, patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	days := decode[[]schedule.DayView](t, rec)
	require.Len(t, days, 1)
	require.Len(t, days[0].Slots, 2)
	assert.True(t, days[0].Slots[0].Taken)
	assert.False(t, days[0].Slots[0].Bookable)
	assert.True(t, days[0].Slots[1].Bookable)

	rec = s.do(t, http.MethodGet, base+"/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[appointment.Stats](t, rec)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Pending)

	off := false
	rec = s.do(t, http.MethodPatch, base+"/availability", admin, AvailabilityRequest{Available: &off})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, datesPath, patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	days = decode[[]schedule.DayView](t, rec)
	assert.False(t, days[0].Slots[1].Bookable)

	rec = s.do(t, http.MethodGet, "/providers/doctor/"+uuid.NewString()+"/dates", patient, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAppointmentErrors(t *testing.T) {
	s := newTestServer(t)
	patient := s.token(t, identity.RolePatient, "patient-1")

	rec := s.do(t, http.MethodPost, "/appointments", "", s.bookingBody("2025-06-20", "10:00"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/appointments", "garbage", s.bookingBody("2025-06-20", "10:00"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/appointments", s.token(t, identity.RoleAdmin, "admin-1"), s.bookingBody("2025-06-20", "10:00"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	body := s.bookingBody("2025-06-20", "10:00")
	body.Patient.Mobile = "123"
	body.PaymentMethod = ""
	rec = s.do(t, http.MethodPost, "/appointments", patient, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "validation_failed", resp.Error)
	assert.Len(t, resp.Fields, 2)

	rec = s.do(t, http.MethodPost, "/appointments", patient, s.bookingBody("2025-06-20", "11:00"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unknown_slot", decode[ErrorResponse](t, rec).Error)

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+patient)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPatientCannotCancelOthersAppointment(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/appointments", s.token(t, identity.RolePatient, "patient-1"), s.bookingBody("2025-06-20", "10:00"))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[AppointmentResponse](t, rec)

	rec = s.do(t, http.MethodPost, "/appointments/"+created.ID.String()+"/cancel", s.token(t, identity.RolePatient, "patient-2"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/appointments/"+created.ID.String()+"/cancel", s.token(t, identity.RolePatient, "patient-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "canceled", decode[AppointmentResponse](t, rec).Status)
}

func TestAdminCalendarEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, identity.RoleAdmin, "admin-1")
	base := "/admin/providers/doctor/" + s.doctor.ID.String()

	rec := s.do(t, http.MethodPost, base+"/dates", admin, AddDateRequest{Date: "2025-06-10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, base+"/dates", admin, AddDateRequest{Date: "2025-06-10"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/dates/2025-06-22/slots", admin, AddSlotRequest{Time: "9:30 AM"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/dates/2025-06-22/slots", admin, AddSlotRequest{Time: "9:30 AM", AutoCreateDate: true})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodDelete, base+"/dates/2025-06-22/slots/09:30", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/providers/doctor/"+s.doctor.ID.String()+"/dates", s.token(t, identity.RolePatient, "p"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	days := decode[[]schedule.DayView](t, rec)
	require.Len(t, days, 3)
	// Past dates first, then upcoming ascending.
	assert.Equal(t, schedule.MustDate("2025-06-10"), days[0].Date)
	assert.True(t, days[0].Past)
	assert.Equal(t, schedule.MustDate("2025-06-20"), days[1].Date)
	assert.Equal(t, schedule.MustDate("2025-06-22"), days[2].Date)
	assert.Empty(t, days[2].Slots)

	rec = s.do(t, http.MethodPatch, base+"/availability", admin, AvailabilityRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	off := false
	rec = s.do(t, http.MethodPatch, base+"/availability", admin, AvailabilityRequest{Available: &off})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/appointments", s.token(t, identity.RolePatient, "p"), s.bookingBody("2025-06-20", "10:00"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "provider_unavailable", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/admin/providers/nurse/"+s.doctor.ID.String()+"/stats", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminListValidatesQuery(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, identity.RoleAdmin, "admin-1")

	rec := s.do(t, http.MethodGet, "/admin/appointments?status=archived&limit=x", admin, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode[ErrorResponse](t, rec).Fields, 2)

	rec = s.do(t, http.MethodGet, "/admin/appointments?status=pending", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[AppointmentPageResponse](t, rec)
	assert.Equal(t, appointment.DefaultPageSize, page.Limit)
	assert.Empty(t, page.Items)

	rec = s.do(t, http.MethodGet, "/admin/appointments", s.token(t, identity.RolePatient, "p"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	down := Dependency{Name: "redis", Optional: true, Check: PingFunc(func(context.Context) error { return errors.New("down") })}
	s := newTestServer(t, down)

	rec := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "down", ready.Dependencies["redis"])

	s.do(t, http.MethodPost, "/appointments", s.token(t, identity.RolePatient, "p"), s.bookingBody("2025-06-20", "10:00"))
	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clinic_booking_")
}

func TestReadinessFailsOnRequiredDependency(t *testing.T) {
	pg := Dependency{Name: "postgres", Check: PingFunc(func(context.Context) error { return errors.New("refused") })}
	s := newTestServer(t, pg)

	rec := s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestErrorStatusHidesInfrastructureDetail(t *testing.T) {
	status, code := errorStatus(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", code)

	status, _ = errorStatus(appointment.ErrSlotAlreadyTaken)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = errorStatus(schedule.ErrSlotInPast)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}
