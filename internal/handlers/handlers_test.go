package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/emedical/clinic-api/internal/models"
	"github.com/emedical/clinic-api/internal/store/storetest"
	"github.com/emedical/clinic-api/internal/utils"
)

const testPassword = "test1234"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.SetHashCost(bcrypt.MinCost)
	os.Exit(m.Run())
}

type fakeNotifier struct {
	mu       sync.Mutex
	resetErr error
	resets   []string
	statuses []models.Status
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, _, resetURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.resetErr != nil {
		return n.resetErr
	}
	n.resets = append(n.resets, resetURL)
	return nil
}

func (n *fakeNotifier) SendAppointmentStatus(_ *models.PrincipalSummary, apt *models.Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, apt.Status)
}

type testServer struct {
	router  *gin.Engine
	users   *storetest.Principals[*models.User]
	doctors *storetest.Principals[*models.Doctor]
	apts    *storetest.Appointments
	mail    *fakeNotifier
	tokens  *utils.TokenManager
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	s := &testServer{
		users:   storetest.NewUsers(),
		doctors: storetest.NewDoctors(),
		mail:    &fakeNotifier{},
		tokens:  utils.NewTokenManager("test-secret", time.Hour).WithClock(clock),
		now:     now,
	}
	s.apts = storetest.NewAppointments(s.users, s.doctors)

	h := NewHandler(s.users, s.doctors, s.apts, s.mail, nil, s.tokens, zerolog.Nop(), Options{CookieTTL: time.Hour}).
		WithClock(clock)
	s.router = NewRouter(h, zerolog.Nop(), RouterConfig{})
	return s
}

type response struct {
	Status  string                     `json:"status"`
	Message string                     `json:"message"`
	Token   string                     `json:"token"`
	Results int                        `json:"results"`
	Data    map[string]json.RawMessage `json:"data"`
}

func (r response) into(t *testing.T, key string, v any) {
	t.Helper()
	raw, ok := r.Data[key]
	if !ok {
		t.Fatalf("response data has no %q", key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data.%s: %v", key, err)
	}
}

func newRequest(t *testing.T, method, path string, body any, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, newRequest(t, method, path, body, token))

	var res response
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode %q: %v", w.Body.String(), err)
		}
	}
	return w, res
}

func (s *testServer) expect(t *testing.T, w *httptest.ResponseRecorder, res response, code int, message string) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("status = %d, want %d: %s", w.Code, code, w.Body.String())
	}
	if message != "" && res.Message != message {
		t.Errorf("message = %q, want %q", res.Message, message)
	}
}

func (s *testServer) token(t *testing.T, id primitive.ObjectID) string {
	t.Helper()
	token, err := s.tokens.Sign(id.Hex())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func (s *testServer) createUser(t *testing.T, email, role string) (*models.User, string) {
	t.Helper()
	u := &models.User{Account: models.Account{Name: "Patient " + email, Email: email, Role: role}}
	if err := u.SetPassword(testPassword, testPassword, s.now, true); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := s.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u, s.token(t, u.ID)
}

func (s *testServer) createDoctor(t *testing.T, email string, confirmed bool) (*models.Doctor, string) {
	t.Helper()
	d := &models.Doctor{
		Account:    models.Account{Name: "Dr. " + email, Email: email, Role: models.RoleDoctor},
		Department: "Cardiology",
		Location:   "Sohag",
		Confirmed:  confirmed,
	}
	d.ApplyScheduleDefaults()
	if err := d.SetPassword(testPassword, testPassword, s.now, true); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := s.doctors.Create(context.Background(), d); err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	return d, s.token(t, d.ID)
}

// book stores an appointment directly, bypassing the request flow.
func (s *testServer) book(t *testing.T, patient, doctor primitive.ObjectID, date time.Time, status models.Status) *models.Appointment {
	t.Helper()
	apt := &models.Appointment{PatientID: patient, DoctorID: doctor, Date: date, Status: status}
	if err := s.apts.Create(context.Background(), apt); err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return apt
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w, res := s.do(t, http.MethodGet, "/healthz", nil, "")
	if w.Code != http.StatusOK || res.Status != "ok" {
		t.Errorf("healthz = %d %+v", w.Code, res)
	}
}

func TestNoRoute(t *testing.T) {
	s := newTestServer(t)
	w, res := s.do(t, http.MethodGet, "/api/v1/nope?x=1", nil, "")
	s.expect(t, w, res, http.StatusNotFound, "Can't find /api/v1/nope?x=1 on this server!")
	if res.Status != "fail" {
		t.Errorf("status = %q, want fail", res.Status)
	}
}
