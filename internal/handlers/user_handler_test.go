package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/emedical/clinic-api/internal/models"
)

func TestGetMe(t *testing.T) {
	s := newTestServer(t)
	u, token := s.createUser(t, "ali@example.com", models.RoleUser)
	d, _ := s.createDoctor(t, "mona@example.com", true)
	s.book(t, u.ID, d.ID, s.now.Add(27*time.Hour), models.StatusPending)

	w, res := s.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
	s.expect(t, w, res, http.StatusOK, "")

	var appointments []struct {
		Status string `json:"status"`
		Doctor struct {
			Name string `json:"name"`
		} `json:"doctor"`
	}
	res.into(t, "appointments", &appointments)
	if len(appointments) != 1 || appointments[0].Doctor.Name != d.Name {
		t.Errorf("appointments = %+v", appointments)
	}
}

func TestUpdateMe(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "taken@example.com", models.RoleUser)
	_, token := s.createUser(t, "ali@example.com", models.RoleUser)

	w, res := s.do(t, http.MethodPatch, "/api/v1/users/updateMe", map[string]any{"password": "sneaky-pass"}, token)
	s.expect(t, w, res, http.StatusBadRequest, "This route is not for password updates. Please use /updateMyPassword")

	w, res = s.do(t, http.MethodPatch, "/api/v1/users/updateMe", map[string]any{"email": "nope"}, token)
	s.expect(t, w, res, http.StatusBadRequest, "Invalid input data. Please provide a valid email.")

	w, res = s.do(t, http.MethodPatch, "/api/v1/users/updateMe", map[string]any{"email": "taken@example.com"}, token)
	s.expect(t, w, res, http.StatusBadRequest, "This email address is already registered")

	w, res = s.do(t, http.MethodPatch, "/api/v1/users/updateMe", map[string]any{"name": "Ali Hassan", "role": "admin"}, token)
	s.expect(t, w, res, http.StatusOK, "")

	var user struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	res.into(t, "user", &user)
	if user.Name != "Ali Hassan" || user.Role != models.RoleUser {
		t.Errorf("user = %+v", user)
	}
}

func TestDeleteMe(t *testing.T) {
	s := newTestServer(t)
	u, token := s.createUser(t, "ali@example.com", models.RoleUser)

	w, _ := s.do(t, http.MethodDelete, "/api/v1/users/deleteMe", nil, token)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}

	stored, ok := s.users.Get(u.ID)
	if !ok || stored.Active {
		t.Errorf("user not soft-deleted: %+v", stored)
	}

	w, res := s.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
	s.expect(t, w, res, http.StatusUnauthorized, "The user the token belongs to no longer exists.")

	w, res = s.do(t, http.MethodPost, "/api/v1/users/login", map[string]any{"email": "ali@example.com", "password": testPassword}, "")
	s.expect(t, w, res, http.StatusUnauthorized, "Incorrect email or password")
}

func TestRequestAppointment(t *testing.T) {
	s := newTestServer(t)
	patient, token := s.createUser(t, "ali@example.com", models.RoleUser)
	_, otherToken := s.createUser(t, "sara@example.com", models.RoleUser)
	doctor, _ := s.createDoctor(t, "mona@example.com", true)
	pending, _ := s.createDoctor(t, "new@example.com", false)

	slot := time.Date(2024, 5, 2, 12, 30, 0, 0, time.UTC)
	path := "/api/v1/users/requestAppointment"

	w, res := s.do(t, http.MethodPost, path, map[string]any{"doctor": doctor.ID.Hex(), "date": slot}, token)
	s.expect(t, w, res, http.StatusCreated, "")

	var apt struct {
		Status  string    `json:"status"`
		Date    time.Time `json:"date"`
		Patient struct {
			ID string `json:"id"`
		} `json:"patient"`
	}
	res.into(t, "appointment", &apt)
	if apt.Status != string(models.StatusPending) || !apt.Date.Equal(slot) || apt.Patient.ID != patient.ID.Hex() {
		t.Errorf("appointment = %+v", apt)
	}

	tests := []struct {
		name    string
		body    map[string]any
		token   string
		code    int
		message string
	}{
		{
			name:    "slot already booked",
			body:    map[string]any{"doctor": doctor.ID.Hex(), "date": slot},
			token:   otherToken,
			code:    http.StatusConflict,
			message: "This appointment slot is already booked",
		},
		{
			name:    "not a slot",
			body:    map[string]any{"doctor": doctor.ID.Hex(), "date": slot.Add(10 * time.Minute)},
			token:   otherToken,
			code:    http.StatusBadRequest,
			message: "The requested date is not one of the doctor's appointment slots",
		},
		{
			name:    "outside schedule",
			body:    map[string]any{"doctor": doctor.ID.Hex(), "date": time.Date(2024, 5, 2, 17, 0, 0, 0, time.UTC)},
			token:   otherToken,
			code:    http.StatusBadRequest,
			message: "The requested date is not one of the doctor's appointment slots",
		},
		{
			name:    "in the past",
			body:    map[string]any{"doctor": doctor.ID.Hex(), "date": time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC)},
			token:   otherToken,
			code:    http.StatusBadRequest,
			message: "Appointments can only be requested in the future",
		},
		{
			name:    "unconfirmed doctor",
			body:    map[string]any{"doctor": pending.ID.Hex(), "date": slot},
			token:   otherToken,
			code:    http.StatusNotFound,
			message: "No doctor found with that ID",
		},
		{
			name:    "invalid doctor id",
			body:    map[string]any{"doctor": "mona", "date": slot},
			token:   otherToken,
			code:    http.StatusBadRequest,
			message: "Invalid _id: mona.",
		},
		{
			name:    "missing date",
			body:    map[string]any{"doctor": doctor.ID.Hex()},
			token:   otherToken,
			code:    http.StatusBadRequest,
			message: "Invalid input data. An appointment must have a date.",
		},
		{
			name:    "missing doctor",
			body:    map[string]any{"date": slot},
			token:   otherToken,
			code:    http.StatusBadRequest,
			message: "Invalid input data. doctor is required.",
		},
		{
			name:    "malformed date",
			body:    map[string]any{"doctor": doctor.ID.Hex(), "date": "next tuesday"},
			token:   otherToken,
			code:    http.StatusBadRequest,
			message: "Invalid date: next tuesday.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, res := s.do(t, http.MethodPost, path, tt.body, tt.token)
			s.expect(t, w, res, tt.code, tt.message)
		})
	}

	if n := s.apts.Len(); n != 1 {
		t.Errorf("%d appointments stored, want 1", n)
	}
}

func TestRequestAppointment_AdminIsNotAPatient(t *testing.T) {
	s := newTestServer(t)
	_, token := s.createUser(t, "root@example.com", models.RoleAdmin)
	doctor, _ := s.createDoctor(t, "mona@example.com", true)

	w, res := s.do(t, http.MethodPost, "/api/v1/users/requestAppointment", map[string]any{
		"doctor": doctor.ID.Hex(), "date": time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
	}, token)
	s.expect(t, w, res, http.StatusForbidden, "You do not have permission to perform this action")
}

func TestUserAppointments(t *testing.T) {
	s := newTestServer(t)
	u, token := s.createUser(t, "ali@example.com", models.RoleUser)
	other, _ := s.createUser(t, "sara@example.com", models.RoleUser)
	d, _ := s.createDoctor(t, "mona@example.com", true)

	s.book(t, u.ID, d.ID, s.now.Add(27*time.Hour), models.StatusPending)
	s.book(t, u.ID, d.ID, s.now.Add(-21*time.Hour), models.StatusFinished)
	s.book(t, other.ID, d.ID, s.now.Add(28*time.Hour), models.StatusPending)

	w, res := s.do(t, http.MethodGet, "/api/v1/users/myAppointments", nil, token)
	s.expect(t, w, res, http.StatusOK, "")
	if res.Results != 2 {
		t.Errorf("results = %d, want 2", res.Results)
	}

	// The caller cannot widen the query to other patients.
	w, res = s.do(t, http.MethodGet, "/api/v1/users/myAppointments?patient="+other.ID.Hex(), nil, token)
	s.expect(t, w, res, http.StatusOK, "")
	if res.Results != 2 {
		t.Errorf("results = %d, want 2", res.Results)
	}

	w, res = s.do(t, http.MethodGet, "/api/v1/users/myAppointments?status=finished", nil, token)
	s.expect(t, w, res, http.StatusOK, "")
	if res.Results != 1 {
		t.Errorf("results = %d, want 1", res.Results)
	}
}

func TestAdminUsers(t *testing.T) {
	s := newTestServer(t)
	u, userToken := s.createUser(t, "ali@example.com", models.RoleUser)
	_, adminToken := s.createUser(t, "root@example.com", models.RoleAdmin)

	w, res := s.do(t, http.MethodGet, "/api/v1/users", nil, userToken)
	s.expect(t, w, res, http.StatusForbidden, "You do not have permission to perform this action")

	w, res = s.do(t, http.MethodGet, "/api/v1/users", nil, adminToken)
	s.expect(t, w, res, http.StatusOK, "")
	if res.Results != 2 {
		t.Errorf("results = %d, want 2", res.Results)
	}

	w, res = s.do(t, http.MethodPost, "/api/v1/users", map[string]any{
		"name": "Second Admin", "email": "root2@example.com", "role": "admin",
		"password": testPassword, "passwordConfirm": testPassword,
	}, adminToken)
	s.expect(t, w, res, http.StatusCreated, "")

	w, res = s.do(t, http.MethodPatch, "/api/v1/users/"+u.ID.Hex(), map[string]any{"role": "doctor"}, adminToken)
	s.expect(t, w, res, http.StatusBadRequest, "Invalid input data. role must be either user or admin.")

	w, res = s.do(t, http.MethodPatch, "/api/v1/users/"+u.ID.Hex(), map[string]any{"role": "admin"}, adminToken)
	s.expect(t, w, res, http.StatusOK, "")

	w, res = s.do(t, http.MethodGet, "/api/v1/users/not-an-id", nil, adminToken)
	s.expect(t, w, res, http.StatusBadRequest, "Invalid _id: not-an-id.")

	w, _ = s.do(t, http.MethodDelete, "/api/v1/users/"+u.ID.Hex(), nil, adminToken)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
	w, res = s.do(t, http.MethodGet, "/api/v1/users/"+u.ID.Hex(), nil, adminToken)
	s.expect(t, w, res, http.StatusNotFound, "No user found with that ID")
}
