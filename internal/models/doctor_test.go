package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validDoctor() *Doctor {
	d := &Doctor{
		Account:    Account{Name: "Dr. Mona", Email: "mona@example.com", Role: RoleDoctor},
		Department: "Cardiology",
		Location:   "Sohag",
	}
	d.ApplyScheduleDefaults()
	return d
}

func TestApplyScheduleDefaults(t *testing.T) {
	d := validDoctor()
	if d.ScheduleStart != 720 || d.ScheduleEnd != 1020 || d.ScheduleInterval != 30 {
		t.Errorf("schedule = %d-%d/%d, want 720-1020/30", d.ScheduleStart, d.ScheduleEnd, d.ScheduleInterval)
	}

	custom := &Doctor{ScheduleStart: 480, ScheduleEnd: 600, ScheduleInterval: 15}
	custom.ApplyScheduleDefaults()
	if custom.ScheduleStart != 480 || custom.ScheduleEnd != 600 || custom.ScheduleInterval != 15 {
		t.Error("explicit schedule overwritten")
	}
}

func TestDoctorJSON_KeepsZeroScheduleStartAndUnconfirmed(t *testing.T) {
	d := validDoctor()
	d.ScheduleStart = 0
	d.Confirmed = false

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"scheduleStart":0`, `"confirmed":false`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("%s missing from %s", want, b)
		}
	}
}

func TestDoctorValidate(t *testing.T) {
	if err := validDoctor().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Doctor)
		field  string
	}{
		{"unknown department", func(d *Doctor) { d.Department = "Astrology" }, "department"},
		{"missing department", func(d *Doctor) { d.Department = "" }, "department"},
		{"unknown location", func(d *Doctor) { d.Location = "Cairo" }, "location"},
		{"wrong role", func(d *Doctor) { d.Role = RoleUser }, "role"},
		{"start after end", func(d *Doctor) { d.ScheduleStart, d.ScheduleEnd = 1020, 720 }, "scheduleEnd"},
		{"end out of range", func(d *Doctor) { d.ScheduleEnd = 1440 }, "scheduleEnd"},
		{"tiny interval", func(d *Doctor) { d.ScheduleInterval = 1 }, "scheduleInterval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDoctor()
			tt.mutate(d)
			got := fieldNames(d.Validate())
			if len(got) == 0 || got[0] != tt.field {
				t.Errorf("fields = %v, want %s first", got, tt.field)
			}
		})
	}
}

func TestSlots(t *testing.T) {
	d := &Doctor{ScheduleStart: 600, ScheduleEnd: 700, ScheduleInterval: 30}
	day := time.Date(2024, 5, 1, 15, 4, 5, 0, time.UTC)

	slots := d.Slots(day)
	want := []time.Time{
		time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
	}
	if len(slots) != len(want) {
		t.Fatalf("slots = %v, want %v", slots, want)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Errorf("slot %d = %v, want %v", i, slots[i], want[i])
		}
	}

	if got := len(validDoctor().Slots(day)); got != 10 {
		t.Errorf("default schedule has %d slots, want 10", got)
	}
}

func TestIsSlot(t *testing.T) {
	d := validDoctor()
	tests := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), true},
		{time.Date(2024, 5, 1, 16, 30, 0, 0, time.UTC), true},
		{time.Date(2024, 5, 1, 17, 0, 0, 0, time.UTC), false},
		{time.Date(2024, 5, 1, 12, 15, 0, 0, time.UTC), false},
		{time.Date(2024, 5, 1, 11, 30, 0, 0, time.UTC), false},
		{time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC), false},
	}
	for _, tt := range tests {
		if got := d.IsSlot(tt.at); got != tt.want {
			t.Errorf("IsSlot(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusNotFinished, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusFinished, false},
		{StatusNotFinished, StatusFinished, true},
		{StatusNotFinished, StatusRejected, false},
		{StatusFinished, StatusNotFinished, false},
		{StatusRejected, StatusNotFinished, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	if Status("cancelled").Valid() {
		t.Error("unknown status reported valid")
	}
	if !StatusNotFinished.Active() || StatusFinished.Active() {
		t.Error("Active mismatch")
	}
}

func TestAppointmentValidate(t *testing.T) {
	apt := &Appointment{
		PatientID: primitive.NewObjectID(),
		DoctorID:  primitive.NewObjectID(),
		Date:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Status:    StatusPending,
	}
	if err := apt.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	got := fieldNames((&Appointment{Status: "bogus"}).Validate())
	want := []string{"patient", "doctor", "date", "status"}
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fields = %v, want %v", got, want)
		}
	}
}
