// Package seed fills a development database with an admin, patients,
// confirmed doctors and a few pending appointments.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/emedical/clinic-api/internal/models"
	"github.com/emedical/clinic-api/internal/store"
	"github.com/emedical/clinic-api/internal/utils"
)

const (
	AdminEmail      = "admin@emedical.local"
	DefaultPassword = "test1234"
)

type Options struct {
	Patients int
	Doctors  int
	Password string
	// Seed makes the generated data reproducible when non-zero.
	Seed int64
	Now  time.Time
}

type Result struct {
	Users        int
	Doctors      int
	Appointments int
}

type Seeder struct {
	Users        store.Principals[*models.User]
	Doctors      store.Principals[*models.Doctor]
	Appointments store.Appointments
	Logger       zerolog.Logger
}

func (s *Seeder) Import(ctx context.Context, opts Options) (Result, error) {
	var res Result

	if opts.Seed != 0 {
		gofakeit.Seed(opts.Seed)
	} else {
		gofakeit.Seed(time.Now().UnixNano())
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	// Every seeded account shares one password hash.
	hash, err := utils.HashPassword(opts.Password)
	if err != nil {
		return res, err
	}
	emails := map[string]bool{}

	admin := &models.User{Account: models.Account{
		Name:     "Admin",
		Email:    AdminEmail,
		Role:     models.RoleAdmin,
		Password: hash,
	}}
	emails[AdminEmail] = true
	if err := create(ctx, s.Users, admin); err != nil {
		return res, fmt.Errorf("seed admin: %w", err)
	}
	res.Users++

	patients := make([]*models.User, 0, opts.Patients)
	for i := 0; i < opts.Patients; i++ {
		u := &models.User{Account: models.Account{
			Name:        gofakeit.Name(),
			Email:       uniqueEmail(emails),
			PhoneNumber: gofakeit.Phone(),
			Role:        models.RoleUser,
			Password:    hash,
		}}
		if err := create(ctx, s.Users, u); err != nil {
			return res, fmt.Errorf("seed patient: %w", err)
		}
		patients = append(patients, u)
		res.Users++
	}
	s.Logger.Info().Int("count", res.Users).Msg("users seeded")

	doctors := make([]*models.Doctor, 0, opts.Doctors)
	for i := 0; i < opts.Doctors; i++ {
		department := models.Departments[gofakeit.Number(0, len(models.Departments)-1)]
		clinic := gofakeit.Company()
		d := &models.Doctor{
			Account: models.Account{
				Name:        "Dr. " + gofakeit.Name(),
				Email:       uniqueEmail(emails),
				PhoneNumber: gofakeit.Phone(),
				Role:        models.RoleDoctor,
				Password:    hash,
			},
			Department: department,
			Location:   models.Locations[gofakeit.Number(0, len(models.Locations)-1)],
			Clinic:     clinic,
			Summary:    fmt.Sprintf("%s specialist practising at %s.", department, clinic),
			Confirmed:  true,
		}
		d.ApplyScheduleDefaults()
		if err := create(ctx, s.Doctors, d); err != nil {
			return res, fmt.Errorf("seed doctor: %w", err)
		}
		doctors = append(doctors, d)
		res.Doctors++
	}
	s.Logger.Info().Int("count", res.Doctors).Msg("doctors seeded")

	if len(doctors) == 0 {
		return res, nil
	}

	// Every patient gets one pending appointment on a free slot tomorrow.
	tomorrow := opts.Now.Add(24 * time.Hour)
	taken := map[string]bool{}
	for _, p := range patients {
		d := doctors[gofakeit.Number(0, len(doctors)-1)]
		slots := d.Slots(tomorrow)
		if len(slots) == 0 {
			continue
		}
		slot := slots[gofakeit.Number(0, len(slots)-1)]
		key := d.ID.Hex() + slot.String()
		if taken[key] {
			continue
		}
		taken[key] = true

		apt := &models.Appointment{
			PatientID: p.ID,
			DoctorID:  d.ID,
			Date:      slot,
			Status:    models.StatusPending,
			CreatedAt: opts.Now,
		}
		if err := s.Appointments.Create(ctx, apt); err != nil {
			return res, fmt.Errorf("seed appointment: %w", err)
		}
		res.Appointments++
	}
	s.Logger.Info().Int("count", res.Appointments).Msg("appointments seeded")

	return res, nil
}

func create[T models.Principal](ctx context.Context, principals store.Principals[T], doc T) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	return principals.Create(ctx, doc)
}

func uniqueEmail(seen map[string]bool) string {
	for {
		email := strings.ToLower(gofakeit.Email())
		if !seen[email] {
			seen[email] = true
			return email
		}
	}
}
