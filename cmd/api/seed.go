package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/emedical/clinic-api/internal/seed"
	"github.com/emedical/clinic-api/internal/store"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import or delete development data",
		RunE: func(cmd *cobra.Command, args []string) error {
			doImport, _ := cmd.Flags().GetBool("import")
			doDelete, _ := cmd.Flags().GetBool("delete")
			if doImport == doDelete {
				return errors.New("pass exactly one of --import or --delete")
			}

			ctx := context.Background()
			_, log, client, db, err := bootstrap(ctx)
			if err != nil {
				log.Error().Err(err).Msg("startup failed")
				return err
			}
			defer func() {
				_ = client.Disconnect(context.Background())
			}()

			if doDelete {
				deleted, err := store.Purge(ctx, db)
				if err != nil {
					return err
				}
				for name, n := range deleted {
					log.Info().Str("collection", name).Int64("deleted", n).Msg("data deleted")
				}
				return nil
			}

			users := store.NewUserRepository(db)
			doctors := store.NewDoctorRepository(db)
			if err := users.EnsureIndexes(ctx); err != nil {
				return err
			}
			if err := doctors.EnsureIndexes(ctx); err != nil {
				return err
			}

			patients, _ := cmd.Flags().GetInt("patients")
			doctorCount, _ := cmd.Flags().GetInt("doctors")
			password, _ := cmd.Flags().GetString("password")
			fakeSeed, _ := cmd.Flags().GetInt64("seed")

			s := &seed.Seeder{
				Users:        users,
				Doctors:      doctors,
				Appointments: store.NewAppointmentRepository(db),
				Logger:       log,
			}
			res, err := s.Import(ctx, seed.Options{
				Patients: patients,
				Doctors:  doctorCount,
				Password: password,
				Seed:     fakeSeed,
			})
			if err != nil {
				return err
			}
			log.Info().
				Int("users", res.Users).
				Int("doctors", res.Doctors).
				Int("appointments", res.Appointments).
				Msg("data loaded")
			return nil
		},
	}

	cmd.Flags().Bool("import", false, "Load fake users, doctors and appointments")
	cmd.Flags().Bool("delete", false, "Delete every user, doctor and appointment")
	cmd.Flags().Int("patients", 20, "Number of patients to create")
	cmd.Flags().Int("doctors", 10, "Number of confirmed doctors to create")
	cmd.Flags().String("password", seed.DefaultPassword, "Password of every seeded account")
	cmd.Flags().Int64("seed", 0, "Random seed for reproducible data (0 = random)")
	return cmd
}
