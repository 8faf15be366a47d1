package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/appointment"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/calendar"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/config"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/db"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/pkg/logging"
)

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL")).With().Str("service", "seed").Logger()
	logger.Info().Msg("seed starting")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("seed only targets the postgres store")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	doctors, err := seedDoctors(context.Background(), pool, faker, logger, 12)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(context.Background(), pool, faker, logger, 2000); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	today := calendar.StartOfDay(time.Now(), cfg.FacilityTZ)
	if err := seedUnavailability(context.Background(), pool, faker, logger, doctors, today); err != nil {
		logger.Fatal().Err(err).Msg("seed unavailability")
	}

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, logger zerolog.Logger, count int) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding doctors")

	specialties := []string{
		"General Practice",
		"Paediatrics",
		"Dermatology",
		"Cardiology",
		"Obstetrics",
		"Psychiatry",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr " + faker.LastName()
		spec := specialties[faker.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, active, created_at, updated_at)
			VALUES ($1, $2, $3, true, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, logger zerolog.Logger, count int) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), faker.Name(), faker.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
		logger.Debug().Int("seeded", end).Int("total", count).Msg("patients progress")
	}
	return nil
}

// seedUnavailability gives roughly a third of the doctors one block over the
// next two weeks, alternating full-day leave and morning theatre sessions.
func seedUnavailability(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, logger zerolog.Logger, doctors []uuid.UUID, from time.Time) error {
	repo := appointment.NewPgRepository(pool)
	reasons := []string{"annual leave", "conference", "theatre list", "training"}

	created := 0
	for i, doctorID := range doctors {
		if i%3 != 0 {
			continue
		}
		day := from.AddDate(0, 0, faker.Number(1, 14))
		if !calendar.IsOpen(day).Open {
			continue
		}

		block := appointment.Block{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			Date:      day,
			Kind:      appointment.BlockFullDay,
			Reason:    reasons[faker.Number(0, len(reasons)-1)],
			CreatedAt: time.Now().UTC(),
		}
		if i%2 == 0 {
			block.Kind = appointment.BlockTimeSlot
			block.Start = calendar.OpeningHour * time.Hour
			block.End = (calendar.OpeningHour + 3) * time.Hour
		}
		if _, err := repo.InsertBlock(ctx, block); err != nil {
			return err
		}
		created++
	}

	logger.Info().Int("count", created).Msg("unavailability blocks seeded")
	return nil
}
