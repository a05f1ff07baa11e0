package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localbook/booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedBusinesses(context.Background(), pool, 50); err != nil {
		log.Fatalf("seed businesses: %v", err)
	}
	if err := seedClients(context.Background(), pool, 5000); err != nil {
		log.Fatalf("seed clients: %v", err)
	}

	log.Println("seed complete")
}

// seedBusinesses creates each business with a small service catalog and
// weekday operating windows.
func seedBusinesses(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d businesses", count)

	durations := []int{15, 30, 45, 60, 90}
	serviceNames := []string{
		"Haircut",
		"Consultation",
		"Massage",
		"Manicure",
		"Checkup",
		"Tattoo Session",
		"Personal Training",
		"Cleaning",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		businessID := uuid.New()

		_, err := tx.Exec(ctx, `
			INSERT INTO businesses (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, businessID, gofakeit.Company())
		if err != nil {
			return err
		}

		serviceCount := gofakeit.Number(2, 5)
		for j := 0; j < serviceCount; j++ {
			name := serviceNames[gofakeit.Number(0, len(serviceNames)-1)]
			dur := durations[gofakeit.Number(0, len(durations)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO services (id, business_id, name, duration_minutes, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, uuid.New(), businessID, name, dur)
			if err != nil {
				return err
			}
		}

		// Monday through Friday, 09:00 to 17:00; half Saturdays 10:00 to 14:00.
		for weekday := 1; weekday <= 5; weekday++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO operating_windows (business_id, weekday, open_minute, close_minute)
				VALUES ($1, $2, $3, $4)
			`, businessID, weekday, 9*60, 17*60)
			if err != nil {
				return err
			}
		}
		if gofakeit.Bool() {
			_, err := tx.Exec(ctx, `
				INSERT INTO operating_windows (business_id, weekday, open_minute, close_minute)
				VALUES ($1, 6, $2, $3)
			`, businessID, 10*60, 14*60)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("businesses seeded")
	return nil
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d clients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO clients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("clients seeded: %d/%d", end, count)
	}

	log.Println("clients seeded")
	return nil
}
