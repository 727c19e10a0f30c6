package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinic-scheduling/internal/db"
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

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 40)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedSlots(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]int64, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO doctors (first_name, last_name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			RETURNING id
		`, gofakeit.FirstName(), gofakeit.LastName(), spec).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

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
			// sequential national ids keep the unique constraint happy
			nationalID := fmt.Sprintf("%011d", 10000000000+int64(i))

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (first_name, last_name, national_id, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, gofakeit.FirstName(), gofakeit.LastName(), nationalID)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// seedSlots gives every doctor two weeks of half-hour windows, 09:00-16:00.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, doctorIDs []int64) error {
	log.Printf("seeding slots for %d doctors", len(doctorIDs))

	day := time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	total := 0
	for _, doctorID := range doctorIDs {
		for d := 0; d < 14; d++ {
			start := day.AddDate(0, 0, d).Add(9 * time.Hour)
			for h := 0; h < 14; h++ {
				slotStart := start.Add(time.Duration(h) * 30 * time.Minute)

				_, err := tx.Exec(ctx, `
					INSERT INTO doctor_slots (doctor_id, start_time, end_time, available, created_at, updated_at)
					VALUES ($1, $2, $3, true, now(), now())
				`, doctorID, slotStart, slotStart.Add(30*time.Minute))
				if err != nil {
					return err
				}
				total++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("slots seeded: %d", total)
	return nil
}
