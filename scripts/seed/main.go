package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type gradeSeed struct {
	label       string
	description string
}

type materialSeed struct {
	name        string
	description string
	grades      []gradeSeed
}

var catalog = []materialSeed{
	{"Steel", "Carbon and alloy steel plate, sheet and bar", []gradeSeed{
		{"A36", "Structural carbon steel"},
		{"A572", "High-strength low-alloy, grade 50"},
		{"1018", "Cold-rolled low carbon"},
		{"4140", "Chromoly alloy"},
	}},
	{"Stainless Steel", "Corrosion resistant steel", []gradeSeed{
		{"304", "General purpose austenitic"},
		{"316", "Marine grade austenitic"},
	}},
	{"Aluminum", "Wrought aluminum alloys", []gradeSeed{
		{"6061", "Heat treatable structural alloy"},
		{"5052", "Marine sheet alloy"},
		{"7075", "Aerospace alloy"},
	}},
	{"Copper", "Electrical and architectural copper", []gradeSeed{
		{"C110", "Electrolytic tough pitch"},
	}},
	{"Brass", "Free machining brass", []gradeSeed{
		{"C360", "Free cutting brass"},
	}},
}

type stockSeed struct {
	material, grade          string
	length, width, thickness float64
	onHand                   float64
	price                    string
}

var demoStock = []stockSeed{
	{"Steel", "A36", 10, 5, 0.25, 100, "10.00"},
	{"Steel", "A572", 8, 4, 0.5, 40, "14.50"},
	{"Aluminum", "6061", 12, 6, 0.125, 60, "18.75"},
	{"Stainless Steel", "304", 10, 5, 0.1875, 25, "32.00"},
}

func main() {
	schema := flag.String("schema", "migrations/0001_init.sql", "schema file applied before seeding")
	tenant := flag.String("tenant", os.Getenv("SEED_TENANT"), "user id that receives demo inventory")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if *schema != "" {
		fmt.Println("→ Applying schema...")
		ddl, err := os.ReadFile(*schema)
		if err != nil {
			log.Fatalf("read schema: %v", err)
		}
		if _, err := pool.Exec(ctx, string(ddl)); err != nil {
			log.Fatalf("apply schema: %v", err)
		}
	}

	fmt.Println("→ Seeding materials and grades...")
	if err := seedCatalog(ctx, pool); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}

	if *tenant != "" {
		fmt.Println("→ Seeding demo inventory for", *tenant)
		if err := seedInventory(ctx, pool, *tenant); err != nil {
			log.Fatalf("seed inventory: %v", err)
		}
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, m := range catalog {
			var materialID int64
			err := tx.QueryRow(ctx, `INSERT INTO materials (name, description) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
RETURNING id`, m.name, m.description).Scan(&materialID)
			if err != nil {
				return fmt.Errorf("material %s: %w", m.name, err)
			}
			for _, g := range m.grades {
				_, err := tx.Exec(ctx, `INSERT INTO grades (material_id, grade_label, description) VALUES ($1, $2, $3)
ON CONFLICT (material_id, grade_label) DO NOTHING`, materialID, g.label, g.description)
				if err != nil {
					return fmt.Errorf("grade %s %s: %w", m.name, g.label, err)
				}
			}
		}
		return nil
	})
}

func seedInventory(ctx context.Context, pool *pgxpool.Pool, tenant string) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, s := range demoStock {
			price, err := decimal.NewFromString(s.price)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `INSERT INTO inventory
	(user_id, material_id, grade_id, length, width, thickness, on_hand_quantity, allocated_quantity, default_price)
SELECT $1, m.id, g.id, $4, $5, $6, $7, 0, $8
FROM materials m JOIN grades g ON g.material_id = m.id
WHERE m.name = $2 AND g.grade_label = $3
ON CONFLICT ON CONSTRAINT inventory_unique_stock DO NOTHING`,
				tenant, s.material, s.grade, s.length, s.width, s.thickness, s.onHand, price)
			if err != nil {
				return fmt.Errorf("stock %s %s: %w", s.material, s.grade, err)
			}
		}
		return nil
	})
}
