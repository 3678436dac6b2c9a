package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/studyhall/studyhall/go/internal/dbconfig"
)

// User mirrors the JSON structure
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// Room mirrors the JSON structure
type Room struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatorID string `json:"creator_id"`
	CreatedAt string `json:"created_at"`
}

type snapshot struct {
	Users []User `json:"users"`
	Rooms []Room `json:"rooms"`
}

func main() {
	// 1) Load the JSON snapshot
	data, err := os.ReadFile("go/internal/assets/rooms.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert users first so room creator references resolve
	var (
		inserted int
		skipped  int
		errs     int
	)

	for _, u := range snap.Users {
		cmdTag, err := pool.Exec(context.Background(), `
            INSERT INTO users (id, username, role, created_at)
            VALUES ($1,$2,$3,$4)
            ON CONFLICT (id) DO NOTHING
        `,
			u.ID, u.Username, u.Role, u.CreatedAt,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting user %s: %v\n", u.ID, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	for _, r := range snap.Rooms {
		cmdTag, err := pool.Exec(context.Background(), `
            INSERT INTO rooms (id, name, creator_id, created_at)
            VALUES ($1,$2,$3,$4)
            ON CONFLICT (id) DO NOTHING
        `,
			r.ID, r.Name, r.CreatorID, r.CreatedAt,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting room %s: %v\n", r.ID, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	total := len(snap.Users) + len(snap.Rooms)
	fmt.Printf("seeded %d/%d rows (%d skipped, %d errors)\n", inserted, total, skipped, errs)
	if errs > 0 {
		os.Exit(1)
	}
}
