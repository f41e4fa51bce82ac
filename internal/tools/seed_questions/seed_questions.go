package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizdash/quizdash/internal/dbconfig"
	"github.com/quizdash/quizdash/internal/questions"
)

func main() {
	cfg := dbconfig.FromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := questions.NewRepository(pool)
	ctx := context.Background()

	seeded := 0
	for name, qs := range questions.BuiltinSets() {
		// Skip sets that are already loaded.
		if _, err := repo.GetQuestionSetByName(ctx, name); err == nil {
			fmt.Printf("set %q already present, skipping\n", name)
			continue
		} else if !errors.Is(err, questions.ErrSetNotFound) {
			fmt.Fprintf(os.Stderr, "lookup %q: %v\n", name, err)
			os.Exit(1)
		}

		set, err := repo.CreateQuestionSet(ctx, questions.CreateQuestionSetRequest{
			Name:      name,
			Questions: qs,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed %q: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("seeded set %q (%s) with %d questions\n", set.Name, set.ID, len(set.Questions))
		seeded++
	}
	fmt.Printf("done, %d sets seeded\n", seeded)
}
