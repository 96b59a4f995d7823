// seed inserts test users into the local dev database and publishes a few
// purchase events (with duplicates) to exercise the consumer's dedup path.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/nurdaulet-ab/account-service/internal/event"
	"github.com/nurdaulet-ab/account-service/internal/infrastructure/postgres"
	"github.com/segmentio/kafka-go"
)

type userSpec struct {
	email string
	name  string
	role  string
}

var users = []userSpec{
	{"alice@test.local", "Alice", "admin"},
	{"bob@test.local", "Bob", "user"},
	{"carol@test.local", "Carol", "user"},
	{"dave@test.local", "Dave", "user"},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	var userIDs []string
	for _, spec := range users {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO users (email, name, role, verified)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
			RETURNING id`,
			spec.email, spec.name, spec.role,
		).Scan(&id)
		if err != nil {
			log.Fatalf("upsert user %s: %v", spec.email, err)
		}
		userIDs = append(userIDs, id)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	for i, spec := range users {
		fmt.Printf("  %-22s %s\n", spec.email, userIDs[i])
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		fmt.Println()
		fmt.Println("KAFKA_BROKERS not set — skipping purchase events")
		return
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(brokers, ",")...),
		Topic:    envOr("KAFKA_TOPIC", "purchases"),
		Balancer: &kafka.LeastBytes{},
	}
	defer writer.Close()

	builder := event.NewBuilder(uuid.NewString)

	events := []event.PurchaseEvent{
		builder.Purchase(userIDs[0], "plan-pro", 1999, "USD"),
		builder.Purchase(userIDs[1], "plan-basic", 499, "USD"),
		builder.Purchase(userIDs[2], "plan-pro", 1999, "EUR"),
	}
	// Redeliver the first event to show the consumer skipping it.
	events = append(events, events[0])

	msgs := make([]kafka.Message, 0, len(events))
	for _, evt := range events {
		raw, err := evt.Marshal()
		if err != nil {
			log.Fatalf("marshal event: %v", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(evt.UserID), Value: raw})
	}
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		log.Fatalf("publish events: %v", err)
	}

	fmt.Println()
	fmt.Printf("  Published %d purchase events (1 duplicate)\n", len(events))
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  curl -s -X POST http://localhost:8080/auth/code \\")
	fmt.Println("    -H 'Content-Type: application/json' -d '{\"email\":\"alice@test.local\"}'")
	fmt.Println()
	fmt.Println("  # Copy the 4-digit code from the server log, then:")
	fmt.Println("  curl -s -X POST http://localhost:8080/auth/verify \\")
	fmt.Println("    -H 'Content-Type: application/json' -d '{\"email\":\"alice@test.local\",\"code\":\"XXXX\"}'")
	fmt.Println()
	fmt.Println("  export JWT=eyJ...")
	fmt.Println("  curl -s http://localhost:8080/me/purchases -H \"Authorization: Bearer $JWT\"")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
