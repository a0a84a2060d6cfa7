package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/config"
	"github.com/lii16com/arkilino/internal/repository/backend"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	store, closeStore, err := backend.Open(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open document store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	doc, err := store.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load document: %v\n", err)
		os.Exit(1)
	}

	orders := doc.OrdersNewestFirst()
	fmt.Printf("📋 %d orders (newest first):\n", len(orders))

	for i, o := range orders {
		fmt.Printf("Order #%d:\n", i+1)
		fmt.Printf("  ID: %s\n", o.ID)
		fmt.Printf("  Created: %s\n", o.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Status: %s\n", o.Status)
		fmt.Printf("  Customer: %s (%s)\n", o.Customer.Name, o.Customer.Phone)
		fmt.Printf("  Address: %s\n", o.Customer.Address)
		for _, it := range o.Items {
			fmt.Printf("    - %s x%d @ %d", it.Title, it.Quantity, it.Price)
			for _, e := range it.Extras {
				fmt.Printf(" +%s(%d)", e.Name, e.Price)
			}
			fmt.Println()
		}
		fmt.Printf("  Total: %d\n", o.Total)
		fmt.Println()
	}

	if len(doc.Chats) > 0 {
		fmt.Printf("💬 %d chat threads\n", len(doc.Chats))
	}
}
