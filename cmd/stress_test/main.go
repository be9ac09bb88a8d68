package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront-ledger/internal/adapter/storage"
	"github.com/rl1809/storefront-ledger/internal/core/domain"
)

const (
	productID = "stress-item"
	unitPrice = "19.99"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "storefront ledger HTTP address")
	dsn := flag.String("dsn", "root:root@tcp(localhost:3306)/storefront?parseTime=true", "MySQL DSN used to seed stock")
	initialStock := flag.Int("stock", 20, "units of the product on hand")
	totalRequests := flag.Int("requests", 50, "concurrent single-unit orders")
	flag.Parse()

	ctx := context.Background()

	db, err := sql.Open("mysql", *dsn)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()

	store := storage.NewMySQLAdapter(db)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	err = store.UpsertProduct(ctx, domain.Product{
		ID:    productID,
		Name:  "Stress test item",
		Price: decimal.RequireFromString(unitPrice),
		Stock: *initialStock,
	})
	if err != nil {
		log.Fatalf("failed to seed stock: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var (
		successCount  atomic.Int32
		rejectedCount atomic.Int32
		errorCount    atomic.Int32
	)

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(customer int) {
			defer wg.Done()

			status, err := placeOrder(client, *baseURL, fmt.Sprintf("customer-%d", customer))
			switch {
			case err != nil:
				log.Printf("customer-%d: %v", customer, err)
				errorCount.Add(1)
			case status == http.StatusOK:
				successCount.Add(1)
			case status == http.StatusConflict:
				rejectedCount.Add(1)
			default:
				log.Printf("customer-%d: unexpected status %d", customer, status)
				errorCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := int(successCount.Load())
	rejected := int(rejectedCount.Load())

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of stock:     %d\n", rejected)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	expected := min(*initialStock, *totalRequests)
	if success == expected && rejected == *totalRequests-expected {
		fmt.Printf("PASS: exactly %d orders succeeded, %d were out of stock\n", success, rejected)
	} else {
		fmt.Printf("FAIL: expected %d success/%d out of stock, got %d/%d\n",
			expected, *totalRequests-expected, success, rejected)
	}

	finalStock, err := store.GetStock(ctx, productID)
	if err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}
	fmt.Printf("Final Stock: %d\n", finalStock)

	if finalStock == *initialStock-success {
		fmt.Println("PASS: stock matches committed orders")
	} else {
		fmt.Printf("FAIL: expected stock %d, got %d\n", *initialStock-success, finalStock)
	}
}

func placeOrder(client *http.Client, baseURL, customerID string) (int, error) {
	body, err := json.Marshal(map[string]any{
		"customerId":       customerID,
		"totalPrice":       unitPrice,
		"deliveryMethod":   string(domain.DeliveryHomeDelivery),
		"lines":            []map[string]any{{"productId": productID, "quantity": 1}},
		"address":          "1 Load Test Way",
		"paymentReference": "tok_" + customerID,
	})
	if err != nil {
		return 0, err
	}

	resp, err := client.Post(baseURL+"/api/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
