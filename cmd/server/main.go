package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"pharma-erp/internal/core"
	"pharma-erp/internal/db"
	"pharma-erp/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger.Setup()
	log := logger.WithComponent("server")

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	counterparties := core.NewCounterpartyDirectory(pool)
	catalog := core.NewItemCatalog(pool)
	claims := core.NewClaimAccountDirectory(pool)
	accounts := core.NewAccountResolver(pool)
	sequences := core.NewSequenceGenerator(pool)

	discounts := core.NewDiscountEngine(claims)
	processor := core.NewLineItemProcessor(catalog, discounts)
	stock := core.NewStockLedger(pool, logger.WithComponent("stock"))
	ledger := core.NewFinancialLedger(pool, logger.WithComponent("ledger"))

	invoices := core.NewInvoiceService(pool, counterparties, processor, sequences,
		stock, ledger, accounts, logger.WithComponent("invoices"))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/invoices", func(w http.ResponseWriter, r *http.Request) {
		number := r.URL.Query().Get("number")
		if number == "" {
			http.Error(w, "number query parameter required", http.StatusBadRequest)
			return
		}
		inv, err := invoices.GetByNumber(r.Context(), number)
		if err != nil {
			status := http.StatusInternalServerError
			if core.KindOf(err) == core.KindNotFound {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(inv); err != nil {
			log.Error().Err(err).Msg("encode invoice")
		}
	})

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	log.Info().Str("port", port).Msg("server starting")
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}
