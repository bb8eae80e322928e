package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faker/faker/v4"
)

// PaymentRequest mirrors the body of POST /api/v1/courses/{courseID}/payments.
type PaymentRequest struct {
	CardName           string `json:"card_name"`
	CardNumber         string `json:"card_number"`
	CardExpirationDate string `json:"card_expiration_date"`
	CardCVV            string `json:"card_cvv"`
}

func main() {
	baseURL := flag.String("target", "http://localhost:8080", "Academy API base URL")
	courseID := flag.String("course", "", "Course to pay for")
	token := flag.String("token", "", "Bearer token of the paying student")
	rps := flag.Int("rps", 5, "Requests per second")
	flag.Parse()

	if *courseID == "" || *token == "" || *rps <= 0 {
		log.Fatal("-course, -token and a positive -rps are required")
	}
	url := fmt.Sprintf("%s/api/v1/courses/%s/payments", *baseURL, *courseID)
	log.Printf("Starting generator: target=%s, rps=%d\n", url, *rps)

	ticker := time.NewTicker(time.Second / time.Duration(*rps))
	defer ticker.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: 30 * time.Second}
	for {
		select {
		case <-ticker.C:
			go sendRequest(ctx, client, url, *token, fakePayment(time.Now()))
		case <-ctx.Done():
			log.Println("Shutting down generator...")
			return
		}
	}
}

// fakePayment builds a card that passes validation; the gateway decides the outcome.
func fakePayment(now time.Time) PaymentRequest {
	expiry := now.AddDate(2, 0, 0)
	return PaymentRequest{
		CardName:           faker.Name(),
		CardNumber:         faker.CCNumber(),
		CardExpirationDate: fmt.Sprintf("%02d/%02d", int(expiry.Month()), expiry.Year()%100),
		CardCVV:            "123",
	}
}

func sendRequest(ctx context.Context, client *http.Client, url, token string, payment PaymentRequest) {
	body, err := json.Marshal(payment)
	if err != nil {
		log.Printf("ERROR: failed to marshal request: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Printf("ERROR: failed to build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("ERROR: failed to send request: %v", err)
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	log.Printf("INFO: card ending %s answered with status %d", lastFour(payment.CardNumber), resp.StatusCode)
}

func lastFour(n string) string {
	if len(n) < 4 {
		return n
	}
	return n[len(n)-4:]
}
