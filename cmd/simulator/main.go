package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/repair-desk/internal/models"
)

var (
	stores          = []string{"Downtown", "Uptown", "Harbor", "Airport", "Riverside"}
	equipmentModels = []string{"Treadmill T5", "Bike B2", "Rower R1", "Elliptical E7", "Stepper S3"}
	visitTypes      = []string{"repair", "maintenance", "installation"}
	issues          = []string{"belt slipping", "display flickers", "noisy bearing", "no power", "resistance stuck"}
	serviceNotes    = []string{"diagnosed", "part ordered", "part replaced", "tested under load", "cleaned and lubricated"}
)

var authToken string

var httpClient = &http.Client{Timeout: 10 * time.Second}

func authorizedRequest(method, url string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	return httpClient.Do(req)
}

// WorkState tracks one simulated work order between ticks.
type WorkState struct {
	WorkCode   string
	Technician string
	Status     models.Status
	Notes      int
	Images     int
}

func randomCreateRequest(r *rand.Rand) models.CreateRequest {
	return models.CreateRequest{
		Store:               stores[r.Intn(len(stores))],
		Date:                time.Now().AddDate(0, 0, r.Intn(14)).Format(models.DateLayout),
		EquipmentModel:      equipmentModels[r.Intn(len(equipmentModels))],
		ServiceVisitType:    visitTypes[r.Intn(len(visitTypes))],
		IssueAboutEquipment: issues[r.Intn(len(issues))],
		CustomerName:        fmt.Sprintf("Customer %03d", r.Intn(1000)),
		CustomerAddress:     fmt.Sprintf("%d Main St", 1+r.Intn(400)),
		CustomerPhoneNumber: fmt.Sprintf("555-%04d", r.Intn(10000)),
		AmountPaidBy:        []models.PaidBy{models.PaidByStore, models.PaidByCustomer}[r.Intn(2)],
	}
}

func createWork(apiURL string, req models.CreateRequest) (string, error) {
	resp, err := authorizedRequest(http.MethodPost, apiURL+"/works", req)
	if err != nil {
		return "", fmt.Errorf("failed to create work order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("work order creation failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var wo models.WorkOrder
	if err := json.NewDecoder(resp.Body).Decode(&wo); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if wo.WorkCode == "" {
		return "", fmt.Errorf("response carried no work code")
	}
	return wo.WorkCode, nil
}

// progressUpdate is the body sent to the update endpoint.
type progressUpdate struct {
	models.WorkOrderPatch
	Attachments []string `json:"attachments,omitempty"`
}

// nextUpdate advances s by one simulated step and returns the update to
// send. It returns false once s is terminal.
func nextUpdate(r *rand.Rand, s *WorkState) (progressUpdate, bool) {
	var u progressUpdate
	switch s.Status {
	case models.StatusSubmitted:
		if r.Float64() < 0.1 {
			s.Status = models.StatusRejected
			note := "rejected at intake"
			u.ServiceUpdates = &note
		} else {
			s.Status = models.StatusInProgress
			tech := s.Technician
			u.Technician = &tech
		}
		status := s.Status
		u.Status = &status
	case models.StatusInProgress:
		s.Notes++
		note := fmt.Sprintf("%d: %s", s.Notes, serviceNotes[r.Intn(len(serviceNotes))])
		u.ServiceUpdates = &note
		if r.Float64() < 0.5 {
			s.Images++
			u.Attachments = []string{fmt.Sprintf("%s/photo-%d.jpg", s.WorkCode, s.Images)}
		}
		if s.Notes >= 3 && r.Float64() < 0.4 {
			s.Status = models.StatusCompleted
			status := s.Status
			u.Status = &status
			amount := fmt.Sprintf("%d.00", 40+r.Intn(200))
			u.AmountUpdates = &amount
		}
	default:
		return u, false
	}
	return u, true
}

func sendUpdate(apiURL, code string, u progressUpdate) error {
	resp, err := authorizedRequest(http.MethodPut, apiURL+"/works/"+code+"/update", u)
	if err != nil {
		return fmt.Errorf("failed to send update: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update rejected with status %d", resp.StatusCode)
	}
	return nil
}

func simulateWork(ctx context.Context, apiURL string, s *WorkState, interval time.Duration, r *rand.Rand) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		u, ok := nextUpdate(r, s)
		if !ok {
			log.WithFields(log.Fields{"work_code": s.WorkCode, "status": s.Status}).Info("Work order finished")
			return
		}
		if err := sendUpdate(apiURL, s.WorkCode, u); err != nil {
			log.WithError(err).WithField("work_code", s.WorkCode).Error("Failed to update work order")
			continue
		}
		log.WithFields(log.Fields{"work_code": s.WorkCode, "status": s.Status}).Info("Sent update")
	}
}

func main() {
	// needs an admin or moderator token to assign technicians
	authToken = os.Getenv("SIM_AUTH_TOKEN")

	workCount := 10
	if val := os.Getenv("WORK_COUNT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			workCount = n
		}
	}

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	interval := 2 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	log.WithFields(log.Fields{
		"work_count": workCount,
		"api_url":    apiURL,
		"interval":   interval,
	}).Info("Starting repair desk simulation")

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	states := make([]*WorkState, 0, workCount)
	for i := 0; i < workCount; i++ {
		code, err := createWork(apiURL, randomCreateRequest(r))
		if err != nil {
			log.WithError(err).Error("Failed to create work order")
			continue
		}
		states = append(states, &WorkState{
			WorkCode:   code,
			Technician: fmt.Sprintf("tech-%d", 1+r.Intn(3)),
			Status:     models.StatusSubmitted,
		})
	}

	log.WithField("created_work_orders", len(states)).Info("Work order creation completed")
	if len(states) == 0 {
		log.Error("No work orders created. Ensure SIM_AUTH_TOKEN is valid and API is reachable. Exiting.")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, s := range states {
		wg.Add(1)
		go func(s *WorkState, seed int64) {
			defer wg.Done()
			simulateWork(ctx, apiURL, s, interval, rand.New(rand.NewSource(seed)))
		}(s, r.Int63())
	}
	wg.Wait()
	log.Info("Simulation finished")
}
