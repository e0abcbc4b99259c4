package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rl1809/procurematch/internal/adapter/handler"
	"github.com/rl1809/procurematch/internal/core/domain"
)

const (
	itemName      = "Stress Test Gloves"
	brand         = "Generix"
	location      = "Region I"
	requestedQty  = 100
	totalRequests = 50
)

var (
	baseURL  = flag.String("url", "http://localhost:8080", "HTTP API base url")
	grpcAddr = flag.String("grpc", "", "accept over gRPC at this address instead of HTTP")
	requests = flag.Int("n", totalRequests, "concurrent accept calls")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	// Seed two lots and one requisition over HTTP.
	for _, lot := range []domain.InventoryInput{
		{SupplierName: "Stress Supplier A", ItemName: itemName, Brand: brand, Quantity: 60, Price: decimal.NewFromInt(5), DeliveryRegions: location},
		{SupplierName: "Stress Supplier B", ItemName: itemName, Brand: brand, Quantity: 60, Price: decimal.NewFromInt(4), DeliveryRegions: location},
	} {
		var created handler.CreatedResponse
		if err := post(*baseURL+"/api/inventory", lot, &created); err != nil {
			log.Fatalf("failed to add inventory: %v", err)
		}
	}

	var created handler.CreatedResponse
	err := post(*baseURL+"/api/requisitions", handler.CreateRequisitionRequest{
		RequisitionHeader: domain.RequisitionHeader{
			DeliveryDate:     time.Now().AddDate(0, 0, 7).Format(time.DateOnly),
			DeliveryLocation: location,
			Urgency:          domain.UrgencyCritical,
		},
		Items: []domain.ItemInput{{ItemName: itemName, Brand: brand, Quantity: requestedQty}},
	}, &created)
	if err != nil {
		log.Fatalf("failed to create requisition: %v", err)
	}

	var req domain.Requisition
	if err := get(*baseURL+"/api/requisitions/"+created.ID, &req); err != nil {
		log.Fatalf("failed to read requisition: %v", err)
	}
	itemID := req.Items[0].ID

	accept := httpAccept(created.ID, itemID)
	if *grpcAddr != "" {
		conn, err := grpc.NewClient(*grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			log.Fatalf("failed to dial grpc: %v", err)
		}
		defer conn.Close()
		accept = grpcAccept(ctx, handler.NewMatchingClient(conn), created.ID, itemID)
	}

	// Counters
	var successCount atomic.Int32
	var conflictCount atomic.Int32
	var errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ok, conflict, err := accept()
			switch {
			case err != nil:
				errorCount.Add(1)
				log.Printf("accept error: %v", err)
			case ok:
				successCount.Add(1)
			case conflict:
				conflictCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	conflicts := conflictCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Requisition Item: %s\n", itemID)
	fmt.Printf("Total Requests:   %d\n", *requests)
	fmt.Printf("Accepted:         %d\n", success)
	fmt.Printf("Conflicts:        %d\n", conflicts)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == 1 && conflicts == int32(*requests-1) {
		fmt.Println("PASS: Exactly 1 accept succeeded, the rest conflicted")
	} else {
		fmt.Printf("FAIL: Expected 1 success/%d conflicts, got %d/%d\n", *requests-1, success, conflicts)
	}

	var orders []domain.Order
	if err := get(*baseURL+"/api/orders", &orders); err != nil {
		log.Fatalf("failed to list orders: %v", err)
	}
	units := 0
	for _, o := range orders {
		if o.ItemID == itemID {
			units += o.Quantity
		}
	}
	fmt.Printf("Units Ordered:    %d\n", units)

	if units == requestedQty {
		fmt.Printf("PASS: Orders cover exactly %d units\n", requestedQty)
	} else {
		fmt.Printf("FAIL: Expected %d units ordered, got %d\n", requestedQty, units)
	}
}

type acceptFunc func() (ok, conflict bool, err error)

func httpAccept(reqID, itemID string) acceptFunc {
	url := fmt.Sprintf("%s/api/requisitions/%s/items/%s/accept", *baseURL, reqID, itemID)
	return func() (bool, bool, error) {
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			return false, false, err
		}
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			return true, false, nil
		case http.StatusConflict:
			return false, true, nil
		default:
			return false, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	}
}

func grpcAccept(ctx context.Context, client *handler.MatchingClient, reqID, itemID string) acceptFunc {
	in := &handler.PlanRequest{RequisitionID: reqID, ItemID: itemID}
	return func() (bool, bool, error) {
		_, err := client.AcceptPlan(ctx, in)
		switch status.Code(err) {
		case codes.OK:
			return true, false, nil
		case codes.FailedPrecondition:
			return false, true, nil
		default:
			return false, false, err
		}
	}
}

func post(url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func get(url string, out any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
