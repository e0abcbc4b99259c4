package handler

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/core/service"
)

func newGRPCClient(t *testing.T, store *service.Store) *MatchingClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterMatchingServer(srv, NewGRPCHandler(store, "₱", discardLogger()))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewMatchingClient(conn)
}

func TestGRPC_PlanAcceptAndStatus(t *testing.T) {
	api := newAPI(t)
	reqID, itemID := api.seed()
	client := newGRPCClient(t, api.store)
	ctx := context.Background()

	plan, err := client.Plan(ctx, &PlanRequest{RequisitionID: reqID, ItemID: itemID})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFullyMatched, plan.Status)
	assert.Equal(t, "₱450.00", plan.TotalCostDisplay)

	accepted, err := client.AcceptPlan(ctx, &PlanRequest{RequisitionID: reqID, ItemID: itemID})
	require.NoError(t, err)
	require.Len(t, accepted.Orders, 2)

	_, err = client.AcceptPlan(ctx, &PlanRequest{RequisitionID: reqID, ItemID: itemID})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	order, err := client.UpdateOrderStatus(ctx, &UpdateOrderStatusRequest{
		OrderID: accepted.Orders[0].ID,
		Status:  domain.OrderStatusDelivered,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
}

func TestGRPC_ErrorCodes(t *testing.T) {
	api := newAPI(t)
	reqID, itemID := api.seed()
	client := newGRPCClient(t, api.store)
	ctx := context.Background()

	_, err := client.Plan(ctx, &PlanRequest{RequisitionID: "missing", ItemID: itemID})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.UpdateOrderStatus(ctx, &UpdateOrderStatusRequest{OrderID: "x", Status: "Lost"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.UpdateOrderStatus(ctx, &UpdateOrderStatusRequest{OrderID: "x", Status: domain.OrderStatusPreparing})
	assert.Equal(t, codes.NotFound, status.Code(err))

	// Drain the stock so the next accept has nothing to allocate.
	for _, row := range api.store.Inventory() {
		require.True(t, api.store.DeleteInventoryItem(row.ID))
	}
	_, err = client.AcceptPlan(ctx, &PlanRequest{RequisitionID: reqID, ItemID: itemID})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_Interceptor(t *testing.T) {
	api := newAPI(t)
	reqID, itemID := api.seed()

	var seen []string
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = append(seen, info.FullMethod)
		return handler(ctx, req)
	}))
	RegisterMatchingServer(srv, NewGRPCHandler(api.store, "₱", discardLogger()))
	go srv.Serve(lis)
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	_, err = NewMatchingClient(conn).Plan(context.Background(), &PlanRequest{RequisitionID: reqID, ItemID: itemID})
	require.NoError(t, err)
	assert.Equal(t, []string{"/procurematch.v1.Matching/Plan"}, seen)
}
