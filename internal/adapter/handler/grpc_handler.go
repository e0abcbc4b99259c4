package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/core/service"
)

const (
	matchingServiceName = "procurematch.v1.Matching"

	// JSONContentSubtype selects the JSON codec on a call.
	JSONContentSubtype = "json"
)

// jsonCodec lets the Matching service exchange plain Go structs without
// generated protobuf types.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONContentSubtype }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type PlanRequest struct {
	RequisitionID string `json:"requisitionId"`
	ItemID        string `json:"itemId"`
}

type UpdateOrderStatusRequest struct {
	OrderID string             `json:"orderId"`
	Status  domain.OrderStatus `json:"status"`
}

type MatchingServer interface {
	Plan(context.Context, *PlanRequest) (*PlanResponse, error)
	AcceptPlan(context.Context, *PlanRequest) (*AcceptResponse, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*domain.Order, error)
}

var MatchingServiceDesc = grpc.ServiceDesc{
	ServiceName: matchingServiceName,
	HandlerType: (*MatchingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Plan", Handler: unaryHandler("Plan", MatchingServer.Plan)},
		{MethodName: "AcceptPlan", Handler: unaryHandler("AcceptPlan", MatchingServer.AcceptPlan)},
		{MethodName: "UpdateOrderStatus", Handler: unaryHandler("UpdateOrderStatus", MatchingServer.UpdateOrderStatus)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "procurematch/v1/matching.proto",
}

func unaryHandler[Req, Resp any](method string, call func(MatchingServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + matchingServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MatchingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MatchingServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func RegisterMatchingServer(s grpc.ServiceRegistrar, srv MatchingServer) {
	s.RegisterService(&MatchingServiceDesc, srv)
}

type GRPCHandler struct {
	store    *service.Store
	currency string
	log      logrus.FieldLogger
}

func NewGRPCHandler(store *service.Store, currency string, log logrus.FieldLogger) *GRPCHandler {
	return &GRPCHandler{store: store, currency: currency, log: log.WithField("module", "grpc")}
}

func (h *GRPCHandler) Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error) {
	plan, err := h.store.PlanFor(req.RequisitionID, req.ItemID)
	if err != nil {
		return nil, h.toStatus("Plan", err)
	}
	resp := newPlanResponse(h.currency, plan)
	return &resp, nil
}

// AcceptPlan plans against the current inventory and commits that plan.
func (h *GRPCHandler) AcceptPlan(ctx context.Context, req *PlanRequest) (*AcceptResponse, error) {
	plan, orders, err := h.store.AcceptItem(ctx, req.RequisitionID, req.ItemID)
	if err != nil {
		return nil, h.toStatus("AcceptPlan", err)
	}
	return &AcceptResponse{Plan: newPlanResponse(h.currency, plan), Orders: orders}, nil
}

func (h *GRPCHandler) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*domain.Order, error) {
	order, err := h.store.UpdateOrderStatus(ctx, req.OrderID, req.Status)
	if err != nil {
		return nil, h.toStatus("UpdateOrderStatus", err)
	}
	return &order, nil
}

func (h *GRPCHandler) toStatus(method string, err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		h.log.WithField("method", method).WithError(err).Error("rpc failed")
		return status.Error(codes.Internal, "internal error")
	}
}

// MatchingClient calls the Matching service with the JSON codec.
type MatchingClient struct {
	cc grpc.ClientConnInterface
}

func NewMatchingClient(cc grpc.ClientConnInterface) *MatchingClient {
	return &MatchingClient{cc: cc}
}

func (c *MatchingClient) Plan(ctx context.Context, in *PlanRequest, opts ...grpc.CallOption) (*PlanResponse, error) {
	out := new(PlanResponse)
	if err := c.invoke(ctx, "Plan", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MatchingClient) AcceptPlan(ctx context.Context, in *PlanRequest, opts ...grpc.CallOption) (*AcceptResponse, error) {
	out := new(AcceptResponse)
	if err := c.invoke(ctx, "AcceptPlan", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MatchingClient) UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*domain.Order, error) {
	out := new(domain.Order)
	if err := c.invoke(ctx, "UpdateOrderStatus", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MatchingClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONContentSubtype)}, opts...)
	return c.cc.Invoke(ctx, "/"+matchingServiceName+"/"+method, in, out, opts...)
}
