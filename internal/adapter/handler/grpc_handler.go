package handler

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/storefront-cart/internal/core/domain"
	"github.com/rl1809/storefront-cart/internal/core/service"
)

const cartServiceName = "storefront.cart.v1.CartService"

// CartServer is the server API of storefront.cart.v1.CartService. Requests
// and replies are google.protobuf.Struct so clients need no generated code.
type CartServer interface {
	GetCart(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	AddProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProductAmount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchCart(*emptypb.Empty, grpc.ServerStream) error
}

var CartServiceDesc = grpc.ServiceDesc{
	ServiceName: cartServiceName,
	HandlerType: (*CartServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetCart",
			Handler: unaryHandler("GetCart", func() *emptypb.Empty { return new(emptypb.Empty) },
				func(s CartServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
					return s.GetCart(ctx, in)
				}),
		},
		{
			MethodName: "AddProduct",
			Handler: unaryHandler("AddProduct", newStruct,
				func(s CartServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
					return s.AddProduct(ctx, in)
				}),
		},
		{
			MethodName: "RemoveProduct",
			Handler: unaryHandler("RemoveProduct", newStruct,
				func(s CartServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
					return s.RemoveProduct(ctx, in)
				}),
		},
		{
			MethodName: "UpdateProductAmount",
			Handler: unaryHandler("UpdateProductAmount", newStruct,
				func(s CartServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
					return s.UpdateProductAmount(ctx, in)
				}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchCart",
			Handler:       watchCartHandler,
			ServerStreams: true,
		},
	},
	Metadata: "storefront/cart/v1/cart.proto",
}

func RegisterCartServer(s grpc.ServiceRegistrar, srv CartServer) {
	s.RegisterService(&CartServiceDesc, srv)
}

func FullMethod(method string) string {
	return "/" + cartServiceName + "/" + method
}

func newStruct() *structpb.Struct { return new(structpb.Struct) }

func unaryHandler[Req proto.Message](method string, newReq func() Req, call func(CartServer, context.Context, Req) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CartServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(CartServer), ctx, req.(Req))
		})
	}
}

func watchCartHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CartServer).WatchCart(in, stream)
}

type GRPCHandler struct {
	cartService *service.CartService
}

func NewGRPCHandler(cartService *service.CartService) *GRPCHandler {
	return &GRPCHandler{cartService: cartService}
}

func (h *GRPCHandler) GetCart(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return cartReply(h.cartService.Cart(), nil)
}

func (h *GRPCHandler) AddProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID, err := intField(req, "product_id")
	if err != nil {
		return nil, err
	}
	return cartReply(h.cartService.AddProduct(ctx, productID))
}

func (h *GRPCHandler) RemoveProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID, err := intField(req, "product_id")
	if err != nil {
		return nil, err
	}
	return cartReply(h.cartService.RemoveProduct(ctx, productID))
}

func (h *GRPCHandler) UpdateProductAmount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID, err := intField(req, "product_id")
	if err != nil {
		return nil, err
	}
	amount, err := intField(req, "amount")
	if err != nil {
		return nil, err
	}
	return cartReply(h.cartService.UpdateProductAmount(ctx, service.UpdateProductAmount{
		ProductID: productID,
		Amount:    amount,
	}))
}

// WatchCart streams the current cart and then every committed change. Slow
// watchers skip intermediate states and only see the newest cart.
func (h *GRPCHandler) WatchCart(_ *emptypb.Empty, stream grpc.ServerStream) error {
	updates := make(chan domain.Cart, 1)
	unsubscribe := h.cartService.Subscribe(func(cart domain.Cart) {
		select {
		case updates <- cart:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- cart:
		default:
		}
	})
	defer unsubscribe()

	if err := sendCart(stream, h.cartService.Cart()); err != nil {
		return err
	}

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case cart := <-updates:
			if err := sendCart(stream, cart); err != nil {
				return err
			}
		}
	}
}

func sendCart(stream grpc.ServerStream, cart domain.Cart) error {
	reply, err := cartReply(cart, nil)
	if err != nil {
		return err
	}
	return stream.SendMsg(reply)
}

func cartReply(cart domain.Cart, opErr error) (*structpb.Struct, error) {
	items := make([]any, 0, len(cart))
	for _, item := range cart {
		items = append(items, map[string]any{
			"id":     item.ID,
			"title":  item.Title,
			"price":  item.Price,
			"image":  item.Image,
			"amount": item.Amount,
		})
	}

	fields := map[string]any{
		"success":      opErr == nil,
		"message":      "ok",
		"cart":         items,
		"total_amount": cart.TotalAmount(),
		"subtotal":     cart.Subtotal(),
	}
	if opErr != nil {
		fields["message"] = failureMessage(opErr)
		fields["failure"] = service.Classify(opErr).String()
	}

	reply, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode cart: %v", err)
	}
	return reply, nil
}

func intField(req *structpb.Struct, name string) (int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "missing %s", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || math.Trunc(n.NumberValue) != n.NumberValue {
		return 0, status.Error(codes.InvalidArgument, fmt.Sprintf("%s must be an integer", name))
	}
	// Ids and amounts stay within int32 on every platform.
	if n.NumberValue < math.MinInt32 || n.NumberValue > math.MaxInt32 {
		return 0, status.Error(codes.InvalidArgument, fmt.Sprintf("%s is out of range", name))
	}
	return int(n.NumberValue), nil
}
