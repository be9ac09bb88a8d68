package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/storefront-ledger/internal/adapter/handler/pb"
)

const bufSize = 1024 * 1024

type GRPCHandlerSuite struct {
	suite.Suite

	fixture  *fixture
	listener *bufconn.Listener
	server   *grpc.Server
	conn     *grpc.ClientConn
	client   pb.OrderServiceClient
}

func TestGRPCHandlerSuite(t *testing.T) {
	suite.Run(t, new(GRPCHandlerSuite))
}

func (s *GRPCHandlerSuite) SetupTest() {
	s.fixture = newFixture(s.T())
	s.serve(s.fixture.service)
}

func (s *GRPCHandlerSuite) TearDownTest() {
	s.stop()
}

// serve starts a server over an in-memory listener and dials it.
func (s *GRPCHandlerSuite) serve(orders OrderAPI) {
	listener := bufconn.Listen(bufSize)
	s.listener = listener
	s.server = grpc.NewServer()
	pb.RegisterOrderServiceServer(s.server, NewGRPCHandler(orders, zap.NewNop()))
	go s.server.Serve(listener)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	s.Require().NoError(err)
	s.conn = conn
	s.client = pb.NewOrderServiceClient(conn)
}

func (s *GRPCHandlerSuite) stop() {
	s.conn.Close()
	s.server.GracefulStop()
	s.listener.Close()
}

func (s *GRPCHandlerSuite) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	s.T().Cleanup(cancel)
	return ctx
}

func (s *GRPCHandlerSuite) placeRequest() *pb.PlaceOrderRequest {
	return &pb.PlaceOrderRequest{
		CustomerId:       "c1",
		CustomerName:     "Ada",
		TotalPrice:       "20.00",
		DeliveryMethod:   "home_delivery",
		DeliveryDate:     "2024-03-05",
		Lines:            []*pb.OrderLine{{ProductId: "p1", Quantity: 2, UnitPriceHint: "10.00"}},
		Address:          "1 Main St",
		PaymentReference: "tok_123",
	}
}

func (s *GRPCHandlerSuite) assertCode(err error, want codes.Code) {
	s.Require().Error(err)
	st, ok := status.FromError(err)
	s.Require().True(ok, "expected a gRPC status, got %v", err)
	s.Equal(want, st.Code(), st.Message())
}

func (s *GRPCHandlerSuite) TestPlaceAndListOrders() {
	resp, err := s.client.PlaceOrder(s.ctx(), s.placeRequest())
	s.Require().NoError(err)
	s.NotEmpty(resp.GetOrderId())

	list, err := s.client.ListOrders(s.ctx(), &pb.ListOrdersRequest{CustomerId: "c1"})
	s.Require().NoError(err)
	s.Require().Len(list.GetOrders(), 1)
	got := list.GetOrders()[0]
	s.Equal(resp.GetOrderId(), got.OrderId)
	s.Equal("20.00", got.TotalPrice)
	s.Equal("pending", got.Status)
	s.Equal("2024-03-05", got.DeliveryDate)
}

func (s *GRPCHandlerSuite) TestIdempotencyKeyReplays() {
	req := s.placeRequest()
	req.IdempotencyKey = "cart-7"

	first, err := s.client.PlaceOrder(s.ctx(), req)
	s.Require().NoError(err)
	second, err := s.client.PlaceOrder(s.ctx(), req)
	s.Require().NoError(err)
	s.Equal(first.GetOrderId(), second.GetOrderId())

	stock, err := s.fixture.store.GetStock(context.Background(), "p1")
	s.Require().NoError(err)
	s.Equal(5, stock)
}

func (s *GRPCHandlerSuite) TestErrorCodes() {
	badPrice := s.placeRequest()
	badPrice.TotalPrice = "twenty"
	_, err := s.client.PlaceOrder(s.ctx(), badPrice)
	s.assertCode(err, codes.InvalidArgument)

	mismatch := s.placeRequest()
	mismatch.Lines[0].UnitPriceHint = "9.99"
	_, err = s.client.PlaceOrder(s.ctx(), mismatch)
	s.assertCode(err, codes.Aborted)

	tooMany := s.placeRequest()
	tooMany.Lines[0].Quantity = 8
	tooMany.TotalPrice = "80.00"
	_, err = s.client.PlaceOrder(s.ctx(), tooMany)
	s.assertCode(err, codes.FailedPrecondition)

	unknown := s.placeRequest()
	unknown.Lines[0].ProductId = "nope"
	_, err = s.client.PlaceOrder(s.ctx(), unknown)
	s.assertCode(err, codes.NotFound)

	_, err = s.client.ListOrders(s.ctx(), &pb.ListOrdersRequest{})
	s.assertCode(err, codes.InvalidArgument)

	_, err = s.client.CancelOrder(s.ctx(), &pb.CancelOrderRequest{OrderId: "missing"})
	s.assertCode(err, codes.NotFound)
}

func (s *GRPCHandlerSuite) TestStatusLifecycle() {
	placed, err := s.client.PlaceOrder(s.ctx(), s.placeRequest())
	s.Require().NoError(err)
	id := placed.GetOrderId()

	_, err = s.client.UpdateOrderStatus(s.ctx(), &pb.UpdateOrderStatusRequest{OrderId: id, Status: "delivered"})
	s.assertCode(err, codes.FailedPrecondition)

	resp, err := s.client.UpdateOrderStatus(s.ctx(), &pb.UpdateOrderStatusRequest{OrderId: id, Status: "shipped"})
	s.Require().NoError(err)
	s.Equal("shipped", resp.Status)

	_, err = s.client.CancelOrder(s.ctx(), &pb.CancelOrderRequest{OrderId: id})
	s.assertCode(err, codes.FailedPrecondition)

	other, err := s.client.PlaceOrder(s.ctx(), s.placeRequest())
	s.Require().NoError(err)
	_, err = s.client.CancelOrder(s.ctx(), &pb.CancelOrderRequest{OrderId: other.GetOrderId()})
	s.Require().NoError(err)

	stock, err := s.fixture.store.GetStock(context.Background(), "p1")
	s.Require().NoError(err)
	s.Equal(5, stock)
}

func (s *GRPCHandlerSuite) TestStoreUnavailableIsUnavailable() {
	s.stop()
	s.serve(unavailableOrders{})

	_, err := s.client.PlaceOrder(s.ctx(), s.placeRequest())
	s.assertCode(err, codes.Unavailable)
	st, _ := status.FromError(err)
	s.Equal("store unavailable, retry later", st.Message())

	_, err = s.client.ListOrders(s.ctx(), &pb.ListOrdersRequest{CustomerId: "c1"})
	s.assertCode(err, codes.Unavailable)
}
