// internal/services/order_service_test.go
package services

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/dropmart/storefront-backend/internal/marketplace"
	"github.com/dropmart/storefront-backend/internal/models"
)

type OrderServiceTestSuite struct {
	suite.Suite
	db     *gorm.DB
	server *httptest.Server
	orders *OrderService

	mu           sync.Mutex
	createCalls  int
	cancelCalls  int
	statusCalls  int
	failCancel   bool
	remoteStatus string
	trackNumber  string
}

func (s *OrderServiceTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.createCalls = 0
	s.cancelCalls = 0
	s.statusCalls = 0
	s.failCancel = false
	s.remoteStatus = "Pending"
	s.trackNumber = ""

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/authentication/getAccessToken", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, map[string]string{
			"accessToken":           "test-token",
			"accessTokenExpiryDate": time.Now().Add(time.Hour).Format(time.RFC3339),
			"refreshToken":          "test-refresh",
		}, "")
	})
	mux.HandleFunc("/v1/shopping/order/createOrder", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.createCalls++
		s.mu.Unlock()
		writeEnvelope(w, http.StatusOK, true, map[string]string{
			"orderId":     "RO-900",
			"orderNum":    "MKT-900",
			"orderStatus": "Pending",
		}, "")
	})
	mux.HandleFunc("/v1/shopping/order/cancelOrder", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.cancelCalls++
		fail := s.failCancel
		s.mu.Unlock()
		if fail {
			writeEnvelope(w, http.StatusInternalServerError, false, nil, "cancellation window closed")
			return
		}
		writeEnvelope(w, http.StatusOK, true, nil, "")
	})
	mux.HandleFunc("/v1/shopping/order/getOrderStatus", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.statusCalls++
		status := s.remoteStatus
		s.mu.Unlock()
		writeEnvelope(w, http.StatusOK, true, status, "")
	})
	mux.HandleFunc("/v1/shopping/order/getOrderDetail", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := s.remoteStatus
		track := s.trackNumber
		s.mu.Unlock()
		writeEnvelope(w, http.StatusOK, true, map[string]string{
			"orderId":     "RO-900",
			"orderStatus": status,
			"trackNumber": track,
		}, "")
	})
	mux.HandleFunc("/v1/logistic/freightCalculate", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, []map[string]interface{}{
			{"logisticName": "Standard", "logisticPrice": 4.99, "logisticAging": "7-12"},
		}, "")
	})
	s.server = httptest.NewServer(mux)

	cfg := newTestConfig(s.server.URL)
	client := marketplace.NewClient(s.server.URL)
	tokens := NewTokenService(s.db, client, cfg)
	s.orders = NewOrderService(s.db, client, tokens)
}

func (s *OrderServiceTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *OrderServiceTestSuite) newOrderRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		ShippingInfo: map[string]interface{}{
			"phone":        "+1-555-0100",
			"country_code": "US",
			"province":     "CA",
			"city":         "San Francisco",
			"address":      "1 Analytical Way",
			"zip":          "94105",
		},
		Items: []CreateOrderItemRequest{
			{RemoteVariantID: "V1", Quantity: 2, UnitPrice: 19.99},
			{RemoteVariantID: "V2", Quantity: 1, UnitPrice: 24.99},
		},
	}
}

func (s *OrderServiceTestSuite) TestCreateOrderIsLocalOnly() {
	order, err := s.orders.CreateOrder(s.newOrderRequest())
	s.Require().NoError(err)

	s.Contains(order.OrderNumber, "SO-")
	s.Equal(models.OrderStatusPending, order.Status)
	s.Equal(models.PaymentStatusUnpaid, order.PaymentStatus)
	s.InDelta(64.97, order.Subtotal, 0.001)
	s.Len(order.Items, 2)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Equal(0, s.createCalls, "creating a local order must not call the marketplace")
}

func (s *OrderServiceTestSuite) TestFulfillRequiresPayment() {
	order, err := s.orders.CreateOrder(s.newOrderRequest())
	s.Require().NoError(err)

	_, err = s.orders.CreateAndLink(order.ID)
	s.ErrorIs(err, ErrOrderNotPaid)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Equal(0, s.createCalls)
}

func (s *OrderServiceTestSuite) TestFulfillCreatesMapping() {
	order, err := s.orders.CreateOrder(s.newOrderRequest())
	s.Require().NoError(err)
	_, err = s.orders.MarkPaid(order.ID)
	s.Require().NoError(err)

	mapping, err := s.orders.CreateAndLink(order.ID)
	s.Require().NoError(err)
	s.Equal("RO-900", mapping.RemoteOrderID)
	s.Equal("MKT-900", mapping.RemoteOrderNumber)

	refreshed, err := s.orders.GetOrder(order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusProcessing, refreshed.Status)
	s.Equal("RO-900", refreshed.RemoteOrderID)
	s.Require().NotNil(refreshed.Mapping)
}

func (s *OrderServiceTestSuite) TestSecondFulfillRejectedBeforeNetwork() {
	order, err := s.orders.CreateOrder(s.newOrderRequest())
	s.Require().NoError(err)
	_, err = s.orders.MarkPaid(order.ID)
	s.Require().NoError(err)

	_, err = s.orders.CreateAndLink(order.ID)
	s.Require().NoError(err)

	_, err = s.orders.CreateAndLink(order.ID)
	s.ErrorIs(err, ErrMappingExists)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Equal(1, s.createCalls, "a duplicate fulfill must be rejected before the remote call")
}

func (s *OrderServiceTestSuite) TestPollStatusAppliesRemoteState() {
	order, err := s.orders.CreateOrder(s.newOrderRequest())
	s.Require().NoError(err)
	_, err = s.orders.MarkPaid(order.ID)
	s.Require().NoError(err)
	_, err = s.orders.CreateAndLink(order.ID)
	s.Require().NoError(err)

	s.mu.Lock()
	s.remoteStatus = "Shipped"
	s.trackNumber = "TRACK-1"
	s.mu.Unlock()

	mapping, err := s.orders.PollStatus(order.ID)
	s.Require().NoError(err)
	s.Equal("Shipped", mapping.RemoteStatus)
	s.Equal("TRACK-1", mapping.RemoteTrackingNumber)

	refreshed, err := s.orders.GetOrder(order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusShipped, refreshed.Status)
	s.Equal("TRACK-1", refreshed.RemoteTrackingNumber)
}

func (s *OrderServiceTestSuite) TestPollStatusWithoutMapping() {
	order, err := s.orders.CreateOrder(s.newOrderRequest())
	s.Require().NoError(err)

	_, err = s.orders.PollStatus(order.ID)
	s.ErrorIs(err, ErrMappingNotFound)
}

func (s *OrderServiceTestSuite) TestUnknownRemoteStatusKeepsLocalStatus() {
	order, err := s.orders.CreateOrder(s.newOrderRequest())
	s.Require().NoError(err)
	_, err = s.orders.MarkPaid(order.ID)
	s.Require().NoError(err)
	mapping, err := s.orders.CreateAndLink(order.ID)
	s.Require().NoError(err)

	_, err = s.orders.ApplyRemoteStatus(mapping, "SomethingNew", "")
	s.Require().NoError(err)

	refreshed, err := s.orders.GetOrder(order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusProcessing, refreshed.Status)
	s.Equal("SomethingNew", refreshed.RemoteStatus)
}

func (s *OrderServiceTestSuite) TestCancelIsBestEffortOnRemoteFailure() {
	order, err := s.orders.CreateOrder(s.newOrderRequest())
	s.Require().NoError(err)
	_, err = s.orders.MarkPaid(order.ID)
	s.Require().NoError(err)
	_, err = s.orders.CreateAndLink(order.ID)
	s.Require().NoError(err)

	s.mu.Lock()
	s.failCancel = true
	s.mu.Unlock()

	cancelled, err := s.orders.CancelOrder(order.ID, "customer changed mind")
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCancelled, cancelled.Status)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Equal(1, s.cancelCalls)
}

func (s *OrderServiceTestSuite) TestShippedOrderCannotBeCancelled() {
	order, err := s.orders.CreateOrder(s.newOrderRequest())
	s.Require().NoError(err)
	s.Require().NoError(s.db.Model(order).Update("status", models.OrderStatusShipped).Error)

	_, err = s.orders.CancelOrder(order.ID, "")
	s.ErrorIs(err, ErrOrderNotCancellable)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Equal(0, s.cancelCalls)
}

func (s *OrderServiceTestSuite) TestFindMappingByNumberFallback() {
	order, err := s.orders.CreateOrder(s.newOrderRequest())
	s.Require().NoError(err)
	_, err = s.orders.MarkPaid(order.ID)
	s.Require().NoError(err)
	_, err = s.orders.CreateAndLink(order.ID)
	s.Require().NoError(err)

	mapping, err := s.orders.FindMapping("", "MKT-900")
	s.Require().NoError(err)
	s.Equal(order.ID, mapping.OrderID)

	_, err = s.orders.FindMapping("RO-404", "MKT-404")
	s.ErrorIs(err, ErrMappingNotFound)
}

func (s *OrderServiceTestSuite) TestPollableBatchSkipsTerminalOrders() {
	order, err := s.orders.CreateOrder(s.newOrderRequest())
	s.Require().NoError(err)
	_, err = s.orders.MarkPaid(order.ID)
	s.Require().NoError(err)
	_, err = s.orders.CreateAndLink(order.ID)
	s.Require().NoError(err)

	batch, err := s.orders.PollableBatch(10)
	s.Require().NoError(err)
	s.Len(batch, 1)

	s.Require().NoError(s.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", models.OrderStatusDelivered).Error)

	batch, err = s.orders.PollableBatch(10)
	s.Require().NoError(err)
	s.Len(batch, 0)
}

func (s *OrderServiceTestSuite) TestQuoteFreight() {
	options, err := s.orders.QuoteFreight(&marketplace.FreightRequest{
		StartCountryCode: "CN",
		EndCountryCode:   "US",
		Products:         []marketplace.CreateOrderProduct{{Vid: "V1", Quantity: 1}},
	})
	s.Require().NoError(err)
	s.Require().Len(options, 1)
	s.Equal("Standard", options[0].LogisticName)
}

func TestOrderServiceTestSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceTestSuite))
}
