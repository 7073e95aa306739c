package shared

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taxilink/internal/models"
	"taxilink/internal/services"
	"taxilink/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Format: "text"})
	if err != nil {
		t.Fatal(err)
	}
	log.SetOutput(io.Discard)
	return log
}

// stubRideService delegates Create to the real validation rules and rejects
// everything else; the handler tests only exercise the create path.
type stubRideService struct {
	lastType models.RideType
	lastDest string
}

func (s *stubRideService) Create(_ context.Context, passengerID primitive.ObjectID, rideType models.RideType, startStop, destinationStop string) (*models.RideRequest, error) {
	if rideType == models.RideTypeRide && destinationStop == "" {
		return nil, services.ErrInvalidTransition
	}
	s.lastType = rideType
	s.lastDest = destinationStop
	taxiID := primitive.NewObjectID()
	return &models.RideRequest{
		ID:          primitive.NewObjectID(),
		PassengerID: passengerID,
		TaxiID:      &taxiID,
		Type:        rideType,
		StartStop:   startStop,
		Status:      models.RideStatusAssigned,
	}, nil
}

func (s *stubRideService) Accept(context.Context, primitive.ObjectID, primitive.ObjectID) (*models.RideRequest, error) {
	return nil, services.ErrNotFound
}

func (s *stubRideService) Complete(context.Context, primitive.ObjectID, primitive.ObjectID) (*models.RideRequest, error) {
	return nil, services.ErrNotFound
}

func (s *stubRideService) Cancel(context.Context, primitive.ObjectID, primitive.ObjectID, string) (*models.RideRequest, error) {
	return nil, services.ErrNotFound
}

func (s *stubRideService) GetByID(context.Context, primitive.ObjectID) (*models.RideRequest, error) {
	return nil, services.ErrNotFound
}

func rideTestRouter(t *testing.T, service services.RideService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := NewRideHandler(service, newTestLogger(t))

	router := gin.New()
	router.POST("/rides", func(c *gin.Context) {
		c.Set("user_id", primitive.NewObjectID())
		c.Set("user_type", "passenger")
		handler.CreateRide(c)
	})
	return router
}

func postRide(router *gin.Engine, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/rides", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestCreateRidePickupWithoutDestination(t *testing.T) {
	service := &stubRideService{}
	router := rideTestRouter(t, service)

	recorder := postRide(router, `{"type":"pickup","start_stop":"east terminal"}`)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", recorder.Code, recorder.Body.String())
	}
	if service.lastType != models.RideTypePickup {
		t.Errorf("service saw type %q, want pickup", service.lastType)
	}
	if service.lastDest != "" {
		t.Errorf("service saw destination %q, want empty", service.lastDest)
	}
}

func TestCreateRideWithDestination(t *testing.T) {
	router := rideTestRouter(t, &stubRideService{})

	recorder := postRide(router, `{"type":"ride","start_stop":"north gate","destination_stop":"market square"}`)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", recorder.Code, recorder.Body.String())
	}
}

func TestCreateRideMissingDestinationIsConflict(t *testing.T) {
	router := rideTestRouter(t, &stubRideService{})

	recorder := postRide(router, `{"type":"ride","start_stop":"north gate"}`)

	if recorder.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body: %s", recorder.Code, recorder.Body.String())
	}
}

func TestCreateRideMissingStartStopIsBadRequest(t *testing.T) {
	router := rideTestRouter(t, &stubRideService{})

	recorder := postRide(router, `{"type":"pickup"}`)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body: %s", recorder.Code, recorder.Body.String())
	}
}
