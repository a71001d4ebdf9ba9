package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gpstrackergsm/gps-saas-platform/internal/models"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/service"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/state"
	"github.com/Gpstrackergsm/gps-saas-platform/pkg/ws"
)

type stubPositionStore struct {
	inserted []*models.Position
}

func (s *stubPositionStore) Insert(ctx context.Context, pos *models.Position) error {
	s.inserted = append(s.inserted, pos)
	return nil
}

type stubDeviceStore struct {
	snap state.Snapshot
}

func (s *stubDeviceStore) GetState(ctx context.Context, deviceID string) (state.Snapshot, error) {
	return s.snap, nil
}

func (s *stubDeviceStore) ApplyReading(ctx context.Context, deviceID, newState string, ts time.Time, alarm string) error {
	return nil
}

func (s *stubDeviceStore) Heartbeat(ctx context.Context, deviceID string, ts time.Time) error {
	return nil
}

type stubRawLogStore struct{}

func (stubRawLogStore) Insert(ctx context.Context, payload string, receivedAt time.Time) error {
	return nil
}

type stubPublisher struct {
	events []string
}

func (s *stubPublisher) Publish(event string, data interface{}) {
	s.events = append(s.events, event)
}

func newTestRouter(positions *stubPositionStore, pub *stubPublisher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	devices := &stubDeviceStore{snap: state.Snapshot{State: state.StateParked, Since: time.Now()}}
	tracker := service.NewTracker(logger, positions, devices, stubRawLogStore{}, pub, nil)
	h := NewHandler(logger, nil, nil, nil, tracker, ws.NewHub(logger), "test-secret")

	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func TestSimulateEndpoint(t *testing.T) {
	positions := &stubPositionStore{}
	pub := &stubPublisher{}
	r := newTestRouter(positions, pub)

	body := `{"deviceId":"359586018966098","lat":33.5731,"lng":-7.5898,"speed":45.5,"accStatus":true,"tripDistance":12.34}`
	req := httptest.NewRequest(http.MethodPost, "/api/devices/simulate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(positions.inserted) != 1 {
		t.Fatalf("positions inserted = %d", len(positions.inserted))
	}
	if positions.inserted[0].DeviceID != "359586018966098" {
		t.Errorf("deviceId = %q", positions.inserted[0].DeviceID)
	}
	if len(pub.events) != 1 || pub.events[0] != ws.EventPosition {
		t.Errorf("published events = %v", pub.events)
	}
}

func TestSimulateRequiresDeviceID(t *testing.T) {
	positions := &stubPositionStore{}
	r := newTestRouter(positions, &stubPublisher{})

	req := httptest.NewRequest(http.MethodPost, "/api/devices/simulate", strings.NewReader(`{"lat":1.0}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(positions.inserted) != 0 {
		t.Error("invalid request must not persist anything")
	}
}

func TestHealthCheck(t *testing.T) {
	r := newTestRouter(&stubPositionStore{}, &stubPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v", resp["status"])
	}
}
