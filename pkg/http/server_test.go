package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/RiverSpider/PavelBot/pkg/logger"
	"github.com/RiverSpider/PavelBot/pkg/metrics"

	"github.com/labstack/echo/v4"
)

type echoRequest struct {
	UserID int64  `query:"user_id" json:"user_id" validate:"gt=0"`
	Period string `query:"period" json:"period" default:"week" validate:"oneof=day week month"`
}

type testHandler struct{}

func (testHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/echo", func(c echo.Context) error {
		var req echoRequest
		if errs := ReadAndValidateRequest(c, &req); errs != nil {
			return BadRequestResponse(c, errs)
		}
		return SuccessResponse(c, req)
	})
	g.GET("/upstream", func(c echo.Context) error {
		return AppErrorResponse(c, UpstreamError("broker unavailable"))
	})
	g.GET("/panic", func(c echo.Context) error {
		panic("boom")
	})
}

func newTestServer() *Server {
	return NewServer(logger.Nop(), metrics.New("test"), []Handler{testHandler{}})
}

func serve(s *Server, method, target string) (*httptest.ResponseRecorder, APIResponse) {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var env APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestValidRequestGetsDefaults(t *testing.T) {
	rec, env := serve(newTestServer(), http.MethodGet, "/api/echo?user_id=5")
	if rec.Code != http.StatusOK || env.Status != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	data := env.Data.(map[string]interface{})
	if data["period"] != "week" {
		t.Fatalf("default not applied: %v", data)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatalf("request id header missing")
	}
}

func TestValidationErrorsUseWireNames(t *testing.T) {
	rec, _ := serve(newTestServer(), http.MethodGet, "/api/echo?user_id=0&period=decade")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var env struct {
		Data []ValidationError `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	fields := map[string]string{}
	for _, e := range env.Data {
		fields[e.Field] = e.Code
	}
	if fields["user_id"] != "ERR_GT" || fields["period"] != "ERR_ONEOF" {
		t.Fatalf("unexpected validation errors %+v", env.Data)
	}
}

func TestAppErrorStatus(t *testing.T) {
	rec, env := serve(newTestServer(), http.MethodGet, "/api/upstream")
	if rec.Code != http.StatusBadGateway || env.Status != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ERR_UPSTREAM") {
		t.Fatalf("missing code: %s", rec.Body.String())
	}
}

func TestNotFoundUsesEnvelope(t *testing.T) {
	rec, env := serve(newTestServer(), http.MethodGet, "/api/missing")
	if rec.Code != http.StatusNotFound || env.Status != http.StatusNotFound {
		t.Fatalf("expected enveloped 404, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestPanicRecovered(t *testing.T) {
	rec, _ := serve(newTestServer(), http.MethodGet, "/api/panic")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	serve(s, http.MethodGet, "/health")
	rec, _ := serve(s, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "test_http_requests_total") {
		t.Fatalf("metrics not exposed: %d", rec.Code)
	}
}
