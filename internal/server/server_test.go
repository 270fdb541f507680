package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudguard/internal/config"
	"github.com/mbd888/fraudguard/internal/imaging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Env:               "development",
		LogLevel:          "error",
		ClassifierTimeout: 5,
		RateLimitRPS:      100,
	}
}

// newTestServer creates a server with in-memory stores and the stub classifier
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig(), WithClassifier(imaging.StubClassifier{}))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

func (s *Server) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return resp
}

// createCustomer registers a customer and returns its ID.
func createCustomer(t *testing.T, s *Server, name string) string {
	t.Helper()
	w := s.do(t, "POST", "/v1/customers", gin.H{
		"name":  name,
		"email": name + "@example.com",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create customer: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	customer := decode(t, w)["customer"].(map[string]interface{})
	return customer["id"].(string)
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if resp := decode(t, w); resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/health/live", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	// Not ready until Run() has started
	w := s.do(t, "GET", "/health/ready", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before Run, got %d", w.Code)
	}

	s.ready.Store(true)
	w = s.do(t, "GET", "/health/ready", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 once ready, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/api", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID response header")
	}
}

func TestDashboardPage(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("FraudGuard")) {
		t.Error("Dashboard should mention FraudGuard")
	}
}

// ---------------------------------------------------------------------------
// Return decision flow
// ---------------------------------------------------------------------------

func TestReturnFlowLowRiskAutoApproves(t *testing.T) {
	s := newTestServer(t)
	custID := createCustomer(t, s, "flow-low")

	w := s.do(t, "POST", "/v1/returns", gin.H{
		"customerId": custID,
		"reason":     "wrong size",
		"amount":     45.0,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	ret := decode(t, w)["return"].(map[string]interface{})
	if ret["state"] != "approved" {
		t.Errorf("First return for a clean customer should auto-approve, got %v", ret["state"])
	}

	// Audit trail is readable over HTTP
	w = s.do(t, "GET", "/v1/audit/return:"+ret["id"].(string), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from audit endpoint, got %d", w.Code)
	}
	if count := decode(t, w)["count"].(float64); count < 2 {
		t.Errorf("Expected filing + approval audit entries, got %v", count)
	}
}

func TestReturnFlowAnalysisRejectsDamagedItem(t *testing.T) {
	s := newTestServer(t)
	custID := createCustomer(t, s, "flow-damaged")

	// Enough recent returns to land in the medium band so the request
	// waits for image analysis.
	var lastID string
	for i := 0; i < 7; i++ {
		w := s.do(t, "POST", "/v1/returns", gin.H{
			"customerId": custID,
			"reason":     fmt.Sprintf("return %d", i),
			"amount":     50.0,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("submit %d: expected 201, got %d: %s", i, w.Code, w.Body.String())
		}
		lastID = decode(t, w)["return"].(map[string]interface{})["id"].(string)
	}

	w := s.do(t, "GET", "/v1/returns/"+lastID, nil)
	ret := decode(t, w)["return"].(map[string]interface{})
	if ret["state"] != "pending" {
		t.Fatalf("Expected pending before analysis, got %v", ret["state"])
	}

	w = s.do(t, "POST", "/v1/returns/"+lastID+"/analysis", gin.H{
		"image": "photos/torn-shirt.jpg",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	ret = decode(t, w)["return"].(map[string]interface{})
	if ret["state"] != "rejected" {
		t.Errorf("Damaged item should be rejected, got %v", ret["state"])
	}

	// A conflicting manual decision on the settled return is rejected
	w = s.do(t, "POST", "/v1/returns/"+lastID+"/decision", gin.H{
		"decision": "approved",
		"reason":   "customer called in",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 on settled return, got %d", w.Code)
	}
}

func TestReturnUnknownCustomer(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "POST", "/v1/returns", gin.H{
		"customerId": "cust_missing",
		"reason":     "test",
		"amount":     10.0,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestReviewQueueListing(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/v1/returns", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := decode(t, w)
	if _, ok := resp["returns"]; !ok {
		t.Error("Expected 'returns' array in review queue response")
	}
}

// ---------------------------------------------------------------------------
// Policy endpoints
// ---------------------------------------------------------------------------

func TestPolicyUpdateBumpsVersion(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/v1/policy", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	p := decode(t, w)["policy"].(map[string]interface{})
	if p["version"].(float64) != 1 {
		t.Fatalf("Expected seeded version 1, got %v", p["version"])
	}

	w = s.do(t, "PUT", "/v1/policy", gin.H{
		"autoApproveBelow": 30,
		"updatedBy":        "ops_team",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	p = decode(t, w)["policy"].(map[string]interface{})
	if p["version"].(float64) != 2 {
		t.Errorf("Expected version 2 after update, got %v", p["version"])
	}
	if p["autoApproveBelow"].(float64) != 30 {
		t.Errorf("Expected autoApproveBelow 30, got %v", p["autoApproveBelow"])
	}
}

func TestPolicyRejectsBrokenOrdering(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "PUT", "/v1/policy", gin.H{
		"autoApproveBelow": 95, // above the auto-block threshold
		"updatedBy":        "ops_team",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid ordering, got %d: %s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Chat endpoints
// ---------------------------------------------------------------------------

func TestChatSessionFlow(t *testing.T) {
	s := newTestServer(t)
	custID := createCustomer(t, s, "chat-flow")

	w := s.do(t, "POST", "/v1/chat/sessions", gin.H{"customerId": custID})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	session := decode(t, w)["session"].(map[string]interface{})
	sessionID := session["id"].(string)

	w = s.do(t, "POST", "/v1/chat/sessions/"+sessionID+"/messages", gin.H{
		"text": "I want a refund for my order",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	reply := decode(t, w)["reply"].(map[string]interface{})
	if reply["role"] != "bot" {
		t.Errorf("Expected bot reply, got %v", reply["role"])
	}

	w = s.do(t, "POST", "/v1/chat/sessions/"+sessionID+"/resolve", gin.H{
		"reason": "answered",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	session = decode(t, w)["session"].(map[string]interface{})
	if session["status"] != "resolved" {
		t.Errorf("Expected resolved, got %v", session["status"])
	}
}

// ---------------------------------------------------------------------------
// Actor attribution
// ---------------------------------------------------------------------------

func TestActorHeaderAttributesDecision(t *testing.T) {
	s := newTestServer(t)
	custID := createCustomer(t, s, "actor-header")

	// Land in the medium band so the return stays pending
	var retID string
	for i := 0; i < 7; i++ {
		w := s.do(t, "POST", "/v1/returns", gin.H{
			"customerId": custID,
			"reason":     fmt.Sprintf("return %d", i),
			"amount":     50.0,
		})
		retID = decode(t, w)["return"].(map[string]interface{})["id"].(string)
	}

	body, _ := json.Marshal(gin.H{"decision": "approved", "reason": "verified manually"})
	req := httptest.NewRequest("POST", "/v1/returns/"+retID+"/decision", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "reviewer_9")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	ret := decode(t, w)["return"].(map[string]interface{})
	if ret["decidedBy"] != "reviewer_9" {
		t.Errorf("Expected decidedBy reviewer_9, got %v", ret["decidedBy"])
	}
}

func TestOperatorFlagRaisesCustomerRisk(t *testing.T) {
	s := newTestServer(t)
	custID := createCustomer(t, s, "flaggable")

	w := s.do(t, "POST", "/v1/customers/"+custID+"/flags", gin.H{
		"flag":   "chargeback_history",
		"reason": "two chargebacks last month",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["score"].(float64) <= 0 {
		t.Errorf("Expected a positive score after flagging, got %v", resp["score"])
	}

	w = s.do(t, "GET", "/v1/customers/"+custID+"/risk", nil)
	flags := decode(t, w)["flags"].([]interface{})
	if len(flags) != 1 || flags[0] != "chargeback_history" {
		t.Errorf("Expected the flag on the risk view, got %v", flags)
	}

	w = s.do(t, "GET", "/v1/audit/customer:"+custID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit lookup: expected 200, got %d", w.Code)
	}
	entries := decode(t, w)["entries"].([]interface{})
	found := false
	for _, e := range entries {
		if e.(map[string]interface{})["action"] == "customer_flagged" {
			found = true
		}
	}
	if !found {
		t.Error("Expected a customer_flagged audit entry")
	}
}

func TestMLConfidenceEndpoint(t *testing.T) {
	s := newTestServer(t)
	custID := createCustomer(t, s, "modeled")

	w := s.do(t, "PUT", "/v1/customers/"+custID+"/ml-confidence", gin.H{"confidence": 0.9})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["mlConfidence"].(float64) != 0.9 {
		t.Errorf("Expected mlConfidence 0.9, got %v", resp["mlConfidence"])
	}

	w = s.do(t, "PUT", "/v1/customers/"+custID+"/ml-confidence", gin.H{"confidence": 1.5})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for out-of-range confidence, got %d", w.Code)
	}
}
