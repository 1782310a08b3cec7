package http

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"scholarship-exam-service/internal/app"
	"scholarship-exam-service/internal/auth"
	"scholarship-exam-service/internal/domain"
	"scholarship-exam-service/internal/infra/gateway"
	"scholarship-exam-service/internal/infra/memory"
)

const (
	testSecret    = "test-jwt-secret"
	webhookSecret = "whsec"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeGateway struct {
	mu       sync.Mutex
	orders   []domain.GatewayOrder
	payments map[string][]domain.GatewayPayment
}

func (g *fakeGateway) CreateOrder(_ context.Context, order domain.GatewayOrder) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders = append(g.orders, order)
	return json.Marshal(order)
}

func (g *fakeGateway) ListPayments(_ context.Context, orderID string) ([]domain.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.payments[orderID], nil
}

type fakeIdentities struct{}

func (fakeIdentities) DeleteIdentity(context.Context, string) error { return nil }

type harness struct {
	t        *testing.T
	server   *httptest.Server
	clock    *clock
	verifier *auth.Verifier
	tests    *memory.TestRepository
	payments *memory.PaymentRepository
	queue    *memory.ScorecardQueue
	gateway  *fakeGateway
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	tests := memory.NewTestRepository()
	attempts := memory.NewAttemptRepository()
	payments := memory.NewPaymentRepository()
	candidates := memory.NewCandidateRepository(payments.DeleteForCandidate)
	queue := memory.NewScorecardQueue(8)
	cache := memory.NewExamCache(tests, time.Minute)
	gw := &fakeGateway{payments: make(map[string][]domain.GatewayPayment)}

	gate := app.NewAdmissionGate(candidates, payments)
	hub := app.NewLeaderboardHub()
	rankings := app.NewRankingService(cache, attempts, candidates, tests, queue, hub)
	svc := Services{
		Attempts: app.NewAttemptService(cache, attempts, gate, app.NewShuffler(rand.NewSource(7))).
			WithClock(clk.Now).WithNotifier(rankings),
		Payments: app.NewPaymentService(cache, payments, gate, memory.NewOrderRegistry(), gw,
			gateway.NewSigner(webhookSecret), app.PaymentConfig{ReturnURL: "http://app/return?order_id={order_id}"}),
		Rankings:   rankings,
		Tests:      app.NewTestService(tests, tests, attempts, cache).WithClock(clk.Now),
		Candidates: app.NewCandidateService(candidates, fakeIdentities{}, memory.NewOrphanRegistry()),
	}

	verifier := auth.NewVerifier(testSecret)
	router := NewRouter(svc, RouterConfig{Verifier: verifier, Roles: auth.DefaultRoleResolver(candidates)})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &harness{
		t:        t,
		server:   srv,
		clock:    clk,
		verifier: verifier,
		tests:    tests,
		payments: payments,
		queue:    queue,
		gateway:  gw,
	}
}

func (h *harness) token(uid string, role domain.Role) string {
	h.t.Helper()
	tok, err := h.verifier.Issue(uid, uid, string(role), time.Hour)
	if err != nil {
		h.t.Fatalf("issue token: %v", err)
	}
	return tok
}

// do sends a JSON request; token may be empty.
func (h *harness) do(method, path, token string, body any) *http.Response {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.([]byte); ok {
			buf.Write(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, h.server.URL+path, &buf)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) expect(resp *http.Response, status int, out any) {
	h.t.Helper()
	if resp.StatusCode != status {
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		h.t.Fatalf("%s %s: expected status %d, got %d (%v)", resp.Request.Method, resp.Request.URL.Path, status, resp.StatusCode, body)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			h.t.Fatalf("decode response: %v", err)
		}
	}
}

// seedTest creates a session and a published free test with two questions,
// starting one hour after the current clock. It returns the test id and the
// correct option of each question.
func (h *harness) seedTest(instructor string, price string) (string, map[string]int) {
	h.t.Helper()
	admin := h.token("admin-1", domain.RoleAdmin)
	inst := h.token(instructor, domain.RoleInstructor)

	var session domain.Session
	h.expect(h.do(http.MethodPost, "/sessions", admin, map[string]any{"year": 2026, "commonName": "Scholarship Test 2026"}), http.StatusCreated, &session)

	start := h.clock.Now().Add(time.Hour)
	var test domain.Test
	h.expect(h.do(http.MethodPost, "/tests", inst, map[string]any{
		"description":   "Physics screening",
		"startDateTime": start,
		"price":         price,
		"stream":        "science",
		"sessionId":     session.ID,
		"sections":      []string{"PHYSICS"},
	}), http.StatusCreated, &test)

	correct := make(map[string]int)
	for _, q := range []struct {
		text    string
		options []string
		answer  int
	}{
		{"Unit of force?", []string{"Joule", "Newton", "Watt", "Pascal"}, 1},
		{"Speed of light order?", []string{"3e8 m/s", "3e6 m/s", "3e4 m/s"}, 0},
	} {
		var created domain.Question
		h.expect(h.do(http.MethodPost, "/tests/"+test.ID+"/questions", inst, map[string]any{
			"section":            "PHYSICS",
			"question":           q.text,
			"options":            q.options,
			"correctAnswerIndex": q.answer,
		}), http.StatusCreated, &created)
		correct[created.ID] = q.answer
	}
	h.expect(h.do(http.MethodPost, "/tests/"+test.ID+"/publish", inst, nil), http.StatusOK, nil)
	return test.ID, correct
}

func (h *harness) saveProfile(token, name string) {
	h.t.Helper()
	h.expect(h.do(http.MethodPut, "/candidates/me", token, map[string]any{
		"name":        name,
		"fatherName":  name + " Sr",
		"motherName":  name + " Mother",
		"phoneNumber": "9876543210",
	}), http.StatusOK, nil)
}

// answersFor picks the displayed option that maps back to the wanted original.
func answersFor(paper domain.Paper, want map[string]int) []domain.SubmittedAnswer {
	var out []domain.SubmittedAnswer
	for _, section := range paper.Sections {
		for _, q := range section.Questions {
			original, ok := want[q.ID]
			if !ok {
				continue
			}
			for display, orig := range q.OptionMap {
				if orig == original {
					d := display
					out = append(out, domain.SubmittedAnswer{QuestionID: q.ID, SelectedOption: &d, OptionMap: q.OptionMap})
				}
			}
		}
	}
	return out
}
