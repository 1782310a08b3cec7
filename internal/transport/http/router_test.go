package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"scholarship-exam-service/internal/domain"
	"scholarship-exam-service/internal/infra/gateway"
)

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	h.expect(h.do(http.MethodGet, "/healthz", "", nil), http.StatusOK, nil)
}

func TestAuthErrors(t *testing.T) {
	h := newHarness(t)

	var body errorBody
	h.expect(h.do(http.MethodPost, "/tests/t1/attempt/start", "", nil), http.StatusUnauthorized, &body)
	if body.Error != string(domain.KindAuthentication) {
		t.Fatalf("expected authentication error, got %+v", body)
	}

	h.expect(h.do(http.MethodPost, "/tests/t1/attempt/start", "garbage", nil), http.StatusUnauthorized, nil)

	student := h.token("s1", domain.RoleStudent)
	h.expect(h.do(http.MethodPost, "/sessions", student, map[string]any{"year": 2026, "commonName": "x"}), http.StatusForbidden, &body)
	if body.Error != string(domain.KindAuthorization) {
		t.Fatalf("expected authorization error, got %+v", body)
	}
}

func TestValidationErrorCarriesFields(t *testing.T) {
	h := newHarness(t)
	admin := h.token("admin-1", domain.RoleAdmin)

	var body errorBody
	h.expect(h.do(http.MethodPost, "/sessions", admin, map[string]any{"year": 1990}), http.StatusBadRequest, &body)
	if body.Fields["year"] == "" || body.Fields["commonName"] == "" {
		t.Fatalf("expected field detail for year and commonName, got %+v", body.Fields)
	}

	h.expect(h.do(http.MethodPost, "/sessions", admin, []byte("{not json")), http.StatusBadRequest, nil)
}

func TestAttemptFlow(t *testing.T) {
	h := newHarness(t)
	testID, correct := h.seedTest("inst-1", "0")
	student := h.token("s1", domain.RoleStudent)
	h.saveProfile(student, "Asha")

	// Before the window opens.
	h.expect(h.do(http.MethodPost, "/tests/"+testID+"/attempt/start", student, nil), http.StatusForbidden, nil)

	h.clock.Set(h.clock.Now().Add(70 * time.Minute))
	var paper domain.Paper
	h.expect(h.do(http.MethodPost, "/tests/"+testID+"/attempt/start", student, nil), http.StatusOK, &paper)
	if len(paper.Sections) != 1 || len(paper.Sections[0].Questions) != 2 {
		t.Fatalf("unexpected paper %+v", paper)
	}
	raw, _ := json.Marshal(paper)
	if strings.Contains(string(raw), "correctAnswerIndex") {
		t.Fatalf("paper leaks the answer key: %s", raw)
	}

	var result domain.SubmitResult
	h.expect(h.do(http.MethodPost, "/tests/"+testID+"/attempt/submit", student,
		map[string]any{"answers": answersFor(paper, correct)}), http.StatusOK, &result)
	if result.Score != 4 {
		t.Fatalf("expected score 4, got %v", result.Score)
	}

	// Second submit is rejected and the score is unchanged.
	h.expect(h.do(http.MethodPost, "/tests/"+testID+"/attempt/submit", student,
		map[string]any{"answers": answersFor(paper, map[string]int{paper.Sections[0].Questions[0].ID: 0})}), http.StatusForbidden, nil)
	h.expect(h.do(http.MethodPost, "/tests/"+testID+"/attempt/start", student, nil), http.StatusForbidden, nil)

	var stored domain.AttemptResult
	h.expect(h.do(http.MethodGet, "/tests/"+testID+"/result", student, nil), http.StatusOK, &stored)
	if stored.ExpectedScore != 4 || stored.CompletedAt == nil || len(stored.Answers) != 2 {
		t.Fatalf("unexpected stored result %+v", stored)
	}

	other := h.token("s2", domain.RoleStudent)
	h.expect(h.do(http.MethodGet, "/tests/"+testID+"/result", other, nil), http.StatusNotFound, nil)
}

func TestPaidTestRequiresPayment(t *testing.T) {
	h := newHarness(t)
	testID, _ := h.seedTest("inst-1", "499")
	student := h.token("s1", domain.RoleStudent)
	h.saveProfile(student, "Asha")
	h.clock.Set(h.clock.Now().Add(65 * time.Minute))

	h.expect(h.do(http.MethodPost, "/tests/"+testID+"/attempt/start", student, nil), http.StatusForbidden, nil)

	var order domain.GatewayOrder
	h.expect(h.do(http.MethodPost, "/tests/order", student, map[string]any{"testId": testID}), http.StatusOK, &order)
	if order.OrderAmount != 499 || order.CustomerDetails.CustomerID != "s1" || order.OrderTags["test_id"] != testID {
		t.Fatalf("unexpected order %+v", order)
	}

	var msg map[string]string
	h.expect(h.do(http.MethodGet, "/tests/order?order_id="+order.OrderID, student, nil), http.StatusOK, &msg)
	if msg["message"] != "payment pending" {
		t.Fatalf("expected pending, got %v", msg)
	}

	h.gateway.mu.Lock()
	h.gateway.payments[order.OrderID] = []domain.GatewayPayment{{CFPaymentID: "77", OrderID: order.OrderID, PaymentStatus: "SUCCESS", PaymentAmount: 499}}
	h.gateway.mu.Unlock()

	// The webhook and the poll race; both end up with one record.
	event := map[string]any{
		"type": "PAYMENT_SUCCESS_WEBHOOK",
		"data": map[string]any{
			"order":            map[string]any{"order_id": order.OrderID, "order_amount": 499, "order_tags": map[string]string{"test_id": testID}},
			"payment":          map[string]any{"cf_payment_id": 77, "payment_status": "SUCCESS", "payment_amount": 499},
			"customer_details": map[string]any{"customer_id": "s1"},
		},
	}
	body, _ := json.Marshal(event)
	h.postWebhook(body, gateway.NewSigner(webhookSecret).Sign(body, "1700000000"), "1700000000")

	h.expect(h.do(http.MethodGet, "/tests/order?order_id="+order.OrderID, student, nil), http.StatusOK, &msg)
	if msg["message"] != "payment already recorded" {
		t.Fatalf("expected already recorded, got %v", msg)
	}
	if n := h.payments.Count(); n != 1 {
		t.Fatalf("expected exactly one payment, got %d", n)
	}
	h.expect(h.do(http.MethodPost, "/tests/"+testID+"/attempt/start", student, nil), http.StatusOK, nil)
	h.expect(h.do(http.MethodPost, "/tests/order", student, map[string]any{"testId": testID}), http.StatusConflict, nil)
}

func TestWebhookAlwaysOK(t *testing.T) {
	h := newHarness(t)
	body := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK"}`)

	resp := h.postWebhook(body, "forged", "1700000000")
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "OK" {
		t.Fatalf("expected OK text, got %q", data)
	}
	h.postWebhook([]byte("not json"), gateway.NewSigner(webhookSecret).Sign([]byte("not json"), "1"), "1")
	if n := h.payments.Count(); n != 0 {
		t.Fatalf("expected no payments, got %d", n)
	}
}

func TestGrant(t *testing.T) {
	h := newHarness(t)
	admin := h.token("admin-1", domain.RoleAdmin)
	student := h.token("s1", domain.RoleStudent)
	h.saveProfile(student, "Asha")

	h.expect(h.do(http.MethodPost, "/tests/grant", admin, map[string]any{"uid": "s1", "amount": 499}), http.StatusCreated, nil)
	h.expect(h.do(http.MethodPost, "/tests/grant", admin, map[string]any{"uid": "s1", "amount": 499}), http.StatusConflict, nil)
	h.expect(h.do(http.MethodPost, "/tests/grant", admin, map[string]any{"uid": "ghost", "amount": 1}), http.StatusNotFound, nil)
	h.expect(h.do(http.MethodPost, "/tests/grant", student, map[string]any{"uid": "s1", "amount": 1}), http.StatusForbidden, nil)
}

func TestRankingsExport(t *testing.T) {
	h := newHarness(t)
	testID, correct := h.seedTest("inst-1", "0")
	h.clock.Set(h.clock.Now().Add(61 * time.Minute))

	for _, s := range []struct{ uid, name string }{{"s1", "Asha"}, {"s2", "Bala"}} {
		tok := h.token(s.uid, domain.RoleStudent)
		h.saveProfile(tok, s.name)
		var paper domain.Paper
		h.expect(h.do(http.MethodPost, "/tests/"+testID+"/attempt/start", tok, nil), http.StatusOK, &paper)
		h.expect(h.do(http.MethodPost, "/tests/"+testID+"/attempt/submit", tok,
			map[string]any{"answers": answersFor(paper, correct)}), http.StatusOK, nil)
	}

	h.expect(h.do(http.MethodGet, "/tests/"+testID+"/rankings", h.token("inst-2", domain.RoleInstructor), nil), http.StatusForbidden, nil)

	resp := h.do(http.MethodGet, "/tests/"+testID+"/rankings", h.token("inst-1", domain.RoleInstructor), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="test-ranking-SCIENCE-2026"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	data, _ := io.ReadAll(resp.Body)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(f.GetSheetName(0))
	if len(rows) != 4 {
		t.Fatalf("expected title, header and 2 entries, got %d rows", len(rows))
	}
	// Same score and same completion instant share rank 1.
	if rows[2][1] != "1" || rows[3][1] != "1" {
		t.Fatalf("expected tied ranks, got %v %v", rows[2], rows[3])
	}

	job, ok, err := h.queue.Next(context.Background(), time.Second)
	if err != nil || !ok {
		t.Fatalf("expected queued scorecard job: ok=%v err=%v", ok, err)
	}
	if job.Year != 2026 || job.Stream != "SCIENCE" || len(job.Rows) != 2 || job.Rows[0].FatherName == "" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestFreezeAfterWindowOpens(t *testing.T) {
	h := newHarness(t)
	testID, correct := h.seedTest("inst-1", "0")
	inst := h.token("inst-1", domain.RoleInstructor)

	h.expect(h.do(http.MethodPatch, "/tests/"+testID, h.token("inst-2", domain.RoleInstructor),
		map[string]any{"description": "hijack"}), http.StatusForbidden, nil)
	h.expect(h.do(http.MethodPatch, "/tests/"+testID, inst, map[string]any{"description": "updated"}), http.StatusOK, nil)

	h.clock.Set(h.clock.Now().Add(time.Hour))
	var body errorBody
	h.expect(h.do(http.MethodPatch, "/tests/"+testID, inst, map[string]any{"description": "late"}), http.StatusForbidden, &body)
	if body.Message != "test already started" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	for qid := range correct {
		h.expect(h.do(http.MethodDelete, "/tests/"+testID+"/questions/"+qid, inst, nil), http.StatusForbidden, nil)
	}
	h.expect(h.do(http.MethodDelete, "/tests/"+testID, inst, nil), http.StatusNoContent, nil)
	h.expect(h.do(http.MethodDelete, "/tests/"+testID, inst, nil), http.StatusNotFound, nil)
}

func TestRemoveCandidate(t *testing.T) {
	h := newHarness(t)
	admin := h.token("admin-1", domain.RoleAdmin)
	h.saveProfile(h.token("s1", domain.RoleStudent), "Asha")

	h.expect(h.do(http.MethodDelete, "/candidates/s1", admin, nil), http.StatusNoContent, nil)
	h.expect(h.do(http.MethodDelete, "/candidates/s1", admin, nil), http.StatusNotFound, nil)
}

func (h *harness) postWebhook(body []byte, signature, timestamp string) *http.Response {
	h.t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/tests/webhook", bytes.NewReader(body))
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("x-webhook-signature", signature)
	req.Header.Set("x-webhook-timestamp", timestamp)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("post webhook: %v", err)
	}
	h.t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		h.t.Fatalf("webhook must answer 200, got %d", resp.StatusCode)
	}
	return resp
}
