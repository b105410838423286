package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stridehq/stride/internal/apply"
	"github.com/stridehq/stride/internal/coach"
	"github.com/stridehq/stride/internal/db"
	"github.com/stridehq/stride/internal/models"
	"github.com/stridehq/stride/internal/patch"
	"github.com/stridehq/stride/internal/token"
	"gorm.io/gorm"
)

var srvNow = time.Date(2026, 6, 3, 12, 0, 0, 0, time.UTC)

// stubAdvisor returns a canned payload or error, standing in for the
// OpenAI-backed advisor.
type stubAdvisor struct {
	payload string
	err     error
}

func (s *stubAdvisor) Propose(ctx context.Context, message, planContext string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.payload), nil
}

// recordingNotifier captures every message sent through it.
type recordingNotifier struct {
	messages []string
}

func (r *recordingNotifier) Send(ctx context.Context, text string) error {
	r.messages = append(r.messages, text)
	return nil
}

// seedServerDB opens an in-memory store with a two-week plan. Week N has
// id wN and days wN-d1..wN-d7. Week 1's Thursday is missed and its Sunday
// run is completed, so both days are closed to edits.
func seedServerDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	p := models.Plan{
		ID: "plan-1", Name: "spring marathon",
		RaceDate:  time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC),
		WeekCount: 2, Status: models.PlanActive,
	}
	if err := gdb.Create(&p).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	for n := 1; n <= 2; n++ {
		pre := fmt.Sprintf("w%d-", n)
		start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*(n-1))
		end := start.AddDate(0, 0, 6)
		week := models.Week{ID: pre[:2], PlanID: p.ID, Index: n, StartDate: &start, EndDate: &end}
		if err := gdb.Create(&week).Error; err != nil {
			t.Fatalf("seed week %d: %v", n, err)
		}
		for dow := 1; dow <= 7; dow++ {
			day := models.Day{ID: pre + "d" + string(rune('0'+dow)), WeekID: week.ID, DayOfWeek: dow}
			if n == 1 && dow == 4 {
				day.Notes = "calf felt off [MISSED]"
			}
			if err := gdb.Create(&day).Error; err != nil {
				t.Fatalf("seed day %s: %v", day.ID, err)
			}
		}
		acts := []models.Activity{
			{ID: pre + "rest", DayID: pre + "d1", Type: "REST", Title: "Rest", Priority: "OPTIONAL"},
			{ID: pre + "tempo", DayID: pre + "d2", Type: "RUN", Subtype: "tempo", Title: "Tempo run", Priority: "KEY", DurationMin: f64(40)},
			{ID: pre + "hills", DayID: pre + "d4", Type: "RUN", Title: "Hill repeats", Priority: "MEDIUM", DurationMin: f64(45)},
			{ID: pre + "long", DayID: pre + "d6", Type: "RUN", Subtype: "lrl", Title: "Long run", Priority: "KEY", DurationMin: f64(90)},
			{ID: pre + "sun", DayID: pre + "d7", Type: "RUN", Title: "Easy run", Priority: "OPTIONAL", DurationMin: f64(30)},
		}
		if n == 1 {
			acts[4].Completed = true
		}
		for i := range acts {
			if err := gdb.Create(&acts[i]).Error; err != nil {
				t.Fatalf("seed activity %s: %v", acts[i].ID, err)
			}
		}
	}
	return gdb
}

func f64(v float64) *float64 { return &v }

// testRouter builds a router over a seeded store with the given advisor,
// and returns the notifier so tests can inspect outbound messages.
func testRouter(t *testing.T, adv coach.Advisor) (*gin.Engine, *gorm.DB, *token.Signer, *recordingNotifier) {
	t.Helper()
	gdb := seedServerDB(t)
	signer := token.NewSigner("test-secret", 48*time.Hour)
	notifier := &recordingNotifier{}
	router := NewRouter(StartOpts{
		DB:        gdb,
		Generator: &coach.Generator{Advisor: adv, Signer: signer, Now: func() time.Time { return srvNow }},
		Applier:   &apply.Applier{DB: gdb, Signer: signer, Now: func() time.Time { return srvNow }},
		Notify:    notifier,
	})
	return router, gdb, signer, notifier
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, decoded
}

func TestGetPlan(t *testing.T) {
	router, _, _, _ := testRouter(t, &stubAdvisor{})

	w, body := doJSON(t, router, http.MethodGet, "/api/plans/plan-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	p, ok := body["plan"].(map[string]any)
	if !ok {
		t.Fatalf("response missing plan object: %v", body)
	}
	if p["name"] != "spring marathon" {
		t.Errorf("plan name = %v", p["name"])
	}
	sum, ok := body["summary"].(map[string]any)
	if !ok {
		t.Fatalf("response missing summary object: %v", body)
	}
	if sum["dayCount"] != float64(14) {
		t.Errorf("summary dayCount = %v, want 14", sum["dayCount"])
	}
	if sum["lockedDayCount"] != float64(2) {
		t.Errorf("summary lockedDayCount = %v, want 2", sum["lockedDayCount"])
	}
}

func TestGetPlan_NotFound(t *testing.T) {
	router, _, _, _ := testRouter(t, &stubAdvisor{})

	w, body := doJSON(t, router, http.MethodGet, "/api/plans/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if body["error"] != "plan not found" {
		t.Errorf("error = %v", body["error"])
	}
}

const serverPayload = `{
	"coachReply": "Moved your long run to Sunday.",
	"summary": "Long run from Saturday to Sunday in week 2.",
	"confidence": "high",
	"changes": [
		{"op": "move_activity", "reason": "owner request", "activityId": "w2-long", "targetDayId": "w2-d7"}
	]
}`

func TestGenerate(t *testing.T) {
	router, _, signer, notifier := testRouter(t, &stubAdvisor{payload: serverPayload})

	w, body := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/proposals",
		map[string]string{"message": "move my long run to Sunday"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	raw, ok := body["proposal"]
	if !ok {
		t.Fatalf("response missing proposal: %v", body)
	}
	data, _ := json.Marshal(raw)
	var p patch.Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("decode proposal: %v", err)
	}
	if p.ApplyToken == "" {
		t.Error("proposal missing apply token")
	}
	if err := signer.Verify("plan-1", &p, srvNow.Add(time.Minute)); err != nil {
		t.Errorf("returned token does not verify: %v", err)
	}
	if _, ok := body["score"]; !ok {
		t.Error("response missing score")
	}
	if len(notifier.messages) != 0 {
		t.Errorf("minor proposal should not notify, got %v", notifier.messages)
	}
}

func TestGenerate_MissingMessage(t *testing.T) {
	router, _, _, _ := testRouter(t, &stubAdvisor{payload: serverPayload})

	w, body := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/proposals", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body["error"] != "message is required" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestGenerate_PlanNotFound(t *testing.T) {
	router, _, _, _ := testRouter(t, &stubAdvisor{payload: serverPayload})

	w, _ := doJSON(t, router, http.MethodPost, "/api/plans/nope/proposals",
		map[string]string{"message": "anything"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGenerate_AdvisorFailure(t *testing.T) {
	router, _, _, _ := testRouter(t, &stubAdvisor{err: fmt.Errorf("rate limited")})

	w, _ := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/proposals",
		map[string]string{"message": "anything"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestGenerate_MalformedPayload(t *testing.T) {
	router, _, _, _ := testRouter(t, &stubAdvisor{payload: "not json at all"})

	w, body := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/proposals",
		map[string]string{"message": "anything"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body["error"] != "invalid proposal format" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestGenerate_GuardrailRejection(t *testing.T) {
	dup := `{
		"coachReply": "ok", "summary": "dup", "confidence": "high",
		"changes": [
			{"op": "move_activity", "reason": "r", "activityId": "w2-long", "targetDayId": "w2-d7"},
			{"op": "move_activity", "reason": "r", "activityId": "w2-long", "targetDayId": "w2-d7"}
		]
	}`
	router, _, _, _ := testRouter(t, &stubAdvisor{payload: dup})

	w, body := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/proposals",
		map[string]string{"message": "anything"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "duplicate move") {
		t.Errorf("error = %q, want the guardrail reason", msg)
	}
}

func TestGenerate_MajorProposalNotifies(t *testing.T) {
	extend := `{
		"coachReply": "Pushing your start back two weeks.",
		"summary": "Extends the plan by two weeks.",
		"confidence": "medium",
		"changes": [
			{"op": "extend_plan", "reason": "race moved", "newStartDate": "2026-05-18"}
		]
	}`
	router, _, _, notifier := testRouter(t, &stubAdvisor{payload: extend})

	w, body := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/proposals",
		map[string]string{"message": "my race moved out two weeks"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	p, _ := body["proposal"].(map[string]any)
	if p["requiresClarification"] != true {
		t.Errorf("structural proposal should require clarification: %v", p)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.messages))
	}
	if !strings.Contains(notifier.messages[0], `plan "spring marathon"`) ||
		!strings.Contains(notifier.messages[0], "needs your confirmation") {
		t.Errorf("notification = %q", notifier.messages[0])
	}
}

// serverProposal builds a signed proposal the way generation does, so the
// apply endpoint accepts it.
func serverProposal(t *testing.T, signer *token.Signer, planID string, changes ...patch.Change) *patch.Proposal {
	t.Helper()
	p := &patch.Proposal{
		SchemaVersion: patch.SchemaVersion,
		PatchID:       uuid.NewString(),
		CreatedAt:     srvNow.Add(-time.Hour),
		Mode:          patch.ModeBalanced,
		CoachReply:    "Here you go.",
		Summary:       "Adjusts the plan.",
		Confidence:    "high",
		Changes:       changes,
	}
	tok, err := signer.Issue(planID, p)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	p.ApplyToken = tok
	return p
}

func moveChange(activityID, targetDayID string) patch.Change {
	return patch.Change{Op: patch.OpMove, Reason: "reschedule", Move: &patch.MoveActivity{ActivityID: activityID, TargetDayID: targetDayID}}
}

func TestApplyEndpoint(t *testing.T) {
	router, gdb, signer, notifier := testRouter(t, &stubAdvisor{})
	p := serverProposal(t, signer, "plan-1", moveChange("w2-long", "w2-d7"))

	w, body := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/apply",
		map[string]any{"proposal": p})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if body["applied"] != true {
		t.Errorf("applied = %v", body["applied"])
	}
	if body["appliedCount"] != float64(1) {
		t.Errorf("appliedCount = %v, want 1", body["appliedCount"])
	}

	var a models.Activity
	if err := gdb.First(&a, "id = ?", "w2-long").Error; err != nil {
		t.Fatalf("load activity: %v", err)
	}
	if a.DayID != "w2-d7" {
		t.Errorf("w2-long on day %s, want w2-d7", a.DayID)
	}

	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], `plan "spring marathon"`) {
		t.Errorf("notifications = %v", notifier.messages)
	}
}

func TestApplyEndpoint_MissingProposal(t *testing.T) {
	router, _, _, _ := testRouter(t, &stubAdvisor{})

	w, body := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/apply", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body["error"] != "proposal is required" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestApplyEndpoint_MalformedProposal(t *testing.T) {
	router, _, _, _ := testRouter(t, &stubAdvisor{})

	w, body := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/apply",
		map[string]any{"proposal": map[string]any{"changes": "not an array"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body["error"] != "invalid proposal format" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestApplyEndpoint_TamperedProposal(t *testing.T) {
	router, gdb, signer, _ := testRouter(t, &stubAdvisor{})
	p := serverProposal(t, signer, "plan-1", moveChange("w2-long", "w2-d7"))
	p.Summary = "Totally different summary."

	w, _ := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/apply",
		map[string]any{"proposal": p})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}

	var a models.Activity
	if err := gdb.First(&a, "id = ?", "w2-long").Error; err != nil {
		t.Fatalf("load activity: %v", err)
	}
	if a.DayID != "w2-d6" {
		t.Errorf("tampered apply mutated the plan: w2-long on %s", a.DayID)
	}
}

func TestApplyEndpoint_EmptyChangeSet(t *testing.T) {
	router, _, signer, _ := testRouter(t, &stubAdvisor{})
	p := serverProposal(t, signer, "plan-1")

	w, body := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/apply",
		map[string]any{"proposal": p})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body["error"] != "No changes to apply" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestApplyEndpoint_PlanNotFound(t *testing.T) {
	router, _, signer, _ := testRouter(t, &stubAdvisor{})
	p := serverProposal(t, signer, "nope", moveChange("w2-long", "w2-d7"))

	w, _ := doJSON(t, router, http.MethodPost, "/api/plans/nope/apply",
		map[string]any{"proposal": p})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestApplyEndpoint_StateDrift(t *testing.T) {
	router, gdb, signer, _ := testRouter(t, &stubAdvisor{})
	p := serverProposal(t, signer, "plan-1", moveChange("w2-long", "w2-d7"))

	// The owner marks the target day done after the proposal was issued.
	if err := gdb.Model(&models.Day{}).Where("id = ?", "w2-d7").
		Update("notes", "[DONE]").Error; err != nil {
		t.Fatalf("mark day done: %v", err)
	}

	w, body := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/apply",
		map[string]any{"proposal": p})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if body["error"] != "plan state changed, regenerate the proposal" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestApplyEndpoint_ChangeSubset(t *testing.T) {
	router, gdb, signer, _ := testRouter(t, &stubAdvisor{})
	p := serverProposal(t, signer, "plan-1",
		moveChange("w2-long", "w2-d7"),
		patch.Change{Op: patch.OpEdit, Reason: "shorten", Edit: &patch.EditActivity{
			ActivityID: "w2-hills", Fields: patch.ActivityFields{DurationMin: f64(25)},
		}},
	)

	w, body := doJSON(t, router, http.MethodPost, "/api/plans/plan-1/apply",
		map[string]any{"proposal": p, "changeIndexes": []int{0}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if body["appliedCount"] != float64(1) {
		t.Errorf("appliedCount = %v, want 1", body["appliedCount"])
	}

	var hills models.Activity
	if err := gdb.First(&hills, "id = ?", "w2-hills").Error; err != nil {
		t.Fatalf("load activity: %v", err)
	}
	if hills.DurationMin == nil || *hills.DurationMin != 45 {
		t.Errorf("skipped edit was applied: duration = %v", hills.DurationMin)
	}
}
