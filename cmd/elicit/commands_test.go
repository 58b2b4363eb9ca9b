package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/elicit/internal/api"
	"github.com/kalambet/elicit/internal/interview"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestCreateProject(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /projects": `{"id":3,"name":"crm","requirements":"A CRM","status":"Pending","priority_sequence":[]}`,
	})

	p, err := createProject(ctx, ts.client(), "crm", "A CRM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 3 || p.Name != "crm" {
		t.Errorf("project = %+v, want id 3 named crm", p)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["name"] != "crm" || body["requirements"] != "A CRM" {
		t.Errorf("body = %v", body)
	}
}

func TestProjectCreate_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"project", "create", "--name", "crm"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing requirements")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestInvalidProjectID(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"topics", "abc"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid project id") {
		t.Fatalf("error = %v, want invalid project id", err)
	}
}

func TestListProjects(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	ts := newTestServer(t, map[string]string{
		"GET /projects": `[{"id":2,"name":"shop","status":"Ongoing"},{"id":1,"name":"crm","status":"Pending"}]`,
	})

	var out bytes.Buffer
	if err := listProjects(ctx, ts.client(), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out.String())
	}
	if !strings.Contains(lines[0], "shop") || !strings.Contains(lines[0], "Ongoing") {
		t.Errorf("line = %q, want shop Ongoing", lines[0])
	}
}

func TestShowTopics(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	ts := newTestServer(t, map[string]string{
		"GET /projects/1/topics": `[{"id":1,"number":"section-1","content":"Scope","topics":[
			{"id":1,"number":"topic-1-1","content":"Goals","status":"Ongoing","slots":[
				{"id":1,"key":"goal","value":"reduce churn"},{"id":2,"key":"deadline","value":null}]}]}]`,
	})

	var out bytes.Buffer
	if err := showTopics(ctx, ts.client(), 1, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"section-1 Scope", "topic-1-1 [Ongoing] Goals", "goal = reduce churn", "deadline = -"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestShowPriority(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /projects/5/priority": `[{"topic_number":"topic-1-2","core":0.75,"status":"Pending"},{"topic_number":"topic-1-1","core":0.5,"status":"Ongoing"}]`,
	})

	var out bytes.Buffer
	if err := showPriority(ctx, ts.client(), 5, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	if strings.Index(got, "topic-1-2") > strings.Index(got, "topic-1-1") {
		t.Errorf("ranking order lost:\n%s", got)
	}
	if !strings.Contains(got, "0.750") {
		t.Errorf("score missing:\n%s", got)
	}
}

func TestPlanEdits(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	ts := newTestServer(t, map[string]string{
		"PATCH /projects/2/topics/topic-1-1":                  `{"id":1,"number":"topic-1-1","content":"Business goals","status":"Pending"}`,
		"POST /projects/2/topics/topic-1-1/slots":             `{"id":4,"number":"slot-1-1-3","key":"budget","value":null,"necessity":true}`,
		"PATCH /projects/2/topics/topic-1-1/slots/slot-1-1-3": `{"id":4,"number":"slot-1-1-3","key":"budget","value":"10k","necessity":true}`,
	})
	c := ts.client()

	topic, err := editTopic(ctx, c, 2, "topic-1-1", "Business goals")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if topic.Content != "Business goals" {
		t.Errorf("content = %q", topic.Content)
	}

	sl, err := addSlot(ctx, c, 2, "topic-1-1", api.AddSlotRequest{Key: "budget", Necessity: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sl.Number != "slot-1-1-3" {
		t.Errorf("slot number = %q", sl.Number)
	}

	value := "10k"
	sl, err = editSlot(ctx, c, 2, "topic-1-1", "slot-1-1-3", interview.SlotEdit{Value: &value})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out bytes.Buffer
	printSlot(&out, sl)
	if got := out.String(); got != "slot-1-1-3 budget = 10k (necessary)\n" {
		t.Errorf("printSlot = %q", got)
	}

	if len(ts.requests) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(ts.requests))
	}
	if ts.requests[0].Method != http.MethodPatch || !strings.Contains(ts.requests[0].Body, `"content":"Business goals"`) {
		t.Errorf("topic edit request = %+v", ts.requests[0])
	}
	if body := ts.requests[2].Body; body != `{"value":"10k"}` {
		t.Errorf("slot edit body = %q, want only the value", body)
	}

	if _, err := editTopic(ctx, c, 2, "topic-9-9", "x"); err == nil {
		t.Error("expected error for unknown topic")
	}
}

func TestConverseStopsOnCompletion(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	ts := newTestServer(t, map[string]string{
		"POST /projects/1/interview/reply": `{"question":"Thanks, that's everything.","operation":"end_current_topic","score":0.9,"applied":true,"complete":true}`,
	})

	in := strings.NewReader("We need invoices.\nnever sent\n")
	var out bytes.Buffer
	if err := converse(ctx, ts.client(), 1, in, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(ts.requests))
	}
	if !strings.Contains(ts.requests[0].Body, "We need invoices.") {
		t.Errorf("body = %q", ts.requests[0].Body)
	}
	if !strings.Contains(out.String(), "[end_current_topic 0.90 applied, ]") {
		t.Errorf("turn summary missing:\n%s", out.String())
	}
}

func TestConverseEmptyLineStops(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	var out bytes.Buffer
	if err := converse(ctx, ts.client(), 1, strings.NewReader("\n"), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ts.requests) != 0 {
		t.Fatalf("expected no requests, got %d", len(ts.requests))
	}
}

func TestDecodeJSON_ServerError(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	resp, err := ts.client().get(ctx, "/projects/9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var v any
	err = decodeJSON(resp, &v)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want status and message", err.Error())
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := ts.client().get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestProjectCounts(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /projects": `[{"id":1,"status":"Pending"},{"id":2,"status":"Ongoing"},{"id":3,"status":"Ongoing"}]`,
	})

	got, err := projectCounts(ctx, ts.client())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "3 (1 Pending, 2 Ongoing)" {
		t.Errorf("counts = %q", got)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestStatusLabel(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := statusLabel("Pending", 10); got != "Pending   " {
		t.Errorf("statusLabel = %q, want padded Pending", got)
	}

	noColor = false
	if got := statusLabel("Ongoing", 0); got != colorCyan+"Ongoing"+colorReset {
		t.Errorf("statusLabel(Ongoing) = %q", got)
	}
	if got := statusLabel("UserInterrupted", 0); !strings.HasPrefix(got, colorYellow) {
		t.Errorf("statusLabel(UserInterrupted) = %q, want yellow", got)
	}
	if got := statusLabel("Pending", 0); strings.Contains(got, "\033[") {
		t.Errorf("statusLabel(Pending) = %q, want no color", got)
	}
}
