package connection

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartplanr/config"
	"smartplanr/controller"
	"smartplanr/logging"
	"smartplanr/model"
	"smartplanr/services"
)

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	router *gin.Engine
	deps   *controller.Deps
	mailer *recordingMailer

	mu      sync.Mutex
	prompts []string
}

// newTestEnv wires memory stores and a stub generation endpoint that
// answers every model with reply.
func newTestEnv(t *testing.T, status int, reply string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{mailer: &recordingMailer{}}

	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Contents) > 0 && len(body.Contents[0].Parts) > 0 {
			env.mu.Lock()
			env.prompts = append(env.prompts, body.Contents[0].Parts[0].Text)
			env.mu.Unlock()
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(gemini.Close)

	logger := logging.Discard()
	cfg := config.Default()
	cfg.Gemini.BaseURL = gemini.URL
	cfg.Gemini.APIKey = "test"

	env.deps = &controller.Deps{
		Tasks:       services.NewMemoryTaskStore(),
		Accounts:    services.NewMemoryAccountStore(),
		Tokens:      services.NewTokenService("access", "refresh"),
		Sessions:    services.NewSessionRegistry(),
		Planner:     services.NewPlanner(services.NewGeminiClient(cfg.Gemini, logger), "primary", "fallback", time.UTC, logger),
		Mailer:      env.mailer,
		Logger:      logger,
		PlanContext: context.Background(),
	}
	env.router = NewRouter(env.deps)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// signUpAndIn registers a user and returns its access and refresh tokens.
func (e *testEnv) signUpAndIn(t *testing.T, email, password string) (string, string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/signup", "", gin.H{"name": "Ann", "email": email, "password": password})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/auth/signin", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decode(t, w)["token"].(map[string]any)
	return token["accessToken"].(string), token["refreshToken"].(string)
}

func (e *testEnv) createTask(t *testing.T, token, title, category string, due time.Time) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/tasks", token, gin.H{"title": title, "dueDate": model.Epoch(due), "category": category})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["task"].(map[string]any)["id"].(string)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	w := env.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Api is running!", decode(t, w)["message"])
}

func TestSignup_Validation(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)

	tests := []struct {
		name string
		body gin.H
	}{
		{"blank name", gin.H{"name": "  ", "email": "a@example.com", "password": "secret1"}},
		{"bad email", gin.H{"name": "Ann", "email": "not-an-email", "password": "secret1"}},
		{"short password", gin.H{"name": "Ann", "email": "a@example.com", "password": "123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/auth/signup", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	env.signUpAndIn(t, "a@example.com", "secret1")
	w := env.do(t, http.MethodPost, "/auth/signup", "", gin.H{"name": "Ann", "email": "A@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already registered")
}

func TestSignin_Failures(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	env.signUpAndIn(t, "a@example.com", "secret1")

	w := env.do(t, http.MethodPost, "/auth/signin", "", gin.H{"email": "b@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/auth/signin", "", gin.H{"email": "a@example.com", "password": "wrong!!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/tasks", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/tasks", "garbage", nil).Code)
}

func TestRefreshAndSignout(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	access, refresh := env.signUpAndIn(t, "a@example.com", "secret1")

	w := env.do(t, http.MethodPost, "/auth/refresh", refresh, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["accessToken"])

	// An access token is not a refresh token.
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/auth/refresh", access, nil).Code)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/auth/signout", access, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/auth/refresh", refresh, nil).Code)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	access, _ := env.signUpAndIn(t, "a@example.com", "secret1")

	w := env.do(t, http.MethodGet, "/user/profile", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Ann", body["name"])
	assert.Equal(t, "a@example.com", body["email"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	env.signUpAndIn(t, "a@example.com", "secret1")

	w := env.do(t, http.MethodPost, "/auth/resetpassword/request", "", gin.H{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/auth/resetpassword/request", "", gin.H{"email": "a@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ref := decode(t, w)["ref"].(string)

	mail := env.mailer.last()
	assert.Equal(t, "a@example.com", mail.to)
	otp := regexp.MustCompile(`OTP : <strong[^>]*>(\d{6})<`).FindStringSubmatch(mail.body)
	require.Len(t, otp, 2, mail.body)

	w = env.do(t, http.MethodPost, "/auth/resetpassword", "", gin.H{"email": "a@example.com", "ref": ref, "otp": "000000x", "password": "newsecret"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/auth/resetpassword", "", gin.H{"email": "a@example.com", "ref": ref, "otp": otp[1], "password": "newsecret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The code is single use.
	w = env.do(t, http.MethodPost, "/auth/resetpassword", "", gin.H{"email": "a@example.com", "ref": ref, "otp": otp[1], "password": "another1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/auth/signin", "", gin.H{"email": "a@example.com", "password": "newsecret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	access, _ := env.signUpAndIn(t, "a@example.com", "secret1")
	tomorrow := time.Now().Add(24 * time.Hour)

	w := env.do(t, http.MethodPost, "/tasks", access, gin.H{"title": "  ", "dueDate": model.Epoch(tomorrow)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/tasks", access, gin.H{"title": "Late", "dueDate": model.Epoch(time.Now().Add(-time.Hour))})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := env.createTask(t, access, "Essay", "", tomorrow)

	w = env.do(t, http.MethodGet, "/tasks", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode(t, w)["tasks"].([]any)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Uncategorized", tasks[0].(map[string]any)["category"])

	w = env.do(t, http.MethodPut, "/tasks/"+id+"/done", access, gin.H{"isDone": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(t, http.MethodPut, "/tasks/"+id+"/done", access, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "isDone is required")

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/tasks/"+id, access, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/tasks/"+id, access, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/tasks/"+id+"/done", access, gin.H{"isDone": false}).Code)
}

func TestTasksAreScopedToUser(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	ann, _ := env.signUpAndIn(t, "a@example.com", "secret1")
	bob, _ := env.signUpAndIn(t, "b@example.com", "secret1")

	id := env.createTask(t, ann, "Essay", "School", time.Now().Add(time.Hour))

	w := env.do(t, http.MethodGet, "/tasks", bob, nil)
	assert.Empty(t, decode(t, w)["tasks"])
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/tasks/"+id, bob, nil).Code)
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	access, _ := env.signUpAndIn(t, "a@example.com", "secret1")
	due := time.Now().Add(24 * time.Hour)
	env.createTask(t, access, "Essay", "School", due)
	env.createTask(t, access, "Report", "Work", due)
	env.createTask(t, access, "Gym", "Personal", due)

	w := env.do(t, http.MethodGet, "/categories", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []any{"Personal", "School", "Work"}, body["order"])
	assert.Equal(t, "blue", body["tints"].(map[string]any)["School"])
	assert.Len(t, body["groups"].(map[string]any)["Work"], 1)
	assert.Equal(t, []any{"School", "Work", "Personal", "Other"}, body["defaults"])

	w = env.do(t, http.MethodPut, "/categories/order", access, gin.H{"from": []int{2}, "to": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{"Work", "Personal", "School"}, decode(t, w)["order"])

	// A new category is appended without disturbing the manual order.
	env.createTask(t, access, "Milk", "Errands", due)
	w = env.do(t, http.MethodGet, "/categories", access, nil)
	assert.Equal(t, []any{"Work", "Personal", "School", "Errands"}, decode(t, w)["order"])

	w = env.do(t, http.MethodPut, "/categories/order", access, gin.H{"from": []int{9}, "to": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlan_Success(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"- 9:00 Essay"}]}}]}`)
	access, _ := env.signUpAndIn(t, "a@example.com", "secret1")
	due := time.Now().Add(24 * time.Hour)
	env.createTask(t, access, "Essay", "School", due)
	reportID := env.createTask(t, access, "Report", "Work", due)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/tasks/"+reportID+"/done", access, gin.H{"isDone": true}).Code)

	assert.Equal(t, "idle", decode(t, env.do(t, http.MethodGet, "/plan", access, nil))["status"])

	w := env.do(t, http.MethodPost, "/plan?wait=true", access, gin.H{"categories": []string{" school ", "work"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "- 9:00 Essay", body["markdown"])
	assert.Equal(t, "primary", body["model"])

	env.mu.Lock()
	require.Len(t, env.prompts, 1)
	prompt := env.prompts[0]
	env.mu.Unlock()
	assert.Equal(t, 1, strings.Count(prompt, "- [ ] "))
	assert.Contains(t, prompt, "- [ ] Essay (due ")

	assert.Equal(t, "success", decode(t, env.do(t, http.MethodGet, "/plan", access, nil))["status"])
	assert.Equal(t, "idle", decode(t, env.do(t, http.MethodDelete, "/plan", access, nil))["status"])
}

func TestPlan_BothModelsFail(t *testing.T) {
	env := newTestEnv(t, http.StatusServiceUnavailable, `{"error":{"code":503,"message":"model overloaded"}}`)
	access, _ := env.signUpAndIn(t, "a@example.com", "secret1")
	env.createTask(t, access, "Essay", "School", time.Now().Add(time.Hour))

	w := env.do(t, http.MethodPost, "/plan?wait=true", access, gin.H{"categories": []string{"School"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "failure", body["status"])
	assert.Equal(t, "model overloaded", body["error"])

	env.mu.Lock()
	defer env.mu.Unlock()
	assert.Len(t, env.prompts, 2, "primary then fallback")
}

func TestPlan_NoEligibleTasks(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	access, _ := env.signUpAndIn(t, "a@example.com", "secret1")
	env.createTask(t, access, "Essay", "School", time.Now().Add(time.Hour))

	w := env.do(t, http.MethodPost, "/plan", access, gin.H{"categories": []string{"music"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "failure", body["status"])
	assert.Equal(t, services.ErrNoEligibleTasks.Error(), body["error"])
	assert.NotEmpty(t, body["hint"])

	w = env.do(t, http.MethodPost, "/plan", access, gin.H{"categories": []string{" "}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/plan", access, gin.H{"categories": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.mu.Lock()
	defer env.mu.Unlock()
	assert.Empty(t, env.prompts)
}

func TestBuildDeps_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Store = "memory"

	d, cleanup, err := BuildDeps(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &services.MemoryTaskStore{}, d.Tasks)
	assert.IsType(t, &services.LogMailer{}, d.Mailer)
	assert.Nil(t, d.Captcha)
	assert.Nil(t, d.IDTokens)
	assert.NotNil(t, d.Planner)
}

type stubCaptcha struct {
	valid string
}

func (s stubCaptcha) Verify(ctx context.Context, token, action, userIP, userAgent string) (*services.CaptchaResult, error) {
	if token != s.valid || action != services.SignupAction {
		return nil, services.ErrCaptchaRejected
	}
	return &services.CaptchaResult{Score: 0.9, Action: action}, nil
}

func TestSignup_Captcha(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	env.deps.Captcha = stubCaptcha{valid: "human"}
	body := gin.H{"name": "Ann", "email": "a@example.com", "password": "secret1"}

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/auth/signup", "", body).Code)

	body["captchaToken"] = "bot"
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/auth/signup", "", body).Code)

	body["captchaToken"] = "human"
	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/auth/signup", "", body).Code)
}

func TestPasswordReset_RequestThrottle(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	env.signUpAndIn(t, "a@example.com", "secret1")
	request := gin.H{"email": "a@example.com"}

	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/auth/resetpassword/request", "", request)
		require.Equal(t, http.StatusOK, w.Code, "request %d: %s", i+1, w.Body.String())
	}
	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/auth/resetpassword/request", "", request)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	}

	blocked, err := env.deps.Accounts.IsEmailBlocked(context.Background(), "a@example.com", time.Now())
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Len(t, env.mailer.sent, 3, "no mail once blocked")
}

func TestPasswordReset_WrongOTPLocksCode(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	env.signUpAndIn(t, "a@example.com", "secret1")

	w := env.do(t, http.MethodPost, "/auth/resetpassword/request", "", gin.H{"email": "a@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	ref := decode(t, w)["ref"].(string)
	otp := regexp.MustCompile(`OTP : <strong[^>]*>(\d{6})<`).FindStringSubmatch(env.mailer.last().body)
	require.Len(t, otp, 2)

	wrong := "000000"
	if otp[1] == wrong {
		wrong = "111111"
	}
	for i := 0; i < model.MaxResetAttempts; i++ {
		w = env.do(t, http.MethodPost, "/auth/resetpassword", "", gin.H{"email": "a@example.com", "ref": ref, "otp": wrong, "password": "newsecret"})
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
	assert.Contains(t, w.Body.String(), "Too many wrong OTPs")

	// The right code no longer works once the code is locked.
	w = env.do(t, http.MethodPost, "/auth/resetpassword", "", gin.H{"email": "a@example.com", "ref": ref, "otp": otp[1], "password": "newsecret"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/auth/signin", "", gin.H{"email": "a@example.com", "password": "newsecret"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateTask_FarFutureDueDate(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	access, _ := env.signUpAndIn(t, "a@example.com", "secret1")
	due := time.Date(2300, time.January, 1, 0, 0, 0, 0, time.UTC)

	w := env.do(t, http.MethodPost, "/tasks", access, gin.H{"title": "Time capsule", "dueDate": model.Epoch(due)})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := decode(t, w)["task"].(map[string]any)["dueDate"].(float64)
	assert.Equal(t, 2300, model.FromEpoch(got).UTC().Year())
}

// readEvent returns the JSON payload of the next "tasks" server-sent event.
func readEvent(t *testing.T, r *bufio.Reader) map[string]any {
	t.Helper()
	event := ""
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:") && event == "tasks":
			var out map[string]any
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &out), line)
			return out
		}
	}
}

func TestStreamTasks(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `{}`)
	access, _ := env.signUpAndIn(t, "a@example.com", "secret1")
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/tasks/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	events := bufio.NewReader(resp.Body)

	first := readEvent(t, events)
	assert.Empty(t, first["tasks"])
	assert.Empty(t, first["order"])

	due := time.Now().Add(24 * time.Hour)
	env.createTask(t, access, "Report", "Work", due)
	second := readEvent(t, events)
	assert.Len(t, second["tasks"], 1)
	assert.Equal(t, []any{"Work"}, second["order"])

	// New categories are appended after the order the stream already sent.
	env.createTask(t, access, "Essay", "School", due)
	third := readEvent(t, events)
	assert.Len(t, third["tasks"], 2)
	assert.Equal(t, []any{"Work", "School"}, third["order"])
}
