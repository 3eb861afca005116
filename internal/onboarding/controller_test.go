package onboarding

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"testing"
	"time"

	"tradeconsole/internal/models"
	"tradeconsole/internal/remote"
	"tradeconsole/pkg/utils"
)

func newMounted(t *testing.T, m *MockRemote) *Controller {
	t.Helper()
	c := New(m, utils.NewNopLogger())
	if !c.Mount(context.Background()) {
		t.Fatal("Mount() returned false on a fresh controller")
	}
	t.Cleanup(c.Close)
	return c
}

// newEditing возвращает контроллер в Editing(NotTested)
func newEditing(t *testing.T, m *MockRemote) *Controller {
	t.Helper()
	c := newMounted(t, m)
	st, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if st.Key() != KeyNotTested {
		t.Fatalf("state after load = %s, want %s", st.Key(), KeyNotTested)
	}
	return c
}

func present(has bool) func(context.Context) (*models.OnboardingState, error) {
	return func(context.Context) (*models.OnboardingState, error) {
		return &models.OnboardingState{HasTestnetCredentials: has}, nil
	}
}

// ============================================================
// Загрузка
// ============================================================

func TestMount_StartsLoading(t *testing.T) {
	c := newMounted(t, &MockRemote{})

	st := c.State()
	if st.Phase != PhaseLoading || st.Presence != PresenceUnknown || !st.Mounted {
		t.Errorf("state after Mount = %+v, want mounted loading/unknown", st)
	}
	if c.Mount(context.Background()) {
		t.Error("second Mount() must return false")
	}
}

func TestRefresh_Load(t *testing.T) {
	tests := []struct {
		name         string
		fetch        func(context.Context) (*models.OnboardingState, error)
		wantKey      string
		wantPresence Presence
		wantLoadErr  string
	}{
		// Scenario 2
		{"absent", present(false), KeyNotTested, PresenceAbsent, ""},
		{"present", present(true), KeyAlreadyOnboarded, PresencePresent, ""},
		{"fetch fails", func(context.Context) (*models.OnboardingState, error) {
			return nil, &remote.RemoteError{Op: remote.OpOnboardingState, Status: http.StatusInternalServerError}
		}, KeyLoading, PresenceUnknown, MsgLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newMounted(t, &MockRemote{OnboardingStateFunc: tt.fetch})

			st, err := c.Refresh(context.Background())
			if err != nil {
				t.Fatalf("Refresh() error = %v", err)
			}
			if st.Key() != tt.wantKey {
				t.Errorf("state = %s, want %s", st.Key(), tt.wantKey)
			}
			if st.Presence != tt.wantPresence {
				t.Errorf("presence = %v, want %v", st.Presence, tt.wantPresence)
			}
			if st.LoadError != tt.wantLoadErr {
				t.Errorf("LoadError = %q, want %q", st.LoadError, tt.wantLoadErr)
			}
		})
	}
}

func TestRefresh_RecoversAfterStall(t *testing.T) {
	fail := true
	m := &MockRemote{OnboardingStateFunc: func(context.Context) (*models.OnboardingState, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return &models.OnboardingState{}, nil
	}}
	c := newMounted(t, m)

	st, _ := c.Refresh(context.Background())
	if st.Phase != PhaseLoading || st.LoadError == "" {
		t.Fatalf("expected stalled loading, got %+v", st)
	}

	fail = false
	st, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if st.Key() != KeyNotTested || st.LoadError != "" {
		t.Errorf("state after retry = %+v, want editing:not_tested", st)
	}
}

// ============================================================
// Test
// ============================================================

func TestTest(t *testing.T) {
	tests := []struct {
		name        string
		result      *models.CredentialTestResult
		err         error
		wantKey     string
		wantReason  string
		wantMessage string
	}{
		// Scenario 3
		{"valid", &models.CredentialTestResult{OK: true}, nil, KeyValid, "", MsgValid},
		{"rejected", &models.CredentialTestResult{OK: false, Error: "API key is invalid."}, nil,
			KeyInvalid, "API key is invalid.", "Error: API key is invalid."},
		{"call fails", nil, &remote.RemoteError{Op: remote.OpTestCredentials, Err: errors.New("timeout")},
			KeyInvalid, ReasonRequestFailed, MsgTestCallFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockRemote{TestCredentialsFunc: func(context.Context, string, string, bool) (*models.CredentialTestResult, error) {
				return tt.result, tt.err
			}}
			c := newEditing(t, m)

			st, err := c.Test(context.Background(), "k", "s")
			if err != nil {
				t.Fatalf("Test() error = %v", err)
			}
			if st.Key() != tt.wantKey || st.Reason != tt.wantReason || st.Message != tt.wantMessage {
				t.Errorf("Test() = %s reason=%q message=%q, want %s reason=%q message=%q",
					st.Key(), st.Reason, st.Message, tt.wantKey, tt.wantReason, tt.wantMessage)
			}
			if !m.lastTestnet {
				t.Error("credentials must be tested against testnet")
			}
		})
	}
}

func TestTest_ShowsTestingWhileInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	m := &MockRemote{TestCredentialsFunc: func(context.Context, string, string, bool) (*models.CredentialTestResult, error) {
		close(entered)
		<-release
		return &models.CredentialTestResult{OK: true}, nil
	}}
	c := newEditing(t, m)

	done := make(chan State)
	go func() {
		st, _ := c.Test(context.Background(), "k", "s")
		done <- st
	}()

	<-entered
	st := c.State()
	if st.Key() != KeyTesting || st.Message != MsgTesting {
		t.Errorf("in-flight state = %s %q, want %s %q", st.Key(), st.Message, KeyTesting, MsgTesting)
	}
	if st.CanSubmit() {
		t.Error("form must be disabled while testing")
	}

	// Повторная отправка отклоняется
	if _, err := c.Save(context.Background(), "k", "s"); !errors.Is(err, ErrActionInFlight) {
		t.Errorf("Save() while testing error = %v, want ErrActionInFlight", err)
	}
	if _, err := c.Refresh(context.Background()); !errors.Is(err, ErrActionInFlight) {
		t.Errorf("Refresh() while testing error = %v, want ErrActionInFlight", err)
	}

	close(release)
	if st := <-done; st.Key() != KeyValid {
		t.Errorf("final state = %s, want %s", st.Key(), KeyValid)
	}
	if _, _, saves := m.calls(); saves != 0 {
		t.Errorf("rejected Save reached the service %d times", saves)
	}
}

func TestActions_EmptyFields(t *testing.T) {
	m := &MockRemote{}
	c := newEditing(t, m)

	cases := []struct{ key, secret, field string }{
		{"", "s", "apiKey"},
		{"k", "", "apiSecret"},
		{"", "", "apiKey"},
	}

	for _, tc := range cases {
		for name, action := range map[string]func(context.Context, string, string) (State, error){
			"test": c.Test,
			"save": c.Save,
		} {
			st, err := action(context.Background(), tc.key, tc.secret)
			var ve *remote.ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Errorf("%s(%q, %q) error = %v, want ValidationError{%s}", name, tc.key, tc.secret, err, tc.field)
			}
			if st.Key() != KeyNotTested {
				t.Errorf("%s with empty fields changed state to %s", name, st.Key())
			}
		}
	}

	if _, tests, saves := m.calls(); tests != 0 || saves != 0 {
		t.Errorf("empty fields reached the service: tests=%d saves=%d", tests, saves)
	}
}

// ============================================================
// Save
// ============================================================

func TestSave(t *testing.T) {
	tests := []struct {
		name        string
		result      *models.CredentialSaveResult
		err         error
		wantKey     string
		wantMessage string
	}{
		// Scenario 4: без предварительного Test
		{"ok", &models.CredentialSaveResult{OK: true}, nil, KeyAlreadyOnboarded, MsgSaved},
		// Scenario 5
		{"rejected", &models.CredentialSaveResult{OK: false}, nil, KeySaveFailed, MsgSaveRejected},
		{"call fails", nil, &remote.RemoteError{Op: remote.OpSaveCredentials, Status: http.StatusBadGateway},
			KeySaveFailed, MsgSaveCallFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockRemote{SaveCredentialsFunc: func(context.Context, string, string, bool) (*models.CredentialSaveResult, error) {
				return tt.result, tt.err
			}}
			c := newEditing(t, m)

			st, err := c.Save(context.Background(), "k", "s")
			if err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if st.Key() != tt.wantKey || st.Message != tt.wantMessage {
				t.Errorf("Save() = %s %q, want %s %q", st.Key(), st.Message, tt.wantKey, tt.wantMessage)
			}
			if tt.wantKey == KeyAlreadyOnboarded && st.Presence != PresencePresent {
				t.Errorf("presence = %v, want present", st.Presence)
			}
			if tt.wantKey == KeySaveFailed && st.Reason == "" {
				t.Error("SaveFailed must carry a reason")
			}
			if _, tests, _ := m.calls(); tests != 0 {
				t.Error("Save must not call TestCredentials")
			}
		})
	}
}

func TestSave_AfterInvalidTest(t *testing.T) {
	m := &MockRemote{TestCredentialsFunc: func(context.Context, string, string, bool) (*models.CredentialTestResult, error) {
		return &models.CredentialTestResult{OK: false, Error: "bad"}, nil
	}}
	c := newEditing(t, m)

	if st, _ := c.Test(context.Background(), "k", "s"); st.Key() != KeyInvalid {
		t.Fatalf("Test() = %s, want %s", st.Key(), KeyInvalid)
	}
	st, err := c.Save(context.Background(), "k", "s")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if st.Key() != KeyAlreadyOnboarded {
		t.Errorf("Save() after invalid test = %s, want %s", st.Key(), KeyAlreadyOnboarded)
	}
}

func TestAlreadyOnboarded_LeftOnlyByRefresh(t *testing.T) {
	m := &MockRemote{OnboardingStateFunc: present(true)}
	c := newMounted(t, m)
	c.Refresh(context.Background())

	if _, err := c.Test(context.Background(), "k", "s"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Test() from already_onboarded error = %v, want ErrInvalidTransition", err)
	}
	if _, err := c.Save(context.Background(), "k", "s"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Save() from already_onboarded error = %v, want ErrInvalidTransition", err)
	}
	if st := c.State(); st.Key() != KeyAlreadyOnboarded {
		t.Fatalf("state = %s, want %s", st.Key(), KeyAlreadyOnboarded)
	}

	// Ключи удалены на сервисе вне клиента - Refresh возвращает форму
	m.OnboardingStateFunc = present(false)
	st, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if st.Key() != KeyNotTested {
		t.Errorf("state after Refresh = %s, want %s", st.Key(), KeyNotTested)
	}
}

// ============================================================
// Размонтирование
// ============================================================

func TestClose_DiscardsLateResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	m := &MockRemote{SaveCredentialsFunc: func(context.Context, string, string, bool) (*models.CredentialSaveResult, error) {
		close(entered)
		<-release // игнорирует отмену, как медленный сервер
		return &models.CredentialSaveResult{OK: true}, nil
	}}
	c := newEditing(t, m)

	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	done := make(chan error)
	go func() {
		_, err := c.Save(context.Background(), "k", "s")
		done <- err
	}()

	<-entered
	c.Close()
	before := c.State()
	drain(updates)

	close(release)
	if err := <-done; err != nil {
		t.Errorf("late result surfaced error: %v", err)
	}

	after := c.State()
	if after != before {
		t.Errorf("late result mutated state: before=%+v after=%+v", before, after)
	}
	if after.Phase == PhaseAlreadyOnboarded {
		t.Error("late save result must not mark the flow onboarded")
	}
	select {
	case st := <-updates:
		t.Errorf("listeners received %+v after unmount", st)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestClose_CancelsInFlightCall(t *testing.T) {
	entered := make(chan struct{})
	m := &MockRemote{TestCredentialsFunc: func(ctx context.Context, _, _ string, _ bool) (*models.CredentialTestResult, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := newEditing(t, m)

	done := make(chan error)
	go func() {
		_, err := c.Test(context.Background(), "k", "s")
		done <- err
	}()

	<-entered
	c.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("cancelled Test() surfaced error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the in-flight call")
	}
}

func TestRemount_IgnoresPreviousGeneration(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	first := true
	m := &MockRemote{TestCredentialsFunc: func(context.Context, string, string, bool) (*models.CredentialTestResult, error) {
		if first {
			first = false
			close(entered)
			<-release
			return &models.CredentialTestResult{OK: false, Error: "stale"}, nil
		}
		return &models.CredentialTestResult{OK: true}, nil
	}}
	c := newEditing(t, m)

	done := make(chan error)
	go func() {
		_, err := c.Test(context.Background(), "k", "s")
		done <- err
	}()
	<-entered

	c.Close()
	c.Mount(context.Background())
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("old generation result surfaced error: %v", err)
	}
	if st := c.State(); st.Key() != KeyNotTested {
		t.Errorf("state after stale result = %s, want %s", st.Key(), KeyNotTested)
	}
}

func TestActions_NotMounted(t *testing.T) {
	c := New(&MockRemote{}, utils.NewNopLogger())

	if _, err := c.Refresh(context.Background()); !errors.Is(err, ErrNotMounted) {
		t.Errorf("Refresh() error = %v, want ErrNotMounted", err)
	}
	if _, err := c.Test(context.Background(), "k", "s"); !errors.Is(err, ErrNotMounted) {
		t.Errorf("Test() error = %v, want ErrNotMounted", err)
	}
	c.Close() // no-op
}

// ============================================================
// Инвариант AlreadyOnboarded
// ============================================================

// Случайные последовательности действий: в already_onboarded попадаем только
// из загрузки с has_credentials=true или после сохранения с ok=true
func TestAlreadyOnboarded_OnlyViaFetchOrSave(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		m := &MockRemote{
			OnboardingStateFunc: func(context.Context) (*models.OnboardingState, error) {
				switch rng.Intn(3) {
				case 0:
					return nil, errors.New("down")
				case 1:
					return &models.OnboardingState{HasTestnetCredentials: true}, nil
				default:
					return &models.OnboardingState{}, nil
				}
			},
			TestCredentialsFunc: func(context.Context, string, string, bool) (*models.CredentialTestResult, error) {
				if rng.Intn(3) == 0 {
					return nil, errors.New("down")
				}
				return &models.CredentialTestResult{OK: rng.Intn(2) == 0, Error: "x"}, nil
			},
			SaveCredentialsFunc: func(context.Context, string, string, bool) (*models.CredentialSaveResult, error) {
				if rng.Intn(3) == 0 {
					return nil, errors.New("down")
				}
				return &models.CredentialSaveResult{OK: rng.Intn(2) == 0}, nil
			},
		}
		c := New(m, utils.NewNopLogger())
		c.Mount(context.Background())

		for step := 0; step < 10; step++ {
			before := c.State()
			var (
				after State
				via   string
			)
			switch rng.Intn(3) {
			case 0:
				after, _ = c.Refresh(context.Background())
				via = "refresh"
			case 1:
				after, _ = c.Test(context.Background(), "k", "s")
				via = "test"
			default:
				after, _ = c.Save(context.Background(), "k", "s")
				via = "save"
			}

			if after.Phase == PhaseAlreadyOnboarded && before.Phase != PhaseAlreadyOnboarded && via == "test" {
				t.Fatalf("iteration %d: Test moved %s to already_onboarded", i, before.Key())
			}
			if before.Phase == PhaseAlreadyOnboarded && after.Phase != PhaseAlreadyOnboarded && via != "refresh" {
				t.Fatalf("iteration %d: %s left already_onboarded", i, via)
			}
		}
		c.Close()
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{KeyLoading, KeyAlreadyOnboarded, true},
		{KeyLoading, KeyNotTested, true},
		{KeyLoading, KeyLoading, true},
		{KeyNotTested, KeyTesting, true},
		{KeyNotTested, KeySaveInFlight, true},
		{KeyTesting, KeyValid, true},
		{KeyTesting, KeyInvalid, true},
		{KeySaveInFlight, KeyAlreadyOnboarded, true},
		{KeySaveInFlight, KeySaveFailed, true},
		{KeyAlreadyOnboarded, KeyLoading, true},

		{KeyAlreadyOnboarded, KeyNotTested, false},
		{KeyAlreadyOnboarded, KeyTesting, false},
		{KeyAlreadyOnboarded, KeySaveInFlight, false},
		{KeyValid, KeyAlreadyOnboarded, false},
		{KeyTesting, KeyAlreadyOnboarded, false},
		{KeyTesting, KeySaveInFlight, false},
		{KeySaveInFlight, KeyTesting, false},
		{"unknown", KeyLoading, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAlreadyOnboarded_Sources(t *testing.T) {
	for from, targets := range ValidTransitions {
		for _, to := range targets {
			if to == KeyAlreadyOnboarded && from != KeyLoading && from != KeySaveInFlight {
				t.Errorf("already_onboarded reachable from %s", from)
			}
		}
	}
}

// ============================================================
// Прочее
// ============================================================

func TestSubscribe_ReceivesTransitions(t *testing.T) {
	c := newMounted(t, &MockRemote{OnboardingStateFunc: present(false)})

	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	if st := <-updates; st.Phase != PhaseLoading {
		t.Errorf("initial snapshot = %s, want loading", st.Key())
	}

	c.Refresh(context.Background())
	c.Test(context.Background(), "k", "s")

	var keys []string
	for len(updates) > 0 {
		keys = append(keys, (<-updates).Key())
	}
	want := []string{KeyLoading, KeyNotTested, KeyTesting, KeyValid}
	if len(keys) != len(want) {
		t.Fatalf("received %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("update %d = %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestDraft_Redacted(t *testing.T) {
	d := draft{apiKey: "very-secret-key", apiSecret: "very-secret-value", isTestnet: true}
	if s := d.String(); strings.Contains(s, "very-secret") {
		t.Errorf("draft leaks credentials: %s", s)
	}
}

func TestPresence_Text(t *testing.T) {
	for _, p := range []Presence{PresenceUnknown, PresencePresent, PresenceAbsent} {
		text, _ := p.MarshalText()
		var back Presence
		if err := back.UnmarshalText(text); err != nil || back != p {
			t.Errorf("presence %v round trip = %v, %v", p, back, err)
		}
	}
}

func drain(ch <-chan State) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
