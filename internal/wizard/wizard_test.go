package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_resumo_bot/internal/domain"
	"tg_resumo_bot/internal/session"
	"tg_resumo_bot/internal/store"
)

const testUserID = int64(42)

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, _ float32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fixture struct {
	engine    *Engine
	sessions  *session.Store
	summaries *store.MemorySummaryStore
	ai        *fakeCompleter
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()

	hookLogger, _ := logtest.NewNullLogger()
	sessions := session.NewStore(ttl)
	summaries := store.NewMemorySummaryStore()
	ai := &fakeCompleter{reply: "Resuma as mensagens destacando decisões e dúvidas."}

	engine := NewEngine(sessions, summaries, ai, "gemini-2.0-flash", logrus.NewEntry(hookLogger))

	return &fixture{
		engine:    engine,
		sessions:  sessions,
		summaries: summaries,
		ai:        ai,
	}
}

func (f *fixture) startSession(t *testing.T) {
	t.Helper()
	if _, err := f.engine.Start(context.Background(), testUserID, -100); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
}

func (f *fixture) setState(t *testing.T, state string) {
	t.Helper()
	sess, ok := f.sessions.Lookup(testUserID)
	if !ok {
		t.Fatalf("no session to mutate")
	}
	sess.State = state
}

func (f *fixture) state(t *testing.T) string {
	t.Helper()
	sess, ok := f.sessions.Lookup(testUserID)
	if !ok {
		t.Fatalf("expected session to exist")
	}
	return sess.State
}

func (f *fixture) handle(t *testing.T, input string) string {
	t.Helper()
	reply, err := f.engine.Handle(context.Background(), testUserID, input)
	if err != nil {
		t.Fatalf("Handle(%q) returned error: %v", input, err)
	}
	return reply
}

func TestStartListsExistingGroups(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	ctx := context.Background()

	for _, name := range []string{"Amigos", "Familia"} {
		if err := f.summaries.Set(ctx, name, domain.DefaultGroupSummary()); err != nil {
			t.Fatalf("seed Set returned error: %v", err)
		}
	}

	reply, err := f.engine.Start(ctx, testUserID, -100)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	for _, want := range []string{"1. Amigos", "2. Familia", "Qual é o nome exato do grupo"} {
		if !strings.Contains(reply, want) {
			t.Fatalf("expected opening prompt to contain %q, got:\n%s", want, reply)
		}
	}

	if f.state(t) != StateAwaitingGroupName {
		t.Fatalf("expected initial state %s, got %s", StateAwaitingGroupName, f.state(t))
	}
}

func TestStartResumesActiveSession(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	f.startSession(t)

	reply, err := f.engine.Start(context.Background(), testUserID, -100)
	if err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}
	if !strings.Contains(reply, "configuração em andamento") {
		t.Fatalf("expected resume notice, got: %s", reply)
	}
	if f.sessions.Len() != 1 {
		t.Fatalf("expected the original session to survive, have %d", f.sessions.Len())
	}
}

func TestCancelDeletesSessionAtEveryState(t *testing.T) {
	states := []string{
		StateAwaitingGroupName,
		StateAwaitingConfigType,
		StateAwaitingEditOption,
		StateAwaitingDeleteConfirm,
		StateAwaitingInterval,
		StateAwaitingQuietStart,
		StateAwaitingQuietEnd,
		StateAwaitingAutoDeleteChoice,
		StateAwaitingDeleteAfter,
		StateAwaitingGroupInfo,
		StateAwaitingPromptApproval,
		StateAwaitingCustomPrompt,
		StateAwaitingConfirmation,
	}

	for _, state := range states {
		for _, word := range []string{"cancelar", "cancel", "CANCELAR", "  cancelar  "} {
			f := newFixture(t, session.DefaultTTL)
			f.startSession(t)
			f.setState(t, state)

			reply := f.handle(t, word)
			if reply != replyCancelled {
				t.Fatalf("state %s input %q: expected cancellation notice, got %q", state, word, reply)
			}
			if _, ok := f.sessions.Lookup(testUserID); ok {
				t.Fatalf("state %s input %q: expected session to be deleted", state, word)
			}
		}
	}
}

func TestBackFollowsPredecessorTable(t *testing.T) {
	for state, want := range predecessors {
		f := newFixture(t, session.DefaultTTL)
		f.startSession(t)
		f.setState(t, state)

		sess, _ := f.sessions.Lookup(testUserID)
		sess.Data.GroupName = "Amigos"
		sess.Data.Prompt = "prompt atual"

		reply := f.handle(t, "voltar")
		if got := f.state(t); got != want {
			t.Fatalf("back from %s: expected %s, got %s", state, want, got)
		}
		if !strings.HasPrefix(reply, backPreamble) {
			t.Fatalf("back from %s: expected reply to open with the back preamble, got %q", state, reply)
		}
	}
}

func TestBackIsIgnoredAtInitialState(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	f.startSession(t)

	// At the initial state "voltar" is treated as a literal group name.
	f.handle(t, "voltar")
	if f.state(t) != StateAwaitingConfigType {
		t.Fatalf("expected literal name to advance to %s, got %s", StateAwaitingConfigType, f.state(t))
	}

	sess, _ := f.sessions.Lookup(testUserID)
	if sess.Data.GroupName != "voltar" {
		t.Fatalf("expected group name %q, got %q", "voltar", sess.Data.GroupName)
	}
}

func TestBackIntoPromptApprovalRegeneratesPrompt(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	f.startSession(t)
	f.setState(t, StateAwaitingCustomPrompt)

	sess, _ := f.sessions.Lookup(testUserID)
	sess.Data.GroupInfo = "grupo de estudos"
	sess.Data.Prompt = "prompt antigo"
	f.ai.reply = "prompt novo"

	reply := f.handle(t, "voltar")
	if f.state(t) != StateAwaitingPromptApproval {
		t.Fatalf("expected %s, got %s", StateAwaitingPromptApproval, f.state(t))
	}
	if !strings.Contains(reply, "prompt novo") {
		t.Fatalf("expected regenerated prompt in reply, got: %s", reply)
	}
	if f.ai.calls != 1 {
		t.Fatalf("expected one completion call, got %d", f.ai.calls)
	}
}

func TestIntervalBoundaries(t *testing.T) {
	cases := []struct {
		input string
		ok    bool
	}{
		{"0", false},
		{"1", true},
		{"24", true},
		{"25", false},
		{"abc", false},
		{"", false},
	}

	for _, tc := range cases {
		f := newFixture(t, session.DefaultTTL)
		f.startSession(t)
		f.setState(t, StateAwaitingInterval)

		reply := f.handle(t, tc.input)
		if tc.ok {
			if f.state(t) != StateAwaitingQuietStart {
				t.Fatalf("input %q: expected advance to %s, got %s", tc.input, StateAwaitingQuietStart, f.state(t))
			}
			continue
		}

		if f.state(t) != StateAwaitingInterval {
			t.Fatalf("input %q: expected state to stay %s, got %s", tc.input, StateAwaitingInterval, f.state(t))
		}
		if reply != invalidInterval {
			t.Fatalf("input %q: expected corrective message, got %q", tc.input, reply)
		}
	}
}

func TestQuietTimeValidation(t *testing.T) {
	valid := []string{"00:00", "7:30", "07:30", "22:00", "23:59"}
	invalid := []string{"24:00", "22:60", "7h30", "2200", "ab:cd", ""}

	for _, input := range valid {
		f := newFixture(t, session.DefaultTTL)
		f.startSession(t)
		f.setState(t, StateAwaitingQuietStart)

		f.handle(t, input)
		if f.state(t) != StateAwaitingQuietEnd {
			t.Fatalf("input %q: expected advance, stayed at %s", input, f.state(t))
		}
	}

	for _, input := range invalid {
		f := newFixture(t, session.DefaultTTL)
		f.startSession(t)
		f.setState(t, StateAwaitingQuietStart)

		reply := f.handle(t, input)
		if f.state(t) != StateAwaitingQuietStart {
			t.Fatalf("input %q: expected state to stay, got %s", input, f.state(t))
		}
		if reply != invalidQuietStart {
			t.Fatalf("input %q: expected corrective message, got %q", input, reply)
		}
	}
}

func TestQuietStartIdempotentAfterBackRoundTrip(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	f.startSession(t)
	f.setState(t, StateAwaitingQuietStart)

	f.handle(t, "22:00")
	sess, _ := f.sessions.Lookup(testUserID)
	first := sess.Data.QuietStart

	f.handle(t, "voltar")
	if f.state(t) != StateAwaitingQuietStart {
		t.Fatalf("expected back into %s, got %s", StateAwaitingQuietStart, f.state(t))
	}

	f.handle(t, "22:00")
	if sess.Data.QuietStart != first || sess.Data.QuietStart != "22:00" {
		t.Fatalf("expected stored quiet start to stay %q, got %q", "22:00", sess.Data.QuietStart)
	}
}

func TestOutOfRangeNumberIsLiteralGroupName(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	ctx := context.Background()

	for _, name := range []string{"Amigos", "Familia", "Trabalho"} {
		if err := f.summaries.Set(ctx, name, domain.DefaultGroupSummary()); err != nil {
			t.Fatalf("seed Set returned error: %v", err)
		}
	}

	f.startSession(t)
	reply := f.handle(t, "5")

	if f.state(t) != StateAwaitingConfigType {
		t.Fatalf("expected literal-name flow into %s, got %s", StateAwaitingConfigType, f.state(t))
	}

	sess, _ := f.sessions.Lookup(testUserID)
	if sess.Data.GroupName != "5" {
		t.Fatalf("expected group name %q, got %q", "5", sess.Data.GroupName)
	}
	if !strings.Contains(reply, "✅ Grupo selecionado: \"5\"") {
		t.Fatalf("expected selection confirmation for literal name, got: %s", reply)
	}
}

func TestNumericSelectionEntersEditFlow(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	ctx := context.Background()

	cfg := domain.DefaultGroupSummary()
	cfg.IntervalHours = 7
	for _, seed := range []struct {
		name string
		cfg  domain.GroupSummary
	}{
		{"Amigos", domain.DefaultGroupSummary()},
		{"Familia", cfg},
		{"Trabalho", domain.DefaultGroupSummary()},
	} {
		if err := f.summaries.Set(ctx, seed.name, seed.cfg); err != nil {
			t.Fatalf("seed Set returned error: %v", err)
		}
	}

	f.startSession(t)
	reply := f.handle(t, "2")

	if f.state(t) != StateAwaitingEditOption {
		t.Fatalf("expected edit flow state %s, got %s", StateAwaitingEditOption, f.state(t))
	}
	if !strings.Contains(reply, "Familia") {
		t.Fatalf("expected reply to name the selected group, got: %s", reply)
	}
	if !strings.Contains(reply, "2. Intervalo: 7 horas") {
		t.Fatalf("expected reply to include the group's interval, got: %s", reply)
	}
}

func TestFullHappyPath(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	ctx := context.Background()

	f.startSession(t)

	f.handle(t, "Amigos")
	f.handle(t, "2")
	f.handle(t, "4")
	f.handle(t, "22:00")
	f.handle(t, "07:00")
	f.handle(t, "não")
	f.handle(t, "grupo de amigos")
	f.handle(t, "1")
	reply := f.handle(t, "sim")

	if reply != replySaved {
		t.Fatalf("expected save confirmation, got %q", reply)
	}
	if _, ok := f.sessions.Lookup(testUserID); ok {
		t.Fatalf("expected session to be deleted after completion")
	}

	saved, found, err := f.summaries.Get(ctx, "Amigos")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !found {
		t.Fatalf("expected persisted config for Amigos")
	}
	if !saved.Enabled {
		t.Fatalf("expected saved config to be enabled")
	}
	if saved.IntervalHours != 4 {
		t.Fatalf("expected interval 4, got %d", saved.IntervalHours)
	}
	if saved.QuietTime.Start != "22:00" || saved.QuietTime.End != "07:00" {
		t.Fatalf("expected quiet time 22:00-07:00, got %+v", saved.QuietTime)
	}
	if saved.DeleteAfter != nil {
		t.Fatalf("expected deleteAfter to stay unset, got %v", *saved.DeleteAfter)
	}
	if saved.Prompt != f.ai.reply {
		t.Fatalf("expected generated prompt to be persisted, got %q", saved.Prompt)
	}

	enabled, err := f.summaries.Enabled(ctx)
	if err != nil {
		t.Fatalf("Enabled returned error: %v", err)
	}
	if !enabled {
		t.Fatalf("expected global flag to be switched on by confirmation")
	}
}

func TestDefaultsPathSkipsCustomQuestions(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)

	f.startSession(t)
	f.handle(t, "Familia")
	reply := f.handle(t, "1")

	if f.state(t) != StateAwaitingConfirmation {
		t.Fatalf("expected defaults branch to jump to %s, got %s", StateAwaitingConfirmation, f.state(t))
	}
	if !strings.Contains(reply, "Resumo das configurações padrão") {
		t.Fatalf("expected defaults summary, got: %s", reply)
	}

	f.handle(t, "sim")

	saved, found, err := f.summaries.Get(context.Background(), "Familia")
	if err != nil || !found {
		t.Fatalf("expected persisted config, found=%v err=%v", found, err)
	}

	defaults := f.summaries.Defaults()
	if saved.IntervalHours != defaults.IntervalHours {
		t.Fatalf("expected default interval %d, got %d", defaults.IntervalHours, saved.IntervalHours)
	}
	if saved.Prompt != defaults.Prompt {
		t.Fatalf("expected default prompt, got %q", saved.Prompt)
	}
}

func TestSessionExpiryNoticeAndCleanup(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	f.startSession(t)
	f.setState(t, StateAwaitingInterval)

	time.Sleep(25 * time.Millisecond)

	reply := f.handle(t, "4")
	if reply != replyExpired {
		t.Fatalf("expected expiry notice, got %q", reply)
	}
	if _, ok := f.sessions.Lookup(testUserID); ok {
		t.Fatalf("expected expired session to be removed")
	}
}

func TestGroupNameRejectsCommandPrefixes(t *testing.T) {
	for _, input := range []string{"#resumo", "@todos"} {
		f := newFixture(t, session.DefaultTTL)
		f.startSession(t)

		reply := f.handle(t, input)
		if f.state(t) != StateAwaitingGroupName {
			t.Fatalf("input %q: expected state to stay, got %s", input, f.state(t))
		}
		if reply != invalidGroupNamePrefix {
			t.Fatalf("input %q: expected prefix rejection, got %q", input, reply)
		}
	}
}

func TestConfirmationNoDiscardsEverything(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	f.startSession(t)
	f.setState(t, StateAwaitingConfirmation)

	sess, _ := f.sessions.Lookup(testUserID)
	sess.Data.GroupName = "Amigos"

	reply := f.handle(t, "não")
	if reply != replyCancelled {
		t.Fatalf("expected cancellation notice, got %q", reply)
	}
	if _, ok := f.sessions.Lookup(testUserID); ok {
		t.Fatalf("expected session to be deleted")
	}
	if _, found, _ := f.summaries.Get(context.Background(), "Amigos"); found {
		t.Fatalf("expected nothing to be persisted")
	}
}

func TestGenerationFailureKeepsSession(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	f.startSession(t)
	f.setState(t, StateAwaitingGroupInfo)
	f.ai.err = errors.New("model unavailable")

	reply := f.handle(t, "grupo de estudos")
	if reply != replyTransitionError {
		t.Fatalf("expected transition error reply, got %q", reply)
	}
	if f.state(t) != StateAwaitingGroupInfo {
		t.Fatalf("expected state to survive the failure, got %s", f.state(t))
	}

	// A retry after the backend recovers succeeds.
	f.ai.err = nil
	f.handle(t, "grupo de estudos")
	if f.state(t) != StateAwaitingPromptApproval {
		t.Fatalf("expected retry to advance, got %s", f.state(t))
	}
}

func TestPersistFailureSurfacesErrorAndEndsSession(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	f.startSession(t)
	f.setState(t, StateAwaitingConfirmation)

	sess, _ := f.sessions.Lookup(testUserID)
	sess.Data.GroupName = "Amigos"
	sess.Data.IntervalHours = 4
	sess.Data.QuietStart = "22:00"
	sess.Data.QuietEnd = "07:00"
	sess.Data.Prompt = "prompt"

	f.summaries.SaveErr = errors.New("disk full")

	_, err := f.engine.Handle(context.Background(), testUserID, "sim")
	if err == nil {
		t.Fatalf("expected persistence error to surface")
	}
	if _, ok := f.sessions.Lookup(testUserID); ok {
		t.Fatalf("expected session to be deleted after the persistence attempt")
	}
}

func TestDeleteGroupFlow(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	ctx := context.Background()

	if err := f.summaries.Set(ctx, "Amigos", domain.DefaultGroupSummary()); err != nil {
		t.Fatalf("seed Set returned error: %v", err)
	}

	f.startSession(t)
	f.handle(t, "1")

	reply := f.handle(t, "5")
	if f.state(t) != StateAwaitingDeleteConfirm {
		t.Fatalf("expected delete confirmation state, got %s", f.state(t))
	}
	if !strings.Contains(reply, "Tem certeza que deseja excluir") {
		t.Fatalf("expected delete confirmation prompt, got: %s", reply)
	}

	reply = f.handle(t, "sim")
	if reply != replyGroupDeleted {
		t.Fatalf("expected deletion confirmation, got %q", reply)
	}
	if _, found, _ := f.summaries.Get(ctx, "Amigos"); found {
		t.Fatalf("expected group config to be removed")
	}
	if _, ok := f.sessions.Lookup(testUserID); ok {
		t.Fatalf("expected session to end after deletion")
	}
}

func TestDeleteConfirmNoAborts(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	ctx := context.Background()

	if err := f.summaries.Set(ctx, "Amigos", domain.DefaultGroupSummary()); err != nil {
		t.Fatalf("seed Set returned error: %v", err)
	}

	f.startSession(t)
	f.handle(t, "1")
	f.handle(t, "5")

	reply := f.handle(t, "não")
	if reply != replyDeleteAborted {
		t.Fatalf("expected abort notice, got %q", reply)
	}
	if _, found, _ := f.summaries.Get(ctx, "Amigos"); !found {
		t.Fatalf("expected group config to survive")
	}
	if _, ok := f.sessions.Lookup(testUserID); ok {
		t.Fatalf("expected session to end either way")
	}
}

func TestEditToggleFlipsEnabled(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	ctx := context.Background()

	cfg := domain.DefaultGroupSummary()
	cfg.Enabled = true
	if err := f.summaries.Set(ctx, "Amigos", cfg); err != nil {
		t.Fatalf("seed Set returned error: %v", err)
	}

	f.startSession(t)
	f.handle(t, "1")

	reply := f.handle(t, "1")
	if reply != replyToggleDisabled {
		t.Fatalf("expected disable confirmation, got %q", reply)
	}

	saved, _, err := f.summaries.Get(ctx, "Amigos")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if saved.Enabled {
		t.Fatalf("expected group to be disabled after toggle")
	}
}

func TestAutoDeleteYesCollectsMinutes(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	f.startSession(t)
	f.setState(t, StateAwaitingAutoDeleteChoice)

	f.handle(t, "sim")
	if f.state(t) != StateAwaitingDeleteAfter {
		t.Fatalf("expected %s, got %s", StateAwaitingDeleteAfter, f.state(t))
	}

	reply := f.handle(t, "0")
	if reply != invalidDeleteAfter {
		t.Fatalf("expected rejection of zero minutes, got %q", reply)
	}

	f.handle(t, "30")
	sess, _ := f.sessions.Lookup(testUserID)
	if sess.Data.DeleteAfter == nil || *sess.Data.DeleteAfter != 30 {
		t.Fatalf("expected deleteAfter=30, got %v", sess.Data.DeleteAfter)
	}
	if f.state(t) != StateAwaitingGroupInfo {
		t.Fatalf("expected %s, got %s", StateAwaitingGroupInfo, f.state(t))
	}
}

func TestCustomPromptIsStoredVerbatim(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	f.startSession(t)
	f.setState(t, StateAwaitingPromptApproval)

	sess, _ := f.sessions.Lookup(testUserID)
	sess.Data.GroupName = "Amigos"
	sess.Data.Prompt = "sugerido"

	f.handle(t, "2")
	if f.state(t) != StateAwaitingCustomPrompt {
		t.Fatalf("expected %s, got %s", StateAwaitingCustomPrompt, f.state(t))
	}

	f.handle(t, "Resuma Apenas As Decisões")
	if sess.Data.Prompt != "Resuma Apenas As Decisões" {
		t.Fatalf("expected custom prompt stored with original casing, got %q", sess.Data.Prompt)
	}
	if f.state(t) != StateAwaitingConfirmation {
		t.Fatalf("expected %s, got %s", StateAwaitingConfirmation, f.state(t))
	}
}

func TestConcurrentTransitionsAreSerialized(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)
	f.startSession(t)
	f.setState(t, StateAwaitingConfirmation)

	sess, _ := f.sessions.Lookup(testUserID)
	sess.Data.GroupName = "Amigos"
	sess.Data.Prompt = "prompt"

	// Three concurrent "voltar" inputs must each apply exactly one step of
	// the predecessor chain: CONFIRMATION, PROMPT_APPROVAL, GROUP_INFO,
	// landing on QUIET_END.
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.Handle(context.Background(), testUserID, "voltar"); err != nil {
				t.Errorf("Handle returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.state(t); got != StateAwaitingQuietEnd {
		t.Fatalf("expected serialized backs to land on %s, got %s", StateAwaitingQuietEnd, got)
	}
}

func TestHandleWithoutSessionReturnsErrNoSession(t *testing.T) {
	f := newFixture(t, session.DefaultTTL)

	_, err := f.engine.Handle(context.Background(), testUserID, "oi")
	if !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
