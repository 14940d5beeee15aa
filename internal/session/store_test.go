package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"NeuralClient/internal/domain"
)

type memCredentials struct {
	token   string
	loadErr error
	saveErr error
	saves   int
	clears  int
}

func (m *memCredentials) Load(context.Context) (string, error) { return m.token, m.loadErr }

func (m *memCredentials) Save(_ context.Context, token string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.token = token
	return nil
}

func (m *memCredentials) Clear(context.Context) error {
	m.clears++
	m.token = ""
	return nil
}

type stubAuth struct {
	login func(creds domain.Credentials) (domain.User, string, error)
	calls int
}

func (s *stubAuth) Login(_ context.Context, creds domain.Credentials) (domain.User, string, error) {
	s.calls++
	return s.login(creds)
}

func (s *stubAuth) Register(_ context.Context, name, _ string) (domain.Registration, error) {
	if name == "taken" {
		return domain.Registration{}, domain.ErrNameTaken
	}
	return domain.Registration{SecretCode: "NEW", Handle: "@" + name}, nil
}

func acceptCode(code string) *stubAuth {
	return &stubAuth{login: func(c domain.Credentials) (domain.User, string, error) {
		if c.Code != code {
			return domain.User{}, "", domain.ErrInvalidCredentials
		}
		return domain.User{ID: "u-1", Handle: "@ann", Name: "Ann"}, code, nil
	}}
}

func loggedIn(t *testing.T) (*Store, *memCredentials) {
	t.Helper()
	creds := &memCredentials{}
	s := New(creds, acceptCode("SECRET"), nil)
	require.NoError(t, s.Login(context.Background(), domain.Credentials{Code: "SECRET"}))
	return s, creds
}

func TestInitWithoutCredentialStaysAnonymous(t *testing.T) {
	auth := acceptCode("SECRET")
	s := New(&memCredentials{}, auth, nil)

	require.NoError(t, s.Init(context.Background()))
	st := s.Snapshot()
	require.False(t, st.Authenticated())
	require.Equal(t, domain.ViewLogin, st.ActiveView)
	require.Zero(t, auth.calls)
}

func TestInitRestoresPersistedCredential(t *testing.T) {
	s := New(&memCredentials{token: "SECRET"}, acceptCode("SECRET"), nil)

	require.NoError(t, s.Init(context.Background()))
	st := s.Snapshot()
	require.True(t, st.Authenticated())
	require.Equal(t, "SECRET", st.Credential)
	require.Equal(t, domain.ViewFeed, st.ActiveView)
}

func TestInitClearsRejectedCredential(t *testing.T) {
	creds := &memCredentials{token: "STALE"}
	s := New(creds, acceptCode("SECRET"), nil)

	err := s.Init(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	require.Equal(t, 1, creds.clears)
	require.Empty(t, creds.token)
	require.False(t, s.Snapshot().Authenticated())
}

func TestLoginFailureLeavesSessionUntouched(t *testing.T) {
	s, creds := loggedIn(t)
	before := s.Snapshot()

	err := s.Login(context.Background(), domain.Credentials{Code: "WRONG"})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	require.Equal(t, before, s.Snapshot())
	require.Equal(t, "SECRET", creds.token)
}

func TestLoginPersistFailureKeepsOldState(t *testing.T) {
	creds := &memCredentials{saveErr: errors.New("disk full")}
	s := New(creds, acceptCode("SECRET"), nil)

	err := s.Login(context.Background(), domain.Credentials{Code: "SECRET"})
	require.Error(t, err)
	require.False(t, s.Snapshot().Authenticated())
}

func TestLoginRejectsEmptyCredentials(t *testing.T) {
	auth := acceptCode("SECRET")
	s := New(&memCredentials{}, auth, nil)

	err := s.Login(context.Background(), domain.Credentials{})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Zero(t, auth.calls)
}

func TestLogoutResetsEverything(t *testing.T) {
	s, creds := loggedIn(t)
	e, _, _ := s.Current()
	require.True(t, s.ReplaceFriendRequests(e, []domain.FriendRequest{{RequestID: "1"}}))
	s.SetActiveChatScope(domain.DirectWith("u-2"))
	require.NoError(t, s.SetActiveView(domain.ViewMessages))
	require.True(t, s.ReplaceConversation(e, domain.DirectWith("u-2"), []domain.Message{{ID: "m1"}}))

	s.Logout(context.Background())

	st := s.Snapshot()
	require.False(t, st.Authenticated())
	require.Empty(t, st.Credential)
	require.Equal(t, domain.ViewLogin, st.ActiveView)
	require.True(t, st.ActiveChatScope.IsGlobal())
	require.Empty(t, st.FriendRequests)
	require.Empty(t, st.Conversation)
	require.Empty(t, creds.token)
}

func TestWritesFromPreviousSessionAreDropped(t *testing.T) {
	s, _ := loggedIn(t)
	old, _, _ := s.Current()

	s.Logout(context.Background())
	require.False(t, s.ReplaceFriendRequests(old, []domain.FriendRequest{{RequestID: "1"}}))
	require.False(t, s.Apply(old, func(Focus) { t.Fatal("apply ran for stale epoch") }))

	require.NoError(t, s.Login(context.Background(), domain.Credentials{Code: "SECRET"}))
	require.False(t, s.ReplaceFriendRequests(old, []domain.FriendRequest{{RequestID: "1"}}))
	require.Empty(t, s.Snapshot().FriendRequests)
}

func TestReplaceConversationIgnoresOtherScope(t *testing.T) {
	s, _ := loggedIn(t)
	e, _, _ := s.Current()
	s.SetActiveChatScope(domain.DirectWith("u-2"))

	require.False(t, s.ReplaceConversation(e, domain.Global(), []domain.Message{{ID: "g1"}}))
	require.True(t, s.ReplaceConversation(e, domain.DirectWith("u-2"), []domain.Message{{ID: "d1"}}))

	st := s.Snapshot()
	require.Len(t, st.Conversation, 1)
	require.Equal(t, "d1", st.Conversation[0].ID)
}

func TestRemoveAndRestoreFriendRequest(t *testing.T) {
	s, _ := loggedIn(t)
	e, _, _ := s.Current()
	reqs := []domain.FriendRequest{{RequestID: "1"}, {RequestID: "2"}, {RequestID: "3"}}
	require.True(t, s.ReplaceFriendRequests(e, reqs))

	tok, err := s.RemoveFriendRequest(e, "2")
	require.NoError(t, err)
	require.Len(t, s.Snapshot().FriendRequests, 2)

	require.True(t, s.RestoreFriendRequest(e, tok))
	require.Equal(t, reqs, s.Snapshot().FriendRequests)

	_, err = s.RemoveFriendRequest(e, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetActiveViewRequiresLogin(t *testing.T) {
	s := New(nil, acceptCode("SECRET"), nil)
	require.ErrorIs(t, s.SetActiveView(domain.ViewFeed), domain.ErrNotAuthenticated)
	require.ErrorIs(t, s.SetActiveView(domain.ViewID("bogus")), domain.ErrValidation)
}

func TestWatchSignalsScopeChange(t *testing.T) {
	s, _ := loggedIn(t)
	ch, cancel := s.Watch()
	defer cancel()

	s.SetActiveChatScope(domain.DirectWith("u-2"))
	select {
	case <-ch:
	default:
		t.Fatal("expected a signal after scope change")
	}

	s.SetActiveChatScope(domain.DirectWith("u-2"))
	select {
	case <-ch:
		t.Fatal("unchanged scope must not signal")
	default:
	}
}

func TestApplySeesFocus(t *testing.T) {
	s, _ := loggedIn(t)
	e, _, _ := s.Current()
	require.NoError(t, s.SetActiveView(domain.ViewMessages))

	var got Focus
	require.True(t, s.Apply(e, func(f Focus) { got = f }))
	require.True(t, got.ViewingGlobalChat())

	s.SetActiveChatScope(domain.DirectWith("u-3"))
	require.True(t, s.Apply(e, func(f Focus) { got = f }))
	require.False(t, got.ViewingGlobalChat())
}

func TestRegisterDoesNotSignIn(t *testing.T) {
	s := New(&memCredentials{}, acceptCode("SECRET"), nil)

	reg, err := s.Register(context.Background(), "bob", "")
	require.NoError(t, err)
	require.Equal(t, "NEW", reg.SecretCode)
	require.False(t, s.Snapshot().Authenticated())

	_, err = s.Register(context.Background(), "taken", "")
	require.ErrorIs(t, err, domain.ErrNameTaken)

	_, err = s.Register(context.Background(), "  ", "")
	require.ErrorIs(t, err, domain.ErrValidation)
}
