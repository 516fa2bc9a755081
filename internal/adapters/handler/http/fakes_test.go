package http

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

const validToken = "valid-token"

var testUserID = uuid.MustParse("7d1c3f4e-8a8b-4b6a-9d7e-2f3c4b5a6d7e")

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeAuthService struct {
	loginErr   error
	refreshErr error
	loggedOut  []string
}

func (f *fakeAuthService) LoginWithGoogle(ctx context.Context, googleToken string) (string, string, error) {
	if f.loginErr != nil {
		return "", "", f.loginErr
	}
	return validToken, "refresh-token", nil
}

func (f *fakeAuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, string, error) {
	if f.refreshErr != nil {
		return "", "", f.refreshErr
	}
	return validToken, refreshToken, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, refreshToken string) error {
	f.loggedOut = append(f.loggedOut, refreshToken)
	return nil
}

func (f *fakeAuthService) Authenticate(accessToken string) (*domain.Identity, error) {
	if accessToken != validToken {
		return nil, domain.ErrUnauthenticated
	}
	return &domain.Identity{UserID: testUserID, Email: "tester@example.com"}, nil
}

// fakePollService records the identity it was called with, the way the real
// services read it.
type fakePollService struct {
	identity ports.IdentityProvider
	polls    map[uuid.UUID]*domain.Poll
	listed   []ports.ListPollsInput
	err      error
}

func newFakePollService() *fakePollService {
	return &fakePollService{identity: NewRequestIdentity(), polls: map[uuid.UUID]*domain.Poll{}}
}

func (f *fakePollService) Create(ctx context.Context, input ports.CreatePollInput) (*domain.Poll, error) {
	caller, ok := f.identity.CurrentIdentity(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	if f.err != nil {
		return nil, f.err
	}
	poll := &domain.Poll{ID: uuid.New(), Title: input.Title, OwnerID: caller.UserID}
	for i, text := range input.Options {
		poll.Options = append(poll.Options, domain.PollOption{ID: uuid.New(), PollID: poll.ID, Text: text, Position: i})
	}
	f.polls[poll.ID] = poll
	return poll, nil
}

func (f *fakePollService) GetPoll(ctx context.Context, id string) (*domain.Poll, error) {
	pollID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrInvalidPollID
	}
	poll, ok := f.polls[pollID]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return poll, nil
}

func (f *fakePollService) ListPolls(ctx context.Context, input ports.ListPollsInput) ([]*domain.PollSummary, error) {
	f.listed = append(f.listed, input)
	if f.err != nil {
		return nil, f.err
	}
	return []*domain.PollSummary{}, nil
}

type fakeVoteService struct {
	identity ports.IdentityProvider
	err      error
	votes    map[uuid.UUID]*domain.Vote
}

func newFakeVoteService() *fakeVoteService {
	return &fakeVoteService{identity: NewRequestIdentity(), votes: map[uuid.UUID]*domain.Vote{}}
}

func (f *fakeVoteService) Vote(ctx context.Context, input ports.VoteInput) (*domain.Vote, error) {
	caller, ok := f.identity.CurrentIdentity(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	if f.err != nil {
		return nil, f.err
	}
	vote := &domain.Vote{ID: uuid.New(), PollID: input.PollID, OptionID: input.OptionID, VoterID: caller.UserID}
	f.votes[input.PollID] = vote
	return vote, nil
}

func (f *fakeVoteService) MyVote(ctx context.Context, pollID uuid.UUID) (*domain.Vote, error) {
	if _, ok := f.identity.CurrentIdentity(ctx); !ok {
		return nil, domain.ErrUnauthenticated
	}
	vote, ok := f.votes[pollID]
	if !ok {
		return nil, domain.ErrVoteNotFound
	}
	return vote, nil
}

type fakeResultService struct {
	results map[uuid.UUID]*domain.PollResults
	err     error

	mu        sync.Mutex
	onResults func(*domain.PollResults, error)
	cancelled bool
}

func (f *fakeResultService) ComputeResults(ctx context.Context, pollID uuid.UUID) (*domain.PollResults, error) {
	if f.err != nil {
		return nil, f.err
	}
	res, ok := f.results[pollID]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return res, nil
}

func (f *fakeResultService) Follow(ctx context.Context, pollID uuid.UUID, onResults func(*domain.PollResults, error)) (ports.Subscription, error) {
	res, err := f.ComputeResults(ctx, pollID)
	if err != nil {
		return nil, err
	}
	onResults(res, nil)

	f.mu.Lock()
	f.onResults = onResults
	f.mu.Unlock()
	return f, nil
}

func (f *fakeResultService) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
	f.onResults = nil
}

func (f *fakeResultService) following() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onResults != nil
}

func (f *fakeResultService) isCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// deliver plays a change signal to the current follower.
func (f *fakeResultService) deliver(res *domain.PollResults) {
	f.deliverErr(res, nil)
}

func (f *fakeResultService) deliverErr(res *domain.PollResults, err error) {
	f.mu.Lock()
	onResults := f.onResults
	f.mu.Unlock()
	if onResults != nil {
		onResults(res, err)
	}
}

type fakeUserService struct {
	identity ports.IdentityProvider
	users    map[uuid.UUID]*domain.User
}

func (f *fakeUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return f.users[id], nil
}

func (f *fakeUserService) Me(ctx context.Context) (*domain.User, error) {
	caller, ok := f.identity.CurrentIdentity(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return f.GetByID(ctx, caller.UserID)
}

type testApp struct {
	auth    *fakeAuthService
	polls   *fakePollService
	votes   *fakeVoteService
	results *fakeResultService
	result  *ResultHandler
	users   *fakeUserService
	health  error
	handler http.Handler
}

func newTestApp() *testApp {
	log := testLogger()
	app := &testApp{
		auth:    &fakeAuthService{},
		polls:   newFakePollService(),
		votes:   newFakeVoteService(),
		results: &fakeResultService{results: map[uuid.UUID]*domain.PollResults{}},
		users:   &fakeUserService{identity: NewRequestIdentity(), users: map[uuid.UUID]*domain.User{}},
	}
	app.result = NewResultHandler(app.results, []string{"*"}, log)
	handlers := Handlers{
		Poll:   NewPollHandler(app.polls, log),
		Vote:   NewVoteHandler(app.votes, log),
		Result: app.result,
		Auth:   NewAuthHandler(app.auth, "https://example.com/app", "", http.SameSiteLaxMode, log),
		User:   NewUserHandler(app.users, log),
	}
	health := func(ctx context.Context) error { return app.health }
	app.handler = NewHandler(handlers, app.auth, health, []string{"*"})
	return app
}
