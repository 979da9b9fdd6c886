package database

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/livechat/internal/domain"
	"github.com/nfrund/livechat/internal/testutils"
	"github.com/stretchr/testify/suite"
)

// BackendTestSuite runs against a SurrealDB provisioned with deploy/schema.surql.
type BackendTestSuite struct {
	suite.Suite
	backend domain.Backend
	path    string
}

func TestBackend(t *testing.T) {
	suite.Run(t, new(BackendTestSuite))
}

func (s *BackendTestSuite) SetupSuite() {
	cfg := testutils.BackendForTests(s.T())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend, err := NewDialer().Dial(ctx, cfg)
	s.Require().NoError(err, "failed to connect to test database")
	s.backend = backend
	s.path = domain.CollectionPath(fmt.Sprintf("test-%s", uuid.NewString()))
}

func (s *BackendTestSuite) TearDownSuite() {
	if s.backend != nil {
		_ = s.backend.Close(context.Background())
	}
}

func (s *BackendTestSuite) TestAnonymousSignInNotifiesListener() {
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen []*domain.Identity
	)
	unsubscribe := s.backend.Auth().OnAuthStateChanged(func(id *domain.Identity) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, id)
	})
	defer unsubscribe()

	s.Require().NoError(s.backend.Auth().SignInAnonymously(ctx))

	mu.Lock()
	defer mu.Unlock()
	s.Require().NotEmpty(seen)
	last := seen[len(seen)-1]
	s.Require().NotNil(last)
	s.NotEmpty(last.UID)
	s.True(last.Anonymous)
}

func (s *BackendTestSuite) TestAppendIsObservedWithServerTimestamp() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	s.Require().NoError(s.backend.Auth().SignInAnonymously(ctx))

	snapshots := make(chan []domain.Message, 16)
	sub, err := s.backend.Messages().Watch(ctx, s.path, func(msgs []domain.Message) {
		snapshots <- msgs
	}, func(err error) {
		s.T().Logf("watch error: %v", err)
	})
	s.Require().NoError(err)
	defer func() { _ = sub.Unsubscribe() }()

	initial := <-snapshots
	s.Empty(initial)

	draft := domain.Draft{ID: uuid.NewString(), SenderID: "guest:test", SenderName: "Tester", Text: "hello"}
	before := time.Now().Add(-time.Minute)
	s.Require().NoError(s.backend.Messages().Append(ctx, s.path, draft))

	for {
		select {
		case msgs := <-snapshots:
			for _, m := range msgs {
				if m.ID != draft.ID {
					continue
				}
				s.Equal("hello", m.Text)
				s.Equal("Tester", m.SenderName)
				s.Require().NotNil(m.Timestamp)
				s.True(m.Timestamp.After(before))
				return
			}
		case <-ctx.Done():
			s.FailNow("timed out waiting for appended message")
		}
	}
}
