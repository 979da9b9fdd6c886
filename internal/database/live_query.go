package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// LiveQueryAction represents the type of change in a live query update.
type LiveQueryAction string

const (
	ActionCreate LiveQueryAction = "CREATE"
	ActionUpdate LiveQueryAction = "UPDATE"
	ActionDelete LiveQueryAction = "DELETE"
	// ActionClose is delivered once when the server side of the query goes away
	// while the subscription is still active.
	ActionClose LiveQueryAction = "CLOSE"
)

const killTimeout = 5 * time.Second

// LiveQueryHandler is called for every change. Calls for one subscription are
// sequential and in notification order.
type LiveQueryHandler func(ctx context.Context, action LiveQueryAction, data any)

// LiveQueryFilter narrows a table subscription.
type LiveQueryFilter struct {
	Where  string         // SurrealQL WHERE clause
	Params map[string]any // Query parameters
}

// Subscription represents an active live query subscription.
type Subscription struct {
	ID    string
	Table string
}

// LiveQueryService provides change notifications via SurrealDB live queries.
type LiveQueryService interface {
	Subscribe(ctx context.Context, table string, filter *LiveQueryFilter, handler LiveQueryHandler) (*Subscription, error)
	Unsubscribe(subID string) error
	Close()
}

// SurrealLiveQueryService implements LiveQueryService using SurrealDB.
type SurrealLiveQueryService struct {
	db            DBConnection
	subscriptions sync.Map // map[string]*subscriptionState
}

type subscriptionState struct {
	id          string
	table       string
	handler     LiveQueryHandler
	active      atomic.Bool
	cancel      context.CancelFunc
	done        chan struct{}
	liveQueryID string
}

// NewSurrealLiveQueryService creates a new live query service.
func NewSurrealLiveQueryService(db DBConnection) *SurrealLiveQueryService {
	return &SurrealLiveQueryService{db: db}
}

// Subscribe starts a LIVE SELECT over table, narrowed by filter.
func (s *SurrealLiveQueryService) Subscribe(ctx context.Context, table string, filter *LiveQueryFilter, handler LiveQueryHandler) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if table == "" {
		return nil, errors.New("table cannot be empty")
	}

	query := fmt.Sprintf("LIVE SELECT * FROM %s", table)
	if filter != nil && strings.TrimSpace(filter.Where) != "" {
		query = fmt.Sprintf("%s WHERE %s", query, filter.Where)
	}

	params := map[string]any{}
	if filter != nil && filter.Params != nil {
		params = filter.Params
	}

	return s.subscribeQuery(ctx, table, query, params, handler)
}

func (s *SurrealLiveQueryService) subscribeQuery(ctx context.Context, table, query string, params map[string]any, handler LiveQueryHandler) (*Subscription, error) {
	subID := uuid.New().String()

	subCtx, cancel := context.WithCancel(context.Background())
	state := &subscriptionState{
		id:      subID,
		table:   table,
		handler: handler,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	state.active.Store(true)

	err := s.db.WithConnection(ctx, func(dbConn *surrealdb.DB) error {
		slog.DebugContext(ctx, "Creating live query subscription", "event", "live_query_subscribe", "version", "1.0", "subID", subID, "table", table)

		results, err := surrealdb.Query[any](ctx, dbConn, query, params)
		if err != nil {
			return fmt.Errorf("failed to execute live query: %w", err)
		}
		if results == nil || len(*results) == 0 {
			return errors.New("live query returned no results")
		}

		result := (*results)[0]
		if result.Status != statusOK {
			return fmt.Errorf("live query failed with status: %s", result.Status)
		}

		liveID, err := liveQueryID(result.Result)
		if err != nil {
			return err
		}
		state.liveQueryID = liveID

		notifications, err := dbConn.LiveNotifications(state.liveQueryID)
		if err != nil {
			return fmt.Errorf("failed to get notification channel: %w", err)
		}

		s.subscriptions.Store(subID, state)
		go s.listenForNotifications(subCtx, state, notifications)
		go s.killOnCancel(subCtx, state, dbConn)
		return nil
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start live query: %w", err)
	}

	slog.InfoContext(ctx, "Live query established", "event", "live_query_established", "version", "1.0", "subID", subID, "liveQueryID", state.liveQueryID)
	return &Subscription{ID: subID, Table: table}, nil
}

// liveQueryID extracts the query UUID from the LIVE SELECT result.
func liveQueryID(result any) (string, error) {
	var id string
	switch v := result.(type) {
	case string:
		id = v
	case models.UUID:
		id = v.String()
	case *models.UUID:
		if v != nil {
			id = v.String()
		}
	case map[string]any:
		switch inner := v["id"].(type) {
		case string:
			id = inner
		case models.UUID:
			id = inner.String()
		default:
			return "", fmt.Errorf("live query result map does not contain 'id' field: %+v", v)
		}
	case nil:
		return "", errors.New("live query returned nil result")
	default:
		return "", fmt.Errorf("unexpected live query result type: %T", result)
	}
	if id == "" {
		return "", errors.New("live query returned empty UUID")
	}
	return id, nil
}

// killOnCancel releases the server-side query once the subscription ends.
func (s *SurrealLiveQueryService) killOnCancel(ctx context.Context, state *subscriptionState, dbConn *surrealdb.DB) {
	<-ctx.Done()

	if err := dbConn.CloseLiveNotifications(state.liveQueryID); err != nil {
		slog.Warn("Failed to close live notifications", "error", err, "liveQueryID", state.liveQueryID)
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()
	if err := Execute(cleanupCtx, dbConn, "KILL $liveQueryID", map[string]any{"liveQueryID": state.liveQueryID}); err != nil {
		slog.Warn("Failed to kill live query", "error", err, "liveQueryID", state.liveQueryID)
		return
	}
	slog.Debug("Killed live query", "event", "live_query_killed", "version", "1.0", "liveQueryID", state.liveQueryID)
}

// Unsubscribe cancels a subscription and waits for its handler to return.
// Unknown IDs are ignored.
func (s *SurrealLiveQueryService) Unsubscribe(subID string) error {
	v, ok := s.subscriptions.LoadAndDelete(subID)
	if !ok {
		return nil
	}
	state := v.(*subscriptionState)
	state.active.Store(false)
	state.cancel()
	<-state.done
	slog.Debug("Live query subscription removed", "event", "live_query_unsubscribe", "version", "1.0", "subID", subID)
	return nil
}

// Close cancels every active subscription.
func (s *SurrealLiveQueryService) Close() {
	s.subscriptions.Range(func(key, _ any) bool {
		_ = s.Unsubscribe(key.(string))
		return true
	})
}

func (s *SurrealLiveQueryService) listenForNotifications(ctx context.Context, state *subscriptionState, notifications <-chan connection.Notification) {
	defer close(state.done)

	for {
		select {
		case <-ctx.Done():
			return

		case notification, ok := <-notifications:
			if !ok {
				if state.active.CompareAndSwap(true, false) {
					slog.Warn("Live query notification channel closed", "event", "live_query_closed", "version", "1.0", "subID", state.id)
					s.subscriptions.Delete(state.id)
					s.dispatch(ctx, state, ActionClose, nil)
					state.cancel()
				}
				return
			}

			var action LiveQueryAction
			switch notification.Action {
			case connection.CreateAction:
				action = ActionCreate
			case connection.UpdateAction:
				action = ActionUpdate
			case connection.DeleteAction:
				action = ActionDelete
			default:
				slog.Warn("Unknown notification action", "subID", state.id, "action", notification.Action)
				continue
			}

			s.dispatch(ctx, state, action, notification.Result)
		}
	}
}

func (s *SurrealLiveQueryService) dispatch(ctx context.Context, state *subscriptionState, action LiveQueryAction, data any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in live query handler", "subID", state.id, "panic", r)
		}
	}()
	state.handler(ctx, action, data)
}
