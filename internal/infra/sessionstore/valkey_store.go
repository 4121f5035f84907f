package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/playground"
)

// ValkeyStore persists sessions as JSON strings with a native TTL.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "evaluator:session"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Save writes the session, resetting its TTL.
func (s *ValkeyStore) Save(ctx context.Context, session playground.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.key(session.ID)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

// Get loads the session; a missing key means expired or never created.
func (s *ValkeyStore) Get(ctx context.Context, id uuid.UUID) (playground.Session, bool, error) {
	payload, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(id)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return playground.Session{}, false, nil
		}
		return playground.Session{}, false, err
	}
	return decodeSession(payload)
}

// Delete removes the session key.
func (s *ValkeyStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.client.Do(ctx, s.client.B().Del().Key(s.key(id)).Build()).Error()
}

func (s *ValkeyStore) key(id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

func decodeSession(payload string) (playground.Session, bool, error) {
	var session playground.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return playground.Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	if session.Config.Files == nil {
		session.Config.Files = []evalconfig.FileRef{}
	}
	return session, true, nil
}

var _ playground.SessionStore = (*ValkeyStore)(nil)
