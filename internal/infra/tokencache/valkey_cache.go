package tokencache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/evigrid/assess-console/internal/domain/assessment"
)

// ValkeyCache mirrors validation tokens in a Valkey-compatible database so
// token lifetime survives a console restart.
type ValkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache constructs a cache backed by Valkey.
func NewValkeyCache(client valkey.Client, prefix string) *ValkeyCache {
	if prefix == "" {
		prefix = "vtok"
	}
	return &ValkeyCache{client: client, prefix: prefix}
}

var _ assessment.TokenCache = (*ValkeyCache)(nil)

// Put stores the token under the draft/slot key with the given TTL.
func (c *ValkeyCache) Put(ctx context.Context, draftID uuid.UUID, slot assessment.Slot, token assessment.ValidationToken, ttl time.Duration) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return err
	}
	builder := c.client.B().Set().Key(c.key(draftID, slot)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return c.client.Do(ctx, cmd).Error()
}

// Drop removes a token. Deleting an absent key is not an error.
func (c *ValkeyCache) Drop(ctx context.Context, draftID uuid.UUID, slot assessment.Slot) error {
	err := c.client.Do(ctx, c.client.B().Del().Key(c.key(draftID, slot)).Build()).Error()
	if err != nil && valkey.IsValkeyNil(err) {
		return nil
	}
	return err
}

// Get returns the cached token, if present and unexpired.
func (c *ValkeyCache) Get(ctx context.Context, draftID uuid.UUID, slot assessment.Slot) (assessment.ValidationToken, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(c.key(draftID, slot)).Build())
	payload, err := resp.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return assessment.ValidationToken{}, false, nil
		}
		return assessment.ValidationToken{}, false, err
	}
	var token assessment.ValidationToken
	if err := json.Unmarshal([]byte(payload), &token); err != nil {
		return assessment.ValidationToken{}, false, err
	}
	return token, true, nil
}

func (c *ValkeyCache) key(draftID uuid.UUID, slot assessment.Slot) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, draftID, slot)
}
