package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/authgrid/oauth/storage"
)

// SaveClient semantics: clients never expire, deregistration deletes them.

// CreateClient stores a new client. Returns storage.ErrConflict when the
// client ID is already taken.
func (s *Store) CreateClient(ctx context.Context, client *storage.Client) error {
	if client == nil || client.ID == "" {
		return fmt.Errorf("invalid client")
	}

	data, err := s.marshalClient(client)
	if err != nil {
		return err
	}

	// SetNX makes the existence check and the write one operation
	ok, err := s.client.SetNX(ctx, s.clientKey(client.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	if !ok {
		return storage.ErrConflict
	}

	s.logger.Debug("Saved client", "client_id", client.ID)
	return nil
}

// GetClient retrieves a client by ID.
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	data, err := s.client.Get(ctx, s.clientKey(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return s.unmarshalClient(data)
}

// UpdateClient replaces a stored client's metadata.
func (s *Store) UpdateClient(ctx context.Context, client *storage.Client) error {
	if client == nil || client.ID == "" {
		return fmt.Errorf("invalid client")
	}

	key := s.clientKey(client.ID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check client: %w", err)
	}
	if exists == 0 {
		return storage.ErrClientNotFound
	}

	data, err := s.marshalClient(client)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}

	s.logger.Debug("Updated client", "client_id", client.ID)
	return nil
}

// DeleteClient removes a client registration.
func (s *Store) DeleteClient(ctx context.Context, clientID string) error {
	deleted, err := s.client.Del(ctx, s.clientKey(clientID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if deleted == 0 {
		return storage.ErrClientNotFound
	}

	s.logger.Debug("Deleted client", "client_id", clientID)
	return nil
}

// marshalClient serializes a client, encrypting the recoverable secret
// when an encryptor is configured. The bcrypt hash is stored as is.
func (s *Store) marshalClient(client *storage.Client) ([]byte, error) {
	stored := *client
	if enc := s.getEncryptor(); enc != nil && stored.Secret != "" {
		ciphertext, err := enc.Encrypt(stored.Secret)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt client secret: %w", err)
		}
		stored.Secret = ciphertext
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal client: %w", err)
	}
	return data, nil
}

func (s *Store) unmarshalClient(data []byte) (*storage.Client, error) {
	var client storage.Client
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}

	if enc := s.getEncryptor(); enc != nil && client.Secret != "" {
		plaintext, err := enc.Decrypt(client.Secret)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt client secret: %w", err)
		}
		client.Secret = plaintext
	}

	return &client, nil
}
