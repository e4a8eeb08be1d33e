// Package firestore implements the repository interfaces on Cloud Firestore.
// Each model lives in its own top-level collection keyed by the model ID.
//
// Listings that filter on one field and order on another are sorted in
// memory so the backend needs no composite indexes.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sakif/techblogs/internal/repository"
)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"
	coursesCollection  = "courses"
)

var _ repository.Store = (*Store)(nil)

// Store implements every repository on a single Firestore client.
type Store struct {
	client *firestore.Client
}

// New connects to projectID. An empty credentialsFile uses Application
// Default Credentials; FIRESTORE_EMULATOR_HOST is honored by the client.
func New(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: creating client: %w", err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client. The Store takes ownership of it.
func NewWithClient(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) col(name string) *firestore.CollectionRef {
	return s.client.Collection(name)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// collect drains an iterator, decoding each document into T.
func collect[T any](it *firestore.DocumentIterator) ([]T, error) {
	defer it.Stop()

	out := []T{}
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var doc T
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc)
	}
}

// orEmpty keeps JSON responses as [] rather than null for stored documents
// that were written without a list field.
func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
