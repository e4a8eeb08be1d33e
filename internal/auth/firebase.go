package auth

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// IDTokenVerifier checks a provider-issued ID token and returns the
// identity it asserts.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*External, error)
}

// FirebaseVerifier verifies Google/Firebase ID tokens with the Firebase
// Admin SDK.
type FirebaseVerifier struct {
	client *firebaseauth.Client
}

// NewFirebaseVerifier initializes a Firebase app for projectID. An empty
// credentialsFile uses Application Default Credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: initializing firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: initializing firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*External, error) {
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("auth: verifying ID token: %w", err)
	}
	return externalFromClaims(tok.Claims)
}

// externalFromClaims reads email, name and picture from verified token
// claims. Email is required because it is the user join key.
func externalFromClaims(claims map[string]any) (*External, error) {
	str := func(key string) string {
		if v, ok := claims[key].(string); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}

	ext := &External{
		Email:   str("email"),
		Name:    str("name"),
		Picture: str("picture"),
	}
	if ext.Email == "" {
		return nil, fmt.Errorf("auth: ID token has no email claim")
	}
	return ext, nil
}
