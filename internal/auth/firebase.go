package auth

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// FirebaseVerifier validates Firebase ID tokens
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier initializes the Firebase Admin auth client. When
// credentialsFile is empty, application default credentials are used.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}

	log.Info().Str("project_id", projectID).Msg("Firebase identity verifier ready")
	return &FirebaseVerifier{client: client}, nil
}

// Verify checks the ID token signature and expiry and returns its email claim
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (string, error) {
	if idToken == "" {
		return "", ErrMissingToken
	}

	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		if fbauth.IsIDTokenExpired(err) {
			return "", ErrTokenExpired
		}
		log.Debug().Err(err).Msg("Firebase token rejected")
		return "", ErrInvalidToken
	}

	email, _ := tok.Claims["email"].(string)
	email = NormalizeEmail(email)
	if email == "" {
		return "", ErrNoEmail
	}
	return email, nil
}
