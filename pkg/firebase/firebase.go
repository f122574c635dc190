package firebase

import (
	"context"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// App holds the initialized Firebase app and the clients built from it
type App struct {
	FirebaseApp *firebase.App
	AuthClient  *auth.Client
	Firestore   *firestore.Client
	Bucket      *gcs.BucketHandle
	BucketName  string
}

// Options selects which clients InitFirebase builds.
type Options struct {
	CredentialsPath string
	ProjectID       string
	StorageBucket   string
	Auth            bool
	Firestore       bool
}

// InitFirebase initializes the Firebase application and the requested
// clients. An empty credentials path falls back to application default
// credentials.
func InitFirebase(ctx context.Context, o Options) (*App, error) {
	var opts []option.ClientOption
	if o.CredentialsPath != "" {
		// Check if the credentials file exists
		if _, err := os.Stat(o.CredentialsPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials file not found at %s", o.CredentialsPath)
		}
		opts = append(opts, option.WithCredentialsFile(o.CredentialsPath))
	}

	conf := &firebase.Config{ProjectID: o.ProjectID, StorageBucket: o.StorageBucket}
	firebaseApp, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	app := &App{FirebaseApp: firebaseApp}

	if o.Auth {
		if app.AuthClient, err = firebaseApp.Auth(ctx); err != nil {
			return nil, fmt.Errorf("error getting firebase auth client: %w", err)
		}
	}
	if o.Firestore {
		if app.Firestore, err = firebaseApp.Firestore(ctx); err != nil {
			return nil, fmt.Errorf("error getting firestore client: %w", err)
		}
	}
	if o.StorageBucket != "" {
		storageClient, err := firebaseApp.Storage(ctx)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("error getting storage client: %w", err)
		}
		if app.Bucket, err = storageClient.DefaultBucket(); err != nil {
			app.Close()
			return nil, fmt.Errorf("error opening bucket %s: %w", o.StorageBucket, err)
		}
		app.BucketName = o.StorageBucket
	}

	log.Println("Firebase app initialized successfully!")
	return app, nil
}

// Close releases the Firestore connection, if one was opened.
func (a *App) Close() error {
	if a.Firestore != nil {
		return a.Firestore.Close()
	}
	return nil
}
