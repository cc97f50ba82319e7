// Package firebase connects to the Firebase project whose ID tokens the
// daemon accepts when AUTH_PROVIDER=firebase.
package firebase

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	emulatorHostEnv = "FIREBASE_AUTH_EMULATOR_HOST"
	projectEnv      = "GOOGLE_CLOUD_PROJECT"
	emulatorProject = "linkup-local"
)

// App holds the Firebase app and its auth client
type App struct {
	FirebaseApp *firebase.App
	AuthClient  *auth.Client
}

// InitFirebase loads the service account at credentialsPath. With
// FIREBASE_AUTH_EMULATOR_HOST set the file is optional and tokens are
// checked by the local auth emulator.
func InitFirebase(ctx context.Context, credentialsPath string, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	emulator := os.Getenv(emulatorHostEnv)

	var (
		conf *firebase.Config
		opts []option.ClientOption
	)
	switch {
	case credentialsPath != "":
		if _, err := os.Stat(credentialsPath); err != nil {
			return nil, fmt.Errorf("firebase credentials file: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	case emulator != "":
		project := os.Getenv(projectEnv)
		if project == "" {
			project = emulatorProject
		}
		conf = &firebase.Config{ProjectID: project}
	default:
		return nil, fmt.Errorf("firebase credentials path not provided and %s not set", emulatorHostEnv)
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	logger.Info("firebase auth client initialized",
		zap.String("credentials", credentialsPath),
		zap.String("emulator", emulator),
	)
	return &App{FirebaseApp: app, AuthClient: client}, nil
}
