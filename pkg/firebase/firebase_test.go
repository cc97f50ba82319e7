package firebase

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitFirebaseNeedsCredentials(t *testing.T) {
	t.Setenv(emulatorHostEnv, "")

	_, err := InitFirebase(t.Context(), "", nil)
	assert.ErrorContains(t, err, "credentials path not provided")

	_, err = InitFirebase(t.Context(), filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.ErrorContains(t, err, "credentials file")
}

func TestInitFirebaseAgainstEmulator(t *testing.T) {
	t.Setenv(emulatorHostEnv, "127.0.0.1:9099")
	t.Setenv(projectEnv, "")

	app, err := InitFirebase(t.Context(), "", nil)
	require.NoError(t, err)
	assert.NotNil(t, app.AuthClient)
}
