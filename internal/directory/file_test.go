package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recipientsYAML = `
recipients:
  - id: u1
    name: Asha
    email: asha@example.com
    phone: "9876543210"
    zone: Mumbai
  - id: u2
    device_token: token-abcdefghijkl
    zone: chennai
  - id: u3
    email: ravi@example.com
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileDirectory(t *testing.T) {
	// Setup
	path := writeFile(t, recipientsYAML)
	d, err := NewFileDirectory(path)
	require.NoError(t, err)
	ctx := context.Background()

	all, err := d.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Asha", all[0].Name)
	assert.Equal(t, "9876543210", all[0].Phone)
	assert.Equal(t, "token-abcdefghijkl", all[1].DeviceToken)

	mumbai, err := d.ListByZone(ctx, "mumbai")
	require.NoError(t, err)
	require.Len(t, mumbai, 1)
	assert.Equal(t, "u1", mumbai[0].ID)

	none, err := d.ListByZone(ctx, "kolkata")
	require.NoError(t, err)
	assert.Empty(t, none)

	// Edits are picked up without reopening
	require.NoError(t, os.WriteFile(path, []byte("recipients:\n  - id: only\n"), 0o600))
	all, err = d.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "only", all[0].ID)
}

func TestFileDirectory_Errors(t *testing.T) {
	_, err := NewFileDirectory(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = NewFileDirectory(writeFile(t, "recipients: [oops"))
	assert.Error(t, err)

	_, err = NewFileDirectory(writeFile(t, "recipients:\n  - email: a@example.com\n"))
	assert.ErrorContains(t, err, "has no id")

	path := writeFile(t, recipientsYAML)
	d, err := NewFileDirectory(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))
	_, err = d.ListAll(context.Background())
	assert.Error(t, err)
}
