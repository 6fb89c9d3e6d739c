package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func runRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRoot()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return out.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	root := NewRoot()
	for _, name := range []string{"serve", "worker", "migrate", "slots", "hash-password"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestHashPasswordFromArgument(t *testing.T) {
	out, err := runRoot(t, "", "hash-password", "--cost", "4", "letmein")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("letmein")))
}

func TestHashPasswordFromStdin(t *testing.T) {
	out, err := runRoot(t, "s3cret\n", "hash-password", "--cost", "4")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := runRoot(t, "\n", "hash-password", "--cost", "4")
	assert.Error(t, err)
}

func TestSlotsRequiresDay(t *testing.T) {
	_, err := runRoot(t, "", "slots")
	assert.Error(t, err)
}
