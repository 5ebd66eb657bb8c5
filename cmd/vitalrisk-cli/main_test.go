package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalrisk/internal/app"
	"vitalrisk/internal/platform/config"
	"vitalrisk/internal/risk"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScore(t *testing.T) {
	t.Run("text output", func(t *testing.T) {
		out, err := execute(t, "score", "--age", "65", "--hypertension", "--smoking", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "Risk score:    0.450")
		assert.Contains(t, out, "Category:      Medium (#ffc107)")
		assert.Contains(t, out, "Have Hypertension")
		assert.Contains(t, out, "Never Smoked")
	})

	t.Run("json output", func(t *testing.T) {
		out, err := execute(t, "score", "--age", "70", "--hypertension", "--heart-disease", "--bmi", "31", "--json")
		require.NoError(t, err)
		var a risk.Assessment
		require.NoError(t, json.Unmarshal([]byte(out), &a))
		assert.Equal(t, 0.8, a.Score)
		assert.Equal(t, risk.Categorize(0.8), a.Category)
	})

	t.Run("explicit false is recorded, not unset", func(t *testing.T) {
		out, err := execute(t, "score", "--hypertension=false")
		require.NoError(t, err)
		assert.Contains(t, out, "No Hypertension")
		assert.Contains(t, out, "Low (#28a745)")
	})

	t.Run("rejects unknown smoking status", func(t *testing.T) {
		_, err := execute(t, "score", "--smoking", "sometimes")
		assert.ErrorContains(t, err, `unknown smoking status "sometimes"`)
	})

	t.Run("rejects out of range age", func(t *testing.T) {
		_, err := execute(t, "score", "--age", "200")
		assert.ErrorContains(t, err, "age")
	})
}

func TestSeedAdminRequiresEmail(t *testing.T) {
	_, err := execute(t, "seed-admin")
	assert.ErrorContains(t, err, "email")
}

func TestSeedAdminPrintsToken(t *testing.T) {
	ctx := context.Background()
	a, err := app.New(ctx, config.Default(), nil)
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	cmd := newSeedAdminCmd()
	cmd.SetOut(&out)

	require.NoError(t, seedAdmin(ctx, cmd, a, "root@example.com", true))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "created admin root@example.com")

	claims, err := a.Tokens.ValidateToken(lines[1])
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)

	out.Reset()
	require.NoError(t, seedAdmin(ctx, cmd, a, "root@example.com", false))
	assert.Contains(t, out.String(), "already exists")
}
