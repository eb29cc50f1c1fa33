package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offline points every external service at a closed port so the
// pipeline exercises its fallbacks.
func offline(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("RULES_FILE", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("PATIENTS_FILE", filepath.Join("..", "..", "data", "patients.json"))
	t.Setenv("PUBMED_BASE_URL", "http://127.0.0.1:1")
	t.Setenv("COMPLETION_BASE_URL", "http://127.0.0.1:1")
	t.Setenv("CALL_TIMEOUT", "500ms")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScenariosOffline(t *testing.T) {
	offline(t)

	out, err := execute(t, "scenarios")
	require.NoError(t, err)

	s1 := strings.Index(out, "SCENARIO 1:")
	s2 := strings.Index(out, "SCENARIO 2:")
	s3 := strings.Index(out, "SCENARIO 3:")
	require.True(t, s1 >= 0 && s1 < s2 && s2 < s3, out)

	assert.Contains(t, out[s1:s2], "CONTRAINDICATION: LEVOFLOXACIN + Chronic Kidney Disease (Stage 3).")
	assert.Contains(t, out[s2:s3], "SAFETY CHECK PASSED")
	assert.Contains(t, out[s3:], "[SOURCE: ICMR Guidelines for Management of Type 2 Diabetes 2018]")
	assert.Contains(t, out, "ALL 3 SCENARIOS COMPLETED")
}

func TestRunJSON(t *testing.T) {
	offline(t)

	out, err := execute(t, "run", "--patient", "P404", "--query", "itchy rash", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"patient_id": "P404"`)
	assert.Contains(t, out, `"phase": "validated"`)
	assert.Contains(t, out, "No specific guidelines found.")
}

func TestRunRequiresFlags(t *testing.T) {
	offline(t)

	_, err := execute(t, "run", "--patient", "P001")
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	offline(t)

	out, err := execute(t, "check", "--medication", "Warfarin", "Ibuprofen", "400mg")
	require.NoError(t, err)
	assert.Equal(t, "INTERACTION: IBUPROFEN interacts with Warfarin.\n", out)

	out, err = execute(t, "check", "--patient", "P002", "Sumatriptan 50mg")
	require.NoError(t, err)
	assert.Equal(t, "SAFE: no rule-based findings\n", out)

	_, err = execute(t, "check", "--patient", "P404", "aspirin")
	assert.Error(t, err)
}

func TestScenariosRejectsZeroParallel(t *testing.T) {
	offline(t)

	_, err := execute(t, "scenarios", "--parallel", "0")
	assert.Error(t, err)
}
