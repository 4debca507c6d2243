package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

func TestTestgenCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "testgen", "Refunds", "-n", "2", "--focus", "settlement", "--budget", "500")

	require.NoError(t, err)
	assert.Contains(t, out, "TC-001: Refund settles within 5 days")
	assert.Contains(t, out, "Priority: High  Type: Functional")
	assert.Contains(t, out, "Steps:\n    1. Request a refund\n    2. Wait for settlement")
	assert.Contains(t, out, "Total: 1 test cases")

	opts := testGenerator.(*mockTestGenerator).lastOpts
	assert.Equal(t, 2, opts.MaxCases)
	assert.Equal(t, "settlement", opts.Focus)
	assert.Equal(t, 500, opts.TokenBudget)
}

func TestTestgenCmd_Alias(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "generate-tests", "Refunds")

	require.NoError(t, err)
	assert.Equal(t, 5, testGenerator.(*mockTestGenerator).lastOpts.MaxCases)
}

func TestTestgenCmd_JSON(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "testgen", "Refunds", "--json")
	require.NoError(t, err)

	var cases []domain.TestCase
	require.NoError(t, json.Unmarshal([]byte(out), &cases))
	require.Len(t, cases, 1)
	assert.Equal(t, "TC-001", cases[0].ID)
}

func TestTestgenCmd_All(t *testing.T) {
	t.Run("background", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		out, err := executeCommand(t, "testgen", "Refunds", "--all")

		require.NoError(t, err)
		assert.Contains(t, out, "Test generation started: task task-1")
		assert.Equal(t, defaultCasesPerBatch, testGenerator.(*mockTestGenerator).batches)
	})

	t.Run("wait", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		out, err := executeCommand(t, "testgen", "Refunds", "--all", "--wait")

		require.NoError(t, err)
		assert.Contains(t, out, "test_generation: 1/1")
		assert.Contains(t, out, "Status:   completed")
		assert.Contains(t, out, "TC-001")
	})
}

func TestTestgenCmd_NoCases(t *testing.T) {
	buf := captureOutput(t)
	printTestCases(rootCmd, nil)
	assert.Contains(t, buf.String(), "No test cases generated.")
}

func TestFactcheckCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "factcheck", "Refunds", "Refunds settle within 5 days")

	require.NoError(t, err)
	assert.Contains(t, out, "Claim:      Refunds settle within 5 days")
	assert.Contains(t, out, "Verdict:    supported (confidence 0.90)")
	assert.Contains(t, out, "Answer:     Yes, refunds settle within 5 days.")
	assert.Contains(t, out, "Evidence:")
	assert.Contains(t, out, "[1] 20250314T093000Z-fsd 0.93")
}

func TestFactcheckCmd_JSON(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "factcheck", "--json", "Refunds", "claim")

	require.NoError(t, err)
	assert.Contains(t, out, `"verdict": "supported"`)
}

func TestFactcheckCmd_Error(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	factChecker = &mockFactChecker{err: domain.ErrNotIndexed}

	_, err := executeCommand(t, "factcheck", "Refunds", "claim")

	assert.ErrorIs(t, err, domain.ErrNotIndexed)
}
