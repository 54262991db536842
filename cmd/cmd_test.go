package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/report"
)

const memberConfigYAML = `
fields:
  - field: first_name
    type: text
    weight: 1
  - field: last_name
    type: text
    weight: 1
    required: true
  - field: email
    type: email
    weight: 2
  - field: phone
    type: phone
    weight: 2
threshold: 0.75
blocking_field: last_name
blocking_normalizers: [soundex]
`

func run(t *testing.T, args ...string) string {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env"), "--log-level", "error"))
	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func TestSeedReconcileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	members := filepath.Join(dir, "members.csv")
	imports := filepath.Join(dir, "import.csv")
	cfgPath := filepath.Join(dir, "member.yaml")
	reportPath := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(memberConfigYAML), 0o600))

	out := run(t, "seed", "--count", "200", "--duplicates", "0.1", "--out", members, "--candidates-out", imports, "--evaluate")
	assert.Contains(t, out, "recall:")

	run(t, "reconcile", "--config", cfgPath, "--population", members, "--candidates", imports, "--out", reportPath, "--workers", "2")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var rep report.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, 20, rep.Summary.Rows)
	assert.GreaterOrEqual(t, rep.Summary.RowsWithDuplicates, 18)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	members := filepath.Join(dir, "members.json")
	cfgPath := filepath.Join(dir, "member.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(memberConfigYAML), 0o600))
	require.NoError(t, os.WriteFile(members, []byte(`[
		{"id": "m1", "first_name": "Jonathan", "last_name": "Smith", "email": "jon.smith@gmail.com", "phone": "(212) 555-0101"},
		{"id": "m2", "first_name": "Maria", "last_name": "Garcia", "email": "maria.garcia@yahoo.com", "phone": "(305) 555-0199"}
	]`), 0o600))

	out := run(t, "find", "--config", cfgPath, "--population", members,
		"--record", `{"first_name":"Jonathon","last_name":"Smith","email":"Jon.Smith@gmail.com","phone":"2125550101"}`)

	var result struct {
		Duplicates []struct {
			ExistingID string `json:"existing_id"`
		} `json:"duplicates"`
		Assessment string `json:"assessment"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	require.Len(t, result.Duplicates, 1)
	assert.Equal(t, "m1", result.Duplicates[0].ExistingID)
	assert.Equal(t, "assessed", result.Assessment)
}
