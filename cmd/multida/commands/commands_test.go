package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollkit/multida/config"
	"github.com/rollkit/multida/store"
	"github.com/rollkit/multida/types"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func fsServer(dir string, maxSize int) string {
	return fmt.Sprintf(`{"object-store":{"scheme":"filesystem","config":{"dir":%q},"max_segment_size":%d}}`, dir, maxSize)
}

func TestSubmitAndVerify(t *testing.T) {
	home := t.TempDir()
	payload := strings.Repeat("rollup batch data ", 20)
	common := []string{
		"--home", home,
		"--log.level", "none",
		"--da.submit_strategy", "all",
		"--da.servers", fsServer(filepath.Join(home, "a"), 64),
		"--da.servers", fsServer(filepath.Join(home, "b"), 100),
	}

	out, err := execute(t, payload, append([]string{"submit"}, common...)...)
	require.NoError(t, err)

	var receipt types.SubmissionReceipt
	require.NoError(t, receipt.UnmarshalJSON([]byte(out)))
	assert.Equal(t, uint64(0), receipt.BatchID())
	assert.True(t, receipt.Committed())
	assert.Equal(t, 2, receipt.Achieved())

	// next batch is numbered after the journaled one
	out, err = execute(t, "second", append([]string{"submit"}, common...)...)
	require.NoError(t, err)
	require.NoError(t, receipt.UnmarshalJSON([]byte(out)))
	assert.Equal(t, uint64(1), receipt.BatchID())

	payloadFile := filepath.Join(home, "batch.bin")
	require.NoError(t, os.WriteFile(payloadFile, []byte(payload), 0o600))
	out, err = execute(t, "", append([]string{"verify", "--batch-id", "0", "--file", payloadFile}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "filesystem-0  ok")
	assert.Contains(t, out, "filesystem-1  ok")

	_, err = execute(t, "tampered", append([]string{"verify", "--batch-id", "0"}, common...)...)
	assert.Error(t, err)

	kv, err := store.NewDefaultKVStore(filepath.Join(home, "data"), receiptsDB)
	require.NoError(t, err)
	receipts, err := store.NewReceiptStore(kv)
	require.NoError(t, err)
	defer receipts.Close() //nolint:errcheck
	latest, ok := receipts.LatestBatchID()
	assert.True(t, ok)
	assert.Equal(t, uint64(1), latest)
}

func TestSubmitNotCommitted(t *testing.T) {
	home := t.TempDir()
	_, err := execute(t, "payload",
		"submit",
		"--home", home,
		"--log.level", "none",
		"--batch-id", "9",
		"--da.servers", `{"ledger":{"namespace":"0102030405060708","conn":"http://127.0.0.1:1"}}`,
	)
	assert.ErrorIs(t, err, ErrNotCommitted)
}

func TestSubmitInvalidConfig(t *testing.T) {
	_, err := execute(t, "payload", "submit", "--home", t.TempDir(), "--log.level", "none")
	assert.ErrorIs(t, err, config.ErrConfig)

	_, err = execute(t, "payload", "submit", "--home", t.TempDir(), "--da.submit_strategy", "some",
		"--da.servers", fsServer(t.TempDir(), 10))
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestVerifyRequiresBatchID(t *testing.T) {
	_, err := execute(t, "payload", "verify", "--home", t.TempDir())
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	home := filepath.Join(t.TempDir(), "multida")
	out, err := execute(t, "", "init", "--home", home)
	require.NoError(t, err)
	assert.Contains(t, out, "multida.yaml")

	content, err := os.ReadFile(filepath.Join(home, "multida.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "submit_strategy: all")

	_, err = execute(t, "", "init", "--home", home)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, config.Version)
}
