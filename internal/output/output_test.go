package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("cached %d", 42)
	assert.Contains(t, out.String(), "cached 42")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog_Enabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestVerboseLog_Disabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = false
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())
}

func TestDryRunMsg_Enabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = true
	u.DryRunMsg("would fetch %s", "acme/api")
	assert.Contains(t, errOut.String(), "[DRY-RUN]")
	assert.Contains(t, errOut.String(), "would fetch acme/api")
}

func TestDryRunMsg_Disabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = false
	u.DryRunMsg("would fetch %s", "acme/api")
	assert.Empty(t, errOut.String())
}

func TestColorHelpers(t *testing.T) {
	// Color helpers should return non-empty strings
	assert.NotEmpty(t, Cyan("test"))
	assert.NotEmpty(t, Green("test"))
	assert.NotEmpty(t, Yellow("test"))
	assert.NotEmpty(t, Red("test"))
}

func TestStateColor(t *testing.T) {
	assert.NotEmpty(t, StateColor("OPEN"))
	assert.NotEmpty(t, StateColor("MERGED"))
	assert.NotEmpty(t, StateColor("CLOSED"))
	assert.Equal(t, "DRAFT", StateColor("DRAFT"))
}

func TestDangerColor(t *testing.T) {
	assert.NotEmpty(t, DangerColor("critical"))
	assert.NotEmpty(t, DangerColor("warning"))
	assert.NotEmpty(t, DangerColor("caution"))
	assert.NotEmpty(t, DangerColor("safe"))
	assert.Equal(t, "odd", DangerColor("odd"))
}

func TestTierColor(t *testing.T) {
	assert.NotEmpty(t, TierColor("Elite"))
	assert.NotEmpty(t, TierColor("High"))
	assert.NotEmpty(t, TierColor("Medium"))
	assert.NotEmpty(t, TierColor("Low"))
}

func TestActionColor(t *testing.T) {
	assert.NotEmpty(t, ActionColor("author"))
	assert.NotEmpty(t, ActionColor("reviewers"))
	assert.NotEmpty(t, ActionColor("ready_to_merge"))
	assert.Equal(t, "none", ActionColor("none"))
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Repo", "State"})
	require.NotNil(t, table)

	table.Append([]string{"acme/api", "OPEN"})
	table.Append([]string{"acme/web", "MERGED"})
	err := table.Render()
	require.NoError(t, err)

	result := out.String()
	assert.True(t, strings.Contains(result, "acme/api"),
		"table output should contain repo names")
	assert.True(t, strings.Contains(result, "acme/web"),
		"table output should contain repo names")
}
