package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/autovol/internal/core"
	"github.com/jmylchreest/autovol/internal/model"
	"github.com/jmylchreest/autovol/internal/store"
)

func testAdjustments() []model.Adjustment {
	now := time.Now()
	return []model.Adjustment{
		{
			ID:        "01JAAAAAAAAAAAAAAAAAAAAAA1",
			RunID:     "01JRUNRUNRUNRUNRUNRUNRUN01",
			Timestamp: now.Add(-5 * time.Minute).UnixMilli(),
			Score:     62.3,
			From:      11,
			To:        12,
			Target:    13,
			Player:    "spotify",
		},
		{
			ID:        "01JAAAAAAAAAAAAAAAAAAAAAA2",
			RunID:     "01JRUNRUNRUNRUNRUNRUNRUN01",
			Timestamp: now.Add(-2 * time.Hour).UnixMilli(),
			Score:     41.5,
			From:      8,
			To:        7,
			Target:    5,
		},
	}
}

func TestLineFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	formatter := NewLineFormatter(DefaultFormatterOptions())
	require.NoError(t, formatter.Format(&buf, testAdjustments()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	assert.True(t, strings.HasPrefix(lines[0], "1 | 5m | "))
	assert.Contains(t, lines[0], "▲ 11 -> 12 (target 13)")
	assert.Contains(t, lines[0], "62.3 dB")

	assert.True(t, strings.HasPrefix(lines[1], "2 | 2h | "))
	assert.Contains(t, lines[1], "▼ 8 -> 7 (target 5)")
}

func TestLineFormatter_NoIndexNoTime(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.ShowIndex = false
	opts.ShowTime = false
	opts.ShowRun = true
	opts.Separator = "\t"
	require.NoError(t, NewLineFormatter(opts).Format(&buf, testAdjustments()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "RUNRUN01\t▲ 11 -> 12 (target 13)\t62.3 dB", lines[0])
}

func TestLineFormatter_CustomTemplate(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.Template = "{{.Index}}:{{.Direction}}:{{.Adjustment.To}} {{db .Adjustment.Score}}"
	require.NoError(t, NewLineFormatter(opts).Format(&buf, testAdjustments()))

	assert.Equal(t, "1:up:12 62.3 dB\n2:down:7 41.5 dB\n", buf.String())
}

func TestLineFormatter_InvalidTemplateFallsBack(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.Template = "{{.Unclosed"
	require.NoError(t, NewLineFormatter(opts).Format(&buf, testAdjustments()[:1]))

	assert.Contains(t, buf.String(), "11 -> 12")
}

func TestPlainFormatter_Table(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewPlainFormatter(DefaultFormatterOptions()).Format(&buf, testAdjustments()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"#", "WHEN", "DIR", "FROM", "TO", "TARGET", "SCORE"}, strings.Fields(lines[0]))
	assert.Contains(t, lines[1], "minutes ago")
	assert.Contains(t, lines[1], "up")
	assert.Contains(t, lines[2], "hours ago")
	assert.Contains(t, lines[2], "41.5")
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewJSONFormatter(DefaultFormatterOptions()).Format(&buf, testAdjustments()))

	var decoded []model.Adjustment
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "spotify", decoded[0].Player)
	assert.Contains(t, buf.String(), `"timestamp_ms"`)
}

func TestJSONFormatter_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewJSONFormatter(FormatterOptions{}).Format(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestYAMLFormatter_UsesJSONKeys(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewYAMLFormatter(FormatterOptions{}).Format(&buf, testAdjustments()))

	assert.Contains(t, buf.String(), "run_id: 01JRUNRUNRUNRUNRUNRUNRUN01")
	assert.Contains(t, buf.String(), "timestamp_ms:")

	var decoded []model.Adjustment
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 7, decoded[1].To)
}

func TestIDsFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewIDsFormatter().Format(&buf, testAdjustments()))
	assert.Equal(t, "01JAAAAAAAAAAAAAAAAAAAAAA1\n01JAAAAAAAAAAAAAAAAAAAAAA2\n", buf.String())
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format   FormatType
		expected any
	}{
		{FormatLine, &LineFormatter{}},
		{FormatPlain, &PlainFormatter{}},
		{FormatJSON, &JSONFormatter{}},
		{FormatYAML, &YAMLFormatter{}},
		{FormatIDs, &IDsFormatter{}},
		{"unknown", &LineFormatter{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			assert.IsType(t, tt.expected, NewFormatter(tt.format, DefaultFormatterOptions()))
		})
	}
}

func TestFormatField(t *testing.T) {
	a := testAdjustments()[0]

	assert.Equal(t, a.ID, FormatField(&a, "id"))
	assert.Equal(t, "62.30", FormatField(&a, "score"))
	assert.Equal(t, "up", FormatField(&a, "DIR"))
	assert.Equal(t, "13", FormatField(&a, "target"))
	assert.Equal(t, "spotify", FormatField(&a, "player"))
	assert.Equal(t, "11 -> 12", FormatField(&a, "bogus"))
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "unknown", relativeTime(time.Time{}))
	assert.Equal(t, "now", relativeTime(now.Add(-10*time.Second)))
	assert.Equal(t, "3h", relativeTime(now.Add(-3*time.Hour-time.Minute)))
	assert.Equal(t, "2d", relativeTime(now.Add(-49*time.Hour)))
	assert.Equal(t, "3w", relativeTime(now.Add(-22*24*time.Hour)))
}

func TestFormatStatus_Waybar(t *testing.T) {
	status := &store.Status{
		Running:       true,
		Score:         55.5,
		AverageScore:  50,
		CurrentVolume: 6,
		TargetVolume:  8,
		MaxVolume:     15,
	}

	var buf bytes.Buffer
	require.NoError(t, FormatStatus(&buf, StatusWaybar, status))

	var out WaybarOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "6/15", out.Text)
	assert.Equal(t, "running", out.Class)
	assert.Equal(t, 40, out.Percentage)
	assert.Contains(t, out.Tooltip, "55.5 dB")
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "paused", StatusClass(&store.Status{Paused: true, Running: true}))
	assert.Equal(t, "running", StatusClass(&store.Status{Running: true}))
	assert.Equal(t, "error", StatusClass(&store.Status{LastError: "no player"}))
	assert.Equal(t, "stopped", StatusClass(&store.Status{}))
}

func TestFormatStatus_Text(t *testing.T) {
	status := &store.Status{
		Running:       true,
		CurrentVolume: 3,
		TargetVolume:  4,
		MaxVolume:     15,
		Ticks:         12345,
		Player:        "mpv",
		UpdatedAt:     time.Now().Unix(),
	}

	var buf bytes.Buffer
	require.NoError(t, FormatStatus(&buf, StatusText, status))

	out := buf.String()
	assert.Contains(t, out, "State:       running")
	assert.Contains(t, out, "Volume:      3 (target 4, max 15)")
	assert.Contains(t, out, "Ticks:       12,345")
	assert.Contains(t, out, "Player:      mpv")
	assert.Contains(t, out, "Updated:")
}

func TestFormatStatus_NilAndUnknown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatStatus(&buf, StatusYAML, nil))
	assert.Contains(t, buf.String(), "running: false")

	assert.Error(t, FormatStatus(&buf, "xml", nil))
}

func TestFormatSummary(t *testing.T) {
	adjustments := testAdjustments()
	summary := core.Summarize(adjustments)

	var buf bytes.Buffer
	require.NoError(t, FormatSummary(&buf, FormatLine, summary))
	assert.Contains(t, buf.String(), "Adjustments: 2 (1 up, 1 down)")
	assert.Contains(t, buf.String(), "Volume:      7 to 12")
	assert.Contains(t, buf.String(), "Runs:        1")

	buf.Reset()
	require.NoError(t, FormatSummary(&buf, FormatJSON, summary))
	var decoded core.Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded.Count)

	buf.Reset()
	require.NoError(t, FormatSummary(&buf, FormatPlain, core.Summary{}))
	assert.Equal(t, "No adjustments\n", buf.String())
}

func TestEncode(t *testing.T) {
	doc := map[string]int{"ticks": 3}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FormatJSON, doc))
	assert.JSONEq(t, `{"ticks": 3}`, buf.String())

	buf.Reset()
	require.NoError(t, Encode(&buf, FormatYAML, doc))
	assert.Equal(t, "ticks: 3\n", buf.String())

	assert.Error(t, Encode(&buf, FormatLine, doc))
}
