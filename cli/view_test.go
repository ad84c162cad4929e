package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseViewArgs(t *testing.T) {
	tests := []struct {
		name       string
		in         []string
		wantReport string
		wantID     string
	}{
		{
			name:       "empty args - default report and index 0",
			in:         []string{},
			wantReport: "semantic_conflicts",
			wantID:     "0",
		},
		{
			name:       "only index",
			in:         []string{"-1"},
			wantReport: "semantic_conflicts",
			wantID:     "-1",
		},
		{
			name:       "only ID",
			in:         []string{"abc123"},
			wantReport: "semantic_conflicts",
			wantID:     "abc123",
		},
		{
			name:       "only report",
			in:         []string{"behavior_changes"},
			wantReport: "behavior_changes",
			wantID:     "0",
		},
		{
			name:       "report with index",
			in:         []string{"test_suites", "-2"},
			wantReport: "test_suites",
			wantID:     "-2",
		},
		{
			name:       "leading separator",
			in:         []string{"--", "-1"},
			wantReport: "semantic_conflicts",
			wantID:     "-1",
		},
		{
			name:       "only separator",
			in:         []string{"--"},
			wantReport: "semantic_conflicts",
			wantID:     "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotReport, gotID := parseViewArgs(tt.in)
			require.Equal(t, tt.wantReport, gotReport)
			require.Equal(t, tt.wantID, gotID)
		})
	}
}

func TestSelectRecord(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"id": "aaa111", "test_case_name": "oldest"}`),
		json.RawMessage(`{"id": "bbb222", "test_case_name": "middle"}`),
		json.RawMessage(`{"id": "ABC333", "test_case_name": "newest"}`),
	}

	tests := []struct {
		name    string
		arg     string
		want    string
		wantErr bool
	}{
		{name: "newest", arg: "0", want: "newest"},
		{name: "second newest", arg: "-1", want: "middle"},
		{name: "oldest", arg: "-2", want: "oldest"},
		{name: "out of range", arg: "-3", wantErr: true},
		{name: "positive index", arg: "1", wantErr: true},
		{name: "ID prefix", arg: "bbb", want: "middle"},
		{name: "ID prefix is case insensitive", arg: "abc", want: "newest"},
		{name: "unknown ID", arg: "fff", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectRecord(records, tt.arg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			var rec struct {
				TestCaseName string `json:"test_case_name"`
			}
			require.NoError(t, json.Unmarshal(got, &rec))
			require.Equal(t, tt.want, rec.TestCaseName)
		})
	}
}
