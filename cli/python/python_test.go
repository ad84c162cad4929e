package pycmd

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnviron(t *testing.T) {
	tests := []struct {
		name       string
		env        []string
		pythonPath string
		want       []string
	}{
		{
			name:       "no path keeps env",
			env:        []string{"HOME=/root"},
			pythonPath: "",
			want:       []string{"HOME=/root"},
		},
		{
			name:       "adds PYTHONPATH",
			env:        []string{"HOME=/root"},
			pythonPath: "/suite",
			want:       []string{"HOME=/root", "PYTHONPATH=/suite"},
		},
		{
			name:       "prepends to existing PYTHONPATH",
			env:        []string{"PYTHONPATH=/lib", "HOME=/root"},
			pythonPath: "/suite",
			want:       []string{"HOME=/root", "PYTHONPATH=/suite:/lib"},
		},
		{
			name:       "empty existing PYTHONPATH",
			env:        []string{"PYTHONPATH="},
			pythonPath: "/suite",
			want:       []string{"PYTHONPATH=/suite"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Environ(tt.env, tt.pythonPath))
		})
	}
}

func TestCommandLine(t *testing.T) {
	i := New("")
	require.Equal(t, DefaultExecutable, i.Executable)
	require.Equal(t, "python3 -m pytest 'Calc Test.py' -v", i.CommandLine("-m", "pytest", "Calc Test.py", "-v"))
}

func TestCommand(t *testing.T) {
	cmd := New("/usr/bin/python3.11").Command(context.Background(), "/suite", "/suite", "-m", "pytest")
	require.Equal(t, "/suite", cmd.Dir)
	require.Equal(t, []string{"/usr/bin/python3.11", "-m", "pytest"}, cmd.Args)
	require.Contains(t, cmd.Env[len(cmd.Env)-1], "PYTHONPATH=/suite")
	require.Equal(t, WaitDelay, cmd.WaitDelay)
}

func TestCommand_CancelDoesNotWaitForInheritedPipes(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	// The background child keeps stdout open long after the shell exits
	i := Interpreter{Executable: "sh"}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cmd := i.Command(ctx, t.TempDir(), "", "-c", "sleep 30 & sleep 30")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	require.Error(t, cmd.Run())
	require.Less(t, time.Since(start), WaitDelay+10*time.Second)
}
