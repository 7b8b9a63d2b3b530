package cmd

import (
	"os"
	"strings"
	"testing"
)

func TestExecute_UnknownCommand(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"recall", "bogus"}
	err := Execute()
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error = %v, want the command named", err)
	}
}

func TestExecute_NoArgsShowsHelp(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"recall"}
	if err := Execute(); err != nil {
		t.Errorf("Execute() with no args = %v, want nil", err)
	}
}

func TestExecute_Version(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"recall", "--version"}
	if err := Execute(); err != nil {
		t.Errorf("Execute() version = %v, want nil", err)
	}
}
