package posemisc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in this environment")
	}

	if got := ExpandHome("~/data/poses.csv"); got != filepath.Join(home, "data/poses.csv") {
		t.Errorf("ExpandHome(~/data/poses.csv) = %s", got)
	}
	if got := ExpandHome("~"); got != home {
		t.Errorf("ExpandHome(~) = %s", got)
	}
	if got := ExpandHome("/abs/path.csv"); got != "/abs/path.csv" {
		t.Errorf("ExpandHome must leave absolute paths alone, got %s", got)
	}
	if got := ExpandHome("not~a/prefix"); got != "not~a/prefix" {
		t.Errorf("ExpandHome must only expand a leading tilde, got %s", got)
	}
}
