package main

import (
	"testing"

	"github.com/mainframed/xmi/internal/cliconfig"
)

func boolPtr(b bool) *bool { return &b }

func TestApplyDefaultsFillsUnsetFlagsOnly(t *testing.T) {
	flags = struct {
		unnum     bool
		force     bool
		binary    bool
		quiet     bool
		human     bool
		jsonOut   bool
		jsonFile  string
		outputDir string
		encoding  string
		lrecl     int
		modify    bool
		print     string
		debug     bool
		config    string
	}{unnum: true, encoding: "cp1140"}

	cmd := newRootCmd()
	if err := cmd.Flags().Set("encoding", "cp037"); err != nil {
		t.Fatal(err)
	}
	flags.encoding = "cp037"

	applyDefaults(cmd, &cliconfig.Defaults{
		Unnum:    boolPtr(false),
		Encoding: "cp500",
		Lrecl:    80,
	})

	if flags.unnum != false {
		t.Errorf("expected the YAML default to fill unset --unnum, got %v", flags.unnum)
	}
	if flags.encoding != "cp037" {
		t.Errorf("expected the explicitly-set --encoding flag to win over the YAML default, got %q", flags.encoding)
	}
	if flags.lrecl != 80 {
		t.Errorf("expected the YAML default to fill unset --lrecl, got %d", flags.lrecl)
	}
}

func TestApplyDefaultsNilIsNoop(t *testing.T) {
	flags.encoding = "cp1140"
	applyDefaults(newRootCmd(), nil)
	if flags.encoding != "cp1140" {
		t.Errorf("expected a nil Defaults to leave flags untouched, got %q", flags.encoding)
	}
}
