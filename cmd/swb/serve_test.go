package main

import (
	"strings"
	"testing"
)

func TestServeCmd_Help(t *testing.T) {
	out := runHelp(t, "serve")
	for _, flag := range []string{"--port", "--no-sweep", "--config"} {
		if !strings.Contains(out, flag) {
			t.Errorf("expected %s flag in serve help, got: %s", flag, out)
		}
	}
}
