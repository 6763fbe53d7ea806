package main

import (
	"bytes"
	"os"
	"testing"
)

// resetFlags restores every flag to its default between test cases.
func resetFlags() {
	verbose, quiet, jsonOut = false, false, false
	encodeHead = false
	validateShallow = false
	buildFill, buildDepth, buildCount, buildSize, buildRandom = -2, 0, 1000, 16, false
	buildSeed = ""
	intsetLoad, intsetRemove = "", false
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return buf.String(), fnErr
}
