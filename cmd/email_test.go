package cmd

import (
	"path/filepath"
	"testing"

	"github.com/samfreund/musicViz/internal/dataset"
)

func TestEmailCommand(t *testing.T) {
	if emailCmd == nil {
		t.Error("emailCmd is nil")
	}
	if emailCmd.Use != "email <address>" {
		t.Errorf("unexpected use: %s", emailCmd.Use)
	}
}

func TestSendSummaryEmailDryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := dataset.Write(path, sampleResult()); err != nil {
		t.Fatal(err)
	}

	config := SendEmailConfig{
		DatasetPath: path,
		From:        "me@example.com",
		To:          "you@example.com",
		DryRun:      true,
	}
	if err := sendSummaryEmail(config); err != nil {
		t.Errorf("sendSummaryEmail() dry run error: %v", err)
	}
}

func TestSendSummaryEmailRequiresDataset(t *testing.T) {
	config := SendEmailConfig{
		DatasetPath: filepath.Join(t.TempDir(), "missing.json"),
		From:        "me@example.com",
		To:          "you@example.com",
		DryRun:      true,
	}
	if err := sendSummaryEmail(config); err == nil {
		t.Error("sendSummaryEmail() succeeded without a dataset")
	}
}
