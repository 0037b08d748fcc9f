package app

import (
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"empty defaults to serve", []string{}, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker", []string{"worker"}, CommandWorker},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"export", []string{"export-loans", "out.json"}, CommandExportLoans},
		{"import", []string{"import-loans", "in.json"}, CommandImportLoans},
		{"export books", []string{"export-books", "books.csv"}, CommandExportBooks},
		{"unknown defaults to serve", []string{"unknown"}, CommandServe},
		{"extra args ignored", []string{"worker", "--flag", "value"}, CommandWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestCommandArg(t *testing.T) {
	if got := commandArg([]string{"export-loans", "out.json"}, 0); got != "out.json" {
		t.Errorf("commandArg = %q, want out.json", got)
	}
	if got := commandArg([]string{"export-loans"}, 0); got != "" {
		t.Errorf("commandArg = %q, want empty", got)
	}
}
