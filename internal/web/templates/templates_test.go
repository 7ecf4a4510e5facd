package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/masterdata/internal/core"
	"github.com/JonMunkholm/masterdata/internal/history"
)

func TestImportPage_States(t *testing.T) {
	tests := []struct {
		name    string
		snap    core.Snapshot
		want    []string
		notWant []string
	}{
		{
			name: "ready",
			snap: core.Snapshot{State: core.StateReady, Options: core.ParseOptions{Encoding: "utf-8"}},
			want:    []string{"No file selected.", `<option value="utf-8" selected>`},
			notWant: []string{"Parsed Data", " disabled", "checked"},
		},
		{
			name: "errors",
			snap: core.Snapshot{
				Target: core.TargetItems,
				State:  core.StateErrors,
				Errors: []core.ImportError{{Message: core.MsgNoData}},
			},
			want:    []string{`value="items" class="selected"`, `value="process" disabled`, "alert-error", core.MsgNoData},
			notWant: []string{"Parsed Data"},
		},
		{
			name: "data",
			snap: core.Snapshot{
				Target:   core.TargetItems,
				FileName: "items.csv",
				Format:   core.FormatCSV,
				FileSize: 42,
				Options:  core.ParseOptions{Header: true},
				Records:  []core.Record{{"name": "Bolt"}},
				Warnings: []core.ImportError{{Message: "check me"}},
				State:    core.StateData,
				Busy:     "upload",
			},
			want: []string{"items.csv", "(csv, 42 bytes)", "checked", "alert-warn", "check me", "1 records", `&#34;name&#34;`, `class="btn-upload" type="submit" disabled`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			view := ImportView{Session: tt.snap, Targets: core.Targets(), Encodings: []string{"utf-8", "windows-1252"}, MaxSize: 10 << 20}
			if err := ImportPage(view).Render(context.Background(), &buf); err != nil {
				t.Fatalf("Render: %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q", w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output should not contain %q", w)
				}
			}
		})
	}
}

func TestPages_EscapeUserContent(t *testing.T) {
	evil := `<img src=x onerror=alert(1)>`
	var buf bytes.Buffer
	ctx := context.Background()

	snap := core.Snapshot{FileName: evil, Notice: evil, State: core.StateData, Records: []core.Record{{"x": evil}}}
	if err := ImportPage(ImportView{Session: snap}).Render(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	runs := []history.Run{{FileName: evil, Target: "items", Status: history.StatusFailed, Error: evil, StartedAt: time.Now(), FinishedAt: time.Now()}}
	if err := HistoryPage(runs).Render(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	if err := ErrorPage(evil, evil, "X001").Render(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(buf.String(), "<img") {
		t.Error("user content rendered unescaped")
	}
	if !strings.Contains(buf.String(), "&lt;img") {
		t.Error("escaped content missing")
	}
}

func TestTemplatesPage_Links(t *testing.T) {
	var buf bytes.Buffer
	if err := TemplatesPage(core.Targets()).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`href="/api/templates/items?format=csv"`, `href="/api/templates/bill-of-material?format=xlsx"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if !strings.Contains(out, `<a href="/templates" class="active">`) {
		t.Error("templates nav item not marked active")
	}
}
