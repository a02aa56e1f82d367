package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestOutput(jsonMode bool) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &Output{jsonMode: jsonMode, w: &out, errW: &errOut}, &out, &errOut
}

func TestTable_RendersHeadersAndRows(t *testing.T) {
	o, out, _ := newTestOutput(false)
	o.Table([]string{"NAME", "STATE"}, [][]string{
		{"trigger-a", "WAITING"},
		{"trigger-b", "ACQUIRED"},
	})

	got := out.String()
	if !strings.Contains(got, "NAME") || !strings.Contains(got, "STATE") {
		t.Errorf("expected headers in output, got %q", got)
	}
	if !strings.Contains(got, "trigger-a") || !strings.Contains(got, "ACQUIRED") {
		t.Errorf("expected row data in output, got %q", got)
	}
}

func TestJSON_EncodesIndented(t *testing.T) {
	o, out, _ := newTestOutput(true)
	o.JSON(map[string]string{"key": "value"})

	var decoded map[string]string
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["key"] != "value" {
		t.Errorf("got %v, want key=value", decoded)
	}
	if !strings.Contains(out.String(), "  ") {
		t.Errorf("expected indented JSON output, got %q", out.String())
	}
}

func TestPrint_RespectsJSONMode(t *testing.T) {
	jsonOut, outBuf, _ := newTestOutput(true)
	jsonOut.Print([]string{"NAME"}, [][]string{{"trigger-a"}}, map[string]string{"name": "trigger-a"})
	if strings.Contains(outBuf.String(), "NAME") {
		t.Errorf("json mode should not render table headers, got %q", outBuf.String())
	}

	tableOut, outBuf2, _ := newTestOutput(false)
	tableOut.Print([]string{"NAME"}, [][]string{{"trigger-a"}}, map[string]string{"name": "trigger-a"})
	if !strings.Contains(outBuf2.String(), "NAME") {
		t.Errorf("table mode should render headers, got %q", outBuf2.String())
	}
}

func TestSuccessAndError_WriteToErrStream(t *testing.T) {
	o, out, errOut := newTestOutput(false)

	o.Success("lock released")
	o.Error("lock not found")

	if out.Len() != 0 {
		t.Errorf("expected stdout untouched, got %q", out.String())
	}
	got := errOut.String()
	if !strings.Contains(got, "lock released") {
		t.Errorf("expected success message in stderr, got %q", got)
	}
	if !strings.Contains(got, "Error: lock not found") {
		t.Errorf("expected prefixed error message in stderr, got %q", got)
	}
}
