package tool

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLoggedDelegatesAndLogs(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetLevel(logrus.DebugLevel)

	rec := &recorder{fn: func(Command) (Result, error) { return Result{ExitCode: 3}, nil }}
	r := Logged(rec, log)
	res, err := r.Run(context.Background(), Command{Name: "unzip", Args: []string{"-o", "a.zip"}})
	if err != nil || res.ExitCode != 3 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("calls=%d", len(rec.calls))
	}
	out := buf.String()
	if !strings.Contains(out, "exec: unzip -o a.zip") || !strings.Contains(out, "exit=3") {
		t.Fatalf("log output:\n%s", out)
	}
}

func TestLoggedNilLogger(t *testing.T) {
	rec := &recorder{}
	if r := Logged(rec, nil); r != Runner(rec) {
		t.Fatal("nil logger should return the runner unchanged")
	}
}
