package tool

import (
	"context"

	"github.com/sirupsen/logrus"
)

type logged struct {
	next Runner
	log  logrus.FieldLogger
}

// Logged returns a Runner that logs every command and its outcome at debug
// level before delegating to r.
func Logged(r Runner, log logrus.FieldLogger) Runner {
	if log == nil {
		return r
	}
	return logged{next: r, log: log}
}

func (l logged) Run(ctx context.Context, cmd Command) (Result, error) {
	l.log.WithField("dir", cmd.Dir).Debugf("exec: %s", cmd)
	res, err := l.next.Run(ctx, cmd)
	fields := logrus.Fields{"tool": cmd.Name, "exit": res.ExitCode, "took": res.Duration}
	switch {
	case err != nil:
		l.log.WithFields(fields).Debugf("exec error: %v", err)
	case res.TimedOut:
		l.log.WithFields(fields).Debug("exec timed out")
	default:
		l.log.WithFields(fields).Debug("exec done")
	}
	return res, err
}
