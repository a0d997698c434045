package logsvc

import (
	"log"
	"sync"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/studyhub/core"
)

// RollbarLogger writes every entry to a std logger and reports it to Rollbar when enabled.
type RollbarLogger struct {
	std *log.Logger
	mu  *sync.Mutex // rollbar keeps the person globally
}

var _ core.Logger = (*RollbarLogger)(nil) // interface compliance check

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, mu: new(sync.Mutex)}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close waits for pending reports.
func (l RollbarLogger) Close() {
	rollbar.Close()
}

// log reports msg with args, which may hold errors, extras (map[string]interface{}) and one core.LogPerson.
func (l RollbarLogger) log(level string, report func(...interface{}), msg string, args []interface{}) {
	l.std.Printf("%s: %s", level, msg)

	items := []interface{}{msg}
	var person core.LogPerson
	for _, arg := range args {
		if p, ok := arg.(core.LogPerson); ok {
			if person == nil {
				person = p
			}
			continue
		}
		items = append(items, arg)
		l.std.Printf("\t%+v", arg)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if person != nil {
		rollbar.SetPerson(person.LogPerson())
	} else {
		rollbar.ClearPerson()
	}
	report(items...)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log("DEBUG", rollbar.Debug, msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.log("INFO", rollbar.Info, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log("WARN", rollbar.Warning, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.log("ERROR", rollbar.Error, msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", rollbar.Critical, msg, args)
	rollbar.Close()
	l.std.Fatal(msg)
}
