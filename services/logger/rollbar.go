package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	rberrors "github.com/rollbar/rollbar-go/errors"

	"github.com/kohlab/pyeongga/core"
	"github.com/kohlab/pyeongga/core/evaluation"
)

// RollbarLogger reports to rollbar and echoes everything to the std logger.
// An evaluation.Actor passed among the args becomes the rollbar person for
// that report, so incidents group by the acting evaluator.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(rberrors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) { rollbar.SetEnabled(enabled) }

func (l RollbarLogger) report(send func(...interface{}), msg string, args []interface{}) {
	l.std.Println(msg)

	payload := make([]interface{}, 0, len(args)+1)
	payload = append(payload, msg)
	var personSet bool
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
		if actor, ok := arg.(evaluation.Actor); ok {
			if !personSet { // first actor wins
				rollbar.SetPerson(actor.ID, actor.Name, actor.Email)
				personSet = true
			}
			continue // rides along as the person, not as payload
		}
		payload = append(payload, arg)
	}
	if !personSet {
		rollbar.ClearPerson()
	}
	send(payload...)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.report(rollbar.Debug, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.report(rollbar.Info, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.report(rollbar.Warning, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.report(rollbar.Error, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.Critical, msg, args)
	l.std.Fatal(msg)
}
