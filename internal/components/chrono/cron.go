package chrono

import (
	"fmt"
	"strings"

	"chattysync/internal/components/telemetry"

	"github.com/robfig/cron/v3"
)

// Scheduler runs named maintenance jobs on cron specs.
type Scheduler interface {
	Schedule(name, spec string, job func()) error
}

// CronScheduler implements Scheduler with robfig/cron, evaluated in LA time.
// Overlapping runs of the same job are skipped.
type CronScheduler struct {
	cron *cron.Cron
	tel  telemetry.API
}

func NewCronScheduler(tel telemetry.API) CronScheduler {
	tel = telemetry.NewScopedAPI("cron", tel)
	logger := cronLogger{tel: tel}
	c := cron.New(
		cron.WithLocation(la),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	c.Start()
	return CronScheduler{cron: c, tel: tel}
}

func (s CronScheduler) Schedule(name, spec string, job func()) error {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cronLogger{tel: s.tel})).Then(cron.FuncJob(func() {
		s.tel.ReportDebug("run", "job", name)
		job()
	}))
	_, err := s.cron.AddJob(spec, wrapped)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Stop waits for running jobs before returning.
func (s CronScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger adapts cron.Logger onto telemetry.API.
type cronLogger struct {
	tel telemetry.API
}

func pairs(keysAndValues []any) string {
	var b strings.Builder
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	return b.String()
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken("job", fmt.Errorf("%s: %w", msg, err), pairs(keysAndValues))
}
