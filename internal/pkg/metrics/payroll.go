package metrics

import "time"

const (
	computePasses     = "payroll_compute_passes_total"
	computeDuration   = "payroll_compute_duration_seconds"
	employeesComputed = "payroll_employees_computed_total"
	employeesFailed   = "payroll_employees_failed_total"
	runsSwept         = "payroll_stale_runs_redispatched_total"
	cronRuns          = "payroll_cron_runs_total"
	cronDuration      = "payroll_cron_duration_seconds"
)

// Payroll records computation outcomes.
type Payroll struct {
	reg *Registry
}

func NewPayroll(reg *Registry) *Payroll {
	reg.Counter(computePasses, "Computation passes by outcome.", "outcome")
	reg.Summary(computeDuration, "Duration of computation passes that reached a terminal outcome.")
	reg.Counter(employeesComputed, "Employee results written.")
	reg.Counter(employeesFailed, "Employees excluded from a run by an isolated failure.")
	reg.Counter(runsSwept, "Runs re-dispatched by the stale run sweeper.")
	reg.Counter(cronRuns, "Background job executions by job and outcome.", "job", "outcome")
	reg.Summary(cronDuration, "Duration of background job executions.", "job")
	return &Payroll{reg: reg}
}

func (p *Payroll) ComputePass(outcome string, employees, failed int, d time.Duration) {
	p.reg.Add(computePasses, 1, outcome)
	p.reg.Observe(computeDuration, d.Seconds())
	p.reg.Add(employeesComputed, float64(employees))
	p.reg.Add(employeesFailed, float64(failed))
}

func (p *Payroll) RunsSwept(n int) {
	p.reg.Add(runsSwept, float64(n))
}

func (p *Payroll) CronRun(job string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	p.reg.Add(cronRuns, 1, job, outcome)
	p.reg.Observe(cronDuration, d.Seconds(), job)
}
