package gate

import (
	"fmt"

	"pylens/internal/analysis"
)

// Config controls which findings fail a gate run. MaxWarnings below zero
// disables the warning budget.
type Config struct {
	MaxWarnings    int
	FailOnSecurity bool
}

// Check is one pass/fail criterion with a human-readable outcome.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// Counts aggregates the findings the checks were judged on.
type Counts struct {
	Files            int `json:"files"`
	ParseErrors      int `json:"parse_errors"`
	SmellErrors      int `json:"smell_errors"`
	SmellWarnings    int `json:"smell_warnings"`
	SecurityCritical int `json:"security_critical"`
	SecurityHigh     int `json:"security_high"`
}

// Result is the gate verdict for one set of file reports.
type Result struct {
	Pass   bool    `json:"pass"`
	Checks []Check `json:"checks"`
	Counts Counts  `json:"counts"`
}

// Evaluate judges a set of file reports against the gate config. Four
// checks run: syntax, error-severity smells, the warning budget, and
// serious security findings. The gate passes only when every check does.
func Evaluate(reports []*analysis.FileReport, cfg Config) *Result {
	counts := Counts{Files: len(reports)}

	for _, r := range reports {
		if r == nil {
			continue
		}
		if r.Error != "" {
			counts.ParseErrors++
		}
		if r.Smells != nil {
			counts.SmellErrors += r.Smells.SeverityCounts[analysis.SeverityError]
			counts.SmellWarnings += r.Smells.SeverityCounts[analysis.SeverityWarning]
		}
		if r.Security != nil {
			counts.SecurityCritical += r.Security.SeverityCounts[analysis.SeverityCritical]
			counts.SecurityHigh += r.Security.SeverityCounts[analysis.SeverityHigh]
		}
	}

	checks := []Check{
		syntaxCheck(counts),
		smellCheck(counts),
		warningCheck(counts, cfg),
		securityCheck(counts, cfg),
	}

	result := &Result{Pass: true, Checks: checks, Counts: counts}
	for _, c := range checks {
		if !c.OK {
			result.Pass = false
			break
		}
	}
	return result
}

func syntaxCheck(counts Counts) Check {
	c := Check{Name: "syntax", OK: counts.ParseErrors == 0}
	if c.OK {
		c.Detail = fmt.Sprintf("%d files parsed", counts.Files)
	} else {
		c.Detail = fmt.Sprintf("%d of %d files failed to parse", counts.ParseErrors, counts.Files)
	}
	return c
}

func smellCheck(counts Counts) Check {
	c := Check{Name: "smells", OK: counts.SmellErrors == 0}
	if c.OK {
		c.Detail = "no error-severity smells"
	} else {
		c.Detail = fmt.Sprintf("%d error-severity smells", counts.SmellErrors)
	}
	return c
}

func warningCheck(counts Counts, cfg Config) Check {
	c := Check{Name: "warnings"}
	if cfg.MaxWarnings < 0 {
		c.OK = true
		c.Detail = "warning budget disabled"
		return c
	}
	c.OK = counts.SmellWarnings <= cfg.MaxWarnings
	c.Detail = fmt.Sprintf("%d warnings, budget %d", counts.SmellWarnings, cfg.MaxWarnings)
	return c
}

func securityCheck(counts Counts, cfg Config) Check {
	c := Check{Name: "security"}
	if !cfg.FailOnSecurity {
		c.OK = true
		c.Detail = "security gate disabled"
		return c
	}
	c.OK = counts.SecurityCritical+counts.SecurityHigh == 0
	if c.OK {
		c.Detail = "no critical or high findings"
	} else {
		c.Detail = fmt.Sprintf("%d critical, %d high findings", counts.SecurityCritical, counts.SecurityHigh)
	}
	return c
}
