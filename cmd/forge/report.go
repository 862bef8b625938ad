package main

import "github.com/vikramraodp/forge/internal/core"

func printReport(r *core.Report) {
	if r == nil {
		return
	}
	engine.Log.Infof("planned %d, fresh %d, run %d, skipped %d",
		r.UnitsPlanned, r.UnitsFresh, r.UnitsRun, r.UnitsSkipped)
	for _, w := range r.Warnings {
		engine.Log.Warnf("%s", w)
	}
}
