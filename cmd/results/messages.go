package main

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
)

// ReportLoadedMsg carries a report read from disk.
type ReportLoadedMsg struct {
	Path      string
	Report    types.Report
	Breakdown optional.Option[types.Breakdown]
}

// LoadErrorMsg indicates that a report could not be read.
type LoadErrorMsg struct {
	Err error
}
