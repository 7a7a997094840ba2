package model

import (
	"fmt"
	"strings"
)

// Direction is the trade flow being downloaded.
type Direction string

const (
	DirectionImports Direction = "Imports"
	DirectionExports Direction = "Exports"
)

// Measure selects monetary values or physical quantities.
type Measure string

const (
	MeasureValues     Measure = "Values"
	MeasureQuantities Measure = "Quantities"
)

// ClusterLevel is the product classification granularity.
type ClusterLevel string

const (
	ClusterSixDigit   ClusterLevel = "six_digit"
	ClusterTariffLine ClusterLevel = "tariff_line"
)

// OptionLabel returns the visible text of the cluster level option on the
// portal's product dropdown.
func (c ClusterLevel) OptionLabel() string {
	if c == ClusterTariffLine {
		return "Products at the tariff line"
	}
	return "Product cluster at 6 digits"
}

// SelectValue returns the value attribute the portal assigns to the cluster
// level option ("6" or "8").
func (c ClusterLevel) SelectValue() string {
	if c == ClusterTariffLine {
		return "8"
	}
	return "6"
}

// Job describes one reporter/direction/measure download pass. It is immutable
// for the duration of a run.
type Job struct {
	Reporter string       `json:"reporter"`
	Flow     Direction    `json:"flow"`
	Measure  Measure      `json:"measure"`
	Cluster  ClusterLevel `json:"cluster"`

	// Partners, when set, overrides the partner sequence (used by the repair
	// command to re-download a known list of failures).
	Partners []string `json:"partners,omitempty"`

	// FirstRun registers the operator session row before the download starts.
	FirstRun bool `json:"first_run,omitempty"`
}

// FolderName is the per-job download directory name.
func (j Job) FolderName() string {
	if j.Cluster == ClusterTariffLine {
		return fmt.Sprintf("%s_%s_%s_Tariff", j.Reporter, j.Flow, j.Measure)
	}
	return fmt.Sprintf("%s_%s_%s", j.Reporter, j.Flow, j.Measure)
}

// ResultsFile is the ledger file recording successful partner downloads for
// this job's trade direction.
func (j Job) ResultsFile() string {
	return fmt.Sprintf("%s_res.json", j.Flow)
}

// SanitizeName normalizes a country name the way the portal names downloaded
// files: commas become spaces, then every space becomes an underscore.
func SanitizeName(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, ",", " "), " ", "_")
}
