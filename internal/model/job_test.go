package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Austria", SanitizeName("Austria"))
	assert.Equal(t, "Brunei_Darussalam", SanitizeName("Brunei Darussalam"))
	assert.Equal(t, "Korea__Republic_of", SanitizeName("Korea, Republic of"))
}

func TestJobFolderName(t *testing.T) {
	job := Job{Reporter: "Austria", Flow: DirectionImports, Measure: MeasureValues, Cluster: ClusterSixDigit}
	assert.Equal(t, "Austria_Imports_Values", job.FolderName())

	job.Cluster = ClusterTariffLine
	assert.Equal(t, "Austria_Imports_Values_Tariff", job.FolderName())
}

func TestJobResultsFile(t *testing.T) {
	job := Job{Flow: DirectionExports}
	assert.Equal(t, "Exports_res.json", job.ResultsFile())
}

func TestClusterLevelPortalMapping(t *testing.T) {
	assert.Equal(t, "Product cluster at 6 digits", ClusterSixDigit.OptionLabel())
	assert.Equal(t, "6", ClusterSixDigit.SelectValue())
	assert.Equal(t, "Products at the tariff line", ClusterTariffLine.OptionLabel())
	assert.Equal(t, "8", ClusterTariffLine.SelectValue())
}
